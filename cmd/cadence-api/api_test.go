package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/cadence/pkg/cmd"
	"github.com/dukex/cadence/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	engine, err := cmd.NewEngine(context.Background(), cmd.EngineConfig{
		ServiceName: serviceName,
		DatabaseURL: "memory://",
		Workflow:    workflow.DefaultConfig(),
	}, slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, engine.Close(context.Background()))
	})

	return NewAPI(slog.Default(), engine).App()
}

func request(t *testing.T, app *fiber.App, method, path string) (int, string) {
	t.Helper()

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader("")
	}

	resp, err := app.Test(httptest.NewRequest(method, path, body))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(payload)
}

func TestAPI_RootEndpoint(t *testing.T) {
	status, body := request(t, setupTestApp(t), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cadence API", body)
}

func TestAPI_HealthEndpoints(t *testing.T) {
	app := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz"} {
		status, _ := request(t, app, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, status, path)
	}
}

func TestAPI_RoutesReachEngine(t *testing.T) {
	app := setupTestApp(t)

	status, body := request(t, app, http.MethodPost, "/executions/process")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"processed":0,"skipped":0,"failed":0,"total":0}`, body)

	status, body = request(t, app, http.MethodPost, "/campaigns/dispatch")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"processed":0,"results":[]}`, body)

	status, _ = request(t, app, http.MethodGet, "/executions/missing")
	assert.Equal(t, http.StatusNotFound, status)
}
