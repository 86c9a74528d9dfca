package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func runWorker(t *testing.T, args ...string) []byte {
	t.Helper()

	var out bytes.Buffer

	root := &cli.Command{
		Name:     "cadence-worker",
		Writer:   &out,
		Commands: []*cli.Command{NewRunCommand(), NewProcessCommand(), NewDispatchCommand()},
	}

	require.NoError(t, root.Run(context.Background(), append([]string{"cadence-worker"}, args...)))

	return out.Bytes()
}

func TestProcessCommand_PrintsSummary(t *testing.T) {
	out := runWorker(t, "process", "--database-url", "memory://", "--log-level", "error")

	var summary map[string]int
	require.NoError(t, json.Unmarshal(out, &summary))
	assert.Equal(t, map[string]int{"processed": 0, "skipped": 0, "failed": 0, "total": 0}, summary)
}

func TestDispatchCommand_PrintsSummary(t *testing.T) {
	out := runWorker(t, "dispatch", "--database-url", "memory://", "--log-level", "error")
	assert.JSONEq(t, `{"processed":0,"results":[]}`, string(out))
}

func TestRunCommand_RejectsBadSchedule(t *testing.T) {
	root := &cli.Command{Name: "cadence-worker", Commands: []*cli.Command{NewRunCommand()}}

	err := root.Run(context.Background(), []string{
		"cadence-worker", "run", "--database-url", "memory://", "--schedule", "whenever", "--log-level", "error",
	})
	assert.ErrorContains(t, err, "invalid schedule")
}
