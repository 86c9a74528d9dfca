// Package web provides the HTTP endpoints that drive the engine and the campaign dispatcher.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/cadence/pkg/dispatch"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type BatchRunner interface {
	Run(ctx context.Context, filter models.ExecutionFilter) (workflow.Summary, error)
}

type CampaignDispatcher interface {
	Process(ctx context.Context, campaignID string) (dispatch.Summary, error)
}

type Enroller interface {
	Enroll(ctx context.Context, workflowID string, contactIDs []string) (int, error)
	EnrollFromList(ctx context.Context, workflowID string) (int, error)
	Resume(ctx context.Context, workflowID string) (int, error)
}

type Lifecycle interface {
	Activate(ctx context.Context, workflowID string) (*models.Workflow, int, error)
	Pause(ctx context.Context, workflowID string) (*models.Workflow, error)
}

// Store is what the handlers read directly.
type Store interface {
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	runner     BatchRunner
	dispatcher CampaignDispatcher
	enroller   Enroller
	lifecycle  Lifecycle
	store      Store
	validator  *validator.Validate
}

func NewAPIHandlers(
	runner BatchRunner,
	dispatcher CampaignDispatcher,
	enroller Enroller,
	lifecycle Lifecycle,
	store Store,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		runner:     runner,
		dispatcher: dispatcher,
		enroller:   enroller,
		lifecycle:  lifecycle,
		store:      store,
		validator:  validator,
	}
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	router.Post("/executions/process", h.ProcessExecutions)
	router.Get("/executions/:id", h.GetExecution)

	router.Post("/campaigns/dispatch", h.DispatchCampaigns)

	w := router.Group("/workflows")
	w.Post("/:id/enroll", h.Enroll)
	w.Post("/:id/enroll-list", h.EnrollFromList)
	w.Post("/:id/resume", h.Resume)
	w.Post("/:id/activate", h.Activate)
	w.Post("/:id/pause", h.Pause)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	check := "ok"

	err := h.store.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		check = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": check,
		},
		"timestamp": time.Now().UTC(),
	})
}

// ProcessExecutions runs one batch of due executions. The body is optional.
func (h *APIHandlers) ProcessExecutions(c fiber.Ctx) error {
	var req ProcessExecutionsRequest
	if err := h.bindOptional(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.runner.Run(c.Context(), models.ExecutionFilter{WorkflowID: req.WorkflowID})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) DispatchCampaigns(c fiber.Ctx) error {
	var req DispatchCampaignsRequest
	if err := h.bindOptional(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.dispatcher.Process(c.Context(), req.CampaignID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.store.ExecutionByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) Enroll(c fiber.Ctx) error {
	var req EnrollRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enrolled, err := h.enroller.Enroll(c.Context(), c.Params("id"), req.ContactIDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(EnrollResponse{Enrolled: enrolled})
}

func (h *APIHandlers) EnrollFromList(c fiber.Ctx) error {
	enrolled, err := h.enroller.EnrollFromList(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(EnrollResponse{Enrolled: enrolled})
}

func (h *APIHandlers) Resume(c fiber.Ctx) error {
	resumed, err := h.enroller.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ResumeResponse{Resumed: resumed})
}

func (h *APIHandlers) Activate(c fiber.Ctx) error {
	activated, resumed, err := h.lifecycle.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ActivateResponse{Workflow: activated, Resumed: resumed})
}

func (h *APIHandlers) Pause(c fiber.Ctx) error {
	paused, err := h.lifecycle.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(paused)
}

func (h *APIHandlers) bindOptional(c fiber.Ctx, req any) error {
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(req); err != nil {
			return errInvalidJSON
		}
	}

	return h.validator.Struct(req)
}
