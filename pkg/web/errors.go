package web

import (
	"errors"

	"github.com/dukex/cadence/pkg/persistence"
	"github.com/dukex/cadence/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

var errInvalidJSON = errors.New("Invalid JSON format") //nolint:staticcheck // shown to API clients as is

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps engine errors to problems.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")
	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")
	case persistence.IsCampaignNotFound(err):
		return notFound(c, "campaign_not_found", "campaign not found")
	case errors.Is(err, workflow.ErrWorkflowInactive):
		return conflict(c, err.Error())
	case errors.Is(err, workflow.ErrInvalidWorkflow),
		errors.Is(err, workflow.ErrNoSourceList):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}
