package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/cadence/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("WorkflowByID", "workflow-123", persistence.ErrWorkflowNotFound)
		nodeErr := persistence.NewNodeError("NodeByID", "workflow-123", "node-1", persistence.ErrNodeNotFound)
		executionErr := persistence.NewExecutionError("ExecutionByID", "exec-1", persistence.ErrExecutionNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsNodeNotFound(nodeErr))
		assert.True(t, persistence.IsExecutionNotFound(executionErr))
		assert.False(t, persistence.IsNodeNotFound(workflowErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.True(t, errors.Is(nodeErr, persistence.ErrNodeNotFound))
	})

	t.Run("wrapped sentinel is still detected", func(t *testing.T) {
		err := fmt.Errorf("failed to load contact: %w", persistence.ErrContactNotFound)

		assert.True(t, persistence.IsContactNotFound(err))
		assert.False(t, persistence.IsCampaignNotFound(err))
	})

	t.Run("node error contains context", func(t *testing.T) {
		err := persistence.NewNodeError("NodeByID", "workflow-123", "email-1", persistence.ErrNodeNotFound)

		assert.Contains(t, err.Error(), "NodeByID")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "email-1")
		assert.Contains(t, err.Error(), "node not found")
	})
}
