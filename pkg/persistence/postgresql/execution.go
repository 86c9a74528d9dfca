package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
)

// ExecutionRepository handles workflow executions and their audit log.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , contact_id
  , status
  , current_node_id
  , next_run_at
  , retry_count
  , error_message
  , claimed_until
  , created_at
  , updated_at
  , completed_at
`

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution    models.WorkflowExecution
		errorMessage sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.ContactID,
		&execution.Status,
		&execution.CurrentNodeID,
		&execution.NextRunAt,
		&execution.RetryCount,
		&errorMessage,
		&execution.ClaimedUntil,
		&execution.CreatedAt,
		&execution.UpdatedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.ErrorMessage = errorMessage.String

	return &execution, nil
}

// DueExecutions returns running executions whose next run is at or before now.
func (r *ExecutionRepository) DueExecutions(ctx context.Context, now time.Time, filter models.ExecutionFilter, limit int) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status = 'running'
		  AND next_run_at <= $1
		  AND ($2::text = '' OR workflow_id = $2)
		ORDER BY next_run_at, id
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, now, filter.WorkflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// ClaimExecution takes a claim on a due running execution unless another live claim exists.
func (r *ExecutionRepository) ClaimExecution(ctx context.Context, id string, now, until time.Time) (bool, error) {
	query := `
		UPDATE workflow_executions
		SET claimed_until = $3
		WHERE id = $1
		  AND status = 'running'
		  AND next_run_at <= $2
		  AND (claimed_until IS NULL OR claimed_until <= $2)
	`

	result, err := r.db.ExecContext(ctx, query, id, now, until)
	if err != nil {
		return false, fmt.Errorf("failed to claim execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return true, nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM workflow_executions WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check execution: %w", err)
	}

	if !exists {
		return false, persistence.NewExecutionError("ClaimExecution", id, persistence.ErrExecutionNotFound)
	}

	return false, nil
}

// SaveExecution writes the mutable fields of an execution and releases its claim.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	execution.UpdatedAt = time.Now().UTC()
	execution.ClaimedUntil = nil

	query := `
		UPDATE workflow_executions SET
			status = $2,
			current_node_id = $3,
			next_run_at = $4,
			retry_count = $5,
			error_message = $6,
			claimed_until = NULL,
			updated_at = $7,
			completed_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.CurrentNodeID,
		execution.NextRunAt,
		execution.RetryCount,
		nullString(execution.ErrorMessage),
		execution.UpdatedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewExecutionError("SaveExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// ExecutionByID returns an execution by its ID.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// CreateExecution enrolls a contact. A second enrollment of the same contact is ignored.
func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	now := time.Now().UTC()

	if execution.ID == "" {
		id, err := newID()
		if err != nil {
			return false, err
		}

		execution.ID = id
	}

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9, $10, $11)
		ON CONFLICT (workflow_id, contact_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.ContactID,
		execution.Status,
		execution.CurrentNodeID,
		execution.NextRunAt,
		execution.RetryCount,
		nullString(execution.ErrorMessage),
		execution.CreatedAt,
		execution.UpdatedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ResumeExecutions flips every paused execution of a workflow back to running.
func (r *ExecutionRepository) ResumeExecutions(ctx context.Context, workflowID string, now time.Time) (int, error) {
	query := `
		UPDATE workflow_executions
		SET status = 'running', next_run_at = $2, updated_at = $2
		WHERE workflow_id = $1 AND status = 'paused'
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to resume executions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// AppendLog inserts an audit entry.
func (r *ExecutionRepository) AppendLog(ctx context.Context, entry *models.ExecutionLogEntry) error {
	if entry.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		entry.ID = id
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal log detail: %w", err)
	}

	query := `
		INSERT INTO workflow_execution_logs (id, execution_id, node_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		nullString(entry.NodeID),
		entry.Action,
		detailJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}
