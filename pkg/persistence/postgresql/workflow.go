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

// WorkflowRepository handles workflow and node database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// WorkflowByID returns a workflow by its ID.
func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , status
		  , trigger
		  , schedule
		  , owner
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	var (
		workflow     models.Workflow
		triggerJSON  []byte
		scheduleJSON []byte
		owner        sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Status,
		&triggerJSON,
		&scheduleJSON,
		&owner,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Owner = owner.String

	if len(triggerJSON) > 0 {
		err = json.Unmarshal(triggerJSON, &workflow.Trigger)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow trigger: %w", err)
		}
	}

	if len(scheduleJSON) > 0 {
		var schedule models.Schedule

		err = json.Unmarshal(scheduleJSON, &schedule)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow schedule: %w", err)
		}

		workflow.Schedule = &schedule
	}

	return &workflow, nil
}

// SaveWorkflow upserts a workflow.
func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		workflow.ID = id
	}

	triggerJSON, err := json.Marshal(workflow.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}

	var scheduleJSON []byte

	if workflow.Schedule != nil {
		scheduleJSON, err = json.Marshal(workflow.Schedule)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule: %w", err)
		}
	}

	query := `
		INSERT INTO workflows (id, name, status, trigger, schedule, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			trigger = EXCLUDED.trigger,
			schedule = EXCLUDED.schedule,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Status,
		triggerJSON,
		scheduleJSON,
		nullString(workflow.Owner),
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

const nodeColumns = `id, workflow_id, kind, name, config, next_node_id, true_node_id, false_node_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*models.WorkflowNode, error) {
	var (
		node       models.WorkflowNode
		configJSON []byte
	)

	err := row.Scan(
		&node.ID,
		&node.WorkflowID,
		&node.Kind,
		&node.Name,
		&configJSON,
		&node.Next,
		&node.OnTrue,
		&node.OnFalse,
	)
	if err != nil {
		return nil, err
	}

	node.Next = models.Edge(node.Next)
	node.OnTrue = models.Edge(node.OnTrue)
	node.OnFalse = models.Edge(node.OnFalse)

	node.Config, err = models.DecodeNodeConfig(node.Kind, configJSON)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, err)
	}

	return &node, nil
}

// NodeByID returns one node of a workflow graph.
func (r *WorkflowRepository) NodeByID(ctx context.Context, workflowID, nodeID string) (*models.WorkflowNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM workflow_nodes WHERE workflow_id = $1 AND id = $2`

	node, err := scanNode(r.db.QueryRowContext(ctx, query, workflowID, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewNodeError("NodeByID", workflowID, nodeID, persistence.ErrNodeNotFound)
		}

		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	return node, nil
}

// NodesByWorkflow returns the whole graph of a workflow.
func (r *WorkflowRepository) NodesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM workflow_nodes WHERE workflow_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	nodes := make([]*models.WorkflowNode, 0)

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

// SaveNodes replaces the graph of a workflow inside one transaction.
func (r *WorkflowRepository) SaveNodes(ctx context.Context, workflowID string, nodes []*models.WorkflowNode) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	query := `INSERT INTO workflow_nodes (` + nodeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, node := range nodes {
		var configJSON []byte

		configJSON, err = models.EncodeNodeConfig(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal node %s config: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, query,
			node.ID,
			workflowID,
			node.Kind,
			node.Name,
			configJSON,
			models.Edge(node.Next),
			models.Edge(node.OnTrue),
			models.Edge(node.OnFalse),
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
