package models

import "time"

// LogAction tags an audit entry written by the engine.
type LogAction string

const (
	LogActionWorkflowStart   LogAction = "workflow_start"
	LogActionWorkflowEnd     LogAction = "workflow_end"
	LogActionWorkflowPaused  LogAction = "workflow_paused"
	LogActionSendEmailOK     LogAction = "send_email_ok"
	LogActionSendEmailFailed LogAction = "send_email_failed"
	LogActionSendEmailSkip   LogAction = "send_email_skip"
	LogActionSendNetworkOK   LogAction = "send_network_ok"
	LogActionSendNetworkFail LogAction = "send_network_failed"
	LogActionSendNetworkSkip LogAction = "send_network_skip"
	LogActionSendChatOK      LogAction = "send_chat_ok"
	LogActionSendChatFailed  LogAction = "send_chat_failed"
	LogActionSendChatSkip    LogAction = "send_chat_skip"
	LogActionWait            LogAction = "wait"
	LogActionConditionEval   LogAction = "condition_eval"
	LogActionListAdd         LogAction = "list_add"
	LogActionListRemove      LogAction = "list_remove"
	LogActionListUnknown     LogAction = "list_action_unknown"
	LogActionUnknownNode     LogAction = "unknown_node"
	LogActionRetry           LogAction = "retry"
	LogActionMaxRetries      LogAction = "max_retries"
	LogActionNodeNotFound    LogAction = "node_not_found"
	LogActionContactNotFound LogAction = "contact_not_found"
	LogActionWorkflowMissing LogAction = "workflow_not_found"
	LogActionEnrolled        LogAction = "enrolled"
)

// ExecutionLogEntry is an append-only audit record of one engine action.
type ExecutionLogEntry struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id,omitempty"`
	Action      LogAction      `json:"action"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
