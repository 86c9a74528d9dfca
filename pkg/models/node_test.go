package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNodeConfig_KnownKinds(t *testing.T) {
	testCases := []struct {
		name     string
		kind     NodeKind
		raw      string
		expected NodeConfig
	}{
		{"start", NodeKindStart, ``, StartConfig{}},
		{"end", NodeKindEnd, `{}`, EndConfig{}},
		{"email", NodeKindSendEmail, `{"subject":"Hi {{first_name}}","body":"Hello"}`, SendEmailConfig{Subject: "Hi {{first_name}}", Body: "Hello"}},
		{"network invite", NodeKindSendNetworkMessage, `{"action":"invite"}`, SendNetworkConfig{Action: NetworkActionInvite}},
		{"chat", NodeKindSendChatMessage, `{"message":"hey"}`, SendChatConfig{Message: "hey"}},
		{"wait", NodeKindWait, `{"days":2,"hours":3}`, WaitConfig{Days: 2, Hours: 3}},
		{
			"site condition", NodeKindCondition,
			`{"channel":"site","event_type":"page_visit","lookback_hours":24,"url_contains":"/pricing","min_count":2}`,
			ConditionConfig{Channel: ChannelSite, EventType: EventTypePageVisit, LookbackHours: 24, URLContains: "/pricing", MinCount: 2},
		},
		{"list add", NodeKindListAction, `{"action":"add_to_list","list_id":"l-1"}`, ListActionConfig{Action: ListActionAdd, ListID: "l-1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := DecodeNodeConfig(tc.kind, json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, config)
			assert.Equal(t, tc.kind, config.Kind())
		})
	}
}

func TestDecodeNodeConfig_InvalidPayloads(t *testing.T) {
	testCases := []struct {
		name string
		kind NodeKind
		raw  string
	}{
		{"email without body", NodeKindSendEmail, `{"subject":"x"}`},
		{"negative wait", NodeKindWait, `{"days":-1}`},
		{"condition missing lookback", NodeKindCondition, `{"channel":"email","event_type":"replied"}`},
		{"condition unknown channel", NodeKindCondition, `{"channel":"fax","event_type":"replied","lookback_hours":1}`},
		{"network bad action", NodeKindSendNetworkMessage, `{"action":"poke"}`},
		{"list without list id", NodeKindListAction, `{"action":"add_to_list"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeNodeConfig(tc.kind, json.RawMessage(tc.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidNodeConfig))
		})
	}
}

func TestDecodeNodeConfig_UnknownKindIsKept(t *testing.T) {
	config, err := DecodeNodeConfig("send_sms", json.RawMessage(`{"to":"x"}`))
	require.NoError(t, err)

	unknown, ok := config.(UnknownConfig)
	require.True(t, ok)
	assert.Equal(t, NodeKind("send_sms"), unknown.Kind())
	assert.JSONEq(t, `{"to":"x"}`, string(unknown.Raw))
}

func TestWorkflowNode_JSON(t *testing.T) {
	node := WorkflowNode{
		ID:         "cond-1",
		WorkflowID: "wf-1",
		Kind:       NodeKindCondition,
		Name:       "Replied?",
		Config: ConditionConfig{
			Channel:       ChannelEmail,
			EventType:     EventTypeReplied,
			LookbackHours: 48,
		},
		OnTrue:  NodeID("end-1"),
		OnFalse: NodeID("email-2"),
	}

	data, err := json.Marshal(node)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lookback_hours":48`)

	var decoded WorkflowNode

	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, node, decoded)
	assert.ElementsMatch(t, []string{"end-1", "email-2"}, decoded.Edges())
}

func TestWorkflowNode_UnmarshalRejectsInvalidConfig(t *testing.T) {
	var node WorkflowNode

	err := json.Unmarshal([]byte(`{"id":"w","workflow_id":"wf","kind":"wait","config":{"days":"two"}}`), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node w")
}

func TestWorkflowNode_EmptyEdgesEndThePath(t *testing.T) {
	var node WorkflowNode
	require.NoError(t, json.Unmarshal([]byte(`{"id":"start","workflow_id":"wf-1","kind":"start","next":"","on_true":""}`), &node))

	assert.Nil(t, node.Next)
	assert.Nil(t, node.OnTrue)
	assert.Empty(t, node.Edges())
	require.NoError(t, ValidateGraph([]*WorkflowNode{&node}))

	assert.Nil(t, Edge(nil))
	assert.Nil(t, Edge(NodeID("")))
	assert.Equal(t, "end", *Edge(NodeID("end")))
}

func TestValidateGraph(t *testing.T) {
	start := &WorkflowNode{ID: "start", Kind: NodeKindStart, Next: NodeID("wait")}
	wait := &WorkflowNode{ID: "wait", Kind: NodeKindWait, Next: NodeID("start")}
	end := &WorkflowNode{ID: "end", Kind: NodeKindEnd}

	t.Run("cycle is allowed", func(t *testing.T) {
		assert.NoError(t, ValidateGraph([]*WorkflowNode{start, wait, end}))
	})

	t.Run("missing start", func(t *testing.T) {
		assert.ErrorIs(t, ValidateGraph([]*WorkflowNode{end}), ErrMissingStartNode)
	})

	t.Run("two starts", func(t *testing.T) {
		other := &WorkflowNode{ID: "start-2", Kind: NodeKindStart}
		assert.ErrorIs(t, ValidateGraph([]*WorkflowNode{start, wait, other}), ErrMultipleStartNode)
	})

	t.Run("dangling edge", func(t *testing.T) {
		broken := &WorkflowNode{ID: "start", Kind: NodeKindStart, Next: NodeID("missing")}
		assert.ErrorIs(t, ValidateGraph([]*WorkflowNode{broken}), ErrDanglingEdge)
	})
}

func TestWorkflow_EffectiveSchedule(t *testing.T) {
	workflow := &Workflow{}
	assert.Equal(t, DefaultSchedule(), workflow.EffectiveSchedule())

	workflow.Schedule = &Schedule{Weekdays: []string{"sat"}, Timezone: "UTC"}
	schedule := workflow.EffectiveSchedule()
	assert.Equal(t, []string{"sat"}, schedule.Weekdays)
	assert.Equal(t, "UTC", schedule.Timezone)
	assert.Equal(t, DefaultWindowStart, schedule.Start)
	assert.Equal(t, DefaultWindowEnd, schedule.End)
}

func TestWorkflow_Validation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	valid := &Workflow{Name: "Outbound", Status: WorkflowStatusActive, Trigger: Trigger{Type: TriggerTypeManual}}
	assert.NoError(t, validate.Struct(valid))

	invalid := &Workflow{Name: "Outbound", Status: "archived", Trigger: Trigger{Type: TriggerTypeManual}}
	err := validate.Struct(invalid)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors

	require.True(t, errors.As(err, &validationErrors))
	assert.Equal(t, "Status", validationErrors[0].Field())
}

func TestWorkflowExecution_IsDue(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	execution := &WorkflowExecution{Status: ExecutionStatusRunning, NextRunAt: now}
	assert.True(t, execution.IsDue(now))

	execution.NextRunAt = now.Add(time.Second)
	assert.False(t, execution.IsDue(now))

	execution.NextRunAt = now.Add(-time.Hour)
	execution.Status = ExecutionStatusPaused
	assert.False(t, execution.IsDue(now))
}

func TestCampaign_Remaining(t *testing.T) {
	campaign := &Campaign{DailyLimit: 50, SentToday: 20, CounterDate: "2026-03-02"}

	assert.Equal(t, 30, campaign.Remaining("2026-03-02"))
	assert.Equal(t, 50, campaign.Remaining("2026-03-03"))

	campaign.SentToday = 70
	assert.Equal(t, 0, campaign.Remaining("2026-03-02"))
}
