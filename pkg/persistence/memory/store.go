// Package memory provides an in-memory persistence implementation for tests and local development.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/google/uuid"
)

var _ persistence.Persistence = (*Store)(nil)

// Store keeps every row in maps guarded by a single mutex. Values are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	workflows   map[string]*models.Workflow
	nodes       map[string]map[string]*models.WorkflowNode // workflow id -> node id -> node
	executions  map[string]*models.WorkflowExecution
	logs        []*models.ExecutionLogEntry
	events      []*models.InteractionEvent
	contacts    map[string]*models.Contact
	lists       map[string]map[string]models.Contact // list id -> contact id -> snapshot
	suppression map[string]string
	channels    map[models.Channel]*models.ChannelConnection
	campaigns   map[string]*models.Campaign
	queue       map[string]*models.CampaignQueueItem
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		workflows:   make(map[string]*models.Workflow),
		nodes:       make(map[string]map[string]*models.WorkflowNode),
		executions:  make(map[string]*models.WorkflowExecution),
		contacts:    make(map[string]*models.Contact),
		lists:       make(map[string]map[string]models.Contact),
		suppression: make(map[string]string),
		channels:    make(map[models.Channel]*models.ChannelConnection),
		campaigns:   make(map[string]*models.Campaign),
		queue:       make(map[string]*models.CampaignQueueItem),
	}
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close(_ context.Context) error { return nil }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// Workflows

func (s *Store) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, ok := s.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	clone := *workflow

	return &clone, nil
}

func (s *Store) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if workflow.ID == "" {
		workflow.ID = newID()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	clone := *workflow
	s.workflows[workflow.ID] = &clone

	return nil
}

// Nodes

func (s *Store) NodeByID(_ context.Context, workflowID, nodeID string) (*models.WorkflowNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[workflowID][nodeID]
	if !ok {
		return nil, persistence.NewNodeError("NodeByID", workflowID, nodeID, persistence.ErrNodeNotFound)
	}

	clone := *node

	return &clone, nil
}

func (s *Store) NodesByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*models.WorkflowNode, 0, len(s.nodes[workflowID]))
	for _, node := range s.nodes[workflowID] {
		clone := *node
		nodes = append(nodes, &clone)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return nodes, nil
}

// SaveNodes replaces the whole graph of a workflow.
func (s *Store) SaveNodes(_ context.Context, workflowID string, nodes []*models.WorkflowNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph := make(map[string]*models.WorkflowNode, len(nodes))
	for _, node := range nodes {
		clone := *node
		clone.WorkflowID = workflowID
		graph[node.ID] = &clone
	}

	s.nodes[workflowID] = graph

	return nil
}

// Executions

func (s *Store) DueExecutions(_ context.Context, now time.Time, filter models.ExecutionFilter, limit int) ([]*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*models.WorkflowExecution, 0)

	for _, execution := range s.executions {
		if !execution.IsDue(now) {
			continue
		}

		if filter.WorkflowID != "" && execution.WorkflowID != filter.WorkflowID {
			continue
		}

		due = append(due, execution.Clone())
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].ID < due[j].ID
		}

		return due[i].NextRunAt.Before(due[j].NextRunAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (s *Store) ClaimExecution(_ context.Context, id string, now, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[id]
	if !ok {
		return false, persistence.NewExecutionError("ClaimExecution", id, persistence.ErrExecutionNotFound)
	}

	if !execution.IsDue(now) {
		return false, nil
	}

	if execution.ClaimedUntil != nil && execution.ClaimedUntil.After(now) {
		return false, nil
	}

	execution.ClaimedUntil = &until

	return true, nil
}

func (s *Store) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.executions[execution.ID]; !ok {
		return persistence.NewExecutionError("SaveExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	clone := execution.Clone()
	clone.ClaimedUntil = nil
	clone.UpdatedAt = time.Now().UTC()
	s.executions[execution.ID] = clone

	return nil
}

func (s *Store) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, ok := s.executions[id]
	if !ok {
		return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	return execution.Clone(), nil
}

func (s *Store) CreateExecution(_ context.Context, execution *models.WorkflowExecution) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.executions {
		if existing.WorkflowID == execution.WorkflowID && existing.ContactID == execution.ContactID {
			return false, nil
		}
	}

	if execution.ID == "" {
		execution.ID = newID()
	}

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now
	s.executions[execution.ID] = execution.Clone()

	return true, nil
}

func (s *Store) ResumeExecutions(_ context.Context, workflowID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resumed := 0

	for _, execution := range s.executions {
		if execution.WorkflowID != workflowID || execution.Status != models.ExecutionStatusPaused {
			continue
		}

		execution.Status = models.ExecutionStatusRunning
		execution.NextRunAt = now
		execution.UpdatedAt = now
		resumed++
	}

	return resumed, nil
}

// Executions returns a copy of every execution; used by tests and diagnostics.
func (s *Store) Executions() []*models.WorkflowExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	executions := make([]*models.WorkflowExecution, 0, len(s.executions))
	for _, execution := range s.executions {
		executions = append(executions, execution.Clone())
	}

	return executions
}

// Audit log and events

func (s *Store) AppendLog(_ context.Context, entry *models.ExecutionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = newID()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	clone := *entry
	s.logs = append(s.logs, &clone)

	return nil
}

// Logs returns the audit entries of an execution in insertion order.
func (s *Store) Logs(executionID string) []*models.ExecutionLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*models.ExecutionLogEntry, 0)

	for _, entry := range s.logs {
		if entry.ExecutionID == executionID {
			clone := *entry
			entries = append(entries, &clone)
		}
	}

	return entries
}

func (s *Store) RecordEvent(_ context.Context, event *models.InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = newID()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	clone := *event
	s.events = append(s.events, &clone)

	return nil
}

func (s *Store) Events(_ context.Context, query models.EventQuery) ([]*models.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.InteractionEvent, 0)

	for _, event := range s.events {
		if event.ContactID != query.ContactID || event.Channel != query.Channel {
			continue
		}

		if query.EventType != "" && event.EventType != query.EventType {
			continue
		}

		if event.CreatedAt.Before(query.Since) {
			continue
		}

		clone := *event
		events = append(events, &clone)
	}

	return events, nil
}

// Contacts and lists

func (s *Store) ContactByID(_ context.Context, id string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil, persistence.ErrContactNotFound
	}

	clone := *contact

	return &clone, nil
}

func (s *Store) SaveContact(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.ID == "" {
		contact.ID = newID()
	}

	clone := *contact
	s.contacts[contact.ID] = &clone

	return nil
}

func (s *Store) SetContactNetworkID(_ context.Context, contactID, networkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[contactID]
	if !ok {
		return persistence.ErrContactNotFound
	}

	contact.NetworkID = networkID

	return nil
}

func (s *Store) AddToList(_ context.Context, listID string, contact models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lists[listID] == nil {
		s.lists[listID] = make(map[string]models.Contact)
	}

	s.lists[listID][contact.ID] = contact

	return nil
}

func (s *Store) RemoveFromList(_ context.Context, listID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lists[listID], contactID)

	return nil
}

func (s *Store) ListMembers(_ context.Context, listID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.lists[listID]))
	for contactID := range s.lists[listID] {
		members = append(members, contactID)
	}

	slices.Sort(members)

	return members, nil
}

func (s *Store) IsSuppressed(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.suppression[strings.ToLower(email)]

	return ok, nil
}

func (s *Store) Suppress(_ context.Context, email, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppression[strings.ToLower(email)] = reason

	return nil
}

func (s *Store) ChannelConnection(_ context.Context, channel models.Channel) (*models.ChannelConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connection, ok := s.channels[channel]
	if !ok {
		return nil, nil
	}

	clone := *connection

	return &clone, nil
}

func (s *Store) SaveChannelConnection(_ context.Context, connection *models.ChannelConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *connection
	s.channels[connection.Channel] = &clone

	return nil
}

// Campaigns

func (s *Store) ActiveCampaigns(_ context.Context, campaignID string) ([]*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaigns := make([]*models.Campaign, 0)

	for _, campaign := range s.campaigns {
		if campaign.Status != models.CampaignStatusActive {
			continue
		}

		if campaignID != "" && campaign.ID != campaignID {
			continue
		}

		clone := *campaign
		campaigns = append(campaigns, &clone)
	}

	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].ID < campaigns[j].ID })

	return campaigns, nil
}

func (s *Store) CampaignByID(_ context.Context, id string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, persistence.ErrCampaignNotFound
	}

	clone := *campaign

	return &clone, nil
}

func (s *Store) SaveCampaign(_ context.Context, campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if campaign.ID == "" {
		campaign.ID = newID()
	}

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	clone := *campaign
	s.campaigns[campaign.ID] = &clone

	return nil
}

func (s *Store) ResetDailyCounter(_ context.Context, campaignID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return persistence.ErrCampaignNotFound
	}

	if campaign.CounterDate != day {
		campaign.CounterDate = day
		campaign.SentToday = 0
	}

	return nil
}

func (s *Store) IncrementCampaignCounters(_ context.Context, campaignID string, sent, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return persistence.ErrCampaignNotFound
	}

	campaign.SentToday += sent
	campaign.SentTotal += sent
	campaign.FailedTotal += failed

	return nil
}

func (s *Store) EnqueueContacts(_ context.Context, campaignID string, contactIDs []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued := make(map[string]bool)

	for _, item := range s.queue {
		if item.CampaignID == campaignID {
			queued[item.ContactID] = true
		}
	}

	added := 0

	for _, contactID := range contactIDs {
		if queued[contactID] {
			continue
		}

		item := &models.CampaignQueueItem{
			ID:          newID(),
			CampaignID:  campaignID,
			ContactID:   contactID,
			Status:      models.QueueItemPending,
			ScheduledAt: at,
		}
		s.queue[item.ID] = item
		queued[contactID] = true
		added++
	}

	return added, nil
}

func (s *Store) ClaimQueueItems(_ context.Context, campaignID string, now, until time.Time, limit int) ([]*models.CampaignQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*models.CampaignQueueItem, 0)

	for _, item := range s.queue {
		if item.CampaignID != campaignID || !queueItemClaimable(item, now) {
			continue
		}

		candidates = append(candidates, item)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ScheduledAt.Equal(candidates[j].ScheduledAt) {
			return candidates[i].ID < candidates[j].ID
		}

		return candidates[i].ScheduledAt.Before(candidates[j].ScheduledAt)
	})

	if limit >= 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]*models.CampaignQueueItem, 0, len(candidates))

	for _, item := range candidates {
		claimedUntil := until
		item.Status = models.QueueItemInFlight
		item.Attempts++
		item.ClaimedUntil = &claimedUntil

		clone := *item
		claimed = append(claimed, &clone)
	}

	return claimed, nil
}

func queueItemClaimable(item *models.CampaignQueueItem, now time.Time) bool {
	switch item.Status {
	case models.QueueItemPending:
		return !item.ScheduledAt.After(now)
	case models.QueueItemInFlight:
		return item.ClaimedUntil == nil || item.ClaimedUntil.Before(now)
	default:
		return false
	}
}

// SaveQueueItem writes the outcome of a queue item; leaving in-flight drops the claim.
func (s *Store) SaveQueueItem(_ context.Context, item *models.CampaignQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *item
	if clone.Status != models.QueueItemInFlight {
		clone.ClaimedUntil = nil
	}
	s.queue[item.ID] = &clone

	return nil
}

// QueueItems returns a copy of the queue of a campaign; used by tests and diagnostics.
func (s *Store) QueueItems(campaignID string) []*models.CampaignQueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.CampaignQueueItem, 0)

	for _, item := range s.queue {
		if item.CampaignID == campaignID {
			clone := *item
			items = append(items, &clone)
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items
}
