package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// Publisher sends a message to a durable queue. Satisfied by RabbitMQService;
// nil disables queue publishing.
type Publisher interface {
	PublishMessage(ctx context.Context, queueName string, message map[string]interface{}) error
}

// EventService fans execution, campaign and auth events out to their
// consumers: the database, the SSE hub and the message queue. The three
// deliveries are independent; a failure in one never blocks the others.
type EventService struct {
	executions *repository.ExecutionRepository
	authEvents *repository.AuthEventRepository
	aiUsage    *repository.AIUsageRepository
	hub        *SSEHub
	queue      Publisher
}

// NewEventService creates the event fan-out service. queue may be nil when
// RabbitMQ is not configured.
func NewEventService(
	executions *repository.ExecutionRepository,
	authEvents *repository.AuthEventRepository,
	aiUsage *repository.AIUsageRepository,
	hub *SSEHub,
	queue Publisher,
) *EventService {
	return &EventService{
		executions: executions,
		authEvents: authEvents,
		aiUsage:    aiUsage,
		hub:        hub,
		queue:      queue,
	}
}

// Append persists a run log entry and streams it to run subscribers and the
// queue.
func (s *EventService) Append(entry *models.ExecutionLog) {
	if err := s.executions.CreateLog(entry); err != nil {
		logrus.Errorf("Failed to persist execution log for run %s: %v", entry.RunID, err)
	}

	s.hub.Broadcast(EntityRun, entry.RunID, "log", entry)
	s.publish(map[string]interface{}{
		"type":    "run_log",
		"run_id":  entry.RunID,
		"lead_id": entry.LeadID,
		"node_id": entry.NodeID,
		"status":  entry.Status,
		"message": entry.Message,
		"result":  entry.Result,
		"at":      time.Now().UTC().Format(time.RFC3339),
	})
}

// CampaignEvent streams a campaign progress event to campaign subscribers
// and the queue. Cursor state is the durable record; events themselves are
// not persisted.
func (s *EventService) CampaignEvent(campaignID string, leadID *string, status, message string, result models.JSON) {
	event := map[string]interface{}{
		"type":        "campaign_event",
		"campaign_id": campaignID,
		"lead_id":     leadID,
		"status":      status,
		"message":     message,
		"result":      result,
		"at":          time.Now().UTC().Format(time.RFC3339),
	}

	s.hub.Broadcast(EntityCampaign, campaignID, "log", event)
	s.publish(event)
}

// Record persists an account auth transition and streams it to account
// subscribers.
func (s *EventService) Record(accountID, event, detail string) {
	row := &models.AuthEvent{
		AccountID: accountID,
		Event:     event,
		Detail:    detail,
	}
	if err := s.authEvents.Create(row); err != nil {
		logrus.Errorf("Failed to persist auth event for account %s: %v", accountID, err)
	}

	s.hub.Broadcast(EntityAccount, accountID, "auth", row)
}

// RecordUsage persists one AI model call's token usage and cost.
func (s *EventService) RecordUsage(usage *models.AIUsageLog) {
	if err := s.aiUsage.Create(usage); err != nil {
		logrus.Errorf("Failed to persist AI usage for model %s: %v", usage.Model, err)
	}
}

func (s *EventService) publish(message map[string]interface{}) {
	if s.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.PublishMessage(ctx, ExecutionEventsQueue, message); err != nil {
		logrus.Errorf("Failed to publish event to queue: %v", err)
	}
}
