package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/jobs"
)

// EscalationJobType tags queued escalation events.
const EscalationJobType = "escalation_event"

type eventPublisher interface {
	Channel() string
	Publish(ctx context.Context, payload []byte) (int64, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationService hands escalation events to the message channel. Without a publisher the
// events are only logged; delivery to people is the subscribers' job.
type NotificationService struct {
	publisher eventPublisher
	queue     jobEnqueuer
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs the dispatcher. publisher may be nil.
func NewNotificationService(publisher eventPublisher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{publisher: publisher, metrics: metrics, logger: logger}
}

// AttachQueue delivers events asynchronously through queue.
func (s *NotificationService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Notify implements EscalationNotifier. It never fails the caller: the ledger change that
// produced the events is already committed.
func (s *NotificationService) Notify(ctx context.Context, events []models.EscalationEvent) {
	for _, event := range events {
		job := jobs.Job{Type: EscalationJobType, Payload: event}
		if s.queue != nil {
			err := s.queue.Enqueue(job)
			if err == nil {
				continue
			}
			s.logger.Warn("failed to enqueue escalation event, delivering inline", zap.String("type", string(event.Type)), zap.Error(err))
		}
		if err := s.Handle(ctx, job); err != nil {
			s.logger.Error("failed to deliver escalation event", zap.String("employee_id", event.EmployeeID), zap.Error(err))
		}
	}
}

// Handle is the queue handler publishing one event.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.EscalationEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}

	if s.publisher == nil {
		s.logger.Info("escalation event",
			zap.String("type", string(event.Type)),
			zap.String("employee_id", event.EmployeeID),
			zap.String("escalation_id", event.EscalationID),
			zap.String("tier", event.Tier),
			zap.Time("due_date", event.DueDate),
			zap.Strings("actions", event.Actions))
		s.metrics.RecordNotification(event.Type, nil)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode escalation event: %w", err)
	}
	receivers, err := s.publisher.Publish(ctx, payload)
	s.metrics.RecordNotification(event.Type, err)
	if err != nil {
		return err
	}
	s.logger.Debug("escalation event published",
		zap.String("channel", s.publisher.Channel()),
		zap.String("type", string(event.Type)),
		zap.Int64("receivers", receivers))
	return nil
}
