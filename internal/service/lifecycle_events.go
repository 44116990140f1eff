package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/middleware"
)

// Lifecycle event types.
const (
	EventPlanAssigned  = "plan.assigned"
	EventPlanCompleted = "plan.completed"
	EventPlanPurged    = "plan.purged"
	EventTaskCompleted = "task.completed"
	EventTaskVerified  = "task.verified"
)

// LifecycleEvent is published for the notification system after a state change commits.
type LifecycleEvent struct {
	Type       string    `json:"type"`
	PlanID     uint      `json:"plan_id"`
	TaskID     *uint     `json:"task_id,omitempty"`
	StudentIDs []uint    `json:"student_ids,omitempty"`
	ActorID    uint      `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LifecyclePublisher hands lifecycle events to the message broker.
type LifecyclePublisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

type natsLifecyclePublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

type noopLifecyclePublisher struct{}

func (noopLifecyclePublisher) Publish(context.Context, LifecycleEvent) error { return nil }

// NewLifecyclePublisher publishes events on "<subjectBase>.<type>". A nil
// connection yields a publisher that drops events.
func NewLifecyclePublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) LifecyclePublisher {
	if conn == nil {
		return noopLifecyclePublisher{}
	}

	subject := strings.Trim(strings.ReplaceAll(subjectBase, ":", "."), ".")
	if subject == "" {
		subject = "gema.studyplan"
	}

	return &natsLifecyclePublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "lifecycle_publisher").Logger(),
	}
}

func (p *natsLifecyclePublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject + "." + event.Type)
	msg.Data = payload
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		msg.Header.Set(middleware.CorrelationHeader, correlation)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return err
	}

	p.logger.Debug().Str("event", event.Type).Uint("plan_id", event.PlanID).Msg("lifecycle event published")
	return nil
}

func publishEvent(ctx context.Context, publisher LifecyclePublisher, logger zerolog.Logger, event LifecycleEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event", event.Type).Uint("plan_id", event.PlanID).Msg("failed to publish lifecycle event")
	}
}
