package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/quantumlife-hq/horizon-backend/internal/clients/redis"
	"github.com/quantumlife-hq/horizon-backend/internal/logger"
)

// Event is the structured record handed to the audit log and notification
// collaborators. The engine never reads these back.
type Event struct {
	TenantID uuid.UUID      `json:"tenant_id"`
	Subject  uuid.UUID      `json:"subject"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Payload  map[string]any `json:"payload,omitempty"`
	EmittedAt time.Time     `json:"emitted_at"`
}

// EventEmitter publishes fire-and-forget: a failed emit is logged and must
// never change or block the decision that produced it.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

type redisEmitter struct {
	log     *logger.Logger
	bus     redisclient.Bus
	channel string
}

func NewRedisEmitter(baseLog *logger.Logger, bus redisclient.Bus, channel string) EventEmitter {
	return &redisEmitter{
		log:     baseLog.With("service", "EventEmitter", "channel", channel),
		bus:     bus,
		channel: channel,
	}
}

func (e *redisEmitter) Emit(ctx context.Context, event Event) {
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(event)
	if err != nil {
		e.log.Warn("event marshal failed", "type", event.Type, "error", err)
		return
	}
	// Detached from the request context so a cancelled caller does not drop
	// the audit record, and a slow broker does not block the caller.
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := e.bus.Publish(pubCtx, e.channel, raw); err != nil {
			e.log.Warn("event publish failed", "type", event.Type, "error", err)
		}
	}()
}

type noopEmitter struct {
	log *logger.Logger
}

// NewNoopEmitter is used when no broker is configured; events are logged
// locally so development runs still show the trail.
func NewNoopEmitter(baseLog *logger.Logger) EventEmitter {
	return &noopEmitter{log: baseLog.With("service", "NoopEmitter")}
}

func (e *noopEmitter) Emit(ctx context.Context, event Event) {
	e.log.Debug("event", "type", event.Type, "subject", event.Subject, "status", event.Status)
}
