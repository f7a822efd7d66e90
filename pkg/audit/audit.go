// Package audit records administrative actions (moderation, user deletion)
// to a capped Redis stream so operators can answer "who deleted what".
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Actions recorded by the service layer.
const (
	ActionFeedbackModerate = "feedback.moderate"
	ActionUserPurge        = "user.purge"
	ActionUserBulkDelete   = "user.bulk_delete"
	ActionBookBulkDelete   = "book.bulk_delete"
)

// Event is one administrative action.
type Event struct {
	ID      string    `json:"id"`
	Action  string    `json:"action"`
	ActorID string    `json:"actorId"`
	Target  string    `json:"target"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// NopRecorder drops every event. Used in tests and when Redis is not
// configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }

const defaultMaxLen = 10000

// RedisAuditLog appends events to a Redis stream, trimmed to a maximum
// approximate length.
type RedisAuditLog struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisAuditLog creates a stream-backed audit log.
func NewRedisAuditLog(addr, password, stream string) (*RedisAuditLog, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("audit log redis addr is required")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "libris:audit"
	}
	return &RedisAuditLog{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		stream: stream,
		maxLen: defaultMaxLen,
	}, nil
}

// Record appends the event, filling ID and timestamp when absent.
func (l *RedisAuditLog) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":       e.ID,
			"action":   e.Action,
			"actor_id": e.ActorID,
			"target":   e.Target,
			"detail":   e.Detail,
			"at":       e.At.Format(time.RFC3339Nano),
		},
	}).Err()
}

// Recent returns up to n events, newest first.
func (l *RedisAuditLog) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 50
	}
	msgs, err := l.client.XRevRangeN(ctx, l.stream, "+", "-", int64(n)).Result()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		events = append(events, eventFromValues(msg.Values))
	}
	return events, nil
}

func eventFromValues(values map[string]any) Event {
	e := Event{
		ID:      stringValue(values["id"]),
		Action:  stringValue(values["action"]),
		ActorID: stringValue(values["actor_id"]),
		Target:  stringValue(values["target"]),
		Detail:  stringValue(values["detail"]),
	}
	if raw := stringValue(values["at"]); raw != "" {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			e.At = at
		}
	}
	return e
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
