package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TypeCleanup                = "cleanup"
	TypeDocumentsOrphaned      = "documents.orphaned"
	TypePasswordResetRequested = "password_reset.requested"
)

type Event struct {
	Type       string
	Payload    any
	OccurredAt time.Time
}

type DocumentsOrphaned struct {
	ProjectID string   `json:"projectId"`
	Bucket    string   `json:"bucket"`
	Keys      []string `json:"keys"`
}

type PasswordResetRequested struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ResetLink string    `json:"resetLink"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Cleanup struct {
	Scope string `json:"scope"`
}

// MaxStreamLen caps the stream so unconsumed entries do not pile up.
const MaxStreamLen = 10000

// Publisher appends events to a Redis stream consumed by the worker.
type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	values, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func Encode(event Event) (map[string]any, error) {
	if event.Type == "" {
		return nil, errors.New("event type required")
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	return map[string]any{
		"type":       event.Type,
		"payload":    string(payload),
		"occurredAt": occurredAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// Envelope is the decoded form of a stream entry; Payload stays raw so the
// handler for Type can unmarshal it into the matching struct.
type Envelope struct {
	Type       string
	Payload    json.RawMessage
	OccurredAt time.Time
}

func Decode(values map[string]interface{}) (Envelope, error) {
	typ, _ := values["type"].(string)
	if typ == "" {
		return Envelope{}, errors.New("missing event type")
	}
	env := Envelope{Type: typ}
	if raw, ok := values["payload"].(string); ok && raw != "" {
		env.Payload = json.RawMessage(raw)
	}
	if raw, ok := values["occurredAt"].(string); ok && raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Envelope{}, fmt.Errorf("decode occurredAt: %w", err)
		}
		env.OccurredAt = at
	}
	return env, nil
}
