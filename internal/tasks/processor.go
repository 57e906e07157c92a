package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"projecthub/internal/events"
	"projecthub/internal/mail"
)

// staleTicketAge is how long used or expired reset tickets are kept.
const staleTicketAge = 24 * time.Hour

type TicketCleaner interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type ObjectRemover interface {
	Remove(ctx context.Context, bucket string, key string) error
}

type Processor struct {
	logger  zerolog.Logger
	tickets TicketCleaner
	objects ObjectRemover
	mailer  mail.Sender
	now     func() time.Time
}

func NewProcessor(logger zerolog.Logger, tickets TicketCleaner, objects ObjectRemover, mailer mail.Sender) *Processor {
	return &Processor{
		logger:  logger,
		tickets: tickets,
		objects: objects,
		mailer:  mailer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle dispatches one stream entry. Malformed and unknown entries are
// logged and reported as handled so they are not redelivered forever.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	env, err := events.Decode(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}

	switch env.Type {
	case events.TypeCleanup:
		return p.handleCleanup(ctx, env)
	case events.TypeDocumentsOrphaned:
		return p.handleOrphans(ctx, env)
	case events.TypePasswordResetRequested:
		return p.handlePasswordReset(ctx, env)
	default:
		p.logger.Warn().Str("type", env.Type).Str("message_id", msg.ID).Msg("unknown event type")
		return nil
	}
}

func decodePayload(env events.Envelope, out any) error {
	if len(env.Payload) == 0 {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context, env events.Envelope) error {
	var payload events.Cleanup
	if err := decodePayload(env, &payload); err != nil {
		p.logger.Warn().Err(err).Msg("cleanup without scope, running all")
	}

	deleted, err := p.tickets.DeleteStale(ctx, p.now().Add(-staleTicketAge))
	if err != nil {
		return fmt.Errorf("delete stale reset tickets: %w", err)
	}
	p.logger.Info().Int64("deleted", deleted).Str("scope", payload.Scope).Msg("reset tickets cleaned up")
	return nil
}

// handleOrphans removes objects left behind by a failed document insert.
// Removal is best effort: failures are logged and the event is acked.
func (p *Processor) handleOrphans(ctx context.Context, env events.Envelope) error {
	var payload events.DocumentsOrphaned
	if err := decodePayload(env, &payload); err != nil {
		p.logger.Warn().Err(err).Msg("dropping orphaned documents event")
		return nil
	}

	for _, key := range payload.Keys {
		if err := p.objects.Remove(ctx, payload.Bucket, key); err != nil {
			p.logger.Error().
				Err(err).
				Str("project_id", payload.ProjectID).
				Str("key", key).
				Msg("remove orphaned object failed")
			continue
		}
		p.logger.Info().Str("project_id", payload.ProjectID).Str("key", key).Msg("orphaned object removed")
	}
	return nil
}

func (p *Processor) handlePasswordReset(ctx context.Context, env events.Envelope) error {
	var payload events.PasswordResetRequested
	if err := decodePayload(env, &payload); err != nil {
		p.logger.Warn().Err(err).Msg("dropping password reset event")
		return nil
	}

	if !payload.ExpiresAt.IsZero() && payload.ExpiresAt.Before(p.now()) {
		p.logger.Info().Str("user_id", payload.UserID).Msg("reset link expired before delivery")
		return nil
	}

	return p.mailer.Send(ctx, mail.Message{
		To:      payload.Email,
		Subject: "Reset your password",
		Body:    resetBody(payload),
	})
}

func resetBody(payload events.PasswordResetRequested) string {
	name := payload.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hello %s,\n\nUse the link below to choose a new password:\n\n%s\n\nThe link expires at %s. If you did not ask for a reset you can ignore this email.\n",
		name,
		payload.ResetLink,
		payload.ExpiresAt.UTC().Format(time.RFC1123),
	)
}
