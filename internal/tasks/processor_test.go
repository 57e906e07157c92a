package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecthub/internal/events"
	"projecthub/internal/mail"
	"projecthub/internal/testutil/memstore"
)

type fakeTickets struct {
	cutoff time.Time
	err    error
}

func (f *fakeTickets) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newProcessor(tickets TicketCleaner, objects ObjectRemover, mailer mail.Sender) *Processor {
	p := NewProcessor(zerolog.Nop(), tickets, objects, mailer)
	p.now = func() time.Time { return fixedNow }
	return p
}

func message(t *testing.T, event events.Event) redis.XMessage {
	t.Helper()
	values, err := events.Encode(event)
	require.NoError(t, err)
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v
	}
	return redis.XMessage{ID: "1-0", Values: out}
}

func TestCleanupDeletesStaleTickets(t *testing.T) {
	tickets := &fakeTickets{}
	p := newProcessor(tickets, nil, nil)

	err := p.Handle(context.Background(), message(t, events.Event{Type: events.TypeCleanup, Payload: events.Cleanup{Scope: "reset_tickets"}}))
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), tickets.cutoff)
}

func TestCleanupFailureIsRetried(t *testing.T) {
	p := newProcessor(&fakeTickets{err: errors.New("db down")}, nil, nil)

	err := p.Handle(context.Background(), message(t, events.Event{Type: events.TypeCleanup, Payload: events.Cleanup{}}))
	assert.Error(t, err)
}

func TestOrphanedDocumentsAreRemoved(t *testing.T) {
	objects := memstore.NewObjects("project-documents")
	for _, key := range []string{"projects/p/contract_1.pdf", "projects/p/payment_1.pdf", "projects/q/keep.pdf"} {
		_, err := objects.Put(context.Background(), key, stringsReader("x"), 1, "application/pdf")
		require.NoError(t, err)
	}
	p := newProcessor(nil, objects, nil)

	err := p.Handle(context.Background(), message(t, events.Event{
		Type: events.TypeDocumentsOrphaned,
		Payload: events.DocumentsOrphaned{
			ProjectID: "p",
			Bucket:    "project-documents",
			Keys:      []string{"projects/p/contract_1.pdf", "projects/p/payment_1.pdf"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"projects/q/keep.pdf"}, objects.Keys())
}

func TestOrphanRemovalIsBestEffort(t *testing.T) {
	objects := memstore.NewObjects("project-documents")
	p := newProcessor(nil, objects, nil)

	err := p.Handle(context.Background(), message(t, events.Event{
		Type:    events.TypeDocumentsOrphaned,
		Payload: events.DocumentsOrphaned{Bucket: "other-bucket", Keys: []string{"k"}},
	}))
	assert.NoError(t, err)
}

func TestPasswordResetIsMailed(t *testing.T) {
	mailer := &fakeMailer{}
	p := newProcessor(nil, nil, mailer)

	err := p.Handle(context.Background(), message(t, events.Event{
		Type: events.TypePasswordResetRequested,
		Payload: events.PasswordResetRequested{
			UserID:    "u1",
			Email:     "ana@x.com",
			Name:      "Ana",
			ResetLink: "http://app.test/reset-password?token=abc",
			ExpiresAt: fixedNow.Add(time.Hour),
		},
	}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@x.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "token=abc")
	assert.Contains(t, mailer.sent[0].Body, "Hello Ana")
}

func TestPasswordResetDeliveryFailureIsRetried(t *testing.T) {
	p := newProcessor(nil, nil, &fakeMailer{err: errors.New("relay down")})

	err := p.Handle(context.Background(), message(t, events.Event{
		Type:    events.TypePasswordResetRequested,
		Payload: events.PasswordResetRequested{Email: "ana@x.com", ExpiresAt: fixedNow.Add(time.Hour)},
	}))
	assert.Error(t, err)
}

func TestExpiredResetIsNotMailed(t *testing.T) {
	mailer := &fakeMailer{}
	p := newProcessor(nil, nil, mailer)

	err := p.Handle(context.Background(), message(t, events.Event{
		Type:    events.TypePasswordResetRequested,
		Payload: events.PasswordResetRequested{Email: "ana@x.com", ExpiresAt: fixedNow.Add(-time.Minute)},
	}))
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestUnknownAndMalformedEventsAreAcked(t *testing.T) {
	p := newProcessor(nil, nil, nil)

	assert.NoError(t, p.Handle(context.Background(), message(t, events.Event{Type: "something.else", Payload: struct{}{}})))
	assert.NoError(t, p.Handle(context.Background(), redis.XMessage{ID: "2-0", Values: map[string]interface{}{"payload": "{}"}}))
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
