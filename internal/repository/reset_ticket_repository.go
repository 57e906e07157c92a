package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projecthub/internal/models"
)

type ResetTicketRepository struct {
	pool *pgxpool.Pool
}

func NewResetTicketRepository(pool *pgxpool.Pool) *ResetTicketRepository {
	return &ResetTicketRepository{pool: pool}
}

func (r *ResetTicketRepository) Create(ctx context.Context, ticket models.ResetTicket) error {
	const query = `
		INSERT INTO password_reset_tickets (
			id, user_id, token_hash, expires_at, used, created_at
		) VALUES (
			$1, $2, $3, $4, FALSE, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query, ticket.ID, ticket.UserID, ticket.TokenHash, ticket.ExpiresAt)
	return err
}

// FindActive returns the unused, unexpired ticket for tokenHash.
func (r *ResetTicketRepository) FindActive(ctx context.Context, tokenHash []byte, now time.Time) (models.ResetTicket, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, used, created_at
		FROM password_reset_tickets
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
	`
	var ticket models.ResetTicket
	if err := r.pool.QueryRow(ctx, query, tokenHash, now).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.TokenHash,
		&ticket.ExpiresAt,
		&ticket.Used,
		&ticket.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ResetTicket{}, ErrTicketNotFound
		}
		return models.ResetTicket{}, err
	}
	return ticket, nil
}

// Consume flips an active ticket to used in one statement, so two concurrent
// resets with the same token cannot both succeed.
func (r *ResetTicketRepository) Consume(ctx context.Context, tokenHash []byte, now time.Time) (models.ResetTicket, error) {
	const query = `
		UPDATE password_reset_tickets
		SET used = TRUE
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		RETURNING id, user_id, token_hash, expires_at, used, created_at
	`
	var ticket models.ResetTicket
	if err := r.pool.QueryRow(ctx, query, tokenHash, now).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.TokenHash,
		&ticket.ExpiresAt,
		&ticket.Used,
		&ticket.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ResetTicket{}, ErrTicketNotFound
		}
		return models.ResetTicket{}, err
	}
	return ticket, nil
}

// DeleteStale removes tickets that were used or expired before cutoff.
func (r *ResetTicketRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM password_reset_tickets
		WHERE expires_at < $1 OR (used = TRUE AND created_at < $1)
	`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
