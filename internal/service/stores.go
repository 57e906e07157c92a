package service

import (
	"context"
	"io"
	"time"

	"projecthub/internal/events"
	"projecthub/internal/models"
)

// The interfaces below are satisfied by the pgx repositories, the Redis
// revocation store, the minio object store and the stream publisher.
// Lookups report absence with the repository package's sentinel errors.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
}

type RevocationStore interface {
	Revoke(ctx context.Context, jti string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type ResetTicketStore interface {
	Create(ctx context.Context, ticket models.ResetTicket) error
	FindActive(ctx context.Context, tokenHash []byte, now time.Time) (models.ResetTicket, error)
	Consume(ctx context.Context, tokenHash []byte, now time.Time) (models.ResetTicket, error)
}

type ProjectStore interface {
	Create(ctx context.Context, project models.Project) error
	GetByID(ctx context.Context, id string) (models.Project, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Project, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.ProjectWithOwner, error)
	UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error
	Delete(ctx context.Context, id string) error
}

type DocumentStore interface {
	Create(ctx context.Context, contract models.Contract) error
	CountByProject(ctx context.Context, projectID string) (int, error)
	ListByProjects(ctx context.Context, projectIDs []string) ([]models.Contract, error)
}

type MessageStore interface {
	Create(ctx context.Context, message models.Message) error
	ListByProjects(ctx context.Context, projectIDs []string, kind models.MessageType) ([]models.Message, error)
}

type ObjectStorage interface {
	Bucket() string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, bucket string, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
