package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"projecthub/internal/config"
	"projecthub/internal/models"
	"projecthub/internal/testutil/memstore"
)

const testSecret = "service-test-secret"

type fixture struct {
	users       *memstore.Users
	revocations *memstore.Revocations
	tickets     *memstore.Tickets
	projects    *memstore.Projects
	contracts   *memstore.Contracts
	messages    *memstore.Messages
	objects     *memstore.Objects
	events      *memstore.Events

	auth      *AuthService
	project   *ProjectService
	documents *DocumentService
	feed      *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:       memstore.NewUsers(),
		revocations: memstore.NewRevocations(),
		tickets:     memstore.NewTickets(),
		contracts:   memstore.NewContracts(),
		messages:    memstore.NewMessages(),
		objects:     memstore.NewObjects("project-documents"),
		events:      memstore.NewEvents(),
	}
	f.projects = memstore.NewProjects(f.users)

	log := zerolog.Nop()
	cfg := config.SecurityConfig{
		JWTSecret:      testSecret,
		ResetTicketTTL: time.Hour,
		ResetLinkBase:  "http://app.test/reset-password",
	}
	f.auth = NewAuthService(f.users, f.revocations, f.tickets, f.events, cfg, log)
	f.project = NewProjectService(f.projects, f.contracts, f.messages, log)
	f.documents = NewDocumentService(f.projects, f.contracts, f.objects, f.events, log)
	f.feed = NewMessageService(f.projects, f.contracts, f.messages, log)
	return f
}

func (f *fixture) client(t *testing.T, name, email string) models.Identity {
	t.Helper()
	user, err := f.auth.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    email,
		Password: "pw-" + name,
		Role:     "client",
	})
	require.NoError(t, err)
	return models.Identity{ID: user.ID, Role: user.Role}
}

func (f *fixture) provider(t *testing.T) models.Identity {
	t.Helper()
	user, err := f.auth.CreateProvider(context.Background(), "Provider", "provider@example.com", "pw-provider")
	require.NoError(t, err)
	return models.Identity{ID: user.ID, Role: user.Role}
}

func (f *fixture) newProject(t *testing.T, owner models.Identity, name string) models.Project {
	t.Helper()
	project, err := f.project.Create(context.Background(), owner, CreateProjectInput{
		Name:        name,
		Description: name + " description",
	})
	require.NoError(t, err)
	return project
}
