package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"projecthub/internal/config"
	"projecthub/internal/events"
	"projecthub/internal/metrics"
	"projecthub/internal/middleware"
	"projecthub/internal/policy"
	"projecthub/internal/repository"
	"projecthub/internal/revocation"
	"projecthub/internal/security"
	"projecthub/internal/service"
	"projecthub/internal/storage"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Log            zerolog.Logger
	Environment    string
	MaxUploadBytes int64
	Auth           *service.AuthService
	Projects       *service.ProjectService
	Documents      *service.DocumentService
	Messages       *service.MessageService
	Metrics        *metrics.Metrics
	Checks         map[string]HealthCheck
}

type HandlerSet struct {
	log            zerolog.Logger
	environment    string
	maxUploadBytes int64
	auth           *service.AuthService
	projects       *service.ProjectService
	documents      *service.DocumentService
	messages       *service.MessageService
	metrics        *metrics.Metrics
	checks         map[string]HealthCheck
}

// NewHandlerSet wires the pgx repositories, the Redis revocation store and
// stream publisher and the object store into the services.
func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig, m *metrics.Metrics) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	contractRepo := repository.NewContractRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	ticketRepo := repository.NewResetTicketRepository(db)
	revocations := revocation.NewStore(cache, security.CredentialTTL)
	publisher := events.NewPublisher(cache, cfg.Redis.Stream)

	return New(Deps{
		Log:            log,
		Environment:    cfg.Environment,
		MaxUploadBytes: cfg.HTTP.MaxUploadMB << 20,
		Auth:           service.NewAuthService(userRepo, revocations, ticketRepo, publisher, cfg.Security, log),
		Projects:       service.NewProjectService(projectRepo, contractRepo, messageRepo, log),
		Documents:      service.NewDocumentService(projectRepo, contractRepo, store, publisher, log),
		Messages:       service.NewMessageService(projectRepo, contractRepo, messageRepo, log),
		Metrics:        m,
		Checks: map[string]HealthCheck{
			"database": db.Ping,
			"cache":    func(ctx context.Context) error { return cache.Ping(ctx).Err() },
			"storage":  store.Ping,
		},
	})
}

func New(deps Deps) HandlerSet {
	return HandlerSet{
		log:            deps.Log,
		environment:    deps.Environment,
		maxUploadBytes: deps.MaxUploadBytes,
		auth:           deps.Auth,
		projects:       deps.Projects,
		documents:      deps.Documents,
		messages:       deps.Messages,
		metrics:        deps.Metrics,
		checks:         deps.Checks,
	}
}

func (h HandlerSet) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/request-password-reset", h.RequestPasswordReset)
	router.POST("/verify-reset-token", h.VerifyResetToken)
	router.POST("/reset-password", h.ResetPassword)

	protected := router.Group("")
	protected.Use(middleware.Auth(h.auth, h.log, h.metrics))
	{
		protected.POST("/logout", h.Logout)
		protected.GET("/dashboard", h.Dashboard)
		protected.POST("/verify-token", h.VerifyToken)

		protected.POST("/add-project", h.CreateProject)
		protected.GET("/projects", h.ListProjects)
		protected.GET("/all-projects",
			middleware.RequireAction(policy.ActionListAllProjects, h.metrics),
			h.ListAllProjects,
		)
		protected.GET("/projects/:id", h.GetProject)
		protected.PUT("/projects/:id/status", h.UpdateProjectStatus)
		protected.DELETE("/cancel-project/:id", h.CancelProject)

		protected.POST("/projects/:id/upload-documents", h.UploadDocuments)
		protected.GET("/projects/:id/documents", h.ListDocuments)
		protected.GET("/projects/:id/updates", h.ListUpdates)
		protected.POST("/projects/:id/updates", h.PostUpdate)

		protected.GET("/messages", h.ListMessages)
		protected.POST("/messages", h.PostMessage)
	}
}
