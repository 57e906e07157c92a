package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"projecthub/internal/config"
	"projecthub/internal/events"
	"projecthub/internal/ids"
	"projecthub/internal/models"
	"projecthub/internal/policy"
	"projecthub/internal/repository"
	"projecthub/internal/security"
)

const resetTokenBytes = 32

const actionRegister policy.Action = "users.register"

type AuthService struct {
	users       UserStore
	revocations RevocationStore
	tickets     ResetTicketStore
	events      EventPublisher
	cfg         config.SecurityConfig
	log         zerolog.Logger
	now         func() time.Time
	verify      func(password string, encodedHash []byte) (bool, error)
}

func NewAuthService(
	users UserStore,
	revocations RevocationStore,
	tickets ResetTicketStore,
	publisher EventPublisher,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		revocations: revocations,
		tickets:     tickets,
		events:      publisher,
		cfg:         cfg,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		verify:      security.VerifyPassword,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a client account. Any other requested role is refused.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || input.Email == "" || input.Password == "" || input.Role == "" {
		return models.User{}, validationf("name, email, password and role are required")
	}

	if decision := policy.AuthorizeRegistration(input.Role); !decision.Allowed {
		return models.User{}, &PolicyError{Action: actionRegister, Reason: decision.Reason}
	}

	return s.createUser(ctx, input.Name, input.Email, input.Password, models.UserRoleClient)
}

// CreateProvider provisions a provider account. It is only reachable from
// the admin CLI.
func (s *AuthService) CreateProvider(ctx context.Context, name, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || email == "" || password == "" {
		return models.User{}, validationf("name, email and password are required")
	}
	return s.createUser(ctx, name, email, password, models.UserRoleProvider)
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role models.UserRole) (models.User, error) {
	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Credential security.Credential
	User       models.User
}

// Login verifies the password and mints a credential. Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" || input.Password == "" {
		return LoginResult{}, validationf("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.verify(input.Password, security.DummyHash())
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.verify(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	credential, err := security.IssueCredential(s.cfg.JWTSecret, user.ID, user.Role, s.now())
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue credential: %w", err)
	}

	return LoginResult{Credential: credential, User: user}, nil
}

// Authenticate validates a bearer token and checks it against the
// revocation list. A revocation lookup failure is returned as-is so the
// caller can fail closed.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*security.AccessClaims, error) {
	claims, err := security.ParseCredential(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the credential's jti. Revoking an already revoked
// credential succeeds.
func (s *AuthService) Logout(ctx context.Context, claims *security.AccessClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrUnauthorized
	}
	if err := s.revocations.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RequestPasswordReset never reveals whether the email exists. Lookup and
// delivery problems are logged, not returned.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return validationf("email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.log.Error().Err(err).Msg("password reset lookup failed")
		}
		return nil
	}

	token, tokenHash, err := security.GenerateResetToken(resetTokenBytes)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("generate reset token failed")
		return nil
	}

	now := s.now()
	ticket := models.ResetTicket{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(s.cfg.ResetTicketTTL),
		CreatedAt: now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("create reset ticket failed")
		return nil
	}

	event := events.Event{
		Type: events.TypePasswordResetRequested,
		Payload: events.PasswordResetRequested{
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			ResetLink: s.resetLink(token),
			ExpiresAt: ticket.ExpiresAt,
		},
		OccurredAt: now,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("publish password reset failed")
	}
	return nil
}

func (s *AuthService) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.cfg.ResetLinkBase, "?") {
		sep = "&"
	}
	return s.cfg.ResetLinkBase + sep + "token=" + url.QueryEscape(token)
}

func (s *AuthService) VerifyResetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationf("token is required")
	}
	if _, err := s.tickets.FindActive(ctx, security.HashResetToken(token), s.now()); err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return validationf("invalid or expired reset token")
		}
		return fmt.Errorf("find reset ticket: %w", err)
	}
	return nil
}

// ResetPassword consumes the ticket and stores a fresh argon2id hash. A
// token can be used once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return validationf("token and password are required")
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ticket, err := s.tickets.Consume(ctx, security.HashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return validationf("invalid or expired reset token")
		}
		return fmt.Errorf("consume reset ticket: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, ticket.UserID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.log.Info().Str("user_id", ticket.UserID).Msg("password reset")
	return nil
}

// User returns the stored account for id.
func (s *AuthService) User(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}
