package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"projecthub/internal/events"
	"projecthub/internal/ids"
	"projecthub/internal/models"
	"projecthub/internal/policy"
	"projecthub/internal/security"
)

func TestRegisterCreatesClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, RegisterInput{
		Name:     "Ana",
		Email:    "  Ana@Example.com ",
		Password: "pw123",
		Role:     "client",
	})
	require.NoError(t, err)

	assert.Equal(t, models.UserRoleClient, user.Role)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.True(t, ids.Valid(user.ID))

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", string(stored.PasswordHash))
	ok, err := security.VerifyPassword("pw123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterRefusesOtherRoles(t *testing.T) {
	f := newFixture(t)

	for _, role := range []string{"provider", "admin", "Client", "user"} {
		t.Run(role, func(t *testing.T) {
			_, err := f.auth.Register(context.Background(), RegisterInput{
				Name:     "Mallory",
				Email:    role + "@example.com",
				Password: "pw",
				Role:     role,
			})
			require.ErrorIs(t, err, ErrForbidden)

			var policyErr *PolicyError
			require.True(t, errors.As(err, &policyErr))
			assert.Equal(t, policy.ReasonPublicRoleOnly, policyErr.Reason)

			_, lookupErr := f.users.FindByEmail(context.Background(), role+"@example.com")
			assert.Error(t, lookupErr)
		})
	}
}

func TestRegisterValidatesFields(t *testing.T) {
	f := newFixture(t)

	tests := []RegisterInput{
		{Email: "a@example.com", Password: "pw", Role: "client"},
		{Name: "A", Password: "pw", Role: "client"},
		{Name: "A", Email: "a@example.com", Role: "client"},
		{Name: "A", Email: "a@example.com", Password: "pw"},
	}
	for _, input := range tests {
		_, err := f.auth.Register(context.Background(), input)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.client(t, "Ana", "ana@example.com")

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Name:     "Other Ana",
		Email:    "ANA@example.com",
		Password: "pw",
		Role:     "client",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginIssuesCredentialWithStoredRole(t *testing.T) {
	f := newFixture(t)
	ana := f.client(t, "Ana", "ana@example.com")

	result, err := f.auth.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "pw-Ana"})
	require.NoError(t, err)

	claims, err := security.ParseCredential(result.Credential.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: ana.ID, Role: models.UserRoleClient}, claims.Identity)
	assert.Equal(t, ana.ID, claims.Subject)
	assert.Equal(t, security.CredentialTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	f := newFixture(t)
	f.client(t, "Ana", "ana@example.com")

	_, wrongPassword := f.auth.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "nope"})
	_, unknownEmail := f.auth.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "nope"})

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	_, err := f.auth.Login(context.Background(), LoginInput{Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginUnknownEmailStillVerifiesPassword(t *testing.T) {
	f := newFixture(t)
	f.client(t, "Ana", "ana@example.com")

	var hashes [][]byte
	f.auth.verify = func(password string, encodedHash []byte) (bool, error) {
		hashes = append(hashes, encodedHash)
		return security.VerifyPassword(password, encodedHash)
	}

	_, err := f.auth.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "nope"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Len(t, hashes, 1)
	assert.Equal(t, security.DummyHash(), hashes[0])

	_, err = f.auth.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "nope"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Len(t, hashes, 2)
}

func TestLoginAcceptsLegacyBcryptHash(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("legacy-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	f.users.Put(models.User{
		ID:           ids.New(),
		Email:        "legacy@example.com",
		PasswordHash: hash,
		Name:         "Legacy",
		Role:         models.UserRoleClient,
	})

	_, err = f.auth.Login(context.Background(), LoginInput{Email: "legacy@example.com", Password: "legacy-pw"})
	assert.NoError(t, err)
}

func TestLogoutRevokesCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, "Ana", "ana@example.com")

	result, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "pw-Ana"})
	require.NoError(t, err)

	claims, err := f.auth.Authenticate(ctx, result.Credential.Token)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, claims))
	require.NoError(t, f.auth.Logout(ctx, claims))

	_, err = f.auth.Authenticate(ctx, result.Credential.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestConcurrentLogoutsBothSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, "Ana", "ana@example.com")
	result, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "pw-Ana"})
	require.NoError(t, err)
	claims := result.Credential.Claims

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.auth.Logout(ctx, &claims)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Authenticate(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateFailsClosedOnStoreError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, "Ana", "ana@example.com")
	result, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "pw-Ana"})
	require.NoError(t, err)

	f.revocations.Fail = true
	claims, err := f.auth.Authenticate(ctx, result.Credential.Token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func resetTokenFrom(t *testing.T, event events.Event) string {
	t.Helper()
	payload, ok := event.Payload.(events.PasswordResetRequested)
	require.True(t, ok)
	link, err := url.Parse(payload.ResetLink)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.client(t, "Ana", "ana@example.com")

	require.NoError(t, f.auth.RequestPasswordReset(ctx, "Ana@Example.com"))

	published := f.events.All()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypePasswordResetRequested, published[0].Type)
	token := resetTokenFrom(t, published[0])

	tickets := f.tickets.All()
	require.Len(t, tickets, 1)
	assert.Equal(t, ana.ID, tickets[0].UserID)
	assert.Equal(t, security.HashResetToken(token), tickets[0].TokenHash)

	require.NoError(t, f.auth.VerifyResetToken(ctx, token))
	require.NoError(t, f.auth.ResetPassword(ctx, token, "new-pw"))

	err := f.auth.ResetPassword(ctx, token, "another-pw")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, f.auth.VerifyResetToken(ctx, token), ErrValidation)

	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "new-pw"})
	assert.NoError(t, err)
	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "pw-Ana"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.auth.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.events.All())
	assert.Empty(t, f.tickets.All())
}

func TestRequestPasswordResetSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.client(t, "Ana", "ana@example.com")
	f.events.Fail = true

	assert.NoError(t, f.auth.RequestPasswordReset(context.Background(), "ana@example.com"))
	assert.Len(t, f.tickets.All(), 1)
}

func TestRequestPasswordResetHidesTicketFailure(t *testing.T) {
	f := newFixture(t)
	f.client(t, "Ana", "ana@example.com")
	f.tickets.Fail = true

	assert.NoError(t, f.auth.RequestPasswordReset(context.Background(), "ana@example.com"))
	assert.Empty(t, f.events.All())
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.auth.ResetPassword(context.Background(), "bogus", "pw"), ErrValidation)
	assert.ErrorIs(t, f.auth.ResetPassword(context.Background(), "", "pw"), ErrValidation)
}

func TestCreateProvider(t *testing.T) {
	f := newFixture(t)
	provider := f.provider(t)
	assert.Equal(t, models.UserRoleProvider, provider.Role)

	_, err := f.auth.CreateProvider(context.Background(), "Again", "provider@example.com", "pw")
	assert.ErrorIs(t, err, ErrConflict)
}
