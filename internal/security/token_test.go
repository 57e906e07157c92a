package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecthub/internal/models"
)

const testSecret = "test-jwt-secret"

func TestIssueCredentialSetsClaims(t *testing.T) {
	now := time.Now()
	cred, err := IssueCredential(testSecret, "user-1", models.UserRoleClient, now)
	require.NoError(t, err)
	require.NotEmpty(t, cred.Token)

	claims, err := ParseCredential(cred.Token, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Identity.ID)
	assert.Equal(t, models.UserRoleClient, claims.Identity.Role)
	assert.Equal(t, "user-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
	assert.Equal(t, CredentialTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestIssueCredentialUsesFreshTokenIDs(t *testing.T) {
	a, err := IssueCredential(testSecret, "user-1", models.UserRoleProvider, time.Now())
	require.NoError(t, err)
	b, err := IssueCredential(testSecret, "user-1", models.UserRoleProvider, time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, a.Claims.ID, b.Claims.ID)
}

func TestIssueCredentialRejectsUnknownRole(t *testing.T) {
	_, err := IssueCredential(testSecret, "user-1", models.UserRole("admin"), time.Now())
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseCredentialRejectsExpired(t *testing.T) {
	cred, err := IssueCredential(testSecret, "user-1", models.UserRoleClient, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = ParseCredential(cred.Token, testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseCredentialRejectsWrongSecret(t *testing.T) {
	cred, err := IssueCredential(testSecret, "user-1", models.UserRoleClient, time.Now())
	require.NoError(t, err)

	_, err = ParseCredential(cred.Token, "another-secret")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseCredentialRejectsGarbage(t *testing.T) {
	_, err := ParseCredential("not.a.jwt", testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func signRaw(t *testing.T, method jwt.SigningMethod, claims AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func validRegistered(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		Subject:   subject,
		ID:        "jti-1",
	}
}

func TestParseCredentialRejectsForgedRole(t *testing.T) {
	token := signRaw(t, jwt.SigningMethodHS512, AccessClaims{
		Identity:         models.Identity{ID: "user-1", Role: "admin"},
		RegisteredClaims: validRegistered("user-1"),
	})

	_, err := ParseCredential(token, testSecret)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseCredentialRejectsMissingJTI(t *testing.T) {
	reg := validRegistered("user-1")
	reg.ID = ""
	token := signRaw(t, jwt.SigningMethodHS512, AccessClaims{
		Identity:         models.Identity{ID: "user-1", Role: models.UserRoleClient},
		RegisteredClaims: reg,
	})

	_, err := ParseCredential(token, testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseCredentialRejectsSubjectMismatch(t *testing.T) {
	token := signRaw(t, jwt.SigningMethodHS512, AccessClaims{
		Identity:         models.Identity{ID: "user-1", Role: models.UserRoleClient},
		RegisteredClaims: validRegistered("user-2"),
	})

	_, err := ParseCredential(token, testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseCredentialRejectsOtherAlgorithms(t *testing.T) {
	token := signRaw(t, jwt.SigningMethodHS256, AccessClaims{
		Identity:         models.Identity{ID: "user-1", Role: models.UserRoleClient},
		RegisteredClaims: validRegistered("user-1"),
	})

	_, err := ParseCredential(token, testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}
