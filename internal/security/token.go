package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"projecthub/internal/ids"
	"projecthub/internal/models"
)

// CredentialTTL is the fixed lifetime of every bearer credential. It also
// bounds how long a revocation entry has to be remembered.
const CredentialTTL = time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role claim")
)

type AccessClaims struct {
	Identity models.Identity `json:"identity"`
	jwt.RegisteredClaims
}

type Credential struct {
	Token  string
	Claims AccessClaims
}

func (c Credential) ExpiresAt() time.Time {
	return c.Claims.ExpiresAt.Time
}

func IssueCredential(secret string, userID string, role models.UserRole, now time.Time) (Credential, error) {
	if !role.Valid() {
		return Credential{}, ErrUnknownRole
	}

	claims := AccessClaims{
		Identity: models.Identity{ID: userID, Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CredentialTTL)),
			Subject:   userID,
			ID:        ids.NewTokenID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return Credential{}, fmt.Errorf("sign jwt: %w", err)
	}
	return Credential{Token: signed, Claims: claims}, nil
}

// ParseCredential verifies signature and expiry and rejects claims whose
// identity is incomplete or carries a role outside the known set.
func ParseCredential(tokenStr string, secret string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Identity.ID == "" || claims.Identity.ID != claims.Subject {
		return nil, fmt.Errorf("%w: incomplete identity", ErrInvalidToken)
	}
	if !claims.Identity.Role.Valid() {
		return nil, ErrUnknownRole
	}
	return claims, nil
}
