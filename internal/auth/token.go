package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken  = errors.New("token is empty")
	ErrNoSubject   = errors.New("token has no subject claim")
	ErrEmptySecret = errors.New("empty signing secret")
)

// Claims is the platform's canonical JWT claims payload.
type Claims struct {
	Role Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// Identity is the acting user as resolved from the stored token.
type Identity struct {
	UserID string
	Role   Role
}

// ParseIdentity extracts the user id and role from a stored access token.
// The client does not hold the gateway's signing key, so the signature is
// not checked here; the gateway re-verifies the token on every handshake.
func ParseIdentity(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, ErrEmptyToken
	}

	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return Identity{}, ErrNoSubject
	}

	role := claims.Role
	if !role.Valid() {
		role = RolePassenger
	}

	return Identity{UserID: claims.Subject, Role: role}, nil
}

// LoadIdentity reads the stored token file and resolves the identity from it.
// The token file stands in for the device's secure storage.
func LoadIdentity(tokenFile string) (Identity, error) {
	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return Identity{}, fmt.Errorf("read token file: %w", err)
	}
	return ParseIdentity(string(raw))
}

// IssueDevToken signs an HS256 access token in the platform's claim shape.
// Only local gateways accept these; production tokens come from the auth API.
func IssueDevToken(secret, userID string, role Role, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrEmptySecret
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	now := time.Now().UTC()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tkn.SignedString([]byte(secret))
}
