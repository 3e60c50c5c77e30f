package cli

import (
	"fmt"
	"time"

	"ride-hail-mobile/internal/auth"
)

// GenerateUserToken mints a short-lived identity token for a seeded user.
// Dev-only: the real apps receive their token from the platform's login
// flow, never from a local secret.
func GenerateUserToken(secret, userID, roleStr string, ttl time.Duration) (string, auth.Role, error) {
	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return "", "", fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	token, err := auth.IssueDevToken(secret, userID, role, ttl)
	if err != nil {
		return "", "", fmt.Errorf("issue token: %w", err)
	}

	return token, role, nil
}
