package tokenapp

import (
	"fmt"
	"os"
	"time"

	"ride-hail-mobile/internal/cli"
	"ride-hail-mobile/internal/common/config"
)

// Run mints a dev identity token and prints it. The secret comes from the
// flag when given, otherwise from auth.secret in the config file.
func Run(configPath, userID, roleStr, secret string, ttl time.Duration) error {
	if secret == "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
		secret = cfg.Auth.Secret
	}
	if secret == "" {
		return fmt.Errorf("token: no secret given (flag --secret or auth.secret in config)")
	}

	token, role, err := cli.GenerateUserToken(secret, userID, roleStr, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "TOKEN:")
	fmt.Fprintln(os.Stdout, token)
	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, "  sub:  %s\n", userID)
	fmt.Fprintf(os.Stdout, "  role: %s\n", role)
	fmt.Fprintf(os.Stdout, "  exp:  %s\n", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return nil
}
