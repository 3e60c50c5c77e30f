package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	chatapp "ride-hail-mobile/cmd/chat"
	locationsapp "ride-hail-mobile/cmd/locations"
	tokenapp "ride-hail-mobile/cmd/token"
	"ride-hail-mobile/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, modeArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeChat:
		fs := flag.NewFlagSet(cli.ModeChat, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.toml", "Path to the client config file")
		rideID := fs.String("ride", "", "Ride id to open; empty adopts the active ride")
		cli.AttachUsage(fs, cli.ModeChat)

		if err := fs.Parse(modeArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if err := chatapp.Run(ctx, *configPath, *rideID); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeLocations:
		fs := flag.NewFlagSet(cli.ModeLocations, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.toml", "Path to the client config file")
		rideID := fs.String("ride", "", "Ride id to stream driver locations for")
		orderID := fs.String("order", "", "Delivery order id to stream courier locations for")
		cli.AttachUsage(fs, cli.ModeLocations)

		if err := fs.Parse(modeArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *rideID == "" && *orderID == "" {
			fmt.Fprintln(os.Stderr, "Error: --ride or --order is required")
			fs.Usage()
			os.Exit(2)
		}
		if err := locationsapp.Run(ctx, *configPath, *rideID, *orderID); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeToken:
		fs := flag.NewFlagSet(cli.ModeToken, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.toml", "Path to the client config file")
		userID := fs.String("user-id", "", "UUID of the user (subject)")
		role := fs.String("role", "PASSENGER", "User role: PASSENGER | DRIVER | MERCHANT")
		secret := fs.String("secret", "", "HS256 secret; falls back to auth.secret in config")
		ttl := fs.Duration("ttl", 2*time.Hour, "Token lifetime")
		cli.AttachUsage(fs, cli.ModeToken)

		if err := fs.Parse(modeArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *userID == "" {
			fmt.Fprintln(os.Stderr, "Error: --user-id is required")
			fs.Usage()
			os.Exit(2)
		}
		if err := tokenapp.Run(*configPath, *userID, *role, *secret, *ttl); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
