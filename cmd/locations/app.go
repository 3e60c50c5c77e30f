package locationsapp

import (
	"context"
	"fmt"
	"os"

	"ride-hail-mobile/internal/auth"
	"ride-hail-mobile/internal/common/config"
	"ride-hail-mobile/internal/common/contextx"
	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/realtime"
)

// Run subscribes to the location streams for a ride and/or delivery order
// and prints each deduplicated ping until ctx is cancelled.
func Run(ctx context.Context, configPath, rideID, orderID string) error {
	logger := log.New("locations")
	ctx = contextx.WithRequestID(ctx, "startup-001")

	if rideID == "" && orderID == "" {
		return fmt.Errorf("locations: --ride or --order is required")
	}

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, logger, "config_load_failed", "Failed to load configuration", err)
		return err
	}

	identity, err := auth.LoadIdentity(cfg.Auth.TokenFile)
	if err != nil {
		log.Error(ctx, logger, "identity_load_failed", "Failed to load stored identity", err)
		return err
	}

	mgr := realtime.InitShared(realtime.Options{
		URL:            cfg.Gateway.URL + cfg.SocketPath(),
		ConnectTimeout: cfg.ConnectTimeout(),
		BackoffInitial: cfg.BackoffInitial(),
		BackoffCap:     cfg.BackoffCap(),
		AckTimeout:     cfg.AckTimeout(),
		Logger:         logger,
	})
	defer mgr.Close()

	rooms := realtime.NewRegistry(mgr, logger)

	print := func(stream string) func(contracts.LocationPing) {
		return func(p contracts.LocationPing) {
			fmt.Fprintf(os.Stdout, "%s %s %s %.5f,%.5f\n",
				p.At.UTC().Format("15:04:05"), stream, p.ActorID, p.Latitude, p.Longitude)
		}
	}
	feed := realtime.NewFeed(mgr, logger, print("ride"), print("delivery"))
	defer feed.Close()

	mgr.Connect(identity)
	if rideID != "" {
		rooms.JoinRoom(realtime.KindRide, rideID)
		defer rooms.LeaveRoom(realtime.KindRide, rideID)
	}
	if orderID != "" {
		rooms.JoinRoom(realtime.KindOrder, orderID)
		defer rooms.LeaveRoom(realtime.KindOrder, orderID)
	}

	log.Info(ctx, logger, "locations_started",
		fmt.Sprintf("Location stream started (ride=%q order=%q)", rideID, orderID))

	<-ctx.Done()
	return nil
}
