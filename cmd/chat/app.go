package chatapp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"ride-hail-mobile/internal/auth"
	"ride-hail-mobile/internal/chat"
	"ride-hail-mobile/internal/common/config"
	"ride-hail-mobile/internal/common/contextx"
	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/directory"
	"ride-hail-mobile/internal/realtime"
)

// Run wires the chat client and blocks until ctx is cancelled or stdin closes.
func Run(ctx context.Context, configPath, rideID string) error {
	logger := log.New("chat")
	ctx = contextx.WithRequestID(ctx, "startup-001")

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
	transport := chat.NewTransport(mgr, logger)
	dir := directory.NewClient(cfg.API.BaseURL, logger)

	view := &renderer{out: os.Stdout}

	ctrl, err := chat.NewController(chat.Options{
		Manager:   mgr,
		Rooms:     rooms,
		Transport: transport,
		Identity: func(context.Context) (auth.Identity, error) {
			return identity, nil
		},
		Directory:      dir,
		Names:          dir,
		Logger:         logger,
		HistoryLimit:   cfg.Chat.HistoryLimit,
		TypingIdle:     cfg.TypingIdle(),
		PendingTimeout: cfg.PendingTimeout(),
		OnChange:       view.render,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	// ride lifecycle events demote or annotate the open conversation
	unsubs := []func(){
		mgr.On(contracts.EventRideCancelled, func(json.RawMessage) {
			view.system("Ride cancelled; conversation is now read-only")
			ctrl.SetReadOnly()
		}),
		mgr.On(contracts.EventRideStageUpdate, func(data json.RawMessage) {
			if upd, err := contracts.NormalizeRideEvent(data); err == nil {
				view.system(fmt.Sprintf("Ride %s is now %s", upd.RideID, upd.Stage))
			}
		}),
		mgr.On(contracts.EventFareFinalized, func(data json.RawMessage) {
			if upd, err := contracts.NormalizeRideEvent(data); err == nil {
				view.system(fmt.Sprintf("Fare finalized: %.2f", upd.Fare))
			}
		}),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	if err := ctrl.Start(ctx, rideID); err != nil {
		return err
	}

	log.Info(ctx, logger, "chat_client_started",
		fmt.Sprintf("Chat client started as %s (%s)", identity.UserID, identity.Role))

	// stdin loop: every non-empty line becomes a message
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				ctrl.SetTyping(false)
				continue
			}
			ctrl.SetTyping(true)
			ctrl.Send(line)
		}
	}
}

// renderer appends newly confirmed rows to the terminal. It keeps a cursor
// over the entry list instead of redrawing, so scrollback stays intact.
type renderer struct {
	mu      sync.Mutex
	out     *os.File
	printed int
	state   chat.State
	typing  bool
}

func (r *renderer) render(snap chat.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.State != r.state {
		r.state = snap.State
		fmt.Fprintf(r.out, "-- %s", snap.State)
		if snap.RideID != "" {
			fmt.Fprintf(r.out, " (ride %s", snap.RideID)
			if snap.PeerName != "" {
				fmt.Fprintf(r.out, ", with %s", snap.PeerName)
			}
			fmt.Fprint(r.out, ")")
		}
		fmt.Fprintln(r.out)
	}

	// entries can shrink only on re-adoption; restart the cursor then
	if len(snap.Entries) < r.printed {
		r.printed = 0
	}
	for _, e := range snap.Entries[r.printed:] {
		if e.DayLabel != "" {
			fmt.Fprintf(r.out, "---- %s ----\n", e.DayLabel)
		}
		name := e.Message.DisplayName
		if name == "" {
			name = strings.ToLower(e.Message.SenderRole)
		}
		if e.Status != "" {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", e.Status, name, e.Message.Text)
		} else {
			fmt.Fprintf(r.out, "%s: %s\n", name, e.Message.Text)
		}
	}
	r.printed = len(snap.Entries)

	if snap.TypingActive != r.typing {
		r.typing = snap.TypingActive
		if r.typing {
			fmt.Fprintln(r.out, "... typing")
		}
	}
}

func (r *renderer) system(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "** %s\n", msg)
}
