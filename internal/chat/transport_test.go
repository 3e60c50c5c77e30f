package chat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ride-hail-mobile/internal/auth"
	"ride-hail-mobile/internal/common/log"
	"ride-hail-mobile/internal/contracts"
	"ride-hail-mobile/internal/realtime"
	"ride-hail-mobile/internal/realtime/rttest"
)

func newTestTransport(t *testing.T) (*Transport, *rttest.Server) {
	t.Helper()
	srv := rttest.NewServer(t)
	logger := log.New("chat-transport-test")
	mgr := realtime.New(realtime.Options{
		URL:            srv.URL(),
		BackoffInitial: 20 * time.Millisecond,
		BackoffCap:     100 * time.Millisecond,
		AckTimeout:     2 * time.Second,
		Logger:         logger,
	})
	t.Cleanup(mgr.Close)
	mgr.Connect(auth.Identity{UserID: "p-1", Role: auth.RolePassenger})
	srv.WaitConnected(2 * time.Second)
	return NewTransport(mgr, logger), srv
}

func TestSubscribeReplacesPreviousRegistration(t *testing.T) {
	tr, srv := newTestTransport(t)

	var first, second atomic.Int32
	tr.Subscribe(Handlers{OnNewMessage: func(contracts.ChatMessage, string) { first.Add(1) }})
	tr.Subscribe(Handlers{OnNewMessage: func(contracts.ChatMessage, string) { second.Add(1) }})

	srv.Push(contracts.EventChatNew, map[string]any{
		"message": map[string]any{"id": 1, "message": "hi", "sender_role": "driver", "sender_id": "d-2"},
	})

	require.Eventually(t, func() bool { return second.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
	require.Zero(t, first.Load(), "stale handler still registered")
}

func TestMarkReadSuppressesNonIncreasing(t *testing.T) {
	tr, srv := newTestTransport(t)
	srv.AckOK(contracts.EventChatRead)
	tr.Subscribe(Handlers{})

	tr.MarkRead(5)
	tr.MarkRead(5)
	tr.MarkRead(3)
	tr.MarkRead(8)

	srv.WaitEvent(contracts.EventChatRead, 2, 2*time.Second)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, srv.CountEvent(contracts.EventChatRead))
}

func TestLoadHistorySkipsBadRows(t *testing.T) {
	tr, srv := newTestTransport(t)
	srv.Handle(contracts.EventChatHistory, func(contracts.Frame) any {
		return map[string]any{"ok": true, "messages": []map[string]any{
			{"id": 1, "message": "good", "sender_role": "driver", "sender_id": "d-2"},
			{"message": "no id at all"},
			{"id": 2, "text": "also good", "role": "driver", "sender_id": "d-2"},
		}}
	})

	msgs, ok, err := tr.LoadHistory(context.Background(), 0, 50)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	require.Equal(t, "good", msgs[0].Text)
	require.Equal(t, "also good", msgs[1].Text)
}
