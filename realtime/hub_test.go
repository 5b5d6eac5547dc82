package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func waitForSubscribers(t *testing.T, hub *Hub, eventSlug string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(eventSlug) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count for %s never reached %d", eventSlug, want)
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := NewClient(hub, nil, "demo-night")
	bob := NewClient(hub, nil, "demo-night")
	carol := NewClient(hub, nil, "other-event")

	hub.Register <- alice
	hub.Register <- bob
	hub.Register <- carol
	waitForSubscribers(t, hub, "demo-night", 2)
	waitForSubscribers(t, hub, "other-event", 1)

	hub.BroadcastToEvent("demo-night", MessageStateChanged, map[string]string{"current_state": "voting_open"})

	for _, client := range []*Client{alice, bob} {
		select {
		case raw := <-client.Send:
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("invalid message JSON: %v", err)
			}
			if msg.Type != MessageStateChanged {
				t.Errorf("message type = %s, want STATE_CHANGED", msg.Type)
			}
			if msg.EventSlug != "demo-night" {
				t.Errorf("event_slug = %s, want demo-night", msg.EventSlug)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive broadcast")
		}
	}

	select {
	case raw := <-carol.Send:
		t.Fatalf("subscriber of another event received message: %s", raw)
	default:
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, "demo-night")
	hub.Register <- client
	waitForSubscribers(t, hub, "demo-night", 1)

	hub.Unregister <- client
	waitForSubscribers(t, hub, "demo-night", 0)

	select {
	case _, ok := <-client.Send:
		if ok {
			t.Error("expected send channel to be closed, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed after unregister")
	}

	// Рассылка в пустую комнату не должна паниковать.
	hub.BroadcastToEvent("demo-night", MessageVoteRecorded, nil)
}

func TestBroadcastSkipsSlowClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, "demo-night")
	// Имитация медленного клиента: канал уже заполнен.
	client.Send = make(chan []byte, 1)
	client.Send <- []byte("backlog")

	hub.Register <- client
	waitForSubscribers(t, hub, "demo-night", 1)

	// Не должно блокироваться.
	hub.BroadcastToEvent("demo-night", MessageResultsUpdated, nil)

	if got := <-client.Send; string(got) != "backlog" {
		t.Errorf("first queued message = %s, want backlog", got)
	}
}
