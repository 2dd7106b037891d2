package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePublisher) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestRefreshReachesEveryClient(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	hub.Refresh(context.Background())

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			if string(data) != `{"type":"refresh"}` {
				t.Errorf("payload = %s, want an opaque refresh", data)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestRefreshPublishesToRelay(t *testing.T) {
	hub := NewHub(slog.Default())
	pub := &fakePublisher{}
	hub.SetRelay(pub)

	hub.Refresh(context.Background())
	if pub.calls != 1 {
		t.Errorf("publish calls = %d, want 1", pub.calls)
	}
}

func TestRefreshDoesNotWaitOnUnreachableRedis(t *testing.T) {
	// Nothing listens on this address, so a synchronous publish would stall
	// until publishTimeout.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: publishTimeout})
	defer rdb.Close()

	hub := NewHub(slog.Default())
	hub.SetRelay(NewRedisRelay(rdb, "famboard:refresh", hub, slog.Default()))
	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	start := time.Now()
	for range 5 {
		hub.Refresh(context.Background())
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("refresh took %v, want it not to wait on the relay", elapsed)
	}
	select {
	case <-c.send:
	default:
		t.Fatal("local clients must be signalled even when the relay is down")
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(RefreshMessage())
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(RefreshMessage())
	}

	// This should drop the message, not panic or block
	hub.Broadcast(RefreshMessage())

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestRefreshMessage(t *testing.T) {
	data, err := json.Marshal(RefreshMessage())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"refresh"}` {
		t.Errorf("got %s", data)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(RefreshMessage())
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
