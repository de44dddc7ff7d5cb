package ingestion

import (
	"sync"
	"testing"
)

func TestHubBroadcastReachesEveryViewerOfUser(t *testing.T) {
	h := NewHub(NewMetricsTracker())
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Connect(a, "u1")
	h.Connect(b, "u1")
	h.Connect(other, "u2")

	if n := h.Broadcast("u1", []byte(`{"x":1}`)); n != 2 {
		t.Fatalf("delivered to %d, want 2", n)
	}
	if len(a.received()) != 1 || len(b.received()) != 1 {
		t.Fatal("both viewers of u1 should receive the payload")
	}
	if len(other.received()) != 0 {
		t.Fatal("viewer of another user must not receive the payload")
	}
}

func TestHubBroadcastWithoutViewersIsNoop(t *testing.T) {
	h := NewHub(nil)
	if n := h.Broadcast("nobody", []byte("x")); n != 0 {
		t.Fatalf("delivered = %d", n)
	}
}

func TestHubIsolatesAndPrunesFailingViewers(t *testing.T) {
	metrics := NewMetricsTracker()
	h := NewHub(metrics)
	healthy := &fakeConn{}
	broken := &fakeConn{fail: true}
	panicky := &fakeConn{panics: true}
	h.Connect(healthy, "u1")
	h.Connect(broken, "u1")
	h.Connect(panicky, "u1")

	if n := h.Broadcast("u1", []byte("x")); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if len(healthy.received()) != 1 {
		t.Fatal("healthy viewer must still receive the payload")
	}
	if !broken.isClosed() || !panicky.isClosed() {
		t.Fatal("failing viewers should be closed")
	}
	if h.Count("u1") != 1 {
		t.Fatalf("expected failing viewers to be pruned, count=%d", h.Count("u1"))
	}
	if got := metrics.Snapshot().BroadcastFailures; got != 2 {
		t.Fatalf("broadcast failures = %d", got)
	}
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	c := &fakeConn{}
	h.Connect(c, "u1")

	h.Disconnect(c, "u1")
	h.Disconnect(c, "u1")
	h.Disconnect(&fakeConn{}, "unknown")

	if h.Total() != 0 {
		t.Fatalf("total = %d", h.Total())
	}
}

func TestHubConcurrentConnectBroadcast(t *testing.T) {
	h := NewHub(NewMetricsTracker())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		c := &fakeConn{}
		go func() {
			defer wg.Done()
			h.Connect(c, "u1")
			h.Disconnect(c, "u1")
		}()
		go func() {
			defer wg.Done()
			h.Broadcast("u1", []byte("x"))
		}()
	}
	wg.Wait()

	if h.Total() != 0 {
		t.Fatalf("total = %d", h.Total())
	}
}
