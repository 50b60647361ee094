package chatws

import "testing"

// A client that stops draining its socket fills its send buffer and gets
// evicted by the hub. An inbound error frame arriving after the eviction must
// be dropped, not written to the shut channel.
func TestWriteErrorAfterSlowConsumerEviction(t *testing.T) {
	hub := NewHub(nil)
	client := NewClient(hub, nil, "7")
	hub.clients["7"] = map[*Client]struct{}{client: {}}

	for i := 0; i < cap(client.send); i++ {
		if !client.trySend([]byte("backlog")) {
			t.Fatalf("send buffer rejected frame %d before filling up", i)
		}
	}

	hub.sendToUser("7", []byte("overflow"))

	if _, ok := hub.clients["7"]; ok {
		t.Fatal("stalled client should have been evicted from the hub")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("writeError panicked after eviction: %v", r)
		}
	}()
	writeError(client, "invalid message payload")

	if client.trySend([]byte("late")) {
		t.Fatal("evicted client must reject further sends")
	}
}

// Unregistering a client the hub already evicted must stay a no-op instead of
// closing the channel a second time.
func TestUnregisterAfterEvictionIsIdempotent(t *testing.T) {
	client := NewClient(NewHub(nil), nil, "9")

	client.closeSend()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("second shutdown panicked: %v", r)
		}
	}()
	client.closeSend()

	if client.trySend([]byte("late")) {
		t.Fatal("shut client must reject sends")
	}
}
