package router

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/1vKSfvhNz/farm-backend/internal/registry"
)

type fakeChannel struct {
	mu       sync.Mutex
	sent     []any
	closed   bool
	failSend bool
}

func (f *fakeChannel) SendJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend || f.closed {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeChannel) Close(registry.CloseReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.Config{
		HeartbeatInterval: time.Hour,
		PersistTimeout:    time.Second,
	}, nil, nil)
	t.Cleanup(reg.Shutdown)
	return reg
}

func TestSendToConnectedUser(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)

	ch := &fakeChannel{}
	reg.Connect(ch, "42", nil)
	before := reg.Get("42").LastSeen()

	if !rt.Send("42", map[string]any{"type": "notification"}) {
		t.Fatal("Send to a connected user returned false")
	}
	if ch.sentCount() != 1 {
		t.Errorf("channel received %d messages, want 1", ch.sentCount())
	}
	if !reg.Get("42").LastSeen().After(before) {
		t.Error("successful send did not advance LastSeen")
	}
}

func TestSendToAbsentUser(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)

	if rt.Send("42", "hello") {
		t.Error("Send to an absent user returned true")
	}
}

func TestSendFailureEvicts(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)

	ch := &fakeChannel{failSend: true}
	reg.Connect(ch, "42", nil)

	if rt.Send("42", "hello") {
		t.Fatal("Send over a failing channel returned true")
	}
	if reg.IsConnected("42") {
		t.Error("failed send left the connection registered")
	}
	if ch.Alive() {
		t.Error("failed send left the channel open")
	}

	// The user is gone now; a retry reports absence, not another eviction.
	if rt.Send("42", "hello") {
		t.Error("Send after eviction returned true")
	}
}

func connectUsers(reg *registry.Registry, users map[string]string) map[string]*fakeChannel {
	channels := make(map[string]*fakeChannel, len(users))
	for userID, role := range users {
		ch := &fakeChannel{}
		var meta registry.Metadata
		if role != "" {
			meta = registry.Metadata{"role": role}
		}
		reg.Connect(ch, userID, meta)
		channels[userID] = ch
	}
	return channels
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestBroadcastToAll(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)
	channels := connectUsers(reg, map[string]string{"1": "", "2": "deliver", "3": "admin"})

	results := rt.Broadcast("hello", Filter{})

	if len(results) != 3 {
		t.Fatalf("broadcast reached %d users, want 3", len(results))
	}
	for userID, ok := range results {
		if !ok {
			t.Errorf("delivery to %s failed", userID)
		}
		if channels[userID].sentCount() != 1 {
			t.Errorf("user %s received %d messages, want 1", userID, channels[userID].sentCount())
		}
	}
}

func TestBroadcastByRole(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)
	channels := connectUsers(reg, map[string]string{"1": "deliver", "2": "deliver", "3": "admin"})

	results := rt.Broadcast("hello", Filter{Role: "deliver"})

	if got, want := sortedKeys(results), []string{"1", "2"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("role broadcast results = %v, want %v", got, want)
	}
	if channels["3"].sentCount() != 0 {
		t.Error("role broadcast leaked to a non-matching user")
	}
}

func TestBroadcastUnionsRoleAndUserIDs(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)
	connectUsers(reg, map[string]string{"1": "deliver", "2": "admin", "3": ""})

	results := rt.Broadcast("hello", Filter{Role: "deliver", UserIDs: []string{"2"}})

	if got, want := sortedKeys(results), []string{"1", "2"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("union broadcast results = %v, want %v", got, want)
	}
}

func TestBroadcastExcludes(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)
	channels := connectUsers(reg, map[string]string{"1": "", "2": ""})

	results := rt.Broadcast("hello", Filter{ExcludeIDs: []string{"2"}})

	if _, present := results["2"]; present {
		t.Error("excluded user appears in broadcast results")
	}
	if channels["2"].sentCount() != 0 {
		t.Error("excluded user received the message")
	}
	if !results["1"] {
		t.Error("non-excluded user was not delivered to")
	}
}

func TestBroadcastReportsDisconnectedTargets(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)
	connectUsers(reg, map[string]string{"1": ""})

	results := rt.Broadcast("hello", Filter{UserIDs: []string{"1", "99"}})

	if ok, present := results["99"]; !present || ok {
		t.Errorf("results[99] = (%v, %v), want (false, present)", ok, present)
	}
	if !results["1"] {
		t.Error("delivery to connected user failed")
	}
}

// A failing target is evicted mid-broadcast without disturbing the others,
// and the next broadcast simply no longer sees it.
func TestBroadcastFailureIsIndependent(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)

	good := &fakeChannel{}
	bad := &fakeChannel{failSend: true}
	reg.Connect(good, "1", nil)
	reg.Connect(bad, "42", registry.Metadata{"role": "deliver"})

	results := rt.Broadcast("hello", Filter{})
	if results["42"] {
		t.Error("delivery over a failing channel reported success")
	}
	if !results["1"] {
		t.Error("healthy delivery was dragged down by a failing peer")
	}
	if reg.IsConnected("42") {
		t.Error("failing target survived the broadcast")
	}

	again := rt.Broadcast("hello", Filter{})
	if _, present := again["42"]; present {
		t.Error("evicted user still targeted by later broadcasts")
	}
	if good.sentCount() != 2 {
		t.Errorf("healthy channel received %d messages, want 2", good.sentCount())
	}
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)

	if results := rt.Broadcast("hello", Filter{}); len(results) != 0 {
		t.Errorf("broadcast on empty registry returned %v, want empty", results)
	}
}
