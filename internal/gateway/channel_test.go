package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1vKSfvhNz/farm-backend/internal/registry"
)

// startEchoPeer runs a WebSocket server that decodes inbound JSON frames
// onto messages and reports the close frame it receives on closes.
func startEchoPeer(t *testing.T, messages chan<- map[string]any, closes chan<- *websocket.CloseError) *httptest.Server {
	t.Helper()

	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					closes <- closeErr
				}
				return
			}
			messages <- msg
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialChannel(t *testing.T, srv *httptest.Server) *wsChannel {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	return newChannel(conn, time.Second)
}

func TestChannelSendJSON(t *testing.T) {
	messages := make(chan map[string]any, 1)
	closes := make(chan *websocket.CloseError, 1)
	srv := startEchoPeer(t, messages, closes)

	ch := dialChannel(t, srv)
	defer ch.Close(registry.ReasonNormal)

	if !ch.Alive() {
		t.Fatal("fresh channel reports not alive")
	}
	if err := ch.SendJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}

	select {
	case msg := <-messages:
		if msg["type"] != "ping" {
			t.Errorf("peer received %v, want type ping", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the frame")
	}
}

func TestChannelCloseDeliversReason(t *testing.T) {
	messages := make(chan map[string]any, 1)
	closes := make(chan *websocket.CloseError, 1)
	srv := startEchoPeer(t, messages, closes)

	ch := dialChannel(t, srv)

	if err := ch.Close(registry.ReasonSuperseded); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if ch.Alive() {
		t.Error("closed channel reports alive")
	}

	select {
	case closeErr := <-closes:
		if closeErr.Code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseNormalClosure)
		}
		if closeErr.Text != "connected from another device" {
			t.Errorf("close text = %q, want %q", closeErr.Text, "connected from another device")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the close frame")
	}

	// Further operations are rejected or ignored, never a panic.
	if err := ch.SendJSON(map[string]any{"type": "ping"}); err == nil {
		t.Error("SendJSON on a closed channel returned nil error")
	}
	if err := ch.Close(registry.ReasonNormal); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}
