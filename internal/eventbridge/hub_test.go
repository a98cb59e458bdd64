package eventbridge

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mediacore/playback/internal/controller"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	resp.Body.Close()
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	return msg
}

func TestHub_RelaysStateChange(t *testing.T) {
	c := controller.New(controller.Config{})

	log := zerolog.Nop()
	hub := NewHub(c, log)
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let registration land before the event fires

	c.StateChange.Emit(controller.StateChange{From: controller.StateIdle, To: controller.StateLoading, Event: controller.EventLoad})

	msg := readMessage(t, conn, 2*time.Second)
	if msg.Type != "stateChange" {
		t.Errorf("got type %q, want stateChange", msg.Type)
	}
}

func TestHub_DropsEventsForDisconnectedClients(t *testing.T) {
	c := controller.New(controller.Config{})
	hub := NewHub(c, zerolog.Nop())
	go hub.Run()
	defer hub.Close()

	// Emitting with zero connected clients must not block or panic.
	c.ErrorChange.Emit(controller.ErrorEvent{Kind: "decode", Message: "boom"})
	time.Sleep(10 * time.Millisecond)
}

func TestHub_ClosePropagatesCloseFrameToClients(t *testing.T) {
	c := controller.New(controller.Config{})
	hub := NewHub(c, zerolog.Nop())
	go hub.Run()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Error("expected the connection to be closed by the hub")
	}
}
