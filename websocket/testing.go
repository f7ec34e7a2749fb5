package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const testReceiveTimeout = time.Second * 5

// NewTestingEnv creates a testing environment to unit test handlers: a
// websocket server backed by newHandler and two connected clients.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newConn := func() *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "raido-test")
		config.Header.Set(HeaderClientID, uuid.NewString())

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		return conn
	}

	clientA := newConn()
	clientB := newConn()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

// SendMsg encodes v and sends it on conn.
func SendMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	data, err := encode(v)
	if err != nil {
		t.Fatalf("error encoding message: %s", err)
	}
	if err := websocket.Message.Send(conn, string(data)); err != nil {
		t.Fatalf("error sending message: %s", err)
	}
}

// ReceiveMsg receives the next message on conn and decodes it into v.
func ReceiveMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(testReceiveTimeout))

	var data string
	if err := websocket.Message.Receive(conn, &data); err != nil {
		t.Fatalf("error receiving message: %s", err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("error decoding message: %s", err)
	}
}
