package websocket

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

const sendChanSize = 512

// The error type attached to messages naming an unknown type. Handling
// continues, the client gets an error response.
const ErrTypeUnknownMsg = "unknown_msg_type"

// Handler handles the messages of one client connection.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Returns the connected client id, empty before HandleConnect.
	ClientID() string

	// Handles a given message. Returned errors cause the current client to
	// be disconnected.
	HandleMsg(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(err error)

	// Releases handler resources.
	Close()
}

// ResponseSender queues responses for delivery to the current client.
type ResponseSender interface {
	Send(v any)
}

type responseSender struct {
	mutex  sync.Mutex
	closed bool
	sends  chan any
}

func newResponseSender() *responseSender {
	return &responseSender{
		sends: make(chan any, sendChanSize),
	}
}

func (s *responseSender) Send(v any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}

	select {
	case s.sends <- v:
	default:
		// slow consumer, the response is dropped rather than blocking the
		// handling loop
	}
}

func (s *responseSender) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.sends)
}

// Handle runs the receive/dispatch/send loops for conn until the client
// disconnects, the handler fails or ctx is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.HandleConnect(conn)

	sender := newResponseSender()
	defer sender.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		for v := range sender.sends {
			data, err := encode(v)
			if err != nil {
				continue
			}
			if err := websocket.Message.Send(conn, string(data)); err != nil {
				cancel()
				return
			}
		}
	}()

	err := receiveLoop(ctx, conn, h, sender)
	h.HandleDisconnect(err)

	sender.Close()
	wg.Wait()
}

func receiveLoop(ctx context.Context, conn *websocket.Conn, h Handler, sender ResponseSender) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var data string
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.New("receiving message failed").Wrap(err)
		}

		msg, err := MsgFromBytes([]byte(data))
		if err != nil {
			return errors.New("decoding message failed").Wrap(err)
		}

		if err := h.HandleMsg(ctx, sender, msg); err != nil {
			return errors.New("handling message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}
	}
}
