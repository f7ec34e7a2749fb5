package websocket

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	msgTypeLabel        = "msg_type"
	errTypeLabel        = "error_type"
	publicEndpointLabel = "public_endpoint"
)

var (
	wsConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of connected clients.",
	}, []string{
		publicEndpointLabel,
	})

	wsReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_msgs",
		Help: "The number of messages received from WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
	})

	wsHandleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_handle_errors",
		Help: "The errors that occurred while handling a WebSocket message.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
		errTypeLabel,
	})
)

// HandlerWithMetrics decorates h with prometheus counters for connections,
// inbound messages and handling errors.
func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	publicEndpoint string
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	wsConnectedClients.With(prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
	}).Inc()
}

func (h *handlerWithMetrics) HandleMsg(ctx context.Context, respond ResponseSender, msg Msg) error {
	wsReceivedMsgs.With(prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
		msgTypeLabel:        string(msg.Type),
	}).Inc()

	err := h.Handler.HandleMsg(ctx, respond, msg)
	if err != nil {
		wsHandleErrors.With(prometheus.Labels{
			publicEndpointLabel: h.publicEndpoint,
			msgTypeLabel:        string(msg.Type),
			errTypeLabel:        errors.Type(err),
		}).Inc()
	}
	return err
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	wsConnectedClients.With(prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
	}).Dec()
}
