package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// HandlerWithLogs decorates h with connection logs and a periodic summary of
// inbound messages by type. A non-positive summaryInterval disables the
// summary.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[MsgType]int),
	}

	if summaryInterval > 0 {
		go handler.startSummaryWorker(ctx)
	}
	return handler
}

type handlerWithLogs struct {
	Handler

	userAgent string

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[MsgType]int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	h.userAgent = conn.Request().UserAgent()

	logs.WithTag("client_id", h.ClientID()).
		WithTag("user_agent", h.userAgent).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleMsg(ctx context.Context, respond ResponseSender, msg Msg) error {
	err := h.Handler.HandleMsg(ctx, respond, msg)
	if err != nil {
		logs.WithTag("client_id", h.ClientID()).
			WithTag("msg_type", msg.Type).
			Error(err)
		return err
	}

	logs.WithTag("client_id", h.ClientID()).
		WithTag("msg_type", msg.Type).
		Debug("message handled")
	h.incCounter(msg.Type)
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithTag("client_id", h.ClientID())
	if err != nil {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	if h.summaryInterval > 0 {
		h.logSummary()
	}
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType MsgType) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag("client_id", h.ClientID()).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(string(k), v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
