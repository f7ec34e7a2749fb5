package websocket

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/raidolabs/raido/featureflag"
	"github.com/raidolabs/raido/index"
	"github.com/raidolabs/raido/models"
	"golang.org/x/net/websocket"
)

// HeaderClientID carries a caller-chosen client identifier used to correlate
// logs and metrics.
const HeaderClientID = "X-Raido-Client-Id"

// RealtimeHandler serves one client connection against the shared spatial
// index.
//
// The index does no internal locking, so every handler sharing it must also
// share IndexMutex. All mutations and queries run under it.
type RealtimeHandler struct {
	// The shared spatial index.
	Index *index.SpatialIndex

	// The mutex serializing all access to Index across connections.
	IndexMutex *sync.Mutex

	FeatureFlags featureflag.FeatureFlag

	conn     *websocket.Conn
	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = models.NewObjectID()
	}
}

func (h *RealtimeHandler) ClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) HandleMsg(ctx context.Context, respond ResponseSender, msg Msg) error {
	switch msg.Type {
	case MsgTypePing:
		respond.Send(Response{
			Type:      MsgTypePingResponse,
			RequestID: msg.RequestID,
		})
		return nil

	case MsgTypeObjectAdd:
		return h.handleObjectAdd(respond, msg)

	case MsgTypeObjectRemove:
		return h.handleObjectRemove(respond, msg)

	case MsgTypeObjectUpdate:
		return h.handleObjectUpdate(respond, msg)

	case MsgTypeQueryBox:
		return h.handleQueryBox(respond, msg)

	case MsgTypeQuerySphere:
		return h.handleQuerySphere(respond, msg)

	case MsgTypeQueryFrustum:
		return h.handleQueryFrustum(respond, msg)

	case MsgTypeRaycast:
		return h.handleRaycast(respond, msg)

	case MsgTypeNearest:
		return h.handleNearest(respond, msg)

	case MsgTypeKNearest:
		return h.handleKNearest(respond, msg)

	case MsgTypeStats:
		return h.handleStats(respond, msg)

	case MsgTypeOptimize:
		return h.handleOptimize(respond, msg)

	case MsgTypeClear:
		return h.handleClear(respond, msg)

	default:
		h.sendError(respond, msg.RequestID, errors.New("message type is not supported").
			WithType(ErrTypeUnknownMsg).
			WithTag("msg_type", msg.Type))
		return nil
	}
}

func (h *RealtimeHandler) HandleDisconnect(err error) {
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) handleObjectAdd(respond ResponseSender, msg Msg) error {
	var req ObjectAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if req.Object != nil && req.Object.ID == "" {
		req.Object.ID = models.NewObjectID()
	}

	h.IndexMutex.Lock()
	err := h.Index.Insert(req.Object)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(ObjectAddResponse{
		Type:      MsgTypeObjectAddResponse,
		RequestID: req.RequestID,
		ObjectID:  req.Object.ID,
	})
	return nil
}

func (h *RealtimeHandler) handleObjectRemove(respond ResponseSender, msg Msg) error {
	var req ObjectRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	removed, err := h.Index.Remove(req.ObjectID)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(ObjectRemoveResponse{
		Type:      MsgTypeObjectRemoveResponse,
		RequestID: req.RequestID,
		Removed:   removed,
	})
	return nil
}

func (h *RealtimeHandler) handleObjectUpdate(respond ResponseSender, msg Msg) error {
	var req ObjectUpdateRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	err := h.Index.Update(req.Object)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(Response{
		Type:      MsgTypeObjectUpdateResponse,
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) handleQueryBox(respond ResponseSender, msg Msg) error {
	var req QueryBoxRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	res, err := h.Index.QueryBoundingBox(req.Bounds)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(QueryResponse{
		Type:      MsgTypeQueryBoxResponse,
		RequestID: req.RequestID,
		Result:    h.filterResult(res),
	})
	return nil
}

func (h *RealtimeHandler) handleQuerySphere(respond ResponseSender, msg Msg) error {
	var req QuerySphereRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	res, err := h.Index.QuerySphere(req.Sphere)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(QueryResponse{
		Type:      MsgTypeQuerySphereResponse,
		RequestID: req.RequestID,
		Result:    h.filterResult(res),
	})
	return nil
}

func (h *RealtimeHandler) handleQueryFrustum(respond ResponseSender, msg Msg) error {
	var req QueryFrustumRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	res, err := h.Index.QueryFrustum(req.Frustum)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(QueryResponse{
		Type:      MsgTypeQueryFrustumResponse,
		RequestID: req.RequestID,
		Result:    h.filterResult(res),
	})
	return nil
}

func (h *RealtimeHandler) handleRaycast(respond ResponseSender, msg Msg) error {
	var req RaycastRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	res, err := h.Index.Raycast(req.Ray)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(RaycastResponse{
		Type:      MsgTypeRaycastResponse,
		RequestID: req.RequestID,
		Result:    res,
	})
	return nil
}

func (h *RealtimeHandler) handleNearest(respond ResponseSender, msg Msg) error {
	var req NearestRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	o, err := h.Index.FindNearestNeighbor(req.Point)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(NearestResponse{
		Type:      MsgTypeNearestResponse,
		RequestID: req.RequestID,
		Object:    o,
	})
	return nil
}

func (h *RealtimeHandler) handleKNearest(respond ResponseSender, msg Msg) error {
	var req KNearestRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	objects, err := h.Index.FindKNearestNeighbors(req.Point, req.K)
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(KNearestResponse{
		Type:      MsgTypeKNearestResponse,
		RequestID: req.RequestID,
		Objects:   objects,
	})
	return nil
}

func (h *RealtimeHandler) handleStats(respond ResponseSender, msg Msg) error {
	var req Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	disabled := false
	h.FeatureFlags.IfSet(featureflag.FlagDisableStats, func() {
		disabled = true
	})
	if disabled {
		h.sendError(respond, req.RequestID, errors.New("stats are disabled").
			WithType(ErrTypeUnknownMsg))
		return nil
	}

	h.IndexMutex.Lock()
	stats, err := h.Index.Statistics()
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(StatsResponse{
		Type:      MsgTypeStatsResponse,
		RequestID: req.RequestID,
		Stats:     stats,
	})
	return nil
}

func (h *RealtimeHandler) handleOptimize(respond ResponseSender, msg Msg) error {
	var req Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	err := h.Index.Optimize()
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(Response{
		Type:      MsgTypeOptimizeResponse,
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) handleClear(respond ResponseSender, msg Msg) error {
	var req Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.IndexMutex.Lock()
	err := h.Index.Clear()
	h.IndexMutex.Unlock()

	if err != nil {
		h.sendError(respond, req.RequestID, err)
		return nil
	}

	respond.Send(Response{
		Type:      MsgTypeClearResponse,
		RequestID: req.RequestID,
	})
	return nil
}

// filterResult applies the deployment's feature flags to a query result
// before it goes on the wire.
func (h *RealtimeHandler) filterResult(res *index.QueryResult) *index.QueryResult {
	h.FeatureFlags.IfSet(featureflag.FlagQueryResultDedup, func() {
		seen := make(map[string]struct{}, len(res.Objects))
		deduped := res.Objects[:0]
		for _, o := range res.Objects {
			if _, ok := seen[o.ID]; ok {
				continue
			}
			seen[o.ID] = struct{}{}
			deduped = append(deduped, o)
		}
		res.Objects = deduped
	})

	h.FeatureFlags.IfSet(featureflag.FlagQueryResultBoundsOnly, func() {
		stripped := make([]*models.SpatialObject, len(res.Objects))
		for i, o := range res.Objects {
			stripped[i] = &models.SpatialObject{ID: o.ID, Bounds: o.Bounds}
		}
		res.Objects = stripped
	})

	return res
}

func (h *RealtimeHandler) sendError(respond ResponseSender, requestID uint32, err error) {
	respond.Send(ErrorResponse{
		Type:      MsgTypeErrorResponse,
		RequestID: requestID,
		ErrorType: errors.Type(err),
		Error:     err.Error(),
	})
}
