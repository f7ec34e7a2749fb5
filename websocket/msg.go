package websocket

import (
	"github.com/raidolabs/raido/index"
	"github.com/raidolabs/raido/models"
	"github.com/raidolabs/raido/spatial"
	"github.com/segmentio/encoding/json"
)

type MsgType string

const (
	MsgTypePing         MsgType = "ping"
	MsgTypePingResponse MsgType = "ping_response"

	MsgTypeObjectAdd            MsgType = "object_add"
	MsgTypeObjectAddResponse    MsgType = "object_add_response"
	MsgTypeObjectRemove         MsgType = "object_remove"
	MsgTypeObjectRemoveResponse MsgType = "object_remove_response"
	MsgTypeObjectUpdate         MsgType = "object_update"
	MsgTypeObjectUpdateResponse MsgType = "object_update_response"

	MsgTypeQueryBox             MsgType = "query_box"
	MsgTypeQueryBoxResponse     MsgType = "query_box_response"
	MsgTypeQuerySphere          MsgType = "query_sphere"
	MsgTypeQuerySphereResponse  MsgType = "query_sphere_response"
	MsgTypeQueryFrustum         MsgType = "query_frustum"
	MsgTypeQueryFrustumResponse MsgType = "query_frustum_response"

	MsgTypeRaycast         MsgType = "raycast"
	MsgTypeRaycastResponse MsgType = "raycast_response"

	MsgTypeNearest          MsgType = "nearest"
	MsgTypeNearestResponse  MsgType = "nearest_response"
	MsgTypeKNearest         MsgType = "k_nearest"
	MsgTypeKNearestResponse MsgType = "k_nearest_response"

	MsgTypeStats            MsgType = "stats"
	MsgTypeStatsResponse    MsgType = "stats_response"
	MsgTypeOptimize         MsgType = "optimize"
	MsgTypeOptimizeResponse MsgType = "optimize_response"
	MsgTypeClear            MsgType = "clear"
	MsgTypeClearResponse    MsgType = "clear_response"

	MsgTypeErrorResponse MsgType = "error_response"
)

// Msg is a received wire message. Only the envelope is decoded up front, the
// full body is decoded on demand with DataTo.
type Msg struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`

	data []byte
}

func MsgFromBytes(data []byte) (Msg, error) {
	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, err
	}
	msg.data = data
	return msg, nil
}

// DataTo decodes the full message body into v.
func (m Msg) DataTo(v any) error {
	return json.Unmarshal(m.data, v)
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

type Request struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
}

type Response struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
}

type ErrorResponse struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
	ErrorType string  `json:"error_type"`
	Error     string  `json:"error,omitempty"`
}

type ObjectAddRequest struct {
	Type      MsgType               `json:"type"`
	RequestID uint32                `json:"request_id"`
	Object    *models.SpatialObject `json:"object"`
}

type ObjectAddResponse struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
	ObjectID  string  `json:"object_id"`
}

type ObjectRemoveRequest struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
	ObjectID  string  `json:"object_id"`
}

type ObjectRemoveResponse struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
	Removed   bool    `json:"removed"`
}

type ObjectUpdateRequest struct {
	Type      MsgType               `json:"type"`
	RequestID uint32                `json:"request_id"`
	Object    *models.SpatialObject `json:"object"`
}

type QueryBoxRequest struct {
	Type      MsgType             `json:"type"`
	RequestID uint32              `json:"request_id"`
	Bounds    spatial.BoundingBox `json:"bounds"`
}

type QuerySphereRequest struct {
	Type      MsgType        `json:"type"`
	RequestID uint32         `json:"request_id"`
	Sphere    spatial.Sphere `json:"sphere"`
}

type QueryFrustumRequest struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id"`
	Frustum   spatial.Frustum `json:"frustum"`
}

type QueryResponse struct {
	Type      MsgType            `json:"type"`
	RequestID uint32             `json:"request_id"`
	Result    *index.QueryResult `json:"result"`
}

type RaycastRequest struct {
	Type      MsgType     `json:"type"`
	RequestID uint32      `json:"request_id"`
	Ray       spatial.Ray `json:"ray"`
}

type RaycastResponse struct {
	Type      MsgType              `json:"type"`
	RequestID uint32               `json:"request_id"`
	Result    *index.RaycastResult `json:"result"`
}

type NearestRequest struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id"`
	Point     spatial.Vector3 `json:"point"`
}

type NearestResponse struct {
	Type      MsgType               `json:"type"`
	RequestID uint32                `json:"request_id"`
	Object    *models.SpatialObject `json:"object,omitempty"`
}

type KNearestRequest struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id"`
	Point     spatial.Vector3 `json:"point"`
	K         int             `json:"k"`
}

type KNearestResponse struct {
	Type      MsgType                 `json:"type"`
	RequestID uint32                  `json:"request_id"`
	Objects   []*models.SpatialObject `json:"objects"`
}

type StatsResponse struct {
	Type      MsgType               `json:"type"`
	RequestID uint32                `json:"request_id"`
	Stats     index.IndexStatistics `json:"stats"`
}
