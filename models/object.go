package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/raidolabs/raido/spatial"
)

// SpatialObject is a bounding volume tagged with an opaque payload. Its
// identity is the ID, unique within an index.
type SpatialObject struct {
	ID       string              `json:"id"`
	Bounds   spatial.BoundingBox `json:"bounds"`
	Payload  any                 `json:"payload,omitempty"`
	Metadata *ObjectMetadata     `json:"metadata,omitempty"`
}

// Center returns the centroid of the object's bounding box. Distance based
// queries measure against it, not against the box surface.
func (o *SpatialObject) Center() spatial.Vector3 {
	return o.Bounds.Center()
}

type ObjectMetadata struct {
	Type         string    `json:"type,omitempty"`
	Priority     int       `json:"priority,omitempty"`
	LastAccessed time.Time `json:"last_accessed,omitempty"`
	Size         int       `json:"size,omitempty"`
}

// NewObjectID returns a unique object id for callers that insert objects
// without providing one.
func NewObjectID() string {
	return uuid.NewString()
}
