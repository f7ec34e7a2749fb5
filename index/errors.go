package index

// Error types attached to errors returned by the index. Checked with
// errors.IsType.
const (
	// An operation other than Initialize or Dispose was called before the
	// root node exists.
	ErrTypeNotInitialized = "index_not_initialized"

	// The configured index type has no implemented backend.
	ErrTypeUnsupportedIndexType = "unsupported_index_type"

	// The configuration carries out of range limits.
	ErrTypeInvalidConfig = "invalid_index_config"

	// The object is malformed: missing id or invalid bounding box.
	ErrTypeInvalidObject = "invalid_object"

	// The object's bounding box does not intersect the root region.
	ErrTypeOutOfBounds = "object_out_of_bounds"

	// The query shape is malformed, e.g. an inverted box, a negative radius,
	// a frustum without planes or a ray with a zero direction.
	ErrTypeInvalidQuery = "invalid_query"
)
