package index

import "github.com/aukilabs/go-tooling/pkg/errors"

// Type identifies an index backend. Only TypeOctree has an implementation,
// the other values are named extension points and fail at Initialize.
type Type string

const (
	TypeOctree   Type = "octree"
	TypeKDTree   Type = "kdtree"
	TypeRTree    Type = "rtree"
	TypeGrid     Type = "grid"
	TypeBVH      Type = "bvh"
	TypeAdaptive Type = "adaptive"
)

// Config tunes an index. MaxObjects is the number of objects a leaf holds
// before it subdivides, MaxDepth and MinSize bound how deep subdivision goes.
type Config struct {
	Type       Type
	MaxDepth   int
	MaxObjects int
	MinSize    float64

	Optimization OptimizationConfig
	Queries      QueryConfig
}

// OptimizationConfig lists optimization strategies. Only Balancing (pruning
// empty subtrees via Optimize) has runtime behavior, the other toggles are
// recorded for forward compatibility.
type OptimizationConfig struct {
	Balancing   bool
	Compression bool
	Caching     bool
	Lazy        bool
	Parallel    bool
}

// QueryConfig toggles optional query behaviors.
type QueryConfig struct {
	FrustumCulling     bool
	LevelOfDetail      bool
	ApproximateQueries bool
	BatchQueries       bool
}

func DefaultConfig() Config {
	return Config{
		Type:       TypeOctree,
		MaxDepth:   8,
		MaxObjects: 8,
		MinSize:    1,
		Optimization: OptimizationConfig{
			Balancing: true,
		},
		Queries: QueryConfig{
			FrustumCulling: true,
		},
	}
}

func (c Config) validate() error {
	switch c.Type {
	case TypeOctree:

	case TypeKDTree, TypeRTree, TypeGrid, TypeBVH, TypeAdaptive:
		return errors.New("index type has no implemented backend").
			WithType(ErrTypeUnsupportedIndexType).
			WithTag("index_type", string(c.Type))

	default:
		return errors.New("unknown index type").
			WithType(ErrTypeUnsupportedIndexType).
			WithTag("index_type", string(c.Type))
	}

	if c.MaxDepth < 1 {
		return errors.New("max depth must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_depth", c.MaxDepth)
	}
	if c.MaxObjects < 0 {
		return errors.New("max objects cannot be negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_objects", c.MaxObjects)
	}
	if c.MinSize <= 0 {
		return errors.New("min size must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_size", c.MinSize)
	}
	return nil
}
