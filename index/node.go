package index

import (
	"github.com/raidolabs/raido/models"
	"github.com/raidolabs/raido/spatial"
)

// node is the contract every backend variant implements. Operations fan out
// recursively to children. The octree is the only implementation, the other
// backend types fail at Initialize.
type node interface {
	// Records the object in the subtree. A node whose region does not
	// intersect the object's box ignores it.
	insert(o *models.SpatialObject)

	// Purges every reference to the id from the subtree and reports whether
	// at least one was found.
	remove(id string) bool

	// Range queries. The whole subtree is pruned when the node region fails
	// the shape predicate. Results are accumulated into acc and are not
	// deduplicated: an object straddling a partition boundary may be
	// referenced by several leaves and returned once per leaf.
	queryBox(box spatial.BoundingBox, acc *queryAccumulator)
	querySphere(sphere spatial.Sphere, acc *queryAccumulator)
	queryFrustum(frustum spatial.Frustum, acc *queryAccumulator)

	// Keeps the globally closest box hit seen across the traversal.
	raycast(ray spatial.Ray, best *rayAccumulator)

	// Appends every distinct object reachable from the subtree with its
	// centroid distance to point. Nearest neighbor selection collects then
	// sorts, at O(objects in subtree) cost.
	collect(point spatial.Vector3, acc *neighborAccumulator)

	// Drops children whose subtree holds no object.
	optimize()

	// Empties the subtree's stored objects, keeping the structure.
	clear()

	// Folds the subtree into stats.
	statistics(stats *treeStatistics)
}

// queryAccumulator gathers range query results with traversal counters.
// NodesVisited counts every node examined including pruned ones,
// ObjectsChecked every locally stored object tested regardless of outcome.
type queryAccumulator struct {
	Objects        []*models.SpatialObject
	NodesVisited   int
	ObjectsChecked int
}

type rayAccumulator struct {
	Object   *models.SpatialObject
	Distance float64
	Hit      bool

	NodesVisited   int
	ObjectsChecked int
}

type neighbor struct {
	Object   *models.SpatialObject
	Distance float64
}

// neighborAccumulator deduplicates by id while collecting: an object
// referenced by several leaves is a single nearest neighbor candidate.
type neighborAccumulator struct {
	Candidates []neighbor
	seen       map[string]struct{}
}

func newNeighborAccumulator() *neighborAccumulator {
	return &neighborAccumulator{
		seen: make(map[string]struct{}),
	}
}

func (a *neighborAccumulator) add(o *models.SpatialObject, distance float64) {
	if _, ok := a.seen[o.ID]; ok {
		return
	}
	a.seen[o.ID] = struct{}{}
	a.Candidates = append(a.Candidates, neighbor{Object: o, Distance: distance})
}

// treeStatistics is the raw recursive fold. ObjectRefs counts stored
// references, which exceeds the canonical object count when objects straddle
// partition boundaries.
type treeStatistics struct {
	NodeCount  int
	LeafNodes  int
	ObjectRefs int
	MaxDepth   int
}
