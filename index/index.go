// Package index implements a spatial index for 3D objects: axis-aligned
// bounding volumes tagged with opaque payloads, answering containment, range,
// nearest neighbor and ray intersection queries.
//
// The index is single writer. It does no internal locking and callers sharing
// one instance across goroutines must serialize all access externally.
package index

import (
	"sort"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/raidolabs/raido/models"
	"github.com/raidolabs/raido/spatial"
)

// QueryResult carries the objects matched by a range query along with
// traversal cost counters for profiling.
//
// Objects are not deduplicated by id: an object straddling octant boundaries
// is referenced by several leaves and a query spanning them returns it once
// per leaf.
type QueryResult struct {
	Objects        []*models.SpatialObject `json:"objects"`
	QueryTime      time.Duration           `json:"query_time"`
	NodesVisited   int                     `json:"nodes_visited"`
	ObjectsChecked int                     `json:"objects_checked"`
	Approximation  bool                    `json:"approximation"`
}

// RaycastResult is the closest box hit along a ray. Distance is the
// parametric entry point in the ray's own parametrization.
type RaycastResult struct {
	Hit      bool                  `json:"hit"`
	Object   *models.SpatialObject `json:"object,omitempty"`
	Distance float64               `json:"distance,omitempty"`
}

// SpatialIndex owns the root node and the canonical object table. It is
// constructed unready and must be initialized with a root bounding box before
// use.
type SpatialIndex struct {
	config Config
	store  *models.ObjectStore
	root   *octreeNode
}

func New(config Config) *SpatialIndex {
	return &SpatialIndex{
		config: config,
		store:  models.NewObjectStore(),
	}
}

// Initialize validates the configuration, creates the root node covering
// rootBounds and transitions the index to ready. Configurations naming a
// backend other than the octree fail here, not at first query.
func (idx *SpatialIndex) Initialize(rootBounds spatial.BoundingBox) error {
	if err := idx.config.validate(); err != nil {
		return err
	}
	if !rootBounds.Valid() {
		return errors.New("root bounding box is inverted").
			WithType(ErrTypeInvalidConfig)
	}

	idx.root = newOctreeNode(rootBounds, 0, idx.config, idx.store)
	return nil
}

func (idx *SpatialIndex) Initialized() bool {
	return idx.root != nil
}

// Insert records the object in the canonical table and in the tree.
// Re-inserting an id removes the prior entry first. Objects whose box lies
// entirely outside the root region are rejected rather than silently becoming
// unqueryable.
func (idx *SpatialIndex) Insert(o *models.SpatialObject) error {
	if err := idx.ready(); err != nil {
		return err
	}
	if o == nil || o.ID == "" {
		return errors.New("object has no id").
			WithType(ErrTypeInvalidObject)
	}
	if !o.Bounds.Valid() {
		return errors.New("object bounding box is inverted").
			WithType(ErrTypeInvalidObject).
			WithTag("object_id", o.ID)
	}
	if !spatial.IntersectsAABB(idx.root.bounds, o.Bounds) {
		return errors.New("object bounding box is outside the root region").
			WithType(ErrTypeOutOfBounds).
			WithTag("object_id", o.ID)
	}

	if _, ok := idx.store.Get(o.ID); ok {
		idx.root.remove(o.ID)
		idx.store.Delete(o.ID)
	}

	idx.store.Set(o)
	idx.root.insert(o)

	indexInserts.Inc()
	indexedObjects.Set(float64(idx.store.Len()))
	return nil
}

// Remove purges every reference to id and reports whether the object was
// present. Removing an unknown id is not an error.
func (idx *SpatialIndex) Remove(id string) (bool, error) {
	if err := idx.ready(); err != nil {
		return false, err
	}

	if _, ok := idx.store.Get(id); !ok {
		return false, nil
	}

	idx.root.remove(id)
	idx.store.Delete(id)

	indexRemoves.Inc()
	indexedObjects.Set(float64(idx.store.Len()))
	return true, nil
}

// Update is remove then insert.
func (idx *SpatialIndex) Update(o *models.SpatialObject) error {
	if err := idx.ready(); err != nil {
		return err
	}
	if o == nil || o.ID == "" {
		return errors.New("object has no id").
			WithType(ErrTypeInvalidObject)
	}

	if _, err := idx.Remove(o.ID); err != nil {
		return err
	}
	return idx.Insert(o)
}

// Object resolves an id in the canonical table.
func (idx *SpatialIndex) Object(id string) (*models.SpatialObject, bool) {
	if idx.root == nil {
		return nil, false
	}
	return idx.store.Get(id)
}

func (idx *SpatialIndex) QueryBoundingBox(box spatial.BoundingBox) (*QueryResult, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}
	if !box.Valid() {
		return nil, errors.New("query bounding box is inverted").
			WithType(ErrTypeInvalidQuery)
	}

	start := time.Now()
	defer observeQuery(queryTypeBoundingBox, start)

	var acc queryAccumulator
	idx.root.queryBox(box, &acc)
	return newQueryResult(acc, start, false), nil
}

func (idx *SpatialIndex) QuerySphere(sphere spatial.Sphere) (*QueryResult, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}
	if sphere.Radius < 0 {
		return nil, errors.New("query sphere has a negative radius").
			WithType(ErrTypeInvalidQuery).
			WithTag("radius", sphere.Radius)
	}

	start := time.Now()
	defer observeQuery(queryTypeSphere, start)

	var acc queryAccumulator
	idx.root.querySphere(sphere, &acc)
	return newQueryResult(acc, start, false), nil
}

// QueryFrustum matches objects against the frustum's plane set. The positive
// vertex test is conservative, so results are flagged as an approximation. A
// frustum without planes is rejected: it would prune nothing and match
// everything silently.
func (idx *SpatialIndex) QueryFrustum(frustum spatial.Frustum) (*QueryResult, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}
	if len(frustum.Planes) == 0 {
		return nil, errors.New("query frustum has no planes").
			WithType(ErrTypeInvalidQuery)
	}

	start := time.Now()
	defer observeQuery(queryTypeFrustum, start)

	var acc queryAccumulator
	idx.root.queryFrustum(frustum, &acc)
	return newQueryResult(acc, start, true), nil
}

// Raycast returns the object whose box has the smallest parametric entry
// point along the ray.
func (idx *SpatialIndex) Raycast(ray spatial.Ray) (*RaycastResult, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}
	if ray.Direction.Equal(spatial.Vector3{}) {
		return nil, errors.New("ray has a zero direction").
			WithType(ErrTypeInvalidQuery)
	}

	start := time.Now()
	defer observeQuery(queryTypeRaycast, start)

	var best rayAccumulator
	idx.root.raycast(ray, &best)
	return &RaycastResult{
		Hit:      best.Hit,
		Object:   best.Object,
		Distance: best.Distance,
	}, nil
}

// FindNearestNeighbor returns the object whose bounding box centroid is
// closest to point, or nil for an empty index.
func (idx *SpatialIndex) FindNearestNeighbor(point spatial.Vector3) (*models.SpatialObject, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer observeQuery(queryTypeNearest, start)

	neighbors := idx.nearestNeighbors(point)
	if len(neighbors) == 0 {
		return nil, nil
	}
	return neighbors[0].Object, nil
}

// FindKNearestNeighbors returns the min(k, object count) objects closest to
// point, sorted by non-decreasing centroid distance.
func (idx *SpatialIndex) FindKNearestNeighbors(point spatial.Vector3, k int) ([]*models.SpatialObject, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	start := time.Now()
	defer observeQuery(queryTypeKNearest, start)

	neighbors := idx.nearestNeighbors(point)
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}

	objects := make([]*models.SpatialObject, len(neighbors))
	for i, n := range neighbors {
		objects[i] = n.Object
	}
	return objects, nil
}

// nearestNeighbors collects every object in the tree with its centroid
// distance and sorts the whole set. Brute force: O(n log n) in the object
// count, there is no priority queue pruning.
func (idx *SpatialIndex) nearestNeighbors(point spatial.Vector3) []neighbor {
	acc := newNeighborAccumulator()
	idx.root.collect(point, acc)

	sort.SliceStable(acc.Candidates, func(a, b int) bool {
		return acc.Candidates[a].Distance < acc.Candidates[b].Distance
	})
	return acc.Candidates
}

// Statistics folds the tree into node, object and depth counts with an
// estimated memory footprint.
func (idx *SpatialIndex) Statistics() (IndexStatistics, error) {
	if err := idx.ready(); err != nil {
		return IndexStatistics{}, err
	}

	var tree treeStatistics
	idx.root.statistics(&tree)
	return newIndexStatistics(tree, idx.store.Len()), nil
}

// Optimize drops subtrees that hold no object.
func (idx *SpatialIndex) Optimize() error {
	if err := idx.ready(); err != nil {
		return err
	}

	idx.root.optimize()
	return nil
}

// Clear empties every node and the canonical table. The index stays
// initialized and the tree structure stays in place until Optimize prunes it.
func (idx *SpatialIndex) Clear() error {
	if err := idx.ready(); err != nil {
		return err
	}

	idx.root.clear()
	idx.store.Clear()
	indexedObjects.Set(0)
	return nil
}

// Dispose releases the root and de-initializes the index.
func (idx *SpatialIndex) Dispose() {
	idx.root = nil
	idx.store.Clear()
	indexedObjects.Set(0)
}

func (idx *SpatialIndex) ready() error {
	if idx.root == nil {
		return errors.New("index is not initialized").
			WithType(ErrTypeNotInitialized)
	}
	return nil
}

func newQueryResult(acc queryAccumulator, start time.Time, approximation bool) *QueryResult {
	objects := acc.Objects
	if objects == nil {
		objects = []*models.SpatialObject{}
	}

	return &QueryResult{
		Objects:        objects,
		QueryTime:      time.Since(start),
		NodesVisited:   acc.NodesVisited,
		ObjectsChecked: acc.ObjectsChecked,
		Approximation:  approximation,
	}
}
