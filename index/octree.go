package index

import (
	"github.com/raidolabs/raido/models"
	"github.com/raidolabs/raido/spatial"
)

const octantCount = 8

var _ node = (*octreeNode)(nil)

// octreeNode partitions its region into 8 equal octants, split at the
// geometric center, once its local object count exceeds the configured limit.
//
// Nodes store object ids, the canonical records live in the shared store. An
// object straddling an octant boundary is referenced by every intersecting
// child.
type octreeNode struct {
	bounds spatial.BoundingBox
	depth  int
	config Config
	store  *models.ObjectStore

	objectIDs []string
	children  []*octreeNode
}

func newOctreeNode(bounds spatial.BoundingBox, depth int, config Config, store *models.ObjectStore) *octreeNode {
	return &octreeNode{
		bounds: bounds,
		depth:  depth,
		config: config,
		store:  store,
	}
}

func (n *octreeNode) insert(o *models.SpatialObject) {
	if !spatial.IntersectsAABB(n.bounds, o.Bounds) {
		return
	}

	if n.children != nil {
		for _, child := range n.children {
			child.insert(o)
		}
		return
	}

	n.objectIDs = append(n.objectIDs, o.ID)

	if len(n.objectIDs) > n.config.MaxObjects &&
		n.depth < n.config.MaxDepth &&
		n.bounds.MaxExtent() > n.config.MinSize {
		n.subdivide()
	}
}

// subdivide splits the region at its center into 8 children and pushes every
// locally held object down into whichever children intersect it.
func (n *octreeNode) subdivide() {
	min := n.bounds.Min
	max := n.bounds.Max
	center := n.bounds.Center()

	corners := [octantCount][2]spatial.Vector3{
		{{X: min.X, Y: min.Y, Z: min.Z}, {X: center.X, Y: center.Y, Z: center.Z}},
		{{X: center.X, Y: min.Y, Z: min.Z}, {X: max.X, Y: center.Y, Z: center.Z}},
		{{X: min.X, Y: center.Y, Z: min.Z}, {X: center.X, Y: max.Y, Z: center.Z}},
		{{X: center.X, Y: center.Y, Z: min.Z}, {X: max.X, Y: max.Y, Z: center.Z}},
		{{X: min.X, Y: min.Y, Z: center.Z}, {X: center.X, Y: center.Y, Z: max.Z}},
		{{X: center.X, Y: min.Y, Z: center.Z}, {X: max.X, Y: center.Y, Z: max.Z}},
		{{X: min.X, Y: center.Y, Z: center.Z}, {X: center.X, Y: max.Y, Z: max.Z}},
		{{X: center.X, Y: center.Y, Z: center.Z}, {X: max.X, Y: max.Y, Z: max.Z}},
	}

	n.children = make([]*octreeNode, octantCount)
	for i, c := range corners {
		n.children[i] = newOctreeNode(spatial.NewBoundingBox(c[0], c[1]), n.depth+1, n.config, n.store)
	}

	ids := n.objectIDs
	n.objectIDs = nil

	for _, id := range ids {
		o, ok := n.store.Get(id)
		if !ok {
			continue
		}
		for _, child := range n.children {
			child.insert(o)
		}
	}
}

// remove purges every reference to id from the subtree. The subtree is pruned
// by the object's box when the canonical record is still available.
func (n *octreeNode) remove(id string) bool {
	if o, ok := n.store.Get(id); ok && !spatial.IntersectsAABB(n.bounds, o.Bounds) {
		return false
	}

	var found bool

	for i := 0; i < len(n.objectIDs); {
		if n.objectIDs[i] == id {
			n.objectIDs = append(n.objectIDs[:i], n.objectIDs[i+1:]...)
			found = true
			continue
		}
		i++
	}

	for _, child := range n.children {
		if child.remove(id) {
			found = true
		}
	}
	return found
}

func (n *octreeNode) queryBox(box spatial.BoundingBox, acc *queryAccumulator) {
	acc.NodesVisited++
	if !spatial.IntersectsAABB(n.bounds, box) {
		return
	}

	for _, id := range n.objectIDs {
		acc.ObjectsChecked++
		o, ok := n.store.Get(id)
		if !ok {
			continue
		}
		if spatial.IntersectsAABB(o.Bounds, box) {
			acc.Objects = append(acc.Objects, o)
		}
	}

	for _, child := range n.children {
		child.queryBox(box, acc)
	}
}

func (n *octreeNode) querySphere(sphere spatial.Sphere, acc *queryAccumulator) {
	acc.NodesVisited++
	if !spatial.IntersectsSphere(n.bounds, sphere) {
		return
	}

	for _, id := range n.objectIDs {
		acc.ObjectsChecked++
		o, ok := n.store.Get(id)
		if !ok {
			continue
		}
		if spatial.IntersectsSphere(o.Bounds, sphere) {
			acc.Objects = append(acc.Objects, o)
		}
	}

	for _, child := range n.children {
		child.querySphere(sphere, acc)
	}
}

func (n *octreeNode) queryFrustum(frustum spatial.Frustum, acc *queryAccumulator) {
	acc.NodesVisited++
	if !spatial.IntersectsFrustum(n.bounds, frustum) {
		return
	}

	for _, id := range n.objectIDs {
		acc.ObjectsChecked++
		o, ok := n.store.Get(id)
		if !ok {
			continue
		}
		if spatial.IntersectsFrustum(o.Bounds, frustum) {
			acc.Objects = append(acc.Objects, o)
		}
	}

	for _, child := range n.children {
		child.queryFrustum(frustum, acc)
	}
}

func (n *octreeNode) raycast(ray spatial.Ray, best *rayAccumulator) {
	best.NodesVisited++
	if !spatial.IntersectRayAABB(ray, n.bounds).Hit {
		return
	}

	for _, id := range n.objectIDs {
		best.ObjectsChecked++
		o, ok := n.store.Get(id)
		if !ok {
			continue
		}

		hit := spatial.IntersectRayAABB(ray, o.Bounds)
		if !hit.Hit {
			continue
		}
		if !best.Hit || hit.Distance < best.Distance {
			best.Hit = true
			best.Object = o
			best.Distance = hit.Distance
		}
	}

	for _, child := range n.children {
		child.raycast(ray, best)
	}
}

func (n *octreeNode) collect(point spatial.Vector3, acc *neighborAccumulator) {
	for _, id := range n.objectIDs {
		o, ok := n.store.Get(id)
		if !ok {
			continue
		}
		acc.add(o, spatial.Distance(point, o.Center()))
	}

	for _, child := range n.children {
		child.collect(point, acc)
	}
}

// optimize drops children whose subtree holds no object. A node whose every
// child is dropped becomes a leaf again.
func (n *octreeNode) optimize() {
	if n.children == nil {
		return
	}

	kept := n.children[:0]
	for _, child := range n.children {
		if child.subtreeRefs() == 0 {
			continue
		}
		child.optimize()
		kept = append(kept, child)
	}

	if len(kept) == 0 {
		n.children = nil
		return
	}
	n.children = kept
}

func (n *octreeNode) subtreeRefs() int {
	refs := len(n.objectIDs)
	for _, child := range n.children {
		refs += child.subtreeRefs()
	}
	return refs
}

func (n *octreeNode) clear() {
	n.objectIDs = nil
	for _, child := range n.children {
		child.clear()
	}
}

func (n *octreeNode) statistics(stats *treeStatistics) {
	stats.NodeCount++
	stats.ObjectRefs += len(n.objectIDs)
	if n.depth > stats.MaxDepth {
		stats.MaxDepth = n.depth
	}

	if n.children == nil {
		stats.LeafNodes++
		return
	}
	for _, child := range n.children {
		child.statistics(stats)
	}
}
