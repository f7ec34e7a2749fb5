package index

// Rough per-record sizes used to estimate the index memory footprint, in
// bytes.
const (
	nodeMemorySize      = 160
	objectMemorySize    = 128
	referenceMemorySize = 16
)

// IndexStatistics is a recursive aggregation over the tree, computed on
// demand.
type IndexStatistics struct {
	// The number of nodes, including internal ones.
	NodeCount int `json:"node_count"`

	// The number of objects in the canonical table. Objects straddling
	// octant boundaries are referenced by several leaves but counted once.
	ObjectCount int `json:"object_count"`

	// The deepest node depth, 0 for a root-only tree.
	MaxDepth int `json:"max_depth"`

	LeafNodes int `json:"leaf_nodes"`

	// Stored references per leaf. Exceeds ObjectCount/LeafNodes when objects
	// are duplicated across boundaries.
	AverageObjectsPerLeaf float64 `json:"average_objects_per_leaf"`

	// Estimated footprint in bytes.
	MemoryUsage int `json:"memory_usage"`
}

func newIndexStatistics(tree treeStatistics, objectCount int) IndexStatistics {
	stats := IndexStatistics{
		NodeCount:   tree.NodeCount,
		ObjectCount: objectCount,
		MaxDepth:    tree.MaxDepth,
		LeafNodes:   tree.LeafNodes,
		MemoryUsage: tree.NodeCount*nodeMemorySize +
			tree.ObjectRefs*referenceMemorySize +
			objectCount*objectMemorySize,
	}
	if tree.LeafNodes > 0 {
		stats.AverageObjectsPerLeaf = float64(tree.ObjectRefs) / float64(tree.LeafNodes)
	}
	return stats
}
