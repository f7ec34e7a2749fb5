package index

import (
	"fmt"
	"testing"

	"github.com/raidolabs/raido/models"
	"github.com/raidolabs/raido/spatial"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, config Config, rootBounds spatial.BoundingBox) *SpatialIndex {
	t.Helper()

	idx := New(config)
	require.NoError(t, idx.Initialize(rootBounds))
	return idx
}

func newTestObject(id string, min, max spatial.Vector3) *models.SpatialObject {
	return &models.SpatialObject{
		ID:     id,
		Bounds: spatial.NewBoundingBox(min, max),
	}
}

func cubeAround(id string, center spatial.Vector3, halfExtent float64) *models.SpatialObject {
	offset := spatial.Vector3{X: halfExtent, Y: halfExtent, Z: halfExtent}
	return newTestObject(id, spatial.Sub(center, offset), spatial.Add(center, offset))
}

func distinctIDs(objects []*models.SpatialObject) map[string]int {
	ids := make(map[string]int)
	for _, o := range objects {
		ids[o.ID]++
	}
	return ids
}

func TestOctreeSubdivision(t *testing.T) {
	config := DefaultConfig()
	config.MaxObjects = 4
	config.MaxDepth = 8
	config.MinSize = 1

	root := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 100, Y: 100, Z: 100})
	idx := newTestIndex(t, config, root)

	// 5 clustered objects, one over the leaf limit.
	for i := 0; i < 5; i++ {
		o := cubeAround(fmt.Sprintf("obj-%d", i), spatial.Vector3{X: 10, Y: 10, Z: 10}, 1)
		require.NoError(t, idx.Insert(o))
	}

	t.Run("root subdivides into 8 equal octants", func(t *testing.T) {
		require.Len(t, idx.root.children, 8)
		require.Empty(t, idx.root.objectIDs)

		first := idx.root.children[0].bounds
		require.True(t, first.Min.Equal(spatial.Vector3{X: 0, Y: 0, Z: 0}))
		require.True(t, first.Max.Equal(spatial.Vector3{X: 50, Y: 50, Z: 50}))

		last := idx.root.children[7].bounds
		require.True(t, last.Min.Equal(spatial.Vector3{X: 50, Y: 50, Z: 50}))
		require.True(t, last.Max.Equal(spatial.Vector3{X: 100, Y: 100, Z: 100}))
	})

	t.Run("querying the populated octant returns exactly the 5 objects", func(t *testing.T) {
		res, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 50, Y: 50, Z: 50}))
		require.NoError(t, err)

		ids := distinctIDs(res.Objects)
		require.Len(t, ids, 5)
		for i := 0; i < 5; i++ {
			require.Contains(t, ids, fmt.Sprintf("obj-%d", i))
		}
	})

	t.Run("querying an empty octant returns nothing", func(t *testing.T) {
		res, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 60, Y: 60, Z: 60}, spatial.Vector3{X: 90, Y: 90, Z: 90}))
		require.NoError(t, err)
		require.Empty(t, res.Objects)
	})
}

func TestOctreeSubdivisionLimits(t *testing.T) {
	root := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 8, Y: 8, Z: 8})

	t.Run("max depth stops subdivision", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxObjects = 0
		config.MaxDepth = 1
		config.MinSize = 0.001

		idx := newTestIndex(t, config, root)
		require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 1, Y: 1, Z: 1}, 0.5)))
		require.NoError(t, idx.Insert(cubeAround("b", spatial.Vector3{X: 1, Y: 1, Z: 1}, 0.5)))

		stats, err := idx.Statistics()
		require.NoError(t, err)
		require.Equal(t, 1, stats.MaxDepth)
	})

	t.Run("min size stops subdivision", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxObjects = 0
		config.MaxDepth = 32
		config.MinSize = 8

		idx := newTestIndex(t, config, root)
		require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 1, Y: 1, Z: 1}, 0.5)))

		// root extent equals MinSize, so the leaf never splits
		require.Nil(t, idx.root.children)
	})
}

func TestOctreeBoundaryDuplication(t *testing.T) {
	config := DefaultConfig()
	config.MaxObjects = 0 // force immediate subdivision
	config.MaxDepth = 2
	config.MinSize = 1

	root := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 100, Y: 100, Z: 100})
	idx := newTestIndex(t, config, root)

	// straddles the root center, so every octant references it
	require.NoError(t, idx.Insert(cubeAround("straddler", spatial.Vector3{X: 50, Y: 50, Z: 50}, 2)))

	t.Run("object is visible from distinct octant sub-regions", func(t *testing.T) {
		lower, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 50, Y: 50, Z: 50}))
		require.NoError(t, err)
		require.Contains(t, distinctIDs(lower.Objects), "straddler")

		upper, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 50, Y: 50, Z: 50}, spatial.Vector3{X: 100, Y: 100, Z: 100}))
		require.NoError(t, err)
		require.Contains(t, distinctIDs(upper.Objects), "straddler")
	})

	t.Run("a spanning query returns the id once per referencing leaf", func(t *testing.T) {
		res, err := idx.QueryBoundingBox(root)
		require.NoError(t, err)

		ids := distinctIDs(res.Objects)
		require.Len(t, ids, 1)
		require.GreaterOrEqual(t, ids["straddler"], 2)
	})

	t.Run("remove purges every duplicated reference", func(t *testing.T) {
		removed, err := idx.Remove("straddler")
		require.NoError(t, err)
		require.True(t, removed)

		res, err := idx.QueryBoundingBox(root)
		require.NoError(t, err)
		require.Empty(t, res.Objects)
		require.Equal(t, 0, idx.root.subtreeRefs())
	})
}

func TestOctreeBoundingInvariant(t *testing.T) {
	config := DefaultConfig()
	config.MaxObjects = 2
	config.MaxDepth = 4

	root := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 64, Y: 64, Z: 64})
	idx := newTestIndex(t, config, root)

	centers := []spatial.Vector3{
		{X: 2, Y: 2, Z: 2}, {X: 10, Y: 50, Z: 10}, {X: 60, Y: 60, Z: 60}, {X: 32, Y: 32, Z: 32},
		{X: 5, Y: 40, Z: 60}, {X: 50, Y: 8, Z: 8}, {X: 25, Y: 25, Z: 25}, {X: 63, Y: 1, Z: 63},
	}
	for i, c := range centers {
		require.NoError(t, idx.Insert(cubeAround(fmt.Sprintf("obj-%d", i), c, 1)))
	}
	removed, err := idx.Remove("obj-3")
	require.NoError(t, err)
	require.True(t, removed)

	query := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 30, Y: 64, Z: 64})
	res, err := idx.QueryBoundingBox(query)
	require.NoError(t, err)
	require.NotEmpty(t, res.Objects)

	for _, o := range res.Objects {
		require.True(t, spatial.IntersectsAABB(o.Bounds, query))
	}
}

func TestOctreeOptimize(t *testing.T) {
	config := DefaultConfig()
	config.MaxObjects = 1
	config.MaxDepth = 4

	root := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 16, Y: 16, Z: 16})
	idx := newTestIndex(t, config, root)

	for i := 0; i < 6; i++ {
		c := float64(i)*2 + 1
		require.NoError(t, idx.Insert(cubeAround(fmt.Sprintf("obj-%d", i), spatial.Vector3{X: c, Y: c, Z: c}, 0.5)))
	}

	stats, err := idx.Statistics()
	require.NoError(t, err)
	require.Greater(t, stats.NodeCount, 1)

	t.Run("optimize keeps populated subtrees", func(t *testing.T) {
		require.NoError(t, idx.Optimize())

		res, err := idx.QueryBoundingBox(root)
		require.NoError(t, err)
		require.Len(t, distinctIDs(res.Objects), 6)
	})

	t.Run("clear then optimize shrinks to the root", func(t *testing.T) {
		require.NoError(t, idx.Clear())
		require.NoError(t, idx.Optimize())

		stats, err := idx.Statistics()
		require.NoError(t, err)
		require.Equal(t, 1, stats.NodeCount)
		require.Equal(t, 0, stats.ObjectCount)
		require.Equal(t, 1, stats.LeafNodes)
	})
}

func TestOctreeTraversalCounters(t *testing.T) {
	config := DefaultConfig()
	config.MaxObjects = 1

	root := spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 16, Y: 16, Z: 16})
	idx := newTestIndex(t, config, root)

	require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 2, Y: 2, Z: 2}, 1)))
	require.NoError(t, idx.Insert(cubeAround("b", spatial.Vector3{X: 14, Y: 14, Z: 14}, 1)))

	res, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 4, Y: 4, Z: 4}))
	require.NoError(t, err)

	// the root plus its 8 children are visited, pruned children included
	require.Equal(t, 9, res.NodesVisited)
	require.Equal(t, 1, res.ObjectsChecked)
	require.Len(t, res.Objects, 1)
}
