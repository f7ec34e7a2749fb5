package index

import (
	"fmt"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/raidolabs/raido/spatial"
	"github.com/stretchr/testify/require"
)

var testRootBounds = spatial.NewBoundingBox(spatial.Vector3{X: 0, Y: 0, Z: 0}, spatial.Vector3{X: 100, Y: 100, Z: 100})

func TestIndexLifecycle(t *testing.T) {
	t.Run("operations before initialize fail", func(t *testing.T) {
		idx := New(DefaultConfig())
		require.False(t, idx.Initialized())

		err := idx.Insert(cubeAround("a", spatial.Vector3{X: 5, Y: 5, Z: 5}, 1))
		require.Error(t, err)
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))

		_, err = idx.Remove("a")
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))

		_, err = idx.QueryBoundingBox(testRootBounds)
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))

		_, err = idx.Raycast(spatial.Ray{Direction: spatial.Vector3{X: 1, Y: 0, Z: 0}})
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))

		_, err = idx.FindNearestNeighbor(spatial.Vector3{})
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))

		_, err = idx.Statistics()
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))

		require.Equal(t, ErrTypeNotInitialized, errors.Type(idx.Optimize()))
		require.Equal(t, ErrTypeNotInitialized, errors.Type(idx.Clear()))
	})

	t.Run("initialize makes the index ready", func(t *testing.T) {
		idx := New(DefaultConfig())
		require.NoError(t, idx.Initialize(testRootBounds))
		require.True(t, idx.Initialized())
	})

	t.Run("initialize rejects an inverted root box", func(t *testing.T) {
		idx := New(DefaultConfig())
		err := idx.Initialize(spatial.NewBoundingBox(spatial.Vector3{X: 1, Y: 0, Z: 0}, spatial.Vector3{X: 0, Y: 1, Z: 1}))
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("clear preserves initialization", func(t *testing.T) {
		idx := newTestIndex(t, DefaultConfig(), testRootBounds)
		require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 5, Y: 5, Z: 5}, 1)))
		require.NoError(t, idx.Clear())
		require.True(t, idx.Initialized())

		stats, err := idx.Statistics()
		require.NoError(t, err)
		require.Equal(t, 0, stats.ObjectCount)
	})

	t.Run("dispose de-initializes", func(t *testing.T) {
		idx := newTestIndex(t, DefaultConfig(), testRootBounds)
		idx.Dispose()
		require.False(t, idx.Initialized())

		_, err := idx.Statistics()
		require.Equal(t, ErrTypeNotInitialized, errors.Type(err))
	})
}

func TestIndexUnsupportedTypes(t *testing.T) {
	for _, indexType := range []Type{TypeKDTree, TypeRTree, TypeGrid, TypeBVH, TypeAdaptive} {
		t.Run(string(indexType), func(t *testing.T) {
			config := DefaultConfig()
			config.Type = indexType

			err := New(config).Initialize(testRootBounds)
			require.Error(t, err)
			require.Equal(t, ErrTypeUnsupportedIndexType, errors.Type(err))
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		config := DefaultConfig()
		config.Type = "voxelhash"

		err := New(config).Initialize(testRootBounds)
		require.Equal(t, ErrTypeUnsupportedIndexType, errors.Type(err))
	})
}

func TestIndexConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero max depth", func(c *Config) { c.MaxDepth = 0 }},
		{"negative max objects", func(c *Config) { c.MaxObjects = -1 }},
		{"zero min size", func(c *Config) { c.MinSize = 0 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.modify(&config)

			err := New(config).Initialize(testRootBounds)
			require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
		})
	}
}

func TestIndexInsert(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	t.Run("containment round-trip", func(t *testing.T) {
		o := cubeAround("roundtrip", spatial.Vector3{X: 20, Y: 20, Z: 20}, 2)
		require.NoError(t, idx.Insert(o))

		res, err := idx.QueryBoundingBox(o.Bounds)
		require.NoError(t, err)
		require.Contains(t, distinctIDs(res.Objects), "roundtrip")
	})

	t.Run("missing id is rejected", func(t *testing.T) {
		err := idx.Insert(cubeAround("", spatial.Vector3{X: 5, Y: 5, Z: 5}, 1))
		require.Equal(t, ErrTypeInvalidObject, errors.Type(err))
	})

	t.Run("inverted box is rejected", func(t *testing.T) {
		err := idx.Insert(newTestObject("bad", spatial.Vector3{X: 5, Y: 5, Z: 5}, spatial.Vector3{X: 4, Y: 6, Z: 6}))
		require.Equal(t, ErrTypeInvalidObject, errors.Type(err))
	})

	t.Run("box outside the root region is rejected", func(t *testing.T) {
		err := idx.Insert(cubeAround("outside", spatial.Vector3{X: 500, Y: 500, Z: 500}, 1))
		require.Equal(t, ErrTypeOutOfBounds, errors.Type(err))

		_, ok := idx.Object("outside")
		require.False(t, ok)
	})

	t.Run("box partially overlapping the root region is accepted", func(t *testing.T) {
		require.NoError(t, idx.Insert(cubeAround("edge", spatial.Vector3{X: 100, Y: 50, Z: 50}, 3)))
	})

	t.Run("re-inserting an id replaces the prior entry", func(t *testing.T) {
		require.NoError(t, idx.Insert(cubeAround("moving", spatial.Vector3{X: 10, Y: 10, Z: 10}, 1)))
		require.NoError(t, idx.Insert(cubeAround("moving", spatial.Vector3{X: 90, Y: 90, Z: 90}, 1)))

		old, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 5, Y: 5, Z: 5}, spatial.Vector3{X: 15, Y: 15, Z: 15}))
		require.NoError(t, err)
		require.NotContains(t, distinctIDs(old.Objects), "moving")

		current, err := idx.QueryBoundingBox(spatial.NewBoundingBox(spatial.Vector3{X: 85, Y: 85, Z: 85}, spatial.Vector3{X: 95, Y: 95, Z: 95}))
		require.NoError(t, err)
		require.Contains(t, distinctIDs(current.Objects), "moving")
	})
}

func TestIndexRemove(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 10, Y: 10, Z: 10}, 1)))

	t.Run("removing a present id", func(t *testing.T) {
		removed, err := idx.Remove("a")
		require.NoError(t, err)
		require.True(t, removed)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		removed, err := idx.Remove("a")
		require.NoError(t, err)
		require.False(t, removed)

		removed, err = idx.Remove("never-inserted")
		require.NoError(t, err)
		require.False(t, removed)
	})
}

func TestIndexUpdate(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 10, Y: 10, Z: 10}, 1)))
	require.NoError(t, idx.Update(cubeAround("a", spatial.Vector3{X: 80, Y: 80, Z: 80}, 1)))

	res, err := idx.QuerySphere(spatial.Sphere{Center: spatial.Vector3{X: 80, Y: 80, Z: 80}, Radius: 5})
	require.NoError(t, err)
	require.Contains(t, distinctIDs(res.Objects), "a")

	o, ok := idx.Object("a")
	require.True(t, ok)
	require.True(t, o.Center().Equal(spatial.Vector3{X: 80, Y: 80, Z: 80}))

	t.Run("update on an absent id inserts", func(t *testing.T) {
		require.NoError(t, idx.Update(cubeAround("b", spatial.Vector3{X: 20, Y: 20, Z: 20}, 1)))

		_, ok := idx.Object("b")
		require.True(t, ok)
	})
}

func TestIndexQuerySphere(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	require.NoError(t, idx.Insert(cubeAround("near", spatial.Vector3{X: 10, Y: 10, Z: 10}, 1)))
	require.NoError(t, idx.Insert(cubeAround("far", spatial.Vector3{X: 90, Y: 90, Z: 90}, 1)))

	res, err := idx.QuerySphere(spatial.Sphere{Center: spatial.Vector3{X: 12, Y: 12, Z: 12}, Radius: 5})
	require.NoError(t, err)

	ids := distinctIDs(res.Objects)
	require.Contains(t, ids, "near")
	require.NotContains(t, ids, "far")
	require.False(t, res.Approximation)

	t.Run("negative radius is rejected", func(t *testing.T) {
		_, err := idx.QuerySphere(spatial.Sphere{Center: spatial.Vector3{}, Radius: -1})
		require.Equal(t, ErrTypeInvalidQuery, errors.Type(err))
	})
}

func TestIndexQueryFrustum(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	require.NoError(t, idx.Insert(cubeAround("left", spatial.Vector3{X: 10, Y: 50, Z: 50}, 1)))
	require.NoError(t, idx.Insert(cubeAround("right", spatial.Vector3{X: 90, Y: 50, Z: 50}, 1)))

	// half-space x <= 40
	frustum := spatial.Frustum{Planes: []spatial.Plane{
		{Normal: spatial.Vector3{X: -1, Y: 0, Z: 0}, Distance: 40},
	}}

	res, err := idx.QueryFrustum(frustum)
	require.NoError(t, err)

	ids := distinctIDs(res.Objects)
	require.Contains(t, ids, "left")
	require.NotContains(t, ids, "right")
	require.True(t, res.Approximation)

	t.Run("a frustum without planes is rejected", func(t *testing.T) {
		_, err := idx.QueryFrustum(spatial.Frustum{})
		require.Equal(t, ErrTypeInvalidQuery, errors.Type(err))
	})
}

func TestIndexRaycast(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	require.NoError(t, idx.Insert(cubeAround("close", spatial.Vector3{X: 20, Y: 50, Z: 50}, 2)))
	require.NoError(t, idx.Insert(cubeAround("middle", spatial.Vector3{X: 50, Y: 50, Z: 50}, 2)))
	require.NoError(t, idx.Insert(cubeAround("behind", spatial.Vector3{X: 80, Y: 50, Z: 50}, 2)))
	require.NoError(t, idx.Insert(cubeAround("off-axis", spatial.Vector3{X: 50, Y: 90, Z: 50}, 2)))

	t.Run("returns the closest hit", func(t *testing.T) {
		ray := spatial.Ray{Origin: spatial.Vector3{X: 0, Y: 50, Z: 50}, Direction: spatial.Vector3{X: 1, Y: 0, Z: 0}}

		res, err := idx.Raycast(ray)
		require.NoError(t, err)
		require.True(t, res.Hit)
		require.Equal(t, "close", res.Object.ID)
		require.Equal(t, 18.0, res.Distance)
	})

	t.Run("max distance bounds the cast", func(t *testing.T) {
		ray := spatial.Ray{Origin: spatial.Vector3{X: 0, Y: 50, Z: 50}, Direction: spatial.Vector3{X: 1, Y: 0, Z: 0}, MaxDistance: 10}

		res, err := idx.Raycast(ray)
		require.NoError(t, err)
		require.False(t, res.Hit)
	})

	t.Run("no intersection", func(t *testing.T) {
		ray := spatial.Ray{Origin: spatial.Vector3{X: 0, Y: 1, Z: 1}, Direction: spatial.Vector3{X: 1, Y: 0, Z: 0}}

		res, err := idx.Raycast(ray)
		require.NoError(t, err)
		require.False(t, res.Hit)
		require.Nil(t, res.Object)
	})

	t.Run("zero direction is rejected", func(t *testing.T) {
		_, err := idx.Raycast(spatial.Ray{Origin: spatial.Vector3{X: 1, Y: 1, Z: 1}})
		require.Equal(t, ErrTypeInvalidQuery, errors.Type(err))
	})
}

func TestIndexNearestNeighbors(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)

	for i := 1; i <= 5; i++ {
		c := float64(i) * 10
		require.NoError(t, idx.Insert(cubeAround(fmt.Sprintf("obj-%d", i), spatial.Vector3{X: c, Y: c, Z: c}, 1)))
	}

	t.Run("nearest neighbor by centroid distance", func(t *testing.T) {
		o, err := idx.FindNearestNeighbor(spatial.Vector3{X: 12, Y: 12, Z: 12})
		require.NoError(t, err)
		require.NotNil(t, o)
		require.Equal(t, "obj-1", o.ID)
	})

	t.Run("k nearest are sorted by non-decreasing distance", func(t *testing.T) {
		point := spatial.Vector3{X: 0, Y: 0, Z: 0}

		objects, err := idx.FindKNearestNeighbors(point, 3)
		require.NoError(t, err)
		require.Len(t, objects, 3)
		require.Equal(t, "obj-1", objects[0].ID)
		require.Equal(t, "obj-2", objects[1].ID)
		require.Equal(t, "obj-3", objects[2].ID)

		for i := 1; i < len(objects); i++ {
			require.LessOrEqual(t,
				spatial.Distance(point, objects[i-1].Center()),
				spatial.Distance(point, objects[i].Center()))
		}
	})

	t.Run("k larger than the object count returns everything", func(t *testing.T) {
		objects, err := idx.FindKNearestNeighbors(spatial.Vector3{X: 0, Y: 0, Z: 0}, 50)
		require.NoError(t, err)
		require.Len(t, objects, 5)
	})

	t.Run("non-positive k returns nothing", func(t *testing.T) {
		objects, err := idx.FindKNearestNeighbors(spatial.Vector3{X: 0, Y: 0, Z: 0}, 0)
		require.NoError(t, err)
		require.Empty(t, objects)
	})

	t.Run("a duplicated object is a single candidate", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxObjects = 0
		config.MaxDepth = 2

		dup := newTestIndex(t, config, testRootBounds)
		require.NoError(t, dup.Insert(cubeAround("straddler", spatial.Vector3{X: 50, Y: 50, Z: 50}, 2)))

		objects, err := dup.FindKNearestNeighbors(spatial.Vector3{X: 0, Y: 0, Z: 0}, 10)
		require.NoError(t, err)
		require.Len(t, objects, 1)
	})

	t.Run("empty index has no neighbor", func(t *testing.T) {
		empty := newTestIndex(t, DefaultConfig(), testRootBounds)

		o, err := empty.FindNearestNeighbor(spatial.Vector3{X: 0, Y: 0, Z: 0})
		require.NoError(t, err)
		require.Nil(t, o)
	})
}

func TestIndexStatistics(t *testing.T) {
	config := DefaultConfig()
	config.MaxObjects = 2

	idx := newTestIndex(t, config, testRootBounds)

	t.Run("empty index", func(t *testing.T) {
		stats, err := idx.Statistics()
		require.NoError(t, err)
		require.Equal(t, 1, stats.NodeCount)
		require.Equal(t, 1, stats.LeafNodes)
		require.Equal(t, 0, stats.ObjectCount)
		require.Equal(t, 0, stats.MaxDepth)
		require.Equal(t, 0.0, stats.AverageObjectsPerLeaf)
		require.Greater(t, stats.MemoryUsage, 0)
	})

	t.Run("populated index", func(t *testing.T) {
		for i := 0; i < 6; i++ {
			c := float64(i)*15 + 5
			require.NoError(t, idx.Insert(cubeAround(fmt.Sprintf("obj-%d", i), spatial.Vector3{X: c, Y: c, Z: c}, 1)))
		}

		stats, err := idx.Statistics()
		require.NoError(t, err)
		require.Equal(t, 6, stats.ObjectCount)
		require.Greater(t, stats.NodeCount, 1)
		require.Greater(t, stats.MaxDepth, 0)
		require.Greater(t, stats.LeafNodes, 1)
		require.Greater(t, stats.AverageObjectsPerLeaf, 0.0)
	})
}

func TestIndexQueryResultCounters(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig(), testRootBounds)
	require.NoError(t, idx.Insert(cubeAround("a", spatial.Vector3{X: 10, Y: 10, Z: 10}, 1)))

	res, err := idx.QueryBoundingBox(testRootBounds)
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.QueryTime, time.Duration(0))
	require.Equal(t, 1, res.NodesVisited)
	require.Equal(t, 1, res.ObjectsChecked)
}
