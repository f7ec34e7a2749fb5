package spatial

import "math"

// BoundingBox is an axis-aligned box. Min must be lesser or equal to Max on
// every axis. A box with Min == Max is a degenerate point and is legal.
type BoundingBox struct {
	Min Vector3 `json:"min"`
	Max Vector3 `json:"max"`
}

func NewBoundingBox(min, max Vector3) BoundingBox {
	return BoundingBox{Min: min, Max: max}
}

func (b BoundingBox) Valid() bool {
	return b.Min.LesserOrEqualThan(b.Max)
}

func (b BoundingBox) Center() Vector3 {
	return Mul(Add(b.Min, b.Max), 0.5)
}

func (b BoundingBox) Size() Vector3 {
	return Sub(b.Max, b.Min)
}

// MaxExtent returns the largest axis extent of the box.
func (b BoundingBox) MaxExtent() float64 {
	size := b.Size()
	return math.Max(size.X, math.Max(size.Y, size.Z))
}

func (b BoundingBox) ContainsPoint(p Vector3) bool {
	return p.GreaterOrEqualThan(b.Min) && p.LesserOrEqualThan(b.Max)
}

type Sphere struct {
	Center Vector3 `json:"center"`
	Radius float64 `json:"radius"`
}

// Plane is the half-space dot(Normal, p) + Distance >= 0. Normal is expected
// to be unit length.
type Plane struct {
	Normal   Vector3 `json:"normal"`
	Distance float64 `json:"distance"`
}

func (p Plane) DistanceTo(point Vector3) float64 {
	return p.Normal.Dot(point) + p.Distance
}

// Frustum is an ordered set of planes whose half-space intersection forms the
// query volume.
type Frustum struct {
	Planes []Plane `json:"planes"`
}

// Ray is parametrized as p(t) = Origin + t*Direction. Direction need not be
// normalized. A zero MaxDistance means unbounded.
type Ray struct {
	Origin      Vector3 `json:"origin"`
	Direction   Vector3 `json:"direction"`
	MaxDistance float64 `json:"max_distance,omitempty"`
}

// RayHit is the result of a ray/box intersection. Distance is the parametric
// entry point tMin.
type RayHit struct {
	Hit      bool
	Distance float64
}

// IntersectsAABB reports whether the two boxes overlap. The test is inclusive,
// touching boxes intersect.
func IntersectsAABB(a BoundingBox, b BoundingBox) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// IntersectsSphere reports whether box overlaps sphere by comparing the
// squared distance from the sphere center to the nearest point on the box
// against the squared radius.
func IntersectsSphere(box BoundingBox, sphere Sphere) bool {
	sq := 0.0

	sq += axisDistanceSquared(sphere.Center.X, box.Min.X, box.Max.X)
	sq += axisDistanceSquared(sphere.Center.Y, box.Min.Y, box.Max.Y)
	sq += axisDistanceSquared(sphere.Center.Z, box.Min.Z, box.Max.Z)

	return sq <= sphere.Radius*sphere.Radius
}

func axisDistanceSquared(v, min, max float64) float64 {
	if v < min {
		return (min - v) * (min - v)
	}
	if v > max {
		return (v - max) * (v - max)
	}
	return 0
}

// IntersectsFrustum tests box against every frustum plane using the positive
// vertex, the box corner most aligned with the plane normal. A box whose
// positive vertex is behind any plane is entirely outside. The test is
// conservative: a box near an edge may be classified as intersecting when it
// is fully outside the frustum volume.
func IntersectsFrustum(box BoundingBox, frustum Frustum) bool {
	for _, plane := range frustum.Planes {
		if plane.DistanceTo(positiveVertex(box, plane.Normal)) < 0 {
			return false
		}
	}
	return true
}

func positiveVertex(box BoundingBox, normal Vector3) Vector3 {
	v := box.Min
	if normal.X >= 0 {
		v.X = box.Max.X
	}
	if normal.Y >= 0 {
		v.Y = box.Max.Y
	}
	if normal.Z >= 0 {
		v.Z = box.Max.Z
	}
	return v
}

// IntersectRayAABB intersects ray with box using the slab method. Each axis
// shrinks the running [tMin, tMax] interval; an empty interval means a miss.
// Axes with a near-zero direction component reject the ray when the origin
// lies outside the slab.
func IntersectRayAABB(ray Ray, box BoundingBox) RayHit {
	tMin := 0.0
	tMax := math.Inf(1)

	origin := [3]float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
	direction := [3]float64{ray.Direction.X, ray.Direction.Y, ray.Direction.Z}
	boxMin := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	boxMax := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}

	for i := 0; i < 3; i++ {
		if math.Abs(direction[i]) < ParallelEpsilon {
			if origin[i] < boxMin[i] || origin[i] > boxMax[i] {
				return RayHit{}
			}
			continue
		}

		tEntry := (boxMin[i] - origin[i]) / direction[i]
		tExit := (boxMax[i] - origin[i]) / direction[i]
		if tEntry > tExit {
			tEntry, tExit = tExit, tEntry
		}

		tMin = math.Max(tMin, tEntry)
		tMax = math.Min(tMax, tExit)
		if tMin > tMax {
			return RayHit{}
		}
	}

	if ray.MaxDistance > 0 && tMin > ray.MaxDistance {
		return RayHit{}
	}

	return RayHit{Hit: true, Distance: tMin}
}
