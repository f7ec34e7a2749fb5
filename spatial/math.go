package spatial

import "math"

// Epsilon below which a ray direction component is treated as parallel to an
// axis slab.
const ParallelEpsilon = 1e-12

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

type Vector3 struct {
	X float64
	Y float64
	Z float64
}

func NewVector3(x, y, z float64) Vector3 {
	return Vector3{x, y, z}
}

func (v Vector3) Equal(u Vector3) bool {
	return v.X == u.X && v.Y == u.Y && v.Z == u.Z
}

func (v Vector3) EqualWithEpsilon(u Vector3, epsilon float64) bool {
	return math.Abs(v.X-u.X) <= epsilon &&
		math.Abs(v.Y-u.Y) <= epsilon &&
		math.Abs(v.Z-u.Z) <= epsilon
}

func (v Vector3) LesserOrEqualThan(u Vector3) bool {
	return v.X <= u.X && v.Y <= u.Y && v.Z <= u.Z
}

func (v Vector3) GreaterOrEqualThan(u Vector3) bool {
	return v.X >= u.X && v.Y >= u.Y && v.Z >= u.Z
}

func Add(a Vector3, b Vector3) Vector3 {
	return Vector3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func Sub(a Vector3, b Vector3) Vector3 {
	return Vector3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func Mul(a Vector3, s float64) Vector3 {
	return Vector3{a.X * s, a.Y * s, a.Z * s}
}

func Cross(a Vector3, b Vector3) Vector3 {
	return Vector3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (v Vector3) Dot(u Vector3) float64 {
	return v.X*u.X + v.Y*u.Y + v.Z*u.Z
}

func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func Normalized(a Vector3) Vector3 {
	length := a.Length()
	if length == 0 {
		return a
	}
	return Vector3{a.X / length, a.Y / length, a.Z / length}
}

// Distance returns the Euclidean distance between p and q.
func Distance(p Vector3, q Vector3) float64 {
	return Sub(p, q).Length()
}
