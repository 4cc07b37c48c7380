package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB.
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap. Boxes that merely touch count as
// overlapping; the narrow phase decides whether a contact exists.
func (a AABB) Overlaps(other AABB) bool {
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// ExpandedByMotion grows the box by the displacement a body travels in one
// step, in the direction of travel. Fast bodies get fatter proxies so the
// broad phase keeps reporting them before they cross each other.
func (a AABB) ExpandedByMotion(velocity mgl64.Vec3, dt float64) AABB {
	d := velocity.Mul(dt)
	out := a
	for i := 0; i < 3; i++ {
		if d[i] < 0 {
			out.Min[i] += d[i]
		} else {
			out.Max[i] += d[i]
		}
	}
	return out
}

// Extend returns the smallest AABB containing both a and the point.
func (a AABB) Extend(point mgl64.Vec3) AABB {
	out := a
	for i := 0; i < 3; i++ {
		out.Min[i] = math.Min(out.Min[i], point[i])
		out.Max[i] = math.Max(out.Max[i], point[i])
	}
	return out
}
