package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FeatureID identifies a geometric feature (vertex, edge, cap) of a shape.
// Feature ids are stable across ticks for the same shape, which is what lets
// the solver match a contact point to the impulse it accumulated last tick.
type FeatureID uint32

// FeaturePoint is a local-space vertex of a contact feature together with
// its stable id.
type FeaturePoint struct {
	Position mgl64.Vec3
	ID       FeatureID
}

// ShapeInterface is the interface that all collision shapes implement.
// Shapes are immutable once constructed and may be shared by any number of
// bodies; the world-space AABB is cached on the body, not the shape.
type ShapeInterface interface {
	// ComputeAABB returns the world-space bounding box of the shape at the
	// given transform.
	ComputeAABB(transform Transform) AABB
	// ComputeMass returns the mass of the shape for the given density.
	ComputeMass(density float64) float64
	// ComputeInertia returns the body-frame inertia tensor for the given mass.
	ComputeInertia(mass float64) mgl64.Mat3
	// Support returns the farthest local-space point along a local direction.
	// A degenerate direction yields a deterministic fallback, never an error.
	Support(direction mgl64.Vec3) mgl64.Vec3
	// ContactFeature returns the vertices of the face, edge or point most
	// aligned with the local direction, with stable feature ids.
	ContactFeature(direction mgl64.Vec3) []FeaturePoint
	// Validate rejects non-finite or non-positive dimensions.
	Validate() error
}

// safeDirection replaces a near-zero direction with a fixed axis so that
// support queries stay deterministic for malformed inputs.
func safeDirection(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-12 {
		return mgl64.Vec3{1, 0, 0}
	}
	return direction
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ============================================================================
// Sphere
// ============================================================================

// Sphere is a spherical collision shape centered on the body origin.
type Sphere struct {
	Radius float64
}

func (s *Sphere) ComputeAABB(transform Transform) AABB {
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

func (s *Sphere) ComputeMass(density float64) float64 {
	return density * (4.0 / 3.0) * math.Pi * s.Radius * s.Radius * s.Radius
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius
	return mgl64.Mat3{
		i, 0, 0,
		0, i, 0,
		0, 0, i,
	}
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	return safeDirection(direction).Normalize().Mul(s.Radius)
}

func (s *Sphere) ContactFeature(direction mgl64.Vec3) []FeaturePoint {
	return []FeaturePoint{{Position: s.Support(direction), ID: 0}}
}

func (s *Sphere) Validate() error {
	if !finite(s.Radius) || s.Radius <= 0 {
		return ErrInvalidShape
	}
	return nil
}

// ============================================================================
// Box
// ============================================================================

// Box is an oriented box defined by its half-extents.
type Box struct {
	HalfExtents mgl64.Vec3
}

// corner returns the local corner for a 3-bit index, one bit per axis sign.
// The index doubles as the corner's feature id.
func (b *Box) corner(i int) mgl64.Vec3 {
	c := b.HalfExtents
	if i&1 == 0 {
		c[0] = -c[0]
	}
	if i&2 == 0 {
		c[1] = -c[1]
	}
	if i&4 == 0 {
		c[2] = -c[2]
	}
	return c
}

func (b *Box) ComputeAABB(transform Transform) AABB {
	world := transform.Apply(b.corner(0))
	bounds := AABB{Min: world, Max: world}
	for i := 1; i < 8; i++ {
		bounds = bounds.Extend(transform.Apply(b.corner(i)))
	}
	return bounds
}

func (b *Box) ComputeMass(density float64) float64 {
	return density * 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	factor := mass / 12.0
	ix := factor * (y*y + z*z)
	iy := factor * (x*x + z*z)
	iz := factor * (x*x + y*y)

	return mgl64.Mat3{
		ix, 0, 0,
		0, iy, 0,
		0, 0, iz,
	}
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	direction = safeDirection(direction)
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

// boxFaces lists each face normal with the corner indices of its vertices,
// counter-clockwise seen from outside.
var boxFaces = [6]struct {
	normal  mgl64.Vec3
	corners [4]int
}{
	{mgl64.Vec3{1, 0, 0}, [4]int{1, 5, 7, 3}},
	{mgl64.Vec3{-1, 0, 0}, [4]int{4, 0, 2, 6}},
	{mgl64.Vec3{0, 1, 0}, [4]int{2, 6, 7, 3}},
	{mgl64.Vec3{0, -1, 0}, [4]int{4, 5, 1, 0}},
	{mgl64.Vec3{0, 0, 1}, [4]int{4, 6, 7, 5}},
	{mgl64.Vec3{0, 0, -1}, [4]int{1, 3, 2, 0}},
}

func (b *Box) ContactFeature(direction mgl64.Vec3) []FeaturePoint {
	dir := safeDirection(direction).Normalize()

	best := 0
	bestDot := math.Inf(-1)
	for i, face := range boxFaces {
		if dot := dir.Dot(face.normal); dot > bestDot {
			bestDot = dot
			best = i
		}
	}

	points := make([]FeaturePoint, 4)
	for i, ci := range boxFaces[best].corners {
		points[i] = FeaturePoint{Position: b.corner(ci), ID: FeatureID(ci)}
	}
	return points
}

func (b *Box) Validate() error {
	h := b.HalfExtents
	if !finite(h.X(), h.Y(), h.Z()) || h.X() <= 0 || h.Y() <= 0 || h.Z() <= 0 {
		return ErrInvalidShape
	}
	return nil
}

// ============================================================================
// Capsule
// ============================================================================

// Capsule is a cylinder with hemispherical caps, aligned with the local Y
// axis. HalfHeight is half the length of the cylindrical section, so the
// total height is 2*(HalfHeight + Radius).
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

func (c *Capsule) ComputeAABB(transform Transform) AABB {
	top := transform.Apply(mgl64.Vec3{0, c.HalfHeight, 0})
	bottom := transform.Apply(mgl64.Vec3{0, -c.HalfHeight, 0})
	radiusVec := mgl64.Vec3{c.Radius, c.Radius, c.Radius}

	bounds := AABB{Min: top.Sub(radiusVec), Max: top.Add(radiusVec)}
	bounds = bounds.Extend(bottom.Sub(radiusVec))
	bounds = bounds.Extend(bottom.Add(radiusVec))
	return bounds
}

func (c *Capsule) ComputeMass(density float64) float64 {
	cylinder := math.Pi * c.Radius * c.Radius * (2 * c.HalfHeight)
	caps := (4.0 / 3.0) * math.Pi * c.Radius * c.Radius * c.Radius
	return density * (cylinder + caps)
}

func (c *Capsule) ComputeInertia(mass float64) mgl64.Mat3 {
	r := c.Radius
	h := 2 * c.HalfHeight

	cylinderVolume := math.Pi * r * r * h
	capsVolume := (4.0 / 3.0) * math.Pi * r * r * r
	density := mass / (cylinderVolume + capsVolume)
	mc := density * cylinderVolume
	ms := density * capsVolume

	// Solid cylinder plus two hemispherical caps offset to the cylinder ends.
	iy := 0.5*mc*r*r + (2.0/5.0)*ms*r*r
	ixz := mc*(h*h/12.0+r*r/4.0) + ms*((2.0/5.0)*r*r+h*h/2.0+(3.0/8.0)*h*r)

	return mgl64.Mat3{
		ixz, 0, 0,
		0, iy, 0,
		0, 0, ixz,
	}
}

func (c *Capsule) Support(direction mgl64.Vec3) mgl64.Vec3 {
	direction = safeDirection(direction)
	segment := mgl64.Vec3{0, c.HalfHeight, 0}
	if direction.Y() < 0 {
		segment[1] = -c.HalfHeight
	}
	return segment.Add(direction.Normalize().Mul(c.Radius))
}

// ContactFeature returns a single cap point for mostly-axial directions and
// the two displaced segment endpoints when the capsule faces sideways, so a
// capsule lying on a plane rests on two contacts instead of rocking on one.
func (c *Capsule) ContactFeature(direction mgl64.Vec3) []FeaturePoint {
	dir := safeDirection(direction).Normalize()

	if math.Abs(dir.Y()) > 0.95 {
		return []FeaturePoint{{Position: c.Support(dir), ID: axialFeature(dir.Y())}}
	}

	radial := dir.Sub(mgl64.Vec3{0, dir.Y(), 0})
	if radial.LenSqr() < 1e-12 {
		radial = mgl64.Vec3{1, 0, 0}
	}
	offset := radial.Normalize().Mul(c.Radius)

	return []FeaturePoint{
		{Position: mgl64.Vec3{0, c.HalfHeight, 0}.Add(offset), ID: 0},
		{Position: mgl64.Vec3{0, -c.HalfHeight, 0}.Add(offset), ID: 1},
	}
}

func axialFeature(y float64) FeatureID {
	if y >= 0 {
		return 0
	}
	return 1
}

func (c *Capsule) Validate() error {
	if !finite(c.Radius, c.HalfHeight) || c.Radius <= 0 || c.HalfHeight <= 0 {
		return ErrInvalidShape
	}
	return nil
}

// ============================================================================
// ConvexHull
// ============================================================================

// ConvexHull is a convex point cloud. Vertices are local-space and assumed
// to already form a convex set; the hull does not re-verify convexity.
type ConvexHull struct {
	Vertices []mgl64.Vec3
}

func (h *ConvexHull) ComputeAABB(transform Transform) AABB {
	world := transform.Apply(h.Vertices[0])
	bounds := AABB{Min: world, Max: world}
	for _, v := range h.Vertices[1:] {
		bounds = bounds.Extend(transform.Apply(v))
	}
	return bounds
}

// localBounds is the hull's local-space AABB, used as the mass/inertia proxy.
func (h *ConvexHull) localBounds() AABB {
	bounds := AABB{Min: h.Vertices[0], Max: h.Vertices[0]}
	for _, v := range h.Vertices[1:] {
		bounds = bounds.Extend(v)
	}
	return bounds
}

// ComputeMass approximates the hull volume by its local bounding box. Exact
// hull volume needs a face set that the point-cloud representation does not
// carry.
func (h *ConvexHull) ComputeMass(density float64) float64 {
	bounds := h.localBounds()
	extent := bounds.Max.Sub(bounds.Min)
	return density * extent.X() * extent.Y() * extent.Z()
}

func (h *ConvexHull) ComputeInertia(mass float64) mgl64.Mat3 {
	bounds := h.localBounds()
	extent := bounds.Max.Sub(bounds.Min)

	factor := mass / 12.0
	ix := factor * (extent.Y()*extent.Y() + extent.Z()*extent.Z())
	iy := factor * (extent.X()*extent.X() + extent.Z()*extent.Z())
	iz := factor * (extent.X()*extent.X() + extent.Y()*extent.Y())

	return mgl64.Mat3{
		ix, 0, 0,
		0, iy, 0,
		0, 0, iz,
	}
}

func (h *ConvexHull) Support(direction mgl64.Vec3) mgl64.Vec3 {
	direction = safeDirection(direction)

	best := h.Vertices[0]
	bestDot := direction.Dot(best)
	for _, v := range h.Vertices[1:] {
		if dot := direction.Dot(v); dot > bestDot {
			bestDot = dot
			best = v
		}
	}
	return best
}

// ContactFeature collects every vertex within a tolerance of the support
// distance, so a coplanar face comes back as a polygon. Vertex indices are
// the feature ids.
func (h *ConvexHull) ContactFeature(direction mgl64.Vec3) []FeaturePoint {
	dir := safeDirection(direction).Normalize()

	bestDot := math.Inf(-1)
	for _, v := range h.Vertices {
		if dot := dir.Dot(v); dot > bestDot {
			bestDot = dot
		}
	}

	const tolerance = 1e-6
	var points []FeaturePoint
	for i, v := range h.Vertices {
		if dir.Dot(v) >= bestDot-tolerance {
			points = append(points, FeaturePoint{Position: v, ID: FeatureID(i)})
		}
		if len(points) == 8 {
			break
		}
	}
	return points
}

func (h *ConvexHull) Validate() error {
	if len(h.Vertices) < 4 {
		return ErrInvalidShape
	}
	for _, v := range h.Vertices {
		if !finite(v.X(), v.Y(), v.Z()) {
			return ErrInvalidShape
		}
	}
	bounds := h.localBounds()
	extent := bounds.Max.Sub(bounds.Min)
	if extent.X() <= 0 || extent.Y() <= 0 || extent.Z() <= 0 {
		return ErrInvalidShape
	}
	return nil
}

// ============================================================================
// Plane
// ============================================================================

// Plane is an infinite static plane satisfying Normal·p + Distance = 0.
// Planes can only back static bodies.
type Plane struct {
	Normal   mgl64.Vec3 // must be unit length
	Distance float64
}

// planeExtent bounds the region of a plane that participates in support and
// feature queries. Contacts farther than this from the origin degrade.
const planeExtent = 1000.0

func (p *Plane) ComputeAABB(transform Transform) AABB {
	const thickness = 1.0
	const infinity = 1e10

	planePoint := p.Normal.Mul(-p.Distance)
	min := planePoint.Sub(p.Normal.Mul(thickness)).Add(transform.Position)
	max := planePoint.Add(transform.Position)

	// Extend to infinity on the axes the normal does not dominate.
	for i := 0; i < 3; i++ {
		if math.Abs(p.Normal[i]) < 1.0 {
			min[i] = -infinity
			max[i] = infinity
		}
	}

	return AABB{Min: min, Max: max}
}

// Planes are immovable; mass is infinite by definition.
func (p *Plane) ComputeMass(density float64) float64 {
	return math.Inf(1)
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (p *Plane) Support(direction mgl64.Vec3) mgl64.Vec3 {
	direction = safeDirection(direction)
	tangent1, tangent2 := TangentBasis(p.Normal)

	point := p.Normal.Mul(-p.Distance)
	if direction.Dot(p.Normal) < 0 {
		point = point.Sub(p.Normal.Mul(planeExtent))
	}
	if direction.Dot(tangent1) < 0 {
		point = point.Sub(tangent1.Mul(planeExtent))
	} else {
		point = point.Add(tangent1.Mul(planeExtent))
	}
	if direction.Dot(tangent2) < 0 {
		point = point.Sub(tangent2.Mul(planeExtent))
	} else {
		point = point.Add(tangent2.Mul(planeExtent))
	}
	return point
}

func (p *Plane) ContactFeature(direction mgl64.Vec3) []FeaturePoint {
	tangent1, tangent2 := TangentBasis(p.Normal)
	center := p.Normal.Mul(-p.Distance)

	return []FeaturePoint{
		{Position: center.Add(tangent1.Mul(-planeExtent)).Add(tangent2.Mul(-planeExtent)), ID: 0},
		{Position: center.Add(tangent1.Mul(-planeExtent)).Add(tangent2.Mul(planeExtent)), ID: 1},
		{Position: center.Add(tangent1.Mul(planeExtent)).Add(tangent2.Mul(planeExtent)), ID: 2},
		{Position: center.Add(tangent1.Mul(planeExtent)).Add(tangent2.Mul(-planeExtent)), ID: 3},
	}
}

func (p *Plane) Validate() error {
	if !finite(p.Normal.X(), p.Normal.Y(), p.Normal.Z(), p.Distance) {
		return ErrInvalidShape
	}
	if math.Abs(p.Normal.Len()-1.0) > 1e-6 {
		return ErrInvalidShape
	}
	return nil
}

// TangentBasis builds two unit tangents orthogonal to a unit normal.
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
