package constraint

import (
	"math"
	"testing"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const testDt = 1.0 / 60.0

func createSphere(t *testing.T, position mgl64.Vec3, radius float64, material actor.Material) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Sphere{Radius: radius},
		actor.BodyTypeDynamic,
		material,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func createStaticBox(t *testing.T, position mgl64.Vec3, halfExtents mgl64.Vec3) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Box{HalfExtents: halfExtents},
		actor.BodyTypeStatic,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

// sphereContact builds a single-point contact between two spheres of radius
// 1 whose centers are 2-penetration apart along x.
func sphereContact(t *testing.T, penetration float64, material actor.Material) (*ContactConstraint, *actor.RigidBody, *actor.RigidBody) {
	t.Helper()
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0, material)
	b := createSphere(t, mgl64.Vec3{2 - penetration, 0, 0}, 1.0, material)

	contact := &ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Normal: mgl64.Vec3{1, 0, 0},
		Points: []ContactPoint{{
			Position:    mgl64.Vec3{1 - penetration/2, 0, 0},
			Penetration: penetration,
		}},
	}
	return contact, a, b
}

func solveVelocity(c *ContactConstraint, iterations int) {
	c.Init(testDt, DefaultSolverParams())
	c.WarmStart()
	for i := 0; i < iterations; i++ {
		c.SolveVelocity(testDt)
	}
}

func TestContactStopsApproach(t *testing.T) {
	contact, a, b := sphereContact(t, 0.01, actor.DefaultMaterial)
	a.Velocity = mgl64.Vec3{0.5, 0, 0}

	solveVelocity(contact, 8)

	vn := b.Velocity.Sub(a.Velocity).Dot(contact.Normal)
	if vn < -1e-9 {
		t.Errorf("bodies still approaching after solve: vn = %v", vn)
	}
	// With restitution 0 and a slow approach there must be no bounce either.
	if vn > 1e-6 {
		t.Errorf("inelastic contact bounced: vn = %v", vn)
	}
}

func TestContactRestitution(t *testing.T) {
	elastic := actor.Material{Density: 1, Restitution: 1, Friction: 0}
	contact, a, b := sphereContact(t, 0.01, elastic)
	a.Velocity = mgl64.Vec3{4, 0, 0}
	b.Velocity = mgl64.Vec3{-4, 0, 0}

	solveVelocity(contact, 8)

	vn := b.Velocity.Sub(a.Velocity).Dot(contact.Normal)
	if math.Abs(vn-8.0) > 1e-6 {
		t.Errorf("elastic head-on: separating speed = %v, want 8", vn)
	}
}

func TestContactRestitutionThreshold(t *testing.T) {
	// Approach slower than the threshold: restitution must not kick in even
	// at e=1, or resting stacks jitter forever.
	elastic := actor.Material{Density: 1, Restitution: 1, Friction: 0}
	contact, a, b := sphereContact(t, 0.01, elastic)
	a.Velocity = mgl64.Vec3{0.3, 0, 0}

	solveVelocity(contact, 8)

	vn := b.Velocity.Sub(a.Velocity).Dot(contact.Normal)
	if vn > 1e-6 {
		t.Errorf("sub-threshold approach bounced: vn = %v", vn)
	}
}

func TestContactIgnoresSeparatingBodies(t *testing.T) {
	contact, a, b := sphereContact(t, 0.01, actor.DefaultMaterial)
	a.Velocity = mgl64.Vec3{-1, 0, 0}
	b.Velocity = mgl64.Vec3{1, 0, 0}

	solveVelocity(contact, 8)

	if !a.Velocity.ApproxEqual(mgl64.Vec3{-1, 0, 0}) || !b.Velocity.ApproxEqual(mgl64.Vec3{1, 0, 0}) {
		t.Errorf("separating bodies got impulses: vA=%v vB=%v", a.Velocity, b.Velocity)
	}
	if contact.Points[0].NormalImpulse < 0 {
		t.Errorf("accumulated normal impulse went negative: %v", contact.Points[0].NormalImpulse)
	}
}

func TestFrictionCoulombLimit(t *testing.T) {
	ground := createStaticBox(t, mgl64.Vec3{0, -1, 0}, mgl64.Vec3{10, 1, 10})
	slider := createSphere(t, mgl64.Vec3{0, 0.99, 0}, 1.0, actor.DefaultMaterial)
	slider.Velocity = mgl64.Vec3{10, -1, 0}

	contact := &ContactConstraint{
		BodyA:  ground,
		BodyB:  slider,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{
			Position:    mgl64.Vec3{0, -0.005, 0},
			Penetration: 0.01,
		}},
	}

	solveVelocity(contact, 8)

	p := contact.Points[0]
	if p.NormalImpulse <= 0 {
		t.Fatalf("normal impulse = %v, want positive", p.NormalImpulse)
	}

	limit := contact.friction * p.NormalImpulse
	total := math.Hypot(p.TangentImpulse[0], p.TangentImpulse[1])
	if total > limit+1e-9 {
		t.Errorf("friction impulse %v exceeds Coulomb limit %v", total, limit)
	}

	// Fast slide with bounded friction: slowed, not stopped or reversed.
	if slider.Velocity.X() <= 0 {
		t.Errorf("friction reversed the slide: vx = %v", slider.Velocity.X())
	}
	if slider.Velocity.X() >= 10 {
		t.Errorf("friction did not slow the slide: vx = %v", slider.Velocity.X())
	}
}

func TestSolvePositionReducesOverlap(t *testing.T) {
	contact, a, b := sphereContact(t, 0.1, actor.DefaultMaterial)
	params := DefaultSolverParams()
	contact.Init(testDt, params)

	before := b.Transform.Position.X() - a.Transform.Position.X()
	for i := 0; i < 10; i++ {
		contact.SolvePosition(params)
	}
	after := b.Transform.Position.X() - a.Transform.Position.X()

	if after <= before {
		t.Errorf("centers did not separate: before=%v after=%v", before, after)
	}
	// Correction stops at the slop, never overshoots into separation.
	if after > 2.0+1e-9 {
		t.Errorf("position correction overshot: center distance %v", after)
	}
}

func TestWarmStartAppliesCachedImpulse(t *testing.T) {
	contact, a, b := sphereContact(t, 0.01, actor.DefaultMaterial)
	contact.Points[0].NormalImpulse = 2.0

	contact.Init(testDt, DefaultSolverParams())
	contact.WarmStart()

	// Equal and opposite along the normal.
	if a.Velocity.X() >= 0 {
		t.Errorf("warm start did not push A back: vx = %v", a.Velocity.X())
	}
	if b.Velocity.X() <= 0 {
		t.Errorf("warm start did not push B forward: vx = %v", b.Velocity.X())
	}
	sum := a.Velocity.Mul(a.Mass()).Add(b.Velocity.Mul(b.Mass()))
	if sum.Len() > 1e-9 {
		t.Errorf("warm start violated momentum conservation: %v", sum)
	}
}

func TestMixMaterials(t *testing.T) {
	a := actor.Material{Restitution: 0.2, Friction: 0.4}
	b := actor.Material{Restitution: 0.8, Friction: 0.9}

	if r := MixRestitution(a, b); math.Abs(r-0.5) > 1e-12 {
		t.Errorf("MixRestitution = %v, want 0.5 (average)", r)
	}
	if f := MixFriction(a, b); math.Abs(f-0.6) > 1e-12 {
		t.Errorf("MixFriction = %v, want 0.6 (geometric mean)", f)
	}
}
