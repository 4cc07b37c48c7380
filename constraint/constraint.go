// Package constraint implements the sequential-impulse solver rows: contact
// constraints with accumulated, clamped impulses, and the Distance, Hinge
// and Fixed joints. Constraints are visited one at a time and apply their
// impulses immediately, so later rows in the same pass see updated
// velocities; that ordering dependency is what makes the iteration converge.
package constraint

import (
	"math"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// SolverParams are the tuning knobs shared by every constraint row.
type SolverParams struct {
	// Baumgarte is the fraction of remaining positional error corrected per
	// position iteration. Full correction overshoots and injects energy.
	Baumgarte float64
	// Slop is the penetration depth tolerated without correction; it keeps
	// resting contacts from jittering at zero depth.
	Slop float64
	// RestitutionThreshold is the approach speed below which restitution is
	// ignored, so slow resting contacts do not micro-bounce.
	RestitutionThreshold float64
}

// DefaultSolverParams match a fixed 1/60s timestep.
func DefaultSolverParams() SolverParams {
	return SolverParams{
		Baumgarte:            0.2,
		Slop:                 0.005,
		RestitutionThreshold: 1.0,
	}
}

// Constraint is one solvable unit: a contact manifold or a joint.
// Init prepares per-tick state, WarmStart applies last tick's accumulated
// impulses once, SolveVelocity runs one Gauss-Seidel pass, and SolvePosition
// nudges positions to remove residual error.
type Constraint interface {
	Init(dt float64, params SolverParams)
	WarmStart()
	SolveVelocity(dt float64)
	SolvePosition(params SolverParams)
}

// MixRestitution averages the two restitution coefficients.
func MixRestitution(a, b actor.Material) float64 {
	return (a.Restitution + b.Restitution) / 2.0
}

// MixFriction combines friction coefficients with a geometric mean.
func MixFriction(a, b actor.Material) float64 {
	return math.Sqrt(a.Friction * b.Friction)
}

// skew returns the cross-product matrix of v: skew(v)·u = v × u.
func skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{0, -v.Z(), v.Y()},
		mgl64.Vec3{v.Z(), 0, -v.X()},
		mgl64.Vec3{-v.Y(), v.X(), 0},
	)
}

// pointK builds the 3x3 effective-mass matrix of a point constraint anchored
// at rA and rB from the respective centers of mass.
func pointK(a, b *actor.RigidBody, rA, rB mgl64.Vec3) mgl64.Mat3 {
	k := mgl64.Ident3().Mul(a.InverseMass() + b.InverseMass())
	sa := skew(rA)
	sb := skew(rB)
	k = k.Sub(sa.Mul3(a.InverseInertiaWorld()).Mul3(sa))
	k = k.Sub(sb.Mul3(b.InverseInertiaWorld()).Mul3(sb))
	return k
}

// scalarMass computes the effective mass of a single row along axis n for
// anchors rA, rB. Returns 0 when both bodies are immovable.
func scalarMass(a, b *actor.RigidBody, rA, rB, n mgl64.Vec3) float64 {
	raxn := rA.Cross(n)
	rbxn := rB.Cross(n)
	k := a.InverseMass() + b.InverseMass() +
		a.InverseInertiaWorld().Mul3x1(raxn).Dot(raxn) +
		b.InverseInertiaWorld().Mul3x1(rbxn).Dot(rbxn)
	if k < 1e-12 {
		return 0
	}
	return 1.0 / k
}

// relativeVelocity returns the velocity of the contact point on B relative
// to the same point on A.
func relativeVelocity(a, b *actor.RigidBody, rA, rB mgl64.Vec3) mgl64.Vec3 {
	va := a.Velocity.Add(a.AngularVelocity.Cross(rA))
	vb := b.Velocity.Add(b.AngularVelocity.Cross(rB))
	return vb.Sub(va)
}

// applyImpulse applies -impulse to body A at rA and +impulse to body B at rB.
func applyImpulse(a, b *actor.RigidBody, rA, rB, impulse mgl64.Vec3) {
	a.Velocity = a.Velocity.Sub(impulse.Mul(a.InverseMass()))
	a.AngularVelocity = a.AngularVelocity.Sub(a.InverseInertiaWorld().Mul3x1(rA.Cross(impulse)))
	b.Velocity = b.Velocity.Add(impulse.Mul(b.InverseMass()))
	b.AngularVelocity = b.AngularVelocity.Add(b.InverseInertiaWorld().Mul3x1(rB.Cross(impulse)))
}

// applyAngularImpulse applies -impulse to A's and +impulse to B's angular
// velocity.
func applyAngularImpulse(a, b *actor.RigidBody, impulse mgl64.Vec3) {
	a.AngularVelocity = a.AngularVelocity.Sub(a.InverseInertiaWorld().Mul3x1(impulse))
	b.AngularVelocity = b.AngularVelocity.Add(b.InverseInertiaWorld().Mul3x1(impulse))
}

// applyPositionalImpulse moves and rotates a body directly, bypassing
// velocities. The rotation uses the small-angle quaternion update, the same
// nudge the integrator applies per step.
func applyPositionalImpulse(body *actor.RigidBody, r, impulse mgl64.Vec3) {
	if body.BodyType == actor.BodyTypeStatic {
		return
	}

	body.Transform.Position = body.Transform.Position.Add(impulse.Mul(body.InverseMass()))

	deltaRot := body.InverseInertiaWorld().Mul3x1(r.Cross(impulse))
	if deltaRot.LenSqr() > 1e-18 {
		q := mgl64.Quat{W: 1.0, V: deltaRot.Mul(0.5)}.Normalize()
		body.Transform.Rotation = q.Mul(body.Transform.Rotation).Normalize()
		body.Transform.InverseRotation = body.Transform.Rotation.Inverse()
		body.UpdateWorldInertia()
	}
}
