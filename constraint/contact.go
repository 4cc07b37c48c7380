package constraint

import (
	"math"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxManifoldPoints bounds the number of contact points per manifold.
const MaxManifoldPoints = 4

// ContactPoint is one point of a contact manifold. NormalImpulse and
// TangentImpulse persist across ticks through the warm-start cache, keyed by
// Feature.
type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64 // signed; positive means overlapping
	Feature     actor.FeatureID

	NormalImpulse  float64
	TangentImpulse [2]float64

	rA, rB       mgl64.Vec3
	localAnchorA mgl64.Vec3
	localAnchorB mgl64.Vec3
	normalMass   float64
	tangentMass  [2]float64
	velocityBias float64
}

// ContactConstraint is the solvable form of a contact manifold. The normal
// is unit length and points from BodyA toward BodyB.
type ContactConstraint struct {
	BodyA  *actor.RigidBody
	BodyB  *actor.RigidBody
	Normal mgl64.Vec3
	Points []ContactPoint

	tangents    [2]mgl64.Vec3
	friction    float64
	restitution float64
}

// Init computes per-point effective masses, anchors and the restitution
// bias. It runs after forces have been integrated into velocities, so the
// pre-solve approach speed it samples includes this tick's gravity.
func (c *ContactConstraint) Init(dt float64, params SolverParams) {
	c.tangents[0], c.tangents[1] = actor.TangentBasis(c.Normal)
	c.friction = MixFriction(c.BodyA.Material, c.BodyB.Material)
	c.restitution = MixRestitution(c.BodyA.Material, c.BodyB.Material)

	for i := range c.Points {
		p := &c.Points[i]

		p.rA = p.Position.Sub(c.BodyA.Transform.Position)
		p.rB = p.Position.Sub(c.BodyB.Transform.Position)
		p.localAnchorA = c.BodyA.Transform.ApplyInverse(p.Position)
		p.localAnchorB = c.BodyB.Transform.ApplyInverse(p.Position)

		p.normalMass = scalarMass(c.BodyA, c.BodyB, p.rA, p.rB, c.Normal)
		for t := 0; t < 2; t++ {
			p.tangentMass[t] = scalarMass(c.BodyA, c.BodyB, p.rA, p.rB, c.tangents[t])
		}

		// Restitution only for genuine impacts; resting contacts approach
		// slowly and must not bounce.
		p.velocityBias = 0
		vn := relativeVelocity(c.BodyA, c.BodyB, p.rA, p.rB).Dot(c.Normal)
		if vn < -params.RestitutionThreshold {
			p.velocityBias = -c.restitution * vn
		}
	}
}

// WarmStart applies the accumulated impulses from the previous tick once,
// before iterating. Resting stacks converge in far fewer iterations when
// they start from last tick's solution.
func (c *ContactConstraint) WarmStart() {
	for i := range c.Points {
		p := &c.Points[i]
		impulse := c.Normal.Mul(p.NormalImpulse).
			Add(c.tangents[0].Mul(p.TangentImpulse[0])).
			Add(c.tangents[1].Mul(p.TangentImpulse[1]))
		applyImpulse(c.BodyA, c.BodyB, p.rA, p.rB, impulse)
	}
}

// SolveVelocity runs one sequential-impulse pass over the manifold: friction
// rows first, clamped by the Coulomb cone of the accumulated normal impulse,
// then the non-penetration row clamped to be repulsive.
func (c *ContactConstraint) SolveVelocity(dt float64) {
	for i := range c.Points {
		p := &c.Points[i]

		for t := 0; t < 2; t++ {
			if p.tangentMass[t] == 0 {
				continue
			}
			vt := relativeVelocity(c.BodyA, c.BodyB, p.rA, p.rB).Dot(c.tangents[t])
			lambda := -vt * p.tangentMass[t]

			// Coulomb: |friction| <= mu * normal, applied on the
			// accumulated impulses, not the per-pass increments.
			maxFriction := c.friction * p.NormalImpulse
			old := p.TangentImpulse[t]
			p.TangentImpulse[t] = clamp(old+lambda, -maxFriction, maxFriction)
			lambda = p.TangentImpulse[t] - old

			applyImpulse(c.BodyA, c.BodyB, p.rA, p.rB, c.tangents[t].Mul(lambda))
		}

		if p.normalMass == 0 {
			continue
		}
		vn := relativeVelocity(c.BodyA, c.BodyB, p.rA, p.rB).Dot(c.Normal)
		lambda := -(vn - p.velocityBias) * p.normalMass

		// Contacts push, never pull: the accumulated impulse stays
		// non-negative while per-pass increments may be negative.
		old := p.NormalImpulse
		p.NormalImpulse = math.Max(old+lambda, 0)
		lambda = p.NormalImpulse - old

		applyImpulse(c.BodyA, c.BodyB, p.rA, p.rB, c.Normal.Mul(lambda))
	}
}

// SolvePosition removes a fraction of the remaining penetration as a direct
// positional nudge. Remaining depth is estimated from how far the anchors
// moved along the normal since detection; the narrow phase is not re-run.
func (c *ContactConstraint) SolvePosition(params SolverParams) {
	for i := range c.Points {
		p := &c.Points[i]

		worldA := c.BodyA.Transform.Apply(p.localAnchorA)
		worldB := c.BodyB.Transform.Apply(p.localAnchorB)
		separationGain := worldB.Sub(worldA).Dot(c.Normal)
		penetration := p.Penetration - separationGain

		correction := params.Baumgarte * (penetration - params.Slop)
		if correction <= 0 {
			continue
		}

		rA := worldA.Sub(c.BodyA.Transform.Position)
		rB := worldB.Sub(c.BodyB.Transform.Position)
		mass := scalarMass(c.BodyA, c.BodyB, rA, rB, c.Normal)
		if mass == 0 {
			continue
		}

		impulse := c.Normal.Mul(correction * mass)
		applyPositionalImpulse(c.BodyA, rA, impulse.Mul(-1))
		applyPositionalImpulse(c.BodyB, rB, impulse)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
