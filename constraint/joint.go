package constraint

import (
	"math"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Joint is a persistent constraint between two bodies. Joints keep their
// accumulated impulses across ticks, so they warm-start themselves.
type Joint interface {
	Constraint
	// Bodies returns the connected pair, first body then second.
	Bodies() (*actor.RigidBody, *actor.RigidBody)
}

// ============================================================================
// Distance
// ============================================================================

// DistanceJoint keeps the distance between two local anchor points at
// RestLength. One scalar row.
type DistanceJoint struct {
	BodyA, BodyB *actor.RigidBody
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	RestLength   float64

	impulse float64

	rA, rB mgl64.Vec3
	normal mgl64.Vec3
	mass   float64
}

func NewDistanceJoint(a, b *actor.RigidBody, localAnchorA, localAnchorB mgl64.Vec3, restLength float64) *DistanceJoint {
	return &DistanceJoint{
		BodyA:        a,
		BodyB:        b,
		LocalAnchorA: localAnchorA,
		LocalAnchorB: localAnchorB,
		RestLength:   restLength,
	}
}

func (j *DistanceJoint) Bodies() (*actor.RigidBody, *actor.RigidBody) {
	return j.BodyA, j.BodyB
}

func (j *DistanceJoint) separation() (rA, rB, normal mgl64.Vec3, c float64) {
	worldA := j.BodyA.Transform.Apply(j.LocalAnchorA)
	worldB := j.BodyB.Transform.Apply(j.LocalAnchorB)
	rA = worldA.Sub(j.BodyA.Transform.Position)
	rB = worldB.Sub(j.BodyB.Transform.Position)

	d := worldB.Sub(worldA)
	length := d.Len()
	if length < 1e-9 {
		return rA, rB, mgl64.Vec3{1, 0, 0}, -j.RestLength
	}
	return rA, rB, d.Mul(1.0 / length), length - j.RestLength
}

func (j *DistanceJoint) Init(dt float64, params SolverParams) {
	j.rA, j.rB, j.normal, _ = j.separation()
	j.mass = scalarMass(j.BodyA, j.BodyB, j.rA, j.rB, j.normal)
}

func (j *DistanceJoint) WarmStart() {
	applyImpulse(j.BodyA, j.BodyB, j.rA, j.rB, j.normal.Mul(j.impulse))
}

func (j *DistanceJoint) SolveVelocity(dt float64) {
	if j.mass == 0 {
		return
	}
	vn := relativeVelocity(j.BodyA, j.BodyB, j.rA, j.rB).Dot(j.normal)
	lambda := -vn * j.mass
	j.impulse += lambda
	applyImpulse(j.BodyA, j.BodyB, j.rA, j.rB, j.normal.Mul(lambda))
}

func (j *DistanceJoint) SolvePosition(params SolverParams) {
	rA, rB, normal, c := j.separation()
	mass := scalarMass(j.BodyA, j.BodyB, rA, rB, normal)
	if mass == 0 {
		return
	}
	impulse := normal.Mul(-c * mass)
	applyPositionalImpulse(j.BodyA, rA, impulse.Mul(-1))
	applyPositionalImpulse(j.BodyB, rB, impulse)
}

// ============================================================================
// Fixed
// ============================================================================

// FixedJoint welds two bodies: coincident anchors and a locked relative
// rotation captured at creation. Three linear rows plus three angular rows.
type FixedJoint struct {
	BodyA, BodyB *actor.RigidBody
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	referenceRotation mgl64.Quat // qA⁻¹ · qB at creation

	pointImpulse   mgl64.Vec3
	angularImpulse mgl64.Vec3

	rA, rB      mgl64.Vec3
	pointMass   mgl64.Mat3
	angularMass mgl64.Mat3
}

func NewFixedJoint(a, b *actor.RigidBody, localAnchorA, localAnchorB mgl64.Vec3) *FixedJoint {
	return &FixedJoint{
		BodyA:             a,
		BodyB:             b,
		LocalAnchorA:      localAnchorA,
		LocalAnchorB:      localAnchorB,
		referenceRotation: a.Transform.InverseRotation.Mul(b.Transform.Rotation).Normalize(),
	}
}

func (j *FixedJoint) Bodies() (*actor.RigidBody, *actor.RigidBody) {
	return j.BodyA, j.BodyB
}

// rotationError is the world-frame small-angle vector rotating B onto its
// target orientation qA·ref.
func (j *FixedJoint) rotationError() mgl64.Vec3 {
	target := j.BodyA.Transform.Rotation.Mul(j.referenceRotation)
	qErr := target.Mul(j.BodyB.Transform.Rotation.Inverse()).Normalize()
	if qErr.W < 0 {
		qErr = qErr.Scale(-1)
	}
	return qErr.V.Mul(2.0)
}

func (j *FixedJoint) Init(dt float64, params SolverParams) {
	worldA := j.BodyA.Transform.Apply(j.LocalAnchorA)
	worldB := j.BodyB.Transform.Apply(j.LocalAnchorB)
	j.rA = worldA.Sub(j.BodyA.Transform.Position)
	j.rB = worldB.Sub(j.BodyB.Transform.Position)

	j.pointMass = pointK(j.BodyA, j.BodyB, j.rA, j.rB).Inv()
	j.angularMass = j.BodyA.InverseInertiaWorld().Add(j.BodyB.InverseInertiaWorld()).Inv()
}

func (j *FixedJoint) WarmStart() {
	applyImpulse(j.BodyA, j.BodyB, j.rA, j.rB, j.pointImpulse)
	applyAngularImpulse(j.BodyA, j.BodyB, j.angularImpulse)
}

func (j *FixedJoint) SolveVelocity(dt float64) {
	// Angular rows: drive relative spin toward the orientation error.
	wRel := j.BodyB.AngularVelocity.Sub(j.BodyA.AngularVelocity)
	lambda := j.angularMass.Mul3x1(wRel.Mul(-1))
	j.angularImpulse = j.angularImpulse.Add(lambda)
	applyAngularImpulse(j.BodyA, j.BodyB, lambda)

	// Linear rows: anchors must not drift apart.
	vRel := relativeVelocity(j.BodyA, j.BodyB, j.rA, j.rB)
	impulse := j.pointMass.Mul3x1(vRel.Mul(-1))
	j.pointImpulse = j.pointImpulse.Add(impulse)
	applyImpulse(j.BodyA, j.BodyB, j.rA, j.rB, impulse)
}

func (j *FixedJoint) SolvePosition(params SolverParams) {
	// Orientation first: the anchor error depends on it.
	e := j.rotationError()
	angular := j.BodyA.InverseInertiaWorld().Add(j.BodyB.InverseInertiaWorld()).Inv().Mul3x1(e)
	applyRotationalCorrection(j.BodyA, angular.Mul(-1))
	applyRotationalCorrection(j.BodyB, angular)

	worldA := j.BodyA.Transform.Apply(j.LocalAnchorA)
	worldB := j.BodyB.Transform.Apply(j.LocalAnchorB)
	rA := worldA.Sub(j.BodyA.Transform.Position)
	rB := worldB.Sub(j.BodyB.Transform.Position)
	c := worldB.Sub(worldA)

	impulse := pointK(j.BodyA, j.BodyB, rA, rB).Inv().Mul3x1(c.Mul(-1))
	applyPositionalImpulse(j.BodyA, rA, impulse.Mul(-1))
	applyPositionalImpulse(j.BodyB, rB, impulse)
}

// applyRotationalCorrection rotates a body by the angular impulse scaled by
// its inverse inertia, as a direct small-angle orientation nudge.
func applyRotationalCorrection(body *actor.RigidBody, impulse mgl64.Vec3) {
	if body.BodyType == actor.BodyTypeStatic {
		return
	}
	deltaRot := body.InverseInertiaWorld().Mul3x1(impulse)
	if deltaRot.LenSqr() < 1e-18 {
		return
	}
	q := mgl64.Quat{W: 1.0, V: deltaRot.Mul(0.5)}.Normalize()
	body.Transform.Rotation = q.Mul(body.Transform.Rotation).Normalize()
	body.Transform.InverseRotation = body.Transform.Rotation.Inverse()
	body.UpdateWorldInertia()
}

// ============================================================================
// Hinge
// ============================================================================

// HingeJoint pins two bodies at an anchor and constrains their relative
// rotation to a single axis. Contributes three linear rows, two
// axis-alignment rows, and optional motor and limit rows on the hinge axis.
type HingeJoint struct {
	BodyA, BodyB *actor.RigidBody
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3 // unit, in A's frame
	LocalAxisB   mgl64.Vec3 // unit, in B's frame

	EnableLimit bool
	LowerLimit  float64 // radians
	UpperLimit  float64

	EnableMotor     bool
	MotorSpeed      float64 // rad/s about the axis
	MaxMotorImpulse float64 // per-tick impulse budget

	referenceRotation mgl64.Quat

	pointImpulse mgl64.Vec3
	alignImpulse mgl64.Vec3
	motorImpulse float64
	limitImpulse float64

	rA, rB      mgl64.Vec3
	axis        mgl64.Vec3 // world-frame hinge axis (from A)
	pointMass   mgl64.Mat3
	angularMass mgl64.Mat3
	axisMass    float64
	angle       float64
}

func NewHingeJoint(a, b *actor.RigidBody, localAnchorA, localAnchorB, localAxisA, localAxisB mgl64.Vec3) *HingeJoint {
	return &HingeJoint{
		BodyA:             a,
		BodyB:             b,
		LocalAnchorA:      localAnchorA,
		LocalAnchorB:      localAnchorB,
		LocalAxisA:        localAxisA.Normalize(),
		LocalAxisB:        localAxisB.Normalize(),
		referenceRotation: a.Transform.InverseRotation.Mul(b.Transform.Rotation).Normalize(),
	}
}

func (j *HingeJoint) Bodies() (*actor.RigidBody, *actor.RigidBody) {
	return j.BodyA, j.BodyB
}

// Angle returns the current hinge angle: the twist of the relative rotation
// about the hinge axis, relative to the pose at creation. Range [-π, π].
func (j *HingeJoint) Angle() float64 {
	rel := j.BodyA.Transform.InverseRotation.Mul(j.BodyB.Transform.Rotation).
		Mul(j.referenceRotation.Inverse()).Normalize()
	if rel.W < 0 {
		rel = rel.Scale(-1)
	}
	return 2.0 * math.Atan2(rel.V.Dot(j.LocalAxisA), rel.W)
}

func (j *HingeJoint) Init(dt float64, params SolverParams) {
	worldA := j.BodyA.Transform.Apply(j.LocalAnchorA)
	worldB := j.BodyB.Transform.Apply(j.LocalAnchorB)
	j.rA = worldA.Sub(j.BodyA.Transform.Position)
	j.rB = worldB.Sub(j.BodyB.Transform.Position)

	j.axis = j.BodyA.Transform.Rotation.Rotate(j.LocalAxisA)
	j.pointMass = pointK(j.BodyA, j.BodyB, j.rA, j.rB).Inv()

	kAngular := j.BodyA.InverseInertiaWorld().Add(j.BodyB.InverseInertiaWorld())
	j.angularMass = kAngular.Inv()

	kAxis := j.axis.Dot(kAngular.Mul3x1(j.axis))
	j.axisMass = 0
	if kAxis > 1e-12 {
		j.axisMass = 1.0 / kAxis
	}

	j.angle = j.Angle()
	if j.EnableLimit && j.angle > j.LowerLimit && j.angle < j.UpperLimit {
		j.limitImpulse = 0
	}
	if !j.EnableMotor {
		j.motorImpulse = 0
	}
}

func (j *HingeJoint) WarmStart() {
	applyImpulse(j.BodyA, j.BodyB, j.rA, j.rB, j.pointImpulse)
	axial := j.axis.Mul(j.motorImpulse + j.limitImpulse)
	applyAngularImpulse(j.BodyA, j.BodyB, j.alignImpulse.Add(axial))
}

func (j *HingeJoint) SolveVelocity(dt float64) {
	wRel := j.BodyB.AngularVelocity.Sub(j.BodyA.AngularVelocity)

	// Motor row: drive the axial spin toward MotorSpeed within the
	// impulse budget.
	if j.EnableMotor && j.axisMass > 0 {
		vAxis := wRel.Dot(j.axis)
		lambda := -(vAxis - j.MotorSpeed) * j.axisMass
		old := j.motorImpulse
		j.motorImpulse = clamp(old+lambda, -j.MaxMotorImpulse, j.MaxMotorImpulse)
		lambda = j.motorImpulse - old
		applyAngularImpulse(j.BodyA, j.BodyB, j.axis.Mul(lambda))
		wRel = j.BodyB.AngularVelocity.Sub(j.BodyA.AngularVelocity)
	}

	// Limit row: one-sided, like a contact along the hinge angle.
	if j.EnableLimit && j.axisMass > 0 {
		vAxis := wRel.Dot(j.axis)
		if j.angle <= j.LowerLimit {
			lambda := -vAxis * j.axisMass
			old := j.limitImpulse
			j.limitImpulse = math.Max(old+lambda, 0)
			lambda = j.limitImpulse - old
			applyAngularImpulse(j.BodyA, j.BodyB, j.axis.Mul(lambda))
		} else if j.angle >= j.UpperLimit {
			lambda := -vAxis * j.axisMass
			old := j.limitImpulse
			j.limitImpulse = math.Min(old+lambda, 0)
			lambda = j.limitImpulse - old
			applyAngularImpulse(j.BodyA, j.BodyB, j.axis.Mul(lambda))
		}
		wRel = j.BodyB.AngularVelocity.Sub(j.BodyA.AngularVelocity)
	}

	// Alignment rows: cancel relative spin perpendicular to the axis.
	wPerp := wRel.Sub(j.axis.Mul(wRel.Dot(j.axis)))
	lambda := j.angularMass.Mul3x1(wPerp.Mul(-1))
	lambda = lambda.Sub(j.axis.Mul(lambda.Dot(j.axis)))
	j.alignImpulse = j.alignImpulse.Add(lambda)
	applyAngularImpulse(j.BodyA, j.BodyB, lambda)

	// Linear rows: keep the anchors pinned.
	vRel := relativeVelocity(j.BodyA, j.BodyB, j.rA, j.rB)
	impulse := j.pointMass.Mul3x1(vRel.Mul(-1))
	j.pointImpulse = j.pointImpulse.Add(impulse)
	applyImpulse(j.BodyA, j.BodyB, j.rA, j.rB, impulse)
}

func (j *HingeJoint) SolvePosition(params SolverParams) {
	// Realign the axes: rotating B by axisB × axisA closes the error.
	axisA := j.BodyA.Transform.Rotation.Rotate(j.LocalAxisA)
	axisB := j.BodyB.Transform.Rotation.Rotate(j.LocalAxisB)
	e := axisB.Cross(axisA)
	if e.LenSqr() > 1e-18 {
		kAngular := j.BodyA.InverseInertiaWorld().Add(j.BodyB.InverseInertiaWorld())
		angular := kAngular.Inv().Mul3x1(e)
		applyRotationalCorrection(j.BodyA, angular.Mul(-1))
		applyRotationalCorrection(j.BodyB, angular)
	}

	// Reclose the anchors.
	worldA := j.BodyA.Transform.Apply(j.LocalAnchorA)
	worldB := j.BodyB.Transform.Apply(j.LocalAnchorB)
	rA := worldA.Sub(j.BodyA.Transform.Position)
	rB := worldB.Sub(j.BodyB.Transform.Position)
	c := worldB.Sub(worldA)

	impulse := pointK(j.BodyA, j.BodyB, rA, rB).Inv().Mul3x1(c.Mul(-1))
	applyPositionalImpulse(j.BodyA, rA, impulse.Mul(-1))
	applyPositionalImpulse(j.BodyB, rB, impulse)
}
