package actor

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body.
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions.
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable: both their inverse mass and
	// inverse inertia are zero (e.g., ground, walls).
	BodyTypeStatic
)

// Material holds the per-body coefficients mixed at contact time.
type Material struct {
	Density     float64
	Restitution float64 // 0 = no rebound, 1 = perfect restitution
	Friction    float64 // Coulomb friction coefficient
}

// DefaultMaterial is used when a body is created without explicit material.
var DefaultMaterial = Material{Density: 1.0, Restitution: 0.0, Friction: 0.5}

// RigidBody is the mutable per-body simulation state. Bodies are created
// through NewRigidBody (which rejects malformed configurations), mutated by
// the integrator and the solver, and owned by the World.
type RigidBody struct {
	Transform Transform

	Velocity        mgl64.Vec3 // linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // angular velocity (rad/s)

	mass            float64
	invMass         float64
	inertiaLocal    mgl64.Mat3
	invInertiaLocal mgl64.Mat3
	invInertiaWorld mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64

	Material Material
	BodyType BodyType

	// Shape may be shared between bodies, so per-pose state like the
	// world-space bounds lives here, never on the shape.
	Shape ShapeInterface
	aabb  AABB
}

// AABB returns the cached world-space bounds. The cache follows every pose
// change (integration, SetPose); UpdateAABB refreshes it explicitly.
func (rb *RigidBody) AABB() AABB {
	return rb.aabb
}

// UpdateAABB recomputes the cached bounds from the current pose.
func (rb *RigidBody) UpdateAABB() {
	rb.aabb = rb.Shape.ComputeAABB(rb.Transform)
}

// NewRigidBody creates a rigid body. Dynamic bodies compute mass and inertia
// from the shape and the material density; static bodies get zero inverse
// mass and inverse inertia. A dynamic body whose mass properties cannot
// produce motion is rejected with ErrInvalidBodyConfig.
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, material Material) (*RigidBody, error) {
	if shape == nil {
		return nil, fmt.Errorf("%w: nil shape", ErrInvalidBodyConfig)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if transform.InverseRotation == (mgl64.Quat{}) {
		transform = NewTransformAt(transform.Position, transform.Rotation)
	}

	rb := &RigidBody{
		Transform: transform,
		Shape:     shape,
		BodyType:  bodyType,
		Material:  material,
	}

	if bodyType == BodyTypeStatic {
		rb.mass = math.Inf(1)
		// invMass and invInertia stay zero: immovable.
	} else {
		if _, isPlane := shape.(*Plane); isPlane {
			return nil, fmt.Errorf("%w: plane shapes are static only", ErrInvalidBodyConfig)
		}
		mass := shape.ComputeMass(material.Density)
		if !finite(mass) || mass <= 0 {
			return nil, fmt.Errorf("%w: mass %v", ErrInvalidBodyConfig, mass)
		}
		rb.mass = mass
		rb.invMass = 1.0 / mass
		rb.inertiaLocal = shape.ComputeInertia(mass)
		rb.invInertiaLocal = rb.inertiaLocal.Inv()
	}

	rb.UpdateWorldInertia()
	rb.UpdateAABB()

	return rb, nil
}

// Mass returns the body mass (infinite for static bodies).
func (rb *RigidBody) Mass() float64 {
	return rb.mass
}

// InverseMass is zero for static bodies.
func (rb *RigidBody) InverseMass() float64 {
	return rb.invMass
}

// InverseInertiaWorld returns the cached world-frame inverse inertia tensor.
// It is valid only if UpdateWorldInertia ran since the last orientation
// change; the integrator and SetPose maintain that invariant.
func (rb *RigidBody) InverseInertiaWorld() mgl64.Mat3 {
	return rb.invInertiaWorld
}

// UpdateWorldInertia recomputes the world-frame inverse inertia from the
// local tensor and the current orientation: I⁻¹_world = R · I⁻¹_local · Rᵀ.
func (rb *RigidBody) UpdateWorldInertia() {
	if rb.BodyType == BodyTypeStatic {
		rb.invInertiaWorld = mgl64.Mat3{}
		return
	}
	r := rb.Transform.Rotation.Mat4().Mat3()
	rb.invInertiaWorld = r.Mul3(rb.invInertiaLocal).Mul3(r.Transpose())
}

// AddForce accumulates a force through the center of mass.
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic {
		return
	}
	rb.Awake()
	rb.accumulatedForce = rb.accumulatedForce.Add(force)
}

// AddForceAtPoint accumulates a force applied at a world-space point,
// contributing torque about the center of mass.
func (rb *RigidBody) AddForceAtPoint(force, point mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic {
		return
	}
	rb.Awake()
	rb.accumulatedForce = rb.accumulatedForce.Add(force)
	rb.accumulatedTorque = rb.accumulatedTorque.Add(point.Sub(rb.Transform.Position).Cross(force))
}

// AddTorque accumulates a torque.
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic {
		return
	}
	rb.Awake()
	rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
}

// ClearForces resets the force and torque accumulators.
func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{}
	rb.accumulatedTorque = mgl64.Vec3{}
}

// IntegrateVelocity advances velocity from gravity and accumulated
// force/torque. This is the first half of semi-implicit Euler; the solver
// then corrects the new velocities before positions move.
func (rb *RigidBody) IntegrateVelocity(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.Velocity = rb.Velocity.Add(gravity.Mul(dt)).Add(rb.accumulatedForce.Mul(rb.invMass * dt))
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.invInertiaWorld.Mul3x1(rb.accumulatedTorque).Mul(dt))
}

// IntegratePosition advances the pose from the current (post-solve)
// velocity and renormalizes the orientation quaternion. Renormalization is
// mandatory every step: drift from the additive quaternion update
// accumulates otherwise.
func (rb *RigidBody) IntegratePosition(dt float64) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	omega := mgl64.Quat{W: 0, V: rb.AngularVelocity}
	qDot := omega.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.UpdateWorldInertia()
	rb.UpdateAABB()
}

// SetPose teleports the body without touching its velocity or force state.
// This is the kinematic override used by playback replay; it bypasses the
// physical model entirely.
func (rb *RigidBody) SetPose(position mgl64.Vec3, rotation mgl64.Quat) {
	rb.Transform = NewTransformAt(position, rotation)
	rb.UpdateWorldInertia()
	rb.UpdateAABB()
}

// TrySleep puts the body to sleep once its velocity stayed under the
// threshold for the given duration.
func (rb *RigidBody) TrySleep(dt, timeThreshold, velocityThreshold float64) {
	if rb.BodyType == BodyTypeStatic {
		return
	}
	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timeThreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
	rb.ClearForces()
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// SupportWorld returns the farthest point of the body along a world
// direction.
func (rb *RigidBody) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	localDirection := rb.Transform.InverseRotation.Rotate(direction)
	localSupport := rb.Shape.Support(localDirection)
	return rb.Transform.Apply(localSupport)
}
