package constraint

import (
	"math"
	"testing"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func createStaticSphere(t *testing.T, position mgl64.Vec3) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Sphere{Radius: 0.1},
		actor.BodyTypeStatic,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func TestDistanceJointCancelsRadialVelocity(t *testing.T) {
	anchor := createStaticSphere(t, mgl64.Vec3{0, 0, 0})
	bob := createSphere(t, mgl64.Vec3{0, -2, 0}, 0.5, actor.DefaultMaterial)
	bob.Velocity = mgl64.Vec3{0, -3, 0} // stretching the rod

	joint := NewDistanceJoint(anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2.0)
	joint.Init(testDt, DefaultSolverParams())
	joint.WarmStart()
	for i := 0; i < 8; i++ {
		joint.SolveVelocity(testDt)
	}

	if math.Abs(bob.Velocity.Y()) > 1e-9 {
		t.Errorf("radial velocity not canceled: vy = %v", bob.Velocity.Y())
	}
}

func TestDistanceJointAllowsTangentialVelocity(t *testing.T) {
	anchor := createStaticSphere(t, mgl64.Vec3{0, 0, 0})
	bob := createSphere(t, mgl64.Vec3{0, -2, 0}, 0.5, actor.DefaultMaterial)
	bob.Velocity = mgl64.Vec3{5, 0, 0} // swinging

	joint := NewDistanceJoint(anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2.0)
	joint.Init(testDt, DefaultSolverParams())
	for i := 0; i < 8; i++ {
		joint.SolveVelocity(testDt)
	}

	if math.Abs(bob.Velocity.X()-5) > 1e-9 {
		t.Errorf("tangential velocity damped: vx = %v", bob.Velocity.X())
	}
}

func TestDistanceJointPositionCorrection(t *testing.T) {
	anchor := createStaticSphere(t, mgl64.Vec3{0, 0, 0})
	bob := createSphere(t, mgl64.Vec3{0, -2.5, 0}, 0.5, actor.DefaultMaterial)

	joint := NewDistanceJoint(anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2.0)
	params := DefaultSolverParams()
	joint.Init(testDt, params)
	for i := 0; i < 10; i++ {
		joint.SolvePosition(params)
	}

	distance := bob.Transform.Position.Sub(anchor.Transform.Position).Len()
	if math.Abs(distance-2.0) > 1e-3 {
		t.Errorf("distance after correction = %v, want 2", distance)
	}
	// The static anchor must not have moved.
	if anchor.Transform.Position != (mgl64.Vec3{0, 0, 0}) {
		t.Errorf("static anchor moved to %v", anchor.Transform.Position)
	}
}

func TestFixedJointStopsRelativeMotion(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 0.5, actor.DefaultMaterial)
	b := createSphere(t, mgl64.Vec3{1, 0, 0}, 0.5, actor.DefaultMaterial)
	b.Velocity = mgl64.Vec3{0, 2, 0}
	b.AngularVelocity = mgl64.Vec3{0, 0, 3}

	joint := NewFixedJoint(a, b, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{-0.5, 0, 0})
	joint.Init(testDt, DefaultSolverParams())
	joint.WarmStart()
	for i := 0; i < 16; i++ {
		joint.SolveVelocity(testDt)
	}

	wRel := b.AngularVelocity.Sub(a.AngularVelocity)
	if wRel.Len() > 1e-3 {
		t.Errorf("relative angular velocity remains: %v", wRel)
	}

	anchorVelA := a.Velocity.Add(a.AngularVelocity.Cross(mgl64.Vec3{0.5, 0, 0}))
	anchorVelB := b.Velocity.Add(b.AngularVelocity.Cross(mgl64.Vec3{-0.5, 0, 0}))
	if anchorVelB.Sub(anchorVelA).Len() > 1e-3 {
		t.Errorf("anchor velocities differ: %v vs %v", anchorVelA, anchorVelB)
	}
}

func TestHingeJointConstrainsOffAxisRotation(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 0.5, actor.DefaultMaterial)
	b := createSphere(t, mgl64.Vec3{1, 0, 0}, 0.5, actor.DefaultMaterial)
	axis := mgl64.Vec3{0, 0, 1}
	b.AngularVelocity = mgl64.Vec3{2, 2, 4}

	joint := NewHingeJoint(a, b, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{-0.5, 0, 0}, axis, axis)
	joint.Init(testDt, DefaultSolverParams())
	joint.WarmStart()
	for i := 0; i < 16; i++ {
		joint.SolveVelocity(testDt)
	}

	wRel := b.AngularVelocity.Sub(a.AngularVelocity)
	offAxis := wRel.Sub(axis.Mul(wRel.Dot(axis)))
	if offAxis.Len() > 1e-3 {
		t.Errorf("off-axis relative rotation remains: %v", offAxis)
	}
	if wRel.Dot(axis) < 1.0 {
		t.Errorf("hinge killed the on-axis rotation: %v", wRel.Dot(axis))
	}
}

func TestHingeJointMotorClamped(t *testing.T) {
	a := createStaticSphere(t, mgl64.Vec3{0, 0, 0})
	b := createSphere(t, mgl64.Vec3{1, 0, 0}, 0.5, actor.DefaultMaterial)
	axis := mgl64.Vec3{0, 0, 1}

	joint := NewHingeJoint(a, b, mgl64.Vec3{}, mgl64.Vec3{-1, 0, 0}, axis, axis)
	joint.EnableMotor = true
	joint.MotorSpeed = 100
	joint.MaxMotorImpulse = 0.001

	joint.Init(testDt, DefaultSolverParams())
	for i := 0; i < 8; i++ {
		joint.SolveVelocity(testDt)
	}

	// With a tiny impulse budget the motor cannot reach its target speed.
	wOnAxis := b.AngularVelocity.Dot(axis)
	if wOnAxis >= 100 {
		t.Errorf("motor exceeded its impulse budget: w = %v", wOnAxis)
	}
	if wOnAxis <= 0 {
		t.Errorf("motor did not spin the body at all: w = %v", wOnAxis)
	}
}

func TestJointBodies(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 0.5, actor.DefaultMaterial)
	b := createSphere(t, mgl64.Vec3{2, 0, 0}, 0.5, actor.DefaultMaterial)

	joints := []Joint{
		NewDistanceJoint(a, b, mgl64.Vec3{}, mgl64.Vec3{}, 2.0),
		NewFixedJoint(a, b, mgl64.Vec3{}, mgl64.Vec3{}),
		NewHingeJoint(a, b, mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, 1}),
	}
	for i, joint := range joints {
		gotA, gotB := joint.Bodies()
		if gotA != a || gotB != b {
			t.Errorf("joint %d Bodies() returned wrong bodies", i)
		}
	}
}
