package gjk

import (
	"testing"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func createSphere(t *testing.T, position mgl64.Vec3, radius float64) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Sphere{Radius: radius},
		actor.BodyTypeDynamic,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func createBox(t *testing.T, position mgl64.Vec3, halfExtents mgl64.Vec3, rotation mgl64.Quat) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, rotation),
		&actor.Box{HalfExtents: halfExtents},
		actor.BodyTypeDynamic,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func TestGJKSpheres(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		expected bool
	}{
		{"deep overlap", 0.5, true},
		{"shallow overlap", 1.9, true},
		{"separated", 2.5, false},
		{"far apart", 100.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0)
			b := createSphere(t, mgl64.Vec3{tt.distance, 0, 0}, 1.0)

			var simplex Simplex
			if result := GJK(a, b, &simplex); result != tt.expected {
				t.Errorf("GJK at distance %v = %v, want %v", tt.distance, result, tt.expected)
			}
		})
	}
}

func TestGJKBoxes(t *testing.T) {
	tests := []struct {
		name     string
		position mgl64.Vec3
		expected bool
	}{
		{"overlapping", mgl64.Vec3{1.5, 0, 0}, true},
		{"separated x", mgl64.Vec3{2.5, 0, 0}, false},
		{"separated diagonal", mgl64.Vec3{2.5, 2.5, 2.5}, false},
		{"corner overlap", mgl64.Vec3{1.8, 1.8, 1.8}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createBox(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
			b := createBox(t, tt.position, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())

			var simplex Simplex
			if result := GJK(a, b, &simplex); result != tt.expected {
				t.Errorf("GJK(box at %v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestGJKRotatedBoxes(t *testing.T) {
	// Axis aligned they would miss; rotated 45 degrees the corner reaches in.
	a := createBox(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
	rotated := createBox(t, mgl64.Vec3{2.2, 0, 0}, mgl64.Vec3{1, 1, 1},
		mgl64.QuatRotate(0.785398, mgl64.Vec3{0, 1, 0}))

	var simplex Simplex
	if !GJK(a, rotated, &simplex) {
		t.Error("rotated box corner should overlap")
	}
}

func TestGJKSphereBox(t *testing.T) {
	box := createBox(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())

	touching := createSphere(t, mgl64.Vec3{0, 1.5, 0}, 1.0)
	var simplex Simplex
	if !GJK(box, touching, &simplex) {
		t.Error("sphere overlapping box face not detected")
	}

	separate := createSphere(t, mgl64.Vec3{0, 2.5, 0}, 1.0)
	simplex.Reset()
	if GJK(box, separate, &simplex) {
		t.Error("separated sphere reported as overlapping")
	}
}

func TestGJKConcentric(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0)
	b := createSphere(t, mgl64.Vec3{0, 0, 0}, 0.5)

	var simplex Simplex
	if !GJK(a, b, &simplex) {
		t.Error("concentric spheres not detected as overlapping")
	}
}

func TestMinkowskiSupport(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0)
	b := createSphere(t, mgl64.Vec3{5, 0, 0}, 1.0)

	// Along +X: rightmost of A (1,0,0) minus leftmost of B (4,0,0).
	support := MinkowskiSupport(a, b, mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{-3, 0, 0}
	if support.Sub(want).Len() > 1e-9 {
		t.Errorf("MinkowskiSupport(+x) = %v, want %v", support, want)
	}
}
