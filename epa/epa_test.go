package epa

import (
	"math"
	"testing"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/Rice-Rocket/sokudo/constraint"
	"github.com/Rice-Rocket/sokudo/gjk"
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

func createBox(t *testing.T, position mgl64.Vec3, halfExtents mgl64.Vec3) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Box{HalfExtents: halfExtents},
		actor.BodyTypeDynamic,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func runEPA(t *testing.T, a, b *actor.RigidBody) constraint.ContactConstraint {
	t.Helper()
	var simplex gjk.Simplex
	if !gjk.GJK(a, b, &simplex) {
		t.Fatal("bodies do not overlap, cannot run EPA")
	}
	contact, err := EPA(a, b, &simplex)
	if err != nil {
		t.Fatalf("EPA: %v", err)
	}
	return contact
}

func TestEPASphereDepthAndNormal(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0)
	b := createSphere(t, mgl64.Vec3{1.5, 0, 0}, 1.0)

	contact := runEPA(t, a, b)

	if dot := contact.Normal.Dot(mgl64.Vec3{1, 0, 0}); dot < 0.9 {
		t.Errorf("normal = %v, want roughly +x (dot %v)", contact.Normal, dot)
	}
	if math.Abs(contact.Normal.Len()-1.0) > 1e-6 {
		t.Errorf("normal not unit length: %v", contact.Normal.Len())
	}

	if len(contact.Points) == 0 {
		t.Fatal("no contact points")
	}
	// True penetration is 0.5; the polytope is an approximation of the
	// curved Minkowski surface, so allow some slack.
	depth := contact.Points[0].Penetration
	if math.Abs(depth-0.5) > 0.05 {
		t.Errorf("penetration = %v, want 0.5 +/- 0.05", depth)
	}
}

func TestEPABoxFaceManifold(t *testing.T) {
	bottom := createBox(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	top := createBox(t, mgl64.Vec3{0, 1.9, 0}, mgl64.Vec3{1, 1, 1})

	contact := runEPA(t, bottom, top)

	if math.Abs(math.Abs(contact.Normal.Y())-1.0) > 1e-6 {
		t.Errorf("face contact normal = %v, want +/-y", contact.Normal)
	}

	if len(contact.Points) < 2 || len(contact.Points) > constraint.MaxManifoldPoints {
		t.Errorf("face manifold has %d points, want 2..%d", len(contact.Points), constraint.MaxManifoldPoints)
	}

	for _, p := range contact.Points {
		if p.Penetration < 0 {
			t.Errorf("point %v has negative penetration %v", p.Position, p.Penetration)
		}
		// Contact points must lie in the overlap band.
		if p.Position.Y() < 0.8 || p.Position.Y() > 1.1 {
			t.Errorf("contact point %v outside the overlap band", p.Position)
		}
	}
}

func TestEPAManifoldFeatureIDsStable(t *testing.T) {
	bottom := createBox(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	top := createBox(t, mgl64.Vec3{0, 1.9, 0}, mgl64.Vec3{1, 1, 1})

	first := runEPA(t, bottom, top)

	// Nudge the top box by far less than any feature change and redo.
	top.SetPose(mgl64.Vec3{1e-6, 1.9, 0}, mgl64.QuatIdent())
	second := runEPA(t, bottom, top)

	firstIDs := make(map[actor.FeatureID]bool)
	for _, p := range first.Points {
		firstIDs[p.Feature] = true
	}
	matched := 0
	for _, p := range second.Points {
		if firstIDs[p.Feature] {
			matched++
		}
	}
	if matched == 0 {
		t.Error("no feature ids survived a tiny pose change; warm starting would never hit")
	}
}

func TestEPAConcentricDegenerate(t *testing.T) {
	a := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0)
	b := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0)

	contact := runEPA(t, a, b)

	if len(contact.Points) == 0 {
		t.Fatal("degenerate overlap produced no contact points")
	}
	if math.Abs(contact.Normal.Len()-1.0) > 1e-6 {
		t.Errorf("degenerate normal not unit length: %v", contact.Normal)
	}
}

func TestBuildInitialFacesOutwardNormals(t *testing.T) {
	simplex := &gjk.Simplex{
		Points: [4]mgl64.Vec3{
			{1, 1, 1}, {-1, -1, 1}, {-1, 1, -1}, {1, -1, -1},
		},
		Count: 4,
	}

	faces := buildInitialFaces(simplex)
	if len(faces) != 4 {
		t.Fatalf("got %d faces, want 4", len(faces))
	}

	centroid := polytopeCentroid(faces)
	for i, face := range faces {
		toFace := face.Points[0].Sub(centroid)
		if face.Normal.Dot(toFace) <= 0 {
			t.Errorf("face %d normal %v points inward", i, face.Normal)
		}
		if math.Abs(face.Normal.Len()-1.0) > 1e-9 {
			t.Errorf("face %d normal not normalized", i)
		}
	}
}
