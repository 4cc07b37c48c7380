// Package epa implements the Expanding Polytope Algorithm. Given the
// simplex GJK produced for an overlapping pair, EPA expands it toward the
// surface of the Minkowski difference to find the minimum translation
// vector: the contact normal and penetration depth. The clipping step in
// manifold.go then turns that single direction into 1-4 contact points.
//
// Reference: Van den Bergen, "Proximity Queries and Penetration Depth
// Computation on 3D Game Objects" (2001).
package epa

import (
	"fmt"
	"math"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/Rice-Rocket/sokudo/constraint"
	"github.com/Rice-Rocket/sokudo/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// maxIterations bounds polytope expansion; typical convergence is
	// 5-15 iterations.
	maxIterations = 32

	// convergenceTolerance: when a new support point improves the closest
	// face distance by less than this, the face is on the hull surface.
	convergenceTolerance = 0.001

	// minFaceDistance: faces closer to the origin than this are
	// degenerate and skipped.
	minFaceDistance = 1e-4

	// degeneratePenetration is the fallback depth when GJK hands over an
	// incomplete simplex.
	degeneratePenetration = 0.01
)

// EPA computes the contact normal, penetration depth and manifold for two
// overlapping convex bodies. The normal points from a toward b. It degrades
// to estimated contacts rather than failing on degenerate simplices; the
// only error is non-convergence, which callers drop silently.
func EPA(a, b *actor.RigidBody, simplex *gjk.Simplex) (constraint.ContactConstraint, error) {
	if simplex.Count < 4 {
		return degenerateContact(a, b, simplex), nil
	}

	faces := buildInitialFaces(simplex)

	for i := 0; i < maxIterations; i++ {
		if len(faces) == 0 {
			break
		}

		closest := closestFaceIndex(faces)
		face := faces[closest]

		if face.Distance < minFaceDistance {
			faces[closest] = faces[len(faces)-1]
			faces = faces[:len(faces)-1]
			continue
		}

		support := gjk.MinkowskiSupport(a, b, face.Normal)
		distance := support.Dot(face.Normal)

		if distance-face.Distance < convergenceTolerance {
			return constraint.ContactConstraint{
				BodyA:  a,
				BodyB:  b,
				Normal: face.Normal,
				Points: generateManifold(a, b, face.Normal, face.Distance),
			}, nil
		}

		faces = expand(faces, support, closest)
	}

	return constraint.ContactConstraint{}, fmt.Errorf("epa: no convergence after %d iterations", maxIterations)
}

// degenerateContact estimates a contact when GJK could not complete a
// tetrahedron (shapes touching at a point or edge).
func degenerateContact(a, b *actor.RigidBody, simplex *gjk.Simplex) constraint.ContactConstraint {
	var normal mgl64.Vec3
	var penetration float64

	if simplex.Count >= 2 {
		p := simplex.Points[0]
		if simplex.Points[1].LenSqr() < p.LenSqr() {
			p = simplex.Points[1]
		}
		penetration = p.Len()
		if penetration > 1e-9 {
			normal = p.Mul(1.0 / penetration)
		} else {
			normal = mgl64.Vec3{0, 1, 0}
		}
	} else {
		normal = b.Transform.Position.Sub(a.Transform.Position)
		if length := normal.Len(); length > 1e-9 {
			normal = normal.Mul(1.0 / length)
		} else {
			normal = mgl64.Vec3{0, 1, 0}
		}
		penetration = degeneratePenetration
	}

	return constraint.ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Normal: normal,
		Points: generateManifold(a, b, normal, penetration),
	}
}

// snapNormal clamps nearly-zero normal components to exactly zero and
// renormalizes. Axis-aligned stacks jitter in the tangent directions without
// this.
func snapNormal(normal mgl64.Vec3) mgl64.Vec3 {
	const threshold = 1e-8

	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < threshold {
			normal[i] = 0
		}
	}

	length := normal.Len()
	if length < 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}
	return normal.Mul(1.0 / length)
}
