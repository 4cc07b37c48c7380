package sokudo

import (
	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/Rice-Rocket/sokudo/constraint"
	"github.com/Rice-Rocket/sokudo/epa"
	"github.com/Rice-Rocket/sokudo/gjk"
)

// Contact couples a solvable contact constraint with the handles of the two
// bodies involved, so the warm-start cache and the event system can key on
// something that survives body removal.
type Contact struct {
	A, B       BodyID
	Constraint *constraint.ContactConstraint
}

// BroadPhase rebuilds the spatial grid from the bodies' motion-expanded
// AABBs and returns the candidate pairs in sorted order. Planes are not
// inserted into the grid (their AABB would flood it); each plane is paired
// directly against every non-static body instead.
func BroadPhase(spatialGrid *SpatialGrid, bodies []*actor.RigidBody, dt float64) []Pair {
	spatialGrid.Clear()

	var planeIndices []int
	for i, body := range bodies {
		if _, isPlane := body.Shape.(*actor.Plane); isPlane {
			planeIndices = append(planeIndices, i)
			continue
		}
		spatialGrid.Insert(i, body.AABB().ExpandedByMotion(body.Velocity, dt))
	}
	spatialGrid.SortCells()

	pairs := spatialGrid.FindPairs(bodies)

	for _, planeIdx := range planeIndices {
		for otherIdx, body := range bodies {
			if otherIdx == planeIdx || body.BodyType == actor.BodyTypeStatic {
				continue
			}
			if body.IsSleeping && bodies[planeIdx].IsSleeping {
				continue
			}
			a, b := planeIdx, otherIdx
			if b < a {
				a, b = b, a
			}
			pairs = append(pairs, Pair{A: a, B: b})
		}
	}

	return pairs
}

// NarrowPhase resolves candidate pairs into contact manifolds. Pairs are
// processed in parallel but each writes its result into its own slot, so the
// returned slice preserves pair order regardless of scheduling.
func NarrowPhase(ids []BodyID, bodies []*actor.RigidBody, pairs []Pair, workersCount int) []Contact {
	results := make([]*constraint.ContactConstraint, len(pairs))

	taskIndexed(workersCount, pairs, func(i int, pair Pair) {
		bodyA := bodies[pair.A]
		bodyB := bodies[pair.B]

		_, aIsPlane := bodyA.Shape.(*actor.Plane)
		_, bIsPlane := bodyB.Shape.(*actor.Plane)
		if aIsPlane || bIsPlane {
			results[i] = collidePlane(bodyA, bodyB)
			return
		}

		simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
		simplex.Reset()
		defer gjk.SimplexPool.Put(simplex)

		if !gjk.GJK(bodyA, bodyB, simplex) {
			return
		}
		contact, err := epa.EPA(bodyA, bodyB, simplex)
		if err != nil {
			return
		}
		results[i] = &contact
	})

	contacts := make([]Contact, 0, len(pairs))
	for i, c := range results {
		if c == nil {
			continue
		}
		// The plane path may reorder the constraint's bodies; the exported
		// handles must name the same bodies as BodyA and BodyB or the
		// constraint's A→B normal reads backwards for the handle pair.
		a, b := ids[pairs[i].A], ids[pairs[i].B]
		if c.BodyA == bodies[pairs[i].B] {
			a, b = b, a
		}
		contacts = append(contacts, Contact{
			A:          a,
			B:          b,
			Constraint: c,
		})
	}
	return contacts
}

// collidePlane handles plane-vs-convex analytically. The object's contact
// feature facing the plane is projected onto the plane's signed distance
// field; every feature vertex below the surface becomes a contact point with
// its own penetration, which gives stacked boxes a full face manifold.
func collidePlane(bodyA, bodyB *actor.RigidBody) *constraint.ContactConstraint {
	planeBody, object := bodyA, bodyB
	if _, ok := bodyA.Shape.(*actor.Plane); !ok {
		planeBody, object = bodyB, bodyA
	}
	plane := planeBody.Shape.(*actor.Plane)

	// Static plane pairs are filtered before this point, and dynamic planes
	// are rejected at body creation.
	if object.BodyType == actor.BodyTypeStatic {
		return nil
	}

	localDir := object.Transform.InverseRotation.Rotate(plane.Normal.Mul(-1))

	var points []constraint.ContactPoint
	for _, feature := range object.Shape.ContactFeature(localDir) {
		world := object.Transform.Apply(feature.Position)
		distance := plane.Normal.Dot(world) + plane.Distance
		if distance < 0 {
			points = append(points, constraint.ContactPoint{
				Position:    world,
				Penetration: -distance,
				Feature:     feature.ID,
			})
		}
	}

	if len(points) == 0 {
		return nil
	}
	if len(points) > constraint.MaxManifoldPoints {
		points = deepestPoints(points)
	}

	return &constraint.ContactConstraint{
		BodyA:  planeBody,
		BodyB:  object,
		Normal: plane.Normal,
		Points: points,
	}
}

// deepestPoints keeps the most penetrating points of an oversized manifold.
// Insertion sort; manifolds are tiny.
func deepestPoints(points []constraint.ContactPoint) []constraint.ContactPoint {
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j].Penetration > points[j-1].Penetration; j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
	return points[:constraint.MaxManifoldPoints]
}
