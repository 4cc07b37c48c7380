package epa

import (
	"math"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/Rice-Rocket/sokudo/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// generateManifold turns the EPA normal and depth into 1-4 contact points by
// Sutherland-Hodgman clipping of the incident feature against the reference
// feature. Multiple points keep stacked boxes from rocking on a single
// point; stable feature ids let the next tick warm-start these contacts.
func generateManifold(bodyA, bodyB *actor.RigidBody, normal mgl64.Vec3, depth float64) []constraint.ContactPoint {
	localNormalA := bodyA.Transform.InverseRotation.Rotate(normal)
	localNormalB := bodyB.Transform.InverseRotation.Rotate(normal.Mul(-1))

	featureA := worldFeature(bodyA, bodyA.Shape.ContactFeature(localNormalA))
	featureB := worldFeature(bodyB, bodyB.Shape.ContactFeature(localNormalB))

	// The feature with fewer vertices is clipped against the other.
	// Feature ids from body B are tagged so that A and B vertices with
	// the same index stay distinguishable in the warm-start cache.
	incident, reference := featureB, featureA
	incidentTag := actor.FeatureID(1) << 30
	if len(featureA) < len(featureB) {
		incident, reference = featureA, featureB
		incidentTag = 0
	}
	for i := range incident {
		incident[i].ID |= incidentTag
	}

	if len(incident) == 1 {
		return []constraint.ContactPoint{{
			Position:    incident[0].Position,
			Penetration: depth,
			Feature:     incident[0].ID,
		}}
	}

	clipped := clipAgainstReference(incident, reference, normal)

	var points []constraint.ContactPoint
	if len(clipped) > 0 && len(reference) >= 3 {
		// Final clip: keep only points behind the reference face plane.
		refNormal := reference[1].Position.Sub(reference[0].Position).
			Cross(reference[2].Position.Sub(reference[0].Position)).Normalize()
		if refNormal.Dot(normal) < 0 {
			refNormal = refNormal.Mul(-1)
		}
		offset := reference[0].Position.Dot(refNormal)

		for _, p := range clipped {
			if p.Position.Dot(refNormal)-offset <= 0 {
				points = append(points, constraint.ContactPoint{
					Position:    p.Position,
					Penetration: depth,
					Feature:     p.ID,
				})
			}
		}
	}

	// Everything clipped away (edge-on or degenerate features): fall back
	// to the deepest point of B against the normal.
	if len(points) == 0 {
		points = append(points, constraint.ContactPoint{
			Position:    bodyB.SupportWorld(normal.Mul(-1)),
			Penetration: depth,
			Feature:     actor.FeatureID(math.MaxUint32),
		})
	}

	if len(points) > constraint.MaxManifoldPoints {
		points = reducePoints(points, normal)
	}
	return points
}

func worldFeature(body *actor.RigidBody, feature []actor.FeaturePoint) []actor.FeaturePoint {
	out := make([]actor.FeaturePoint, len(feature))
	for i, p := range feature {
		out[i] = actor.FeaturePoint{Position: body.Transform.Apply(p.Position), ID: p.ID}
	}
	return out
}

// clipAgainstReference clips the incident polygon against the side planes of
// the reference polygon. Reference features with fewer than two vertices
// cannot clip anything and pass the incident feature through.
func clipAgainstReference(incident, reference []actor.FeaturePoint, normal mgl64.Vec3) []actor.FeaturePoint {
	if len(reference) < 2 {
		return incident
	}

	center := featureCentroid(reference)
	output := incident

	for i := 0; i < len(reference) && len(output) > 0; i++ {
		v1 := reference[i].Position
		v2 := reference[(i+1)%len(reference)].Position

		clipNormal := v2.Sub(v1).Cross(normal)
		if clipNormal.LenSqr() < 1e-12 {
			continue
		}
		clipNormal = clipNormal.Normalize()
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		output = clipPolygon(output, v1, clipNormal, actor.FeatureID(i))
	}

	return output
}

// clipPolygon is Sutherland-Hodgman against a single plane. Vertices kept
// intact keep their feature id; vertices born at the plane get an id derived
// from the edge endpoints and the clipping edge, which is just as stable
// across ticks.
func clipPolygon(polygon []actor.FeaturePoint, planePoint, planeNormal mgl64.Vec3, planeID actor.FeatureID) []actor.FeaturePoint {
	const tolerance = 1e-6

	var output []actor.FeaturePoint
	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentDist := current.Position.Sub(planePoint).Dot(planeNormal)
		nextDist := next.Position.Sub(planePoint).Dot(planeNormal)

		if currentDist >= -tolerance {
			output = append(output, current)
			if nextDist < -tolerance {
				output = append(output, intersectEdge(current, next, planePoint, planeNormal, planeID))
			}
		} else if nextDist >= -tolerance {
			output = append(output, intersectEdge(current, next, planePoint, planeNormal, planeID))
		}
	}
	return output
}

func intersectEdge(p1, p2 actor.FeaturePoint, planePoint, planeNormal mgl64.Vec3, planeID actor.FeatureID) actor.FeaturePoint {
	dir := p2.Position.Sub(p1.Position)
	denom := dir.Dot(planeNormal)

	position := p1.Position
	if math.Abs(denom) >= 1e-10 {
		t := -p1.Position.Sub(planePoint).Dot(planeNormal) / denom
		t = math.Max(0, math.Min(1, t))
		position = p1.Position.Add(dir.Mul(t))
	}

	return actor.FeaturePoint{Position: position, ID: combineFeatures(p1.ID, p2.ID, planeID)}
}

// combineFeatures packs the two clipped-edge endpoints and the clipping edge
// into one id. The exact packing is arbitrary; it only has to be stable.
func combineFeatures(a, b, plane actor.FeatureID) actor.FeatureID {
	return 1<<31 | (a&0x3ff)<<18 | (b&0x3ff)<<8 | plane&0xff
}

func featureCentroid(points []actor.FeaturePoint) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p.Position)
	}
	return sum.Mul(1.0 / float64(len(points)))
}

// reducePoints keeps the four extreme points in the tangent plane, which
// preserves the manifold's support area better than keeping the first four.
func reducePoints(points []constraint.ContactPoint, normal mgl64.Vec3) []constraint.ContactPoint {
	tangent1, tangent2 := actor.TangentBasis(normal)

	minX, maxX, minY, maxY := 0, 0, 0, 0
	minXval, maxXval := math.Inf(1), math.Inf(-1)
	minYval, maxYval := math.Inf(1), math.Inf(-1)

	for i, p := range points {
		x := p.Position.Dot(tangent1)
		y := p.Position.Dot(tangent2)

		if x < minXval {
			minXval, minX = x, i
		}
		if x > maxXval {
			maxXval, maxX = x, i
		}
		if y < minYval {
			minYval, minY = y, i
		}
		if y > maxYval {
			maxYval, maxY = y, i
		}
	}

	keep := map[int]bool{minX: true, maxX: true, minY: true, maxY: true}
	result := make([]constraint.ContactPoint, 0, constraint.MaxManifoldPoints)
	for i := range points {
		if keep[i] {
			result = append(result, points[i])
		}
	}
	return result
}
