package epa

import (
	"github.com/Rice-Rocket/sokudo/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Face is one triangle of the expanding polytope, with its outward normal
// and plane distance from the origin.
type Face struct {
	Points   [3]mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
}

// newFace builds a face whose normal points away from the given opposite
// (interior) point.
func newFace(a, b, c, opposite mgl64.Vec3) Face {
	normal := b.Sub(a).Cross(c.Sub(a))

	length := normal.Len()
	if length < 1e-8 {
		// Zero-area triangle; park it just off the origin so the
		// closest-face search skips it.
		return Face{Points: [3]mgl64.Vec3{a, b, c}, Normal: mgl64.Vec3{0, 1, 0}, Distance: minFaceDistance}
	}
	normal = normal.Mul(1.0 / length)

	if normal.Dot(opposite.Sub(a)) > 0 {
		normal = normal.Mul(-1)
	}

	distance := a.Dot(normal)
	if distance < 0 {
		normal = normal.Mul(-1)
		distance = -distance
	}
	if distance < minFaceDistance {
		distance = minFaceDistance
	}

	return Face{Points: [3]mgl64.Vec3{a, b, c}, Normal: snapNormal(normal), Distance: distance}
}

func buildInitialFaces(simplex *gjk.Simplex) []Face {
	a, b, c, d := simplex.Points[0], simplex.Points[1], simplex.Points[2], simplex.Points[3]

	candidates := []Face{
		newFace(a, b, c, d),
		newFace(a, c, d, b),
		newFace(a, d, b, c),
		newFace(b, d, c, a),
	}

	faces := candidates[:0:0]
	for _, face := range candidates {
		if face.Distance >= minFaceDistance {
			faces = append(faces, face)
		}
	}
	if len(faces) < 3 {
		return candidates
	}
	return faces
}

func closestFaceIndex(faces []Face) int {
	closest := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].Distance < faces[closest].Distance {
			closest = i
		}
	}
	return closest
}

type edge struct {
	a, b mgl64.Vec3
}

// expand removes every face visible from the support point and stitches new
// faces from the horizon edges to it.
func expand(faces []Face, support mgl64.Vec3, closest int) []Face {
	centroid := polytopeCentroid(faces)

	var visible []int
	for i := range faces {
		if support.Sub(faces[i].Points[0]).Dot(faces[i].Normal) > 0 {
			visible = append(visible, i)
		}
	}
	// Never delete the whole polytope; fall back to replacing just the
	// closest face.
	if len(visible) >= len(faces) {
		visible = []int{closest}
	}

	horizon := boundaryEdges(faces, visible)

	for i := len(visible) - 1; i >= 0; i-- {
		idx := visible[i]
		faces = append(faces[:idx], faces[idx+1:]...)
	}

	for _, e := range horizon {
		faces = append(faces, newFace(e.a, e.b, support, centroid))
	}

	if len(faces) == 0 {
		faces = []Face{{
			Points:   [3]mgl64.Vec3{support, support, support},
			Normal:   mgl64.Vec3{0, 1, 0},
			Distance: minFaceDistance,
		}}
	}
	return faces
}

func polytopeCentroid(faces []Face) mgl64.Vec3 {
	points := make(map[mgl64.Vec3]bool)
	for _, face := range faces {
		for _, p := range face.Points {
			points[p] = true
		}
	}

	var centroid mgl64.Vec3
	for p := range points {
		centroid = centroid.Add(p)
	}
	if len(points) > 0 {
		centroid = centroid.Mul(1.0 / float64(len(points)))
	}
	return centroid
}

// boundaryEdges returns the edges shared by exactly one visible face: the
// horizon of the region to be removed.
func boundaryEdges(faces []Face, visible []int) []edge {
	count := make(map[edge]int)

	for _, idx := range visible {
		face := faces[idx]
		edges := [3]edge{
			{face.Points[0], face.Points[1]},
			{face.Points[1], face.Points[2]},
			{face.Points[2], face.Points[0]},
		}
		for _, e := range edges {
			count[orient(e)]++
		}
	}

	var horizon []edge
	for e, n := range count {
		if n == 1 {
			horizon = append(horizon, e)
		}
	}
	return horizon
}

// orient gives edges a canonical vertex order so both windings of the same
// edge collide in the count map.
func orient(e edge) edge {
	if lessVec3(e.b, e.a) {
		return edge{e.b, e.a}
	}
	return e
}

func lessVec3(a, b mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
