package sokudo

import (
	"math/rand"
	"testing"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func createSphere(t *testing.T, position mgl64.Vec3, radius float64, bodyType actor.BodyType) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Sphere{Radius: radius},
		bodyType,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func createBox(t *testing.T, position mgl64.Vec3, halfExtents mgl64.Vec3, bodyType actor.BodyType) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Box{HalfExtents: halfExtents},
		bodyType,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func createPlane(t *testing.T, normal mgl64.Vec3, distance float64) *actor.RigidBody {
	t.Helper()
	body, err := actor.NewRigidBody(
		actor.NewTransform(),
		&actor.Plane{Normal: normal, Distance: distance},
		actor.BodyTypeStatic,
		actor.DefaultMaterial,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return body
}

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"fractional", mgl64.Vec3{0.5, 0.5, 0.5}, CellKey{0, 0, 0}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.worldToCell(tt.position)
			if result != tt.expected {
				t.Errorf("worldToCell(%v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {1000, 1024}, {1024, 1024},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func insertAll(grid *SpatialGrid, bodies []*actor.RigidBody) {
	grid.Clear()
	for i, body := range bodies {
		grid.Insert(i, body.AABB())
	}
	grid.SortCells()
}

func TestFindPairsNoFalseNegatives(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	grid := NewSpatialGrid(2.0, 256)

	bodies := make([]*actor.RigidBody, 50)
	for i := range bodies {
		position := mgl64.Vec3{
			rng.Float64()*20 - 10,
			rng.Float64()*20 - 10,
			rng.Float64()*20 - 10,
		}
		bodies[i] = createSphere(t, position, 0.5+rng.Float64(), actor.BodyTypeDynamic)
	}

	insertAll(grid, bodies)
	pairs := grid.FindPairs(bodies)
	found := make(map[Pair]bool, len(pairs))
	for _, p := range pairs {
		found[p] = true
	}

	// Every AABB overlap the brute force finds must be in the grid's output.
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			if bodies[i].AABB().Overlaps(bodies[j].AABB()) {
				if !found[Pair{A: i, B: j}] {
					t.Errorf("missed overlapping pair (%d, %d)", i, j)
				}
			} else if found[Pair{A: i, B: j}] {
				t.Errorf("reported non-overlapping pair (%d, %d)", i, j)
			}
		}
	}
}

func TestFindPairsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	grid := NewSpatialGrid(2.0, 64)

	bodies := make([]*actor.RigidBody, 30)
	for i := range bodies {
		position := mgl64.Vec3{rng.Float64() * 8, rng.Float64() * 8, rng.Float64() * 8}
		bodies[i] = createSphere(t, position, 1.0, actor.BodyTypeDynamic)
	}

	insertAll(grid, bodies)
	first := grid.FindPairs(bodies)
	insertAll(grid, bodies)
	second := grid.FindPairs(bodies)

	if len(first) != len(second) {
		t.Fatalf("pair count differs between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("pair %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestFindPairsSkipsStaticAndSleeping(t *testing.T) {
	staticA := createBox(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, actor.BodyTypeStatic)
	staticB := createBox(t, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 1, 1}, actor.BodyTypeStatic)
	sleeperA := createSphere(t, mgl64.Vec3{10, 0, 0}, 1.0, actor.BodyTypeDynamic)
	sleeperB := createSphere(t, mgl64.Vec3{11, 0, 0}, 1.0, actor.BodyTypeDynamic)
	sleeperA.Sleep()
	sleeperB.Sleep()

	bodies := []*actor.RigidBody{staticA, staticB, sleeperA, sleeperB}
	grid := NewSpatialGrid(2.0, 64)
	insertAll(grid, bodies)

	if pairs := grid.FindPairs(bodies); len(pairs) != 0 {
		t.Errorf("got %d pairs, want 0 (static-static and sleeping-sleeping skipped)", len(pairs))
	}
}

func TestFindPairsAwakeVsSleeping(t *testing.T) {
	awake := createSphere(t, mgl64.Vec3{0, 0, 0}, 1.0, actor.BodyTypeDynamic)
	sleeper := createSphere(t, mgl64.Vec3{1, 0, 0}, 1.0, actor.BodyTypeDynamic)
	sleeper.Sleep()

	bodies := []*actor.RigidBody{awake, sleeper}
	grid := NewSpatialGrid(2.0, 64)
	insertAll(grid, bodies)

	if pairs := grid.FindPairs(bodies); len(pairs) != 1 {
		t.Errorf("got %d pairs, want 1 (awake body can hit a sleeping one)", len(pairs))
	}
}
