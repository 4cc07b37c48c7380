package sokudo

import (
	"math"
	"sort"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey addresses a cell in the infinite 3D lattice.
type CellKey struct {
	X, Y, Z int
}

// Cell holds the indices of the bodies overlapping it this tick.
type Cell struct {
	bodyIndices []int
}

// Pair indexes two bodies that potentially collide. A < B always holds.
type Pair struct {
	A, B int
}

// SpatialGrid is a uniform hashed grid used for broad-phase pruning. Cells
// are hashed into a fixed power-of-two array, so far-apart cells can alias;
// aliasing only produces extra candidate pairs, never missed ones, and the
// AABB overlap test filters them out.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	// aabbs[i] is the motion-expanded AABB body i was inserted with, so
	// that pair tests and insertion agree on the same bounds.
	aabbs []actor.AABB
}

// NewSpatialGrid creates a grid. numCells is rounded up to a power of two.
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert registers a body in every cell its AABB touches. The AABB should
// already be expanded by the body's motion over the upcoming step, so fast
// bodies cannot slip between two ticks' snapshots.
func (sg *SpatialGrid) Insert(bodyIndex int, aabb actor.AABB) {
	for len(sg.aabbs) <= bodyIndex {
		sg.aabbs = append(sg.aabbs, actor.AABB{})
	}
	sg.aabbs[bodyIndex] = aabb

	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				sg.cells[cellIdx].bodyIndices = append(
					sg.cells[cellIdx].bodyIndices,
					bodyIndex,
				)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
	sg.aabbs = sg.aabbs[:0]
}

// SortCells orders indices within each cell so enumeration is independent
// of insertion order.
func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].bodyIndices) > 1 {
			sort.Ints(sg.cells[i].bodyIndices)
		}
	}
}

// FindPairs enumerates candidate pairs among the inserted bodies. The result
// is sorted by (A, B) and never misses an overlapping pair: two overlapping
// AABBs always share at least one cell. Pairs of two static bodies and pairs
// of two sleeping bodies are skipped.
func (sg *SpatialGrid) FindPairs(bodies []*actor.RigidBody) []Pair {
	pairs := make([]Pair, 0, len(bodies)/2)
	seen := make([]bool, len(bodies))

	for bodyIdx := 0; bodyIdx < len(sg.aabbs) && bodyIdx < len(bodies); bodyIdx++ {
		bodyA := bodies[bodyIdx]
		aabbA := sg.aabbs[bodyIdx]

		minCell := sg.worldToCell(aabbA.Min)
		maxCell := sg.worldToCell(aabbA.Max)

		for i := range seen {
			seen[i] = false
		}

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := sg.hashCell(CellKey{x, y, z})

					for _, otherIdx := range sg.cells[cellIdx].bodyIndices {
						// Each unordered pair is reported once, from its
						// lower index.
						if otherIdx <= bodyIdx || seen[otherIdx] {
							continue
						}
						seen[otherIdx] = true

						bodyB := bodies[otherIdx]
						if bodyA.BodyType == actor.BodyTypeStatic && bodyB.BodyType == actor.BodyTypeStatic {
							continue
						}
						if bodyA.IsSleeping && bodyB.IsSleeping {
							continue
						}

						if aabbA.Overlaps(sg.aabbs[otherIdx]) {
							pairs = append(pairs, Pair{A: bodyIdx, B: otherIdx})
						}
					}
				}
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	return pairs
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
