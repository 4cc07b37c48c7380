package sokudo

import (
	"fmt"

	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/Rice-Rocket/sokudo/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const DefaultWorkers = 1

// BodyID is a generational handle to a body owned by a World. Slots are
// recycled on removal but the generation is bumped, so a stale handle can
// never reach the body that reused its slot.
type BodyID struct {
	index      int
	generation uint32
}

func (id BodyID) less(other BodyID) bool {
	if id.index != other.index {
		return id.index < other.index
	}
	return id.generation < other.generation
}

// JointID is a handle to a joint owned by a World.
type JointID uint64

// SolverConfig holds the iteration counts and stabilization parameters of
// the sequential impulse solver.
type SolverConfig struct {
	VelocityIterations int
	PositionIterations int
	Params             constraint.SolverParams
}

// DefaultSolverConfig returns the iteration counts the engine is tuned for.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		VelocityIterations: 8,
		PositionIterations: 3,
		Params:             constraint.DefaultSolverParams(),
	}
}

type bodySlot struct {
	body       *actor.RigidBody
	generation uint32
}

type jointEntry struct {
	id    JointID
	joint constraint.Joint
	bodyA BodyID
	bodyB BodyID
}

type contactKey struct {
	a, b    BodyID
	feature actor.FeatureID
}

type contactCache struct {
	normalImpulse  float64
	tangentImpulse [2]float64
}

// World owns all simulation state: the body arena, joints, the broad-phase
// grid, the warm-start cache and the event system.
type World struct {
	Gravity     mgl64.Vec3
	Solver      SolverConfig
	SpatialGrid *SpatialGrid
	Workers     int
	Events      Events

	slots     []bodySlot
	freeSlots []int
	bodyCount int

	joints      []jointEntry
	nextJointID JointID

	warmStart map[contactKey]contactCache

	// scratch buffers reused across Step calls
	stepIDs    []BodyID
	stepBodies []*actor.RigidBody
}

// NewWorld creates a world with standard gravity and default solver tuning.
func NewWorld() *World {
	w := &World{
		Gravity:     mgl64.Vec3{0, -9.81, 0},
		Solver:      DefaultSolverConfig(),
		SpatialGrid: NewSpatialGrid(2.0, 1024),
		Workers:     DefaultWorkers,
		Events:      NewEvents(),
		nextJointID: 1,
		warmStart:   make(map[contactKey]contactCache),
	}
	w.Events.asleep = func(id BodyID) bool {
		body, err := w.Body(id)
		return err == nil && body.IsSleeping
	}
	return w
}

// AddBody inserts a body into the world and returns its handle.
func (w *World) AddBody(body *actor.RigidBody) BodyID {
	w.bodyCount++

	if n := len(w.freeSlots); n > 0 {
		idx := w.freeSlots[n-1]
		w.freeSlots = w.freeSlots[:n-1]
		w.slots[idx].body = body
		return BodyID{index: idx, generation: w.slots[idx].generation}
	}

	w.slots = append(w.slots, bodySlot{body: body})
	return BodyID{index: len(w.slots) - 1, generation: 0}
}

// RemoveBody deletes a body. Joints attached to it, its warm-start cache
// entries and its event tracking are removed with it. The handle becomes
// permanently stale.
func (w *World) RemoveBody(id BodyID) error {
	if _, err := w.Body(id); err != nil {
		return err
	}

	w.slots[id.index].body = nil
	w.slots[id.index].generation++
	w.freeSlots = append(w.freeSlots, id.index)
	w.bodyCount--

	n := 0
	for _, entry := range w.joints {
		if entry.bodyA != id && entry.bodyB != id {
			w.joints[n] = entry
			n++
		}
	}
	w.joints = w.joints[:n]

	for key := range w.warmStart {
		if key.a == id || key.b == id {
			delete(w.warmStart, key)
		}
	}

	w.Events.forgetBody(id)
	return nil
}

// Body resolves a handle. Stale handles fail with ErrHandleNotFound.
func (w *World) Body(id BodyID) (*actor.RigidBody, error) {
	if id.index < 0 || id.index >= len(w.slots) {
		return nil, fmt.Errorf("%w: body index %d", ErrHandleNotFound, id.index)
	}
	slot := w.slots[id.index]
	if slot.body == nil || slot.generation != id.generation {
		return nil, fmt.Errorf("%w: stale body handle %d", ErrHandleNotFound, id.index)
	}
	return slot.body, nil
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	return w.bodyCount
}

// BodyIDs returns the handles of all live bodies in slot order. The order is
// stable between calls as long as no bodies are added or removed.
func (w *World) BodyIDs() []BodyID {
	ids := make([]BodyID, 0, w.bodyCount)
	for i, slot := range w.slots {
		if slot.body != nil {
			ids = append(ids, BodyID{index: i, generation: slot.generation})
		}
	}
	return ids
}

// ForEachBody visits all live bodies in slot order.
func (w *World) ForEachBody(fn func(id BodyID, body *actor.RigidBody)) {
	for i, slot := range w.slots {
		if slot.body != nil {
			fn(BodyID{index: i, generation: slot.generation}, slot.body)
		}
	}
}

// SetBodyPose teleports a body, bypassing the physical model. This exists
// for replay and authoring tools; using it on a body mid-contact will
// produce a corrective impulse on the next step.
func (w *World) SetBodyPose(id BodyID, position mgl64.Vec3, rotation mgl64.Quat) error {
	body, err := w.Body(id)
	if err != nil {
		return err
	}
	body.SetPose(position, rotation)
	body.Awake()
	return nil
}

// AddDistanceJoint connects two bodies with a rigid rod of the given rest
// length between two local-space anchor points.
func (w *World) AddDistanceJoint(a, b BodyID, localAnchorA, localAnchorB mgl64.Vec3, restLength float64) (JointID, error) {
	bodyA, bodyB, err := w.jointBodies(a, b)
	if err != nil {
		return 0, err
	}
	if restLength < 0 {
		return 0, fmt.Errorf("%w: negative rest length %v", ErrInvalidJointConfig, restLength)
	}

	return w.addJoint(a, b, constraint.NewDistanceJoint(bodyA, bodyB, localAnchorA, localAnchorB, restLength)), nil
}

// AddHingeJoint connects two bodies so they can only rotate relative to each
// other about the given local axes through the anchor points.
func (w *World) AddHingeJoint(a, b BodyID, localAnchorA, localAnchorB, localAxisA, localAxisB mgl64.Vec3) (JointID, error) {
	bodyA, bodyB, err := w.jointBodies(a, b)
	if err != nil {
		return 0, err
	}
	if localAxisA.LenSqr() < 1e-12 || localAxisB.LenSqr() < 1e-12 {
		return 0, fmt.Errorf("%w: zero hinge axis", ErrInvalidJointConfig)
	}

	joint := constraint.NewHingeJoint(bodyA, bodyB,
		localAnchorA, localAnchorB,
		localAxisA.Normalize(), localAxisB.Normalize())
	return w.addJoint(a, b, joint), nil
}

// AddFixedJoint welds two bodies together in their current relative pose.
func (w *World) AddFixedJoint(a, b BodyID, localAnchorA, localAnchorB mgl64.Vec3) (JointID, error) {
	bodyA, bodyB, err := w.jointBodies(a, b)
	if err != nil {
		return 0, err
	}
	return w.addJoint(a, b, constraint.NewFixedJoint(bodyA, bodyB, localAnchorA, localAnchorB)), nil
}

// Joint resolves a joint handle.
func (w *World) Joint(id JointID) (constraint.Joint, error) {
	for _, entry := range w.joints {
		if entry.id == id {
			return entry.joint, nil
		}
	}
	return nil, fmt.Errorf("%w: joint %d", ErrHandleNotFound, id)
}

// RemoveJoint deletes a joint.
func (w *World) RemoveJoint(id JointID) error {
	for i, entry := range w.joints {
		if entry.id == id {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: joint %d", ErrHandleNotFound, id)
}

// JointCount returns the number of live joints.
func (w *World) JointCount() int {
	return len(w.joints)
}

// ForEachJoint visits every joint in creation order, with the handles of
// the two bodies it connects.
func (w *World) ForEachJoint(fn func(id JointID, joint constraint.Joint, a, b BodyID)) {
	for _, entry := range w.joints {
		fn(entry.id, entry.joint, entry.bodyA, entry.bodyB)
	}
}

func (w *World) jointBodies(a, b BodyID) (*actor.RigidBody, *actor.RigidBody, error) {
	if a == b {
		return nil, nil, fmt.Errorf("%w: joint connects a body to itself", ErrInvalidJointConfig)
	}
	bodyA, err := w.Body(a)
	if err != nil {
		return nil, nil, err
	}
	bodyB, err := w.Body(b)
	if err != nil {
		return nil, nil, err
	}
	if bodyA.BodyType == actor.BodyTypeStatic && bodyB.BodyType == actor.BodyTypeStatic {
		return nil, nil, fmt.Errorf("%w: joint between two static bodies", ErrInvalidJointConfig)
	}
	return bodyA, bodyB, nil
}

func (w *World) addJoint(a, b BodyID, joint constraint.Joint) JointID {
	id := w.nextJointID
	w.nextJointID++
	w.joints = append(w.joints, jointEntry{id: id, joint: joint, bodyA: a, bodyB: b})
	return id
}
