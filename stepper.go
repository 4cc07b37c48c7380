package sokudo

import "github.com/Rice-Rocket/sokudo/actor"

const (
	sleepTimeThreshold     = 0.5
	sleepVelocityThreshold = 0.05
)

// Step advances the simulation by dt seconds. One call is one tick; callers
// wanting a fixed timestep loop should accumulate real time themselves and
// call Step with a constant dt. Given identical worlds and dt sequences, the
// resulting states are identical regardless of Workers.
func (w *World) Step(dt float64) {
	workers := max(DefaultWorkers, w.Workers)

	ids, bodies := w.snapshot()

	// Phase 1: collision detection.
	pairs := BroadPhase(w.SpatialGrid, bodies, dt)
	contacts := NarrowPhase(ids, bodies, pairs, workers)
	w.Events.recordCollisions(contacts)

	// A sleeping body hit by an awake dynamic body has to rejoin the
	// solve, or the mover would sink into it. Static bodies never wake
	// anything, or nothing could ever sleep on the ground.
	for _, c := range contacts {
		a, b := c.Constraint.BodyA, c.Constraint.BodyB
		if a.IsSleeping && !b.IsSleeping && b.BodyType == actor.BodyTypeDynamic {
			a.Awake()
		}
		if b.IsSleeping && !a.IsSleeping && a.BodyType == actor.BodyTypeDynamic {
			b.Awake()
		}
	}

	// Phase 2: forces into velocities. Positions do not move yet; the
	// solver corrects these tentative velocities first.
	task(workers, bodies, func(body *actor.RigidBody) {
		body.IntegrateVelocity(dt, w.Gravity)
	})

	// Phase 3: velocity solve with warm starting. Joints and contacts are
	// iterated in a fixed order so the result is deterministic.
	for _, entry := range w.joints {
		entry.joint.Init(dt, w.Solver.Params)
		entry.joint.WarmStart()
	}
	for _, c := range contacts {
		c.Constraint.Init(dt, w.Solver.Params)
		w.applyWarmStart(c)
		c.Constraint.WarmStart()
	}

	for iter := 0; iter < w.Solver.VelocityIterations; iter++ {
		for _, entry := range w.joints {
			entry.joint.SolveVelocity(dt)
		}
		for _, c := range contacts {
			c.Constraint.SolveVelocity(dt)
		}
	}

	// Phase 4: velocities into positions.
	task(workers, bodies, func(body *actor.RigidBody) {
		body.IntegratePosition(dt)
	})

	// Phase 5: positional correction of the remaining overlap and joint
	// drift the velocity solve could not remove.
	for iter := 0; iter < w.Solver.PositionIterations; iter++ {
		for _, entry := range w.joints {
			entry.joint.SolvePosition(w.Solver.Params)
		}
		for _, c := range contacts {
			c.Constraint.SolvePosition(w.Solver.Params)
		}
	}

	// Positional correction moved transforms without refreshing bounds.
	task(workers, bodies, func(body *actor.RigidBody) {
		if body.BodyType == actor.BodyTypeDynamic && !body.IsSleeping {
			body.UpdateAABB()
		}
	})

	w.storeWarmStart(contacts)

	task(workers, bodies, func(body *actor.RigidBody) {
		body.ClearForces()
	})

	// Too little work per body to be worth fanning out.
	for _, body := range bodies {
		body.TrySleep(dt, sleepTimeThreshold, sleepVelocityThreshold)
	}

	w.Events.processSleepEvents(ids, bodies)
	w.Events.flush()
}

// snapshot rebuilds the dense id and body lists in slot order, reusing the
// world's scratch buffers.
func (w *World) snapshot() ([]BodyID, []*actor.RigidBody) {
	ids := w.stepIDs[:0]
	bodies := w.stepBodies[:0]

	for i, slot := range w.slots {
		if slot.body != nil {
			ids = append(ids, BodyID{index: i, generation: slot.generation})
			bodies = append(bodies, slot.body)
		}
	}

	w.stepIDs, w.stepBodies = ids, bodies
	return ids, bodies
}

// applyWarmStart seeds a fresh manifold with last tick's accumulated
// impulses for the points whose feature ids survived.
func (w *World) applyWarmStart(c Contact) {
	for i := range c.Constraint.Points {
		p := &c.Constraint.Points[i]
		if cache, ok := w.warmStart[contactKey{a: c.A, b: c.B, feature: p.Feature}]; ok {
			p.NormalImpulse = cache.normalImpulse
			p.TangentImpulse = cache.tangentImpulse
		}
	}
}

// storeWarmStart rebuilds the impulse cache from this tick's manifolds.
// Rebuilding from scratch garbage-collects entries whose contacts vanished.
func (w *World) storeWarmStart(contacts []Contact) {
	cache := make(map[contactKey]contactCache, len(w.warmStart))
	for _, c := range contacts {
		for _, p := range c.Constraint.Points {
			cache[contactKey{a: c.A, b: c.B, feature: p.Feature}] = contactCache{
				normalImpulse:  p.NormalImpulse,
				tangentImpulse: p.TangentImpulse,
			}
		}
	}
	w.warmStart = cache
}
