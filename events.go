package sokudo

import (
	"sort"

	"github.com/Rice-Rocket/sokudo/actor"
)

// EventType discriminates the events the world can emit.
type EventType uint8

const (
	CollisionEnter EventType = iota
	CollisionStay
	CollisionExit
	OnSleep
	OnWake
)

// Event is implemented by all event payloads.
type Event interface {
	Type() EventType
}

// CollisionEnterEvent fires the first tick two bodies touch.
type CollisionEnterEvent struct {
	BodyA BodyID
	BodyB BodyID
}

func (e CollisionEnterEvent) Type() EventType { return CollisionEnter }

// CollisionStayEvent fires every tick two bodies stay in contact, unless
// both are asleep.
type CollisionStayEvent struct {
	BodyA BodyID
	BodyB BodyID
}

func (e CollisionStayEvent) Type() EventType { return CollisionStay }

// CollisionExitEvent fires the first tick two previously touching bodies
// separate.
type CollisionExitEvent struct {
	BodyA BodyID
	BodyB BodyID
}

func (e CollisionExitEvent) Type() EventType { return CollisionExit }

type SleepEvent struct {
	Body BodyID
}

func (e SleepEvent) Type() EventType { return OnSleep }

type WakeEvent struct {
	Body BodyID
}

func (e WakeEvent) Type() EventType { return OnWake }

// EventListener receives events at the end of each step.
type EventListener func(event Event)

type pairKey struct {
	bodyA BodyID
	bodyB BodyID
}

// makePairKey normalizes the pair so (A, B) and (B, A) map to the same key.
func makePairKey(a, b BodyID) pairKey {
	if b.less(a) {
		a, b = b, a
	}
	return pairKey{bodyA: a, bodyB: b}
}

// Events tracks contact pairs and sleep states across ticks and dispatches
// Enter/Stay/Exit and Sleep/Wake events to subscribed listeners. Events are
// buffered during a step and delivered at the end, so listeners observe a
// consistent world.
type Events struct {
	listeners map[EventType][]EventListener

	buffer []Event

	previousActivePairs map[pairKey]bool
	currentActivePairs  map[pairKey]bool

	sleepStates map[BodyID]bool

	// asleep reports whether a body is currently sleeping; the world wires
	// it at construction so the pair diff can suppress Stay spam between
	// two sleeping bodies.
	asleep func(id BodyID) bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]bool),
		currentActivePairs:  make(map[pairKey]bool),
		sleepStates:         make(map[BodyID]bool),
	}
}

// Subscribe adds a listener for an event type.
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) recordCollisions(contacts []Contact) {
	for _, c := range contacts {
		e.currentActivePairs[makePairKey(c.A, c.B)] = true
	}
}

// forgetBody drops all tracking state for a removed body so a recycled slot
// cannot inherit its history.
func (e *Events) forgetBody(id BodyID) {
	delete(e.sleepStates, id)
	for pair := range e.previousActivePairs {
		if pair.bodyA == id || pair.bodyB == id {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair := range e.currentActivePairs {
		if pair.bodyA == id || pair.bodyB == id {
			delete(e.currentActivePairs, pair)
		}
	}
}

// sortedPairs lists a pair set in handle order, so listeners see the same
// event order on every run of the same simulation.
func sortedPairs(set map[pairKey]bool) []pairKey {
	pairs := make([]pairKey, 0, len(set))
	for pair := range set {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].bodyA != pairs[j].bodyA {
			return pairs[i].bodyA.less(pairs[j].bodyA)
		}
		return pairs[i].bodyB.less(pairs[j].bodyB)
	})
	return pairs
}

// processCollisionEvents diffs current against previous pairs to emit
// Enter/Stay/Exit, then swaps the sets for the next tick.
func (e *Events) processCollisionEvents() {
	for _, pair := range sortedPairs(e.currentActivePairs) {
		// Skip Stay spam for pairs that are fully asleep.
		if e.asleep != nil && e.asleep(pair.bodyA) && e.asleep(pair.bodyB) {
			continue
		}

		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	for _, pair := range sortedPairs(e.previousActivePairs) {
		if !e.currentActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

// processSleepEvents emits Sleep/Wake transitions by comparing each body's
// sleep flag against its last observed state.
func (e *Events) processSleepEvents(ids []BodyID, bodies []*actor.RigidBody) {
	for i, id := range ids {
		isSleeping := bodies[i].IsSleeping

		trackedState, exists := e.sleepStates[id]
		if !exists {
			e.sleepStates[id] = isSleeping
			continue
		}

		if !trackedState && isSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: id})
			e.sleepStates[id] = true
		} else if trackedState && !isSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: id})
			e.sleepStates[id] = false
		}
	}
}

// flush runs the pair diff and delivers everything buffered this step.
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
