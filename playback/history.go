// Package playback records simulation runs to disk and replays them, either
// programmatically (driving a world through its pose override) or in a
// terminal viewer.
package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Rice-Rocket/sokudo"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrFrameMismatch is returned when a frame is applied to a world whose body
// set no longer matches the recording.
var ErrFrameMismatch = errors.New("frame does not match world body set")

// BodyState is one body's snapshot within a frame.
type BodyState struct {
	Position        [3]float64 `json:"position"`
	Rotation        [4]float64 `json:"rotation"` // w, x, y, z
	Velocity        [3]float64 `json:"velocity"`
	AngularVelocity [3]float64 `json:"angular_velocity"`
}

// Frame is a full world snapshot at one instant. Bodies are stored in the
// world's BodyIDs order at recording time.
type Frame struct {
	Time   float64     `json:"time"`
	Bodies []BodyState `json:"bodies"`
}

// History is a recorded run.
type History struct {
	Timestep float64 `json:"timestep"`
	Frames   []Frame `json:"frames"`
}

// Save writes the history as indented JSON.
func (h *History) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(h)
}

// Load reads a history written by Save.
func Load(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Recorder accumulates frames from a live world.
type Recorder struct {
	history History
}

func NewRecorder(timestep float64) *Recorder {
	return &Recorder{history: History{Timestep: timestep}}
}

// Record snapshots every live body. The world's body set must stay constant
// over a recording, or replay will refuse the frames.
func (r *Recorder) Record(world *sokudo.World, t float64) {
	frame := Frame{Time: t, Bodies: make([]BodyState, 0, world.BodyCount())}

	for _, id := range world.BodyIDs() {
		body, err := world.Body(id)
		if err != nil {
			continue
		}
		frame.Bodies = append(frame.Bodies, BodyState{
			Position:        toArray3(body.Transform.Position),
			Rotation:        toArray4(body.Transform.Rotation),
			Velocity:        toArray3(body.Velocity),
			AngularVelocity: toArray3(body.AngularVelocity),
		})
	}

	r.history.Frames = append(r.history.Frames, frame)
}

// History returns the frames recorded so far.
func (r *Recorder) History() *History {
	return &r.history
}

// Apply drives the world to a recorded frame through the kinematic pose
// override. Velocities are restored too, so the simulation can be resumed
// from any frame.
func Apply(world *sokudo.World, frame Frame) error {
	ids := world.BodyIDs()
	if len(ids) != len(frame.Bodies) {
		return fmt.Errorf("%w: world has %d bodies, frame has %d", ErrFrameMismatch, len(ids), len(frame.Bodies))
	}

	for i, id := range ids {
		state := frame.Bodies[i]
		if err := world.SetBodyPose(id, toVec3(state.Position), toQuat(state.Rotation)); err != nil {
			return err
		}
		body, err := world.Body(id)
		if err != nil {
			return err
		}
		body.Velocity = toVec3(state.Velocity)
		body.AngularVelocity = toVec3(state.AngularVelocity)
	}
	return nil
}

func toArray3(v mgl64.Vec3) [3]float64 {
	return [3]float64{v.X(), v.Y(), v.Z()}
}

func toArray4(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()}
}

func toVec3(v [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func toQuat(q [4]float64) mgl64.Quat {
	return mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}
}
