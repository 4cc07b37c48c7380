// Package scene loads and saves world descriptions as YAML, so simulations
// can be authored as files and rebuilt identically.
package scene

import (
	"errors"
	"fmt"
	"os"

	"github.com/Rice-Rocket/sokudo"
	"github.com/Rice-Rocket/sokudo/actor"
	"github.com/Rice-Rocket/sokudo/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownShape = errors.New("unknown shape type")
	ErrUnknownJoint = errors.New("unknown joint type")
	ErrUnknownBody  = errors.New("unknown body name")
)

const (
	DefaultTimestep           = 1.0 / 60.0
	DefaultVelocityIterations = 8
	DefaultPositionIterations = 3
)

// Config is the on-disk form of a world.
type Config struct {
	Gravity            [3]float64    `yaml:"gravity"`
	Timestep           float64       `yaml:"timestep"`
	VelocityIterations int           `yaml:"velocity_iterations"`
	PositionIterations int           `yaml:"position_iterations"`
	Workers            int           `yaml:"workers"`
	Bodies             []BodyConfig  `yaml:"bodies"`
	Joints             []JointConfig `yaml:"joints,omitempty"`
}

type BodyConfig struct {
	Name            string          `yaml:"name"`
	Static          bool            `yaml:"static,omitempty"`
	Shape           ShapeConfig     `yaml:"shape"`
	Position        [3]float64      `yaml:"position,omitempty"`
	Rotation        [4]float64      `yaml:"rotation,omitempty"` // w, x, y, z
	Velocity        [3]float64      `yaml:"velocity,omitempty"`
	AngularVelocity [3]float64      `yaml:"angular_velocity,omitempty"`
	Material        *MaterialConfig `yaml:"material,omitempty"`
}

type ShapeConfig struct {
	Type        string       `yaml:"type"`
	Radius      float64      `yaml:"radius,omitempty"`
	HalfExtents [3]float64   `yaml:"half_extents,omitempty"`
	HalfHeight  float64      `yaml:"half_height,omitempty"`
	Normal      [3]float64   `yaml:"normal,omitempty"`
	Distance    float64      `yaml:"distance,omitempty"`
	Vertices    [][3]float64 `yaml:"vertices,omitempty"`
}

type MaterialConfig struct {
	Density     float64 `yaml:"density"`
	Restitution float64 `yaml:"restitution"`
	Friction    float64 `yaml:"friction"`
}

type JointConfig struct {
	Type       string     `yaml:"type"` // distance, hinge, fixed
	BodyA      string     `yaml:"body_a"`
	BodyB      string     `yaml:"body_b"`
	AnchorA    [3]float64 `yaml:"anchor_a,omitempty"`
	AnchorB    [3]float64 `yaml:"anchor_b,omitempty"`
	AxisA      [3]float64 `yaml:"axis_a,omitempty"`
	AxisB      [3]float64 `yaml:"axis_b,omitempty"`
	RestLength float64    `yaml:"rest_length,omitempty"`

	// Hinge only.
	EnableLimit     bool    `yaml:"enable_limit,omitempty"`
	LowerLimit      float64 `yaml:"lower_limit,omitempty"` // radians
	UpperLimit      float64 `yaml:"upper_limit,omitempty"`
	EnableMotor     bool    `yaml:"enable_motor,omitempty"`
	MotorSpeed      float64 `yaml:"motor_speed,omitempty"` // rad/s
	MaxMotorImpulse float64 `yaml:"max_motor_impulse,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Gravity:            [3]float64{0, -9.81, 0},
		Timestep:           DefaultTimestep,
		VelocityIterations: DefaultVelocityIterations,
		PositionIterations: DefaultPositionIterations,
		Workers:            1,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Build constructs a world from the config. The returned map gives the body
// handles by config name, in case the caller wants to poke at them.
func (c *Config) Build() (*sokudo.World, map[string]sokudo.BodyID, error) {
	world := sokudo.NewWorld()
	world.Gravity = vec3(c.Gravity)
	if c.VelocityIterations > 0 {
		world.Solver.VelocityIterations = c.VelocityIterations
	}
	if c.PositionIterations > 0 {
		world.Solver.PositionIterations = c.PositionIterations
	}
	if c.Workers > 0 {
		world.Workers = c.Workers
	}

	names := make(map[string]sokudo.BodyID, len(c.Bodies))
	for i, bc := range c.Bodies {
		body, err := bc.build()
		if err != nil {
			return nil, nil, fmt.Errorf("body %d (%q): %w", i, bc.Name, err)
		}
		id := world.AddBody(body)
		if bc.Name != "" {
			names[bc.Name] = id
		}
	}

	for i, jc := range c.Joints {
		if err := jc.build(world, names); err != nil {
			return nil, nil, fmt.Errorf("joint %d: %w", i, err)
		}
	}

	return world, names, nil
}

func (bc BodyConfig) build() (*actor.RigidBody, error) {
	shape, err := bc.Shape.build()
	if err != nil {
		return nil, err
	}

	rotation := quat(bc.Rotation)
	if rotation == (mgl64.Quat{}) {
		rotation = mgl64.QuatIdent()
	}

	material := actor.DefaultMaterial
	if bc.Material != nil {
		material = actor.Material{
			Density:     bc.Material.Density,
			Restitution: bc.Material.Restitution,
			Friction:    bc.Material.Friction,
		}
	}

	bodyType := actor.BodyTypeDynamic
	if bc.Static {
		bodyType = actor.BodyTypeStatic
	}

	body, err := actor.NewRigidBody(actor.NewTransformAt(vec3(bc.Position), rotation), shape, bodyType, material)
	if err != nil {
		return nil, err
	}
	body.Velocity = vec3(bc.Velocity)
	body.AngularVelocity = vec3(bc.AngularVelocity)
	return body, nil
}

func (sc ShapeConfig) build() (actor.ShapeInterface, error) {
	switch sc.Type {
	case "sphere":
		return &actor.Sphere{Radius: sc.Radius}, nil
	case "box":
		return &actor.Box{HalfExtents: vec3(sc.HalfExtents)}, nil
	case "capsule":
		return &actor.Capsule{Radius: sc.Radius, HalfHeight: sc.HalfHeight}, nil
	case "plane":
		return &actor.Plane{Normal: vec3(sc.Normal), Distance: sc.Distance}, nil
	case "hull":
		vertices := make([]mgl64.Vec3, len(sc.Vertices))
		for i, v := range sc.Vertices {
			vertices[i] = vec3(v)
		}
		return &actor.ConvexHull{Vertices: vertices}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, sc.Type)
	}
}

func (jc JointConfig) build(world *sokudo.World, names map[string]sokudo.BodyID) error {
	idA, ok := names[jc.BodyA]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBody, jc.BodyA)
	}
	idB, ok := names[jc.BodyB]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBody, jc.BodyB)
	}

	switch jc.Type {
	case "distance":
		_, err := world.AddDistanceJoint(idA, idB, vec3(jc.AnchorA), vec3(jc.AnchorB), jc.RestLength)
		return err
	case "hinge":
		id, err := world.AddHingeJoint(idA, idB, vec3(jc.AnchorA), vec3(jc.AnchorB), vec3(jc.AxisA), vec3(jc.AxisB))
		if err != nil {
			return err
		}
		joint, err := world.Joint(id)
		if err != nil {
			return err
		}
		hinge := joint.(*constraint.HingeJoint)
		hinge.EnableLimit = jc.EnableLimit
		hinge.LowerLimit = jc.LowerLimit
		hinge.UpperLimit = jc.UpperLimit
		hinge.EnableMotor = jc.EnableMotor
		hinge.MotorSpeed = jc.MotorSpeed
		hinge.MaxMotorImpulse = jc.MaxMotorImpulse
		return nil
	case "fixed":
		_, err := world.AddFixedJoint(idA, idB, vec3(jc.AnchorA), vec3(jc.AnchorB))
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJoint, jc.Type)
	}
}

// Snapshot converts a live world back into a config, capturing the full
// dynamic state (poses and velocities) so the result rebuilds mid-flight.
// names maps config names to handles, as returned by Build; bodies without
// a name are given one, since joints reference bodies by name.
func Snapshot(world *sokudo.World, names map[string]sokudo.BodyID) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Gravity = array3(world.Gravity)
	cfg.VelocityIterations = world.Solver.VelocityIterations
	cfg.PositionIterations = world.Solver.PositionIterations
	cfg.Workers = world.Workers

	byID := make(map[sokudo.BodyID]string, len(names))
	for name, id := range names {
		byID[id] = name
	}

	var buildErr error
	world.ForEachBody(func(id sokudo.BodyID, body *actor.RigidBody) {
		if buildErr != nil {
			return
		}
		shape, err := describeShape(body.Shape)
		if err != nil {
			buildErr = err
			return
		}

		name, ok := byID[id]
		if !ok {
			name = fmt.Sprintf("body_%d", len(cfg.Bodies))
			byID[id] = name
		}
		bc := BodyConfig{
			Name:            name,
			Static:          body.BodyType == actor.BodyTypeStatic,
			Shape:           shape,
			Position:        array3(body.Transform.Position),
			Rotation:        array4(body.Transform.Rotation),
			Velocity:        array3(body.Velocity),
			AngularVelocity: array3(body.AngularVelocity),
		}
		if body.Material != actor.DefaultMaterial {
			bc.Material = &MaterialConfig{
				Density:     body.Material.Density,
				Restitution: body.Material.Restitution,
				Friction:    body.Material.Friction,
			}
		}
		cfg.Bodies = append(cfg.Bodies, bc)
	})
	if buildErr != nil {
		return nil, buildErr
	}

	world.ForEachJoint(func(_ sokudo.JointID, joint constraint.Joint, a, b sokudo.BodyID) {
		jc := JointConfig{BodyA: byID[a], BodyB: byID[b]}
		switch j := joint.(type) {
		case *constraint.DistanceJoint:
			jc.Type = "distance"
			jc.AnchorA = array3(j.LocalAnchorA)
			jc.AnchorB = array3(j.LocalAnchorB)
			jc.RestLength = j.RestLength
		case *constraint.HingeJoint:
			jc.Type = "hinge"
			jc.AnchorA = array3(j.LocalAnchorA)
			jc.AnchorB = array3(j.LocalAnchorB)
			jc.AxisA = array3(j.LocalAxisA)
			jc.AxisB = array3(j.LocalAxisB)
			jc.EnableLimit = j.EnableLimit
			jc.LowerLimit = j.LowerLimit
			jc.UpperLimit = j.UpperLimit
			jc.EnableMotor = j.EnableMotor
			jc.MotorSpeed = j.MotorSpeed
			jc.MaxMotorImpulse = j.MaxMotorImpulse
		case *constraint.FixedJoint:
			jc.Type = "fixed"
			jc.AnchorA = array3(j.LocalAnchorA)
			jc.AnchorB = array3(j.LocalAnchorB)
		default:
			return
		}
		cfg.Joints = append(cfg.Joints, jc)
	})

	return cfg, nil
}

func describeShape(shape actor.ShapeInterface) (ShapeConfig, error) {
	switch s := shape.(type) {
	case *actor.Sphere:
		return ShapeConfig{Type: "sphere", Radius: s.Radius}, nil
	case *actor.Box:
		return ShapeConfig{Type: "box", HalfExtents: array3(s.HalfExtents)}, nil
	case *actor.Capsule:
		return ShapeConfig{Type: "capsule", Radius: s.Radius, HalfHeight: s.HalfHeight}, nil
	case *actor.Plane:
		return ShapeConfig{Type: "plane", Normal: array3(s.Normal), Distance: s.Distance}, nil
	case *actor.ConvexHull:
		vertices := make([][3]float64, len(s.Vertices))
		for i, v := range s.Vertices {
			vertices[i] = array3(v)
		}
		return ShapeConfig{Type: "hull", Vertices: vertices}, nil
	default:
		return ShapeConfig{}, fmt.Errorf("%w: %T", ErrUnknownShape, shape)
	}
}

func vec3(v [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func quat(q [4]float64) mgl64.Quat {
	return mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}
}

func array3(v mgl64.Vec3) [3]float64 {
	return [3]float64{v.X(), v.Y(), v.Z()}
}

func array4(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()}
}
