// Package dynamo provides the core primitives shared by the force simulation
// packages.
//
// The package defines the data model every other package speaks:
//
//   - [Vec2]: immutable 2D vector value with the arithmetic the solver needs
//   - [Body]: a point mass with a circular collision footprint
//   - [Spring]: a damped elastic connector between two bodies
//   - [Config] / [ConfigPatch]: engine configuration and partial updates
//   - [Integrator]: strategy advancing one body over a time step
//   - [Metrics]: per-step telemetry
//
// # Example
//
//	eng := engine.New(dynamo.ConfigPatch{})
//	eng.AddBody(dynamo.Body{ID: "a", Mass: 1, Radius: 10})
//	eng.AddForce(forces.Gravity(dynamo.Vec2{Y: 9.81}))
//	eng.Update(0)
//
// # Thread Safety
//
// None of the types here carry locks. An engine and the bodies it owns must be
// driven from a single goroutine.
package dynamo
