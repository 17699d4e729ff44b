package engine_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/forces"
)

func ball(id string, x, y float64) dynamo.Body {
	return dynamo.Body{ID: id, Mass: 1, Radius: 10, Position: dynamo.V(x, y)}
}

func separation(eng *engine.Engine, a, b string) float64 {
	ba, _ := eng.Body(a)
	bb, _ := eng.Body(b)
	return ba.Position.Distance(bb.Position)
}

var _ = Describe("Engine", func() {
	var eng *engine.Engine

	BeforeEach(func() {
		eng = engine.New(dynamo.ConfigPatch{})
	})

	Describe("construction", func() {
		It("overlays the partial config on the defaults", func() {
			eng = engine.New(dynamo.ConfigPatch{Gravity: dynamo.Ptr(dynamo.V(0, 9.81))})
			cfg := eng.Config()
			Expect(cfg.Gravity).To(Equal(dynamo.V(0, 9.81)))
			Expect(cfg.TimeStep).To(Equal(dynamo.DefaultTimeStep))
			Expect(cfg.Integrator).To(Equal(dynamo.IntegratorEuler))
		})

		It("falls back to euler for an unknown integrator", func() {
			kind := dynamo.IntegratorKind("leapfrog")
			eng = engine.New(dynamo.ConfigPatch{Integrator: &kind})
			Expect(eng.Config().Integrator).To(Equal(dynamo.IntegratorEuler))
		})
	})

	Describe("body collection", func() {
		It("adds, replaces and removes bodies", func() {
			eng.AddBody(ball("a", 0, 0))
			eng.AddBody(ball("b", 100, 0))
			Expect(eng.Bodies()).To(HaveLen(2))

			moved := ball("a", 50, 50)
			eng.AddBody(moved)
			Expect(eng.Bodies()).To(HaveLen(2))
			Expect(eng.Bodies()[0].Position).To(Equal(dynamo.V(50, 50)))

			Expect(eng.RemoveBody("a")).To(BeTrue())
			Expect(eng.RemoveBody("a")).To(BeFalse())
			_, ok := eng.Body("a")
			Expect(ok).To(BeFalse())
			Expect(eng.Metrics().BodyCount).To(Equal(1))
		})

		It("purges springs attached to a removed body", func() {
			eng.AddBody(ball("a", 0, 0))
			eng.AddBody(ball("b", 50, 0))
			eng.AddBody(ball("c", 100, 0))
			eng.AddSpring(dynamo.Spring{ID: "ab", BodyA: "a", BodyB: "b", RestLength: 40, Stiffness: 1})
			eng.AddSpring(dynamo.Spring{ID: "bc", BodyA: "b", BodyB: "c", RestLength: 40, Stiffness: 1})
			eng.AddSpring(dynamo.Spring{ID: "ca", BodyA: "c", BodyB: "a", RestLength: 40, Stiffness: 1})
			eng.AddForce(forces.Springs())

			eng.RemoveBody("b")

			springs := eng.Springs()
			Expect(springs).To(HaveLen(1))
			Expect(springs[0].ID).To(Equal("ca"))
			Expect(func() {
				for i := 0; i < 10; i++ {
					eng.Update(0)
				}
			}).NotTo(Panic())
		})

		It("returns copies rather than internal state", func() {
			eng.AddBody(dynamo.Body{ID: "a", Mass: 1, Metadata: map[string]any{"label": "root"}})

			b, _ := eng.Body("a")
			b.Position = dynamo.V(99, 99)
			b.Metadata["label"] = "changed"
			all := eng.Bodies()
			all[0].Mass = 42

			got, _ := eng.Body("a")
			Expect(got.Position).To(Equal(dynamo.Vec2{}))
			Expect(got.Mass).To(Equal(1.0))
			Expect(got.Metadata["label"]).To(Equal("root"))
		})

		It("updates a body through a mutator without changing its id", func() {
			eng.AddBody(ball("a", 0, 0))
			ok := eng.UpdateBody("a", func(b *dynamo.Body) {
				b.ID = "renamed"
				b.Radius = 3
				b.Fixed = true
			})
			Expect(ok).To(BeTrue())

			got, found := eng.Body("a")
			Expect(found).To(BeTrue())
			Expect(got.Radius).To(Equal(3.0))
			Expect(got.Fixed).To(BeTrue())
			Expect(eng.UpdateBody("missing", func(*dynamo.Body) {})).To(BeFalse())
		})
	})

	Describe("springs and forces", func() {
		It("removes springs by id and ignores unknown ids", func() {
			eng.AddSpring(dynamo.Spring{ID: "s", BodyA: "a", BodyB: "b"})
			Expect(eng.RemoveSpring("nope")).To(BeFalse())
			Expect(eng.RemoveSpring("s")).To(BeTrue())
			Expect(eng.Springs()).To(BeEmpty())
		})

		It("clears forces", func() {
			eng.AddForce(forces.Gravity(dynamo.V(0, 1)))
			eng.AddForce(forces.Drag(0.1))
			Expect(eng.Forces()).To(HaveLen(2))
			eng.ClearForces()
			Expect(eng.Forces()).To(BeEmpty())
		})

		It("pulls a stretched spring pair together", func() {
			eng.UpdateConfig(dynamo.ConfigPatch{CollisionEnabled: dynamo.Ptr(false)})
			eng.AddBody(ball("a", 0, 0))
			eng.AddBody(ball("b", 100, 0))
			eng.AddSpring(dynamo.Spring{ID: "ab", BodyA: "a", BodyB: "b", RestLength: 50, Stiffness: 2})
			eng.AddForce(forces.Springs())

			before := separation(eng, "a", "b")
			for i := 0; i < 10; i++ {
				eng.Update(0)
			}
			Expect(separation(eng, "a", "b")).To(BeNumerically("<", before))
		})
	})

	Describe("stepping", func() {
		It("moves bodies under gravity and advances time", func() {
			eng.UpdateConfig(dynamo.ConfigPatch{Gravity: dynamo.Ptr(dynamo.V(0, 9.81))})
			eng.AddForce(forces.Gravity(dynamo.V(0, 9.81)))
			eng.AddBody(ball("a", 0, 0))

			eng.Update(0.1)

			got, _ := eng.Body("a")
			Expect(got.Position.Y).To(BeNumerically(">", 0))
			Expect(got.Acceleration).To(Equal(dynamo.V(0, 9.81)))
			Expect(eng.Time()).To(BeNumerically("~", 0.1, 1e-12))
		})

		It("uses the configured time step when dt is not positive", func() {
			eng.Update(0)
			eng.Update(-1)
			Expect(eng.Time()).To(BeNumerically("~", 2*dynamo.DefaultTimeStep, 1e-12))
		})

		It("clamps speed to the configured maximum", func() {
			eng.UpdateConfig(dynamo.ConfigPatch{MaxVelocity: dynamo.Ptr(10.0)})
			b := ball("a", 0, 0)
			b.Velocity = dynamo.V(300, 400)
			eng.AddBody(b)

			eng.Update(0)

			got, _ := eng.Body("a")
			Expect(got.Velocity.Magnitude()).To(BeNumerically("~", 10, 1e-9))
		})

		It("is reproducible for identical inputs", func() {
			build := func(kind dynamo.IntegratorKind) *engine.Engine {
				e := engine.New(dynamo.ConfigPatch{Integrator: &kind})
				e.AddForce(forces.Repulsion(500))
				e.AddForce(forces.Springs())
				e.AddForce(forces.CenterAttraction(dynamo.V(0, 0), 0.5))
				for i, id := range []string{"a", "b", "c", "d"} {
					e.AddBody(dynamo.Body{ID: id, Mass: 1, Radius: 8, Position: dynamo.V(float64(i*7), float64(i%2*5))})
				}
				e.AddSpring(dynamo.Spring{ID: "ab", BodyA: "a", BodyB: "b", RestLength: 30, Stiffness: 1, Damping: 0.1})
				e.AddSpring(dynamo.Spring{ID: "cd", BodyA: "c", BodyB: "d", RestLength: 30, Stiffness: 1, Damping: 0.1})
				return e
			}

			for _, kind := range []dynamo.IntegratorKind{dynamo.IntegratorEuler, dynamo.IntegratorVerlet, dynamo.IntegratorRK4} {
				first, second := build(kind), build(kind)
				for i := 0; i < 120; i++ {
					first.Update(0)
					second.Update(0)
				}
				Expect(first.Bodies()).To(Equal(second.Bodies()), "integrator %s", kind)
			}
		})
	})

	Describe("collisions", func() {
		It("steps a body far larger than a grid cell", func() {
			huge := ball("huge", 0, 0)
			huge.Radius = 2e5
			eng.AddBody(huge)
			eng.AddBody(ball("a", 100, 0))

			start := time.Now()
			eng.Update(0)

			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			Expect(eng.Metrics().CollisionChecks).To(Equal(1))
			Expect(eng.Metrics().Collisions).To(Equal(1))
		})

		It("leaves overlapping bodies alone when disabled", func() {
			eng.UpdateConfig(dynamo.ConfigPatch{CollisionEnabled: dynamo.Ptr(false)})
			eng.AddBody(ball("a", 0, 0))
			eng.AddBody(ball("b", 5, 0))

			eng.Update(0)

			Expect(separation(eng, "a", "b")).To(Equal(5.0))
			Expect(eng.Metrics().CollisionChecks).To(Equal(0))
		})
	})

	Describe("integrator selection", func() {
		It("swaps the strategy on the next step", func() {
			b := ball("a", 0, 0)
			b.Velocity = dynamo.V(60, 0)
			eng.AddBody(b)

			eng.Update(0)
			afterEuler, _ := eng.Body("a")
			Expect(afterEuler.Position.X).To(BeNumerically(">", 0))

			eng.UpdateConfig(dynamo.ConfigPatch{Integrator: dynamo.Ptr(dynamo.IntegratorVerlet)})
			Expect(eng.Config().Integrator).To(Equal(dynamo.IntegratorVerlet))
			eng.Update(0)

			// the euler velocity carries into the first verlet step
			afterVerlet, _ := eng.Body("a")
			Expect(afterVerlet.Position.X).To(BeNumerically(">", afterEuler.Position.X))
		})

		It("keeps the current strategy for an unknown name", func() {
			eng.UpdateConfig(dynamo.ConfigPatch{Integrator: dynamo.Ptr(dynamo.IntegratorKind("bogus"))})
			Expect(eng.Config().Integrator).To(Equal(dynamo.IntegratorEuler))
		})

		It("accelerates a verlet body from rest under gravity", func() {
			eng = engine.New(dynamo.ConfigPatch{Integrator: dynamo.Ptr(dynamo.IntegratorVerlet)})
			eng.AddForce(forces.Gravity(dynamo.V(0, 10)))
			eng.AddBody(ball("a", 0, 0))

			var ys []float64
			for i := 0; i < 4; i++ {
				eng.Update(0)
				got, _ := eng.Body("a")
				ys = append(ys, got.Position.Y)
			}
			Expect(ys[1] - ys[0]).To(BeNumerically(">", ys[0]))
			Expect(ys[3] - ys[2]).To(BeNumerically(">", ys[2]-ys[1]))
		})
	})

	Describe("under every integrator", func() {
		withIntegrator := func(kind dynamo.IntegratorKind, patch dynamo.ConfigPatch) *engine.Engine {
			patch.Integrator = &kind
			return engine.New(patch)
		}

		DescribeTable("never mutates fixed bodies",
			func(kind dynamo.IntegratorKind) {
				eng := withIntegrator(kind, dynamo.ConfigPatch{
					Bounds: &dynamo.Bounds{Min: dynamo.V(0, 0), Max: dynamo.V(100, 100)},
				})
				eng.AddForce(forces.Gravity(dynamo.V(0, 50)))
				eng.AddForce(forces.Repulsion(1000))
				anchor := ball("anchor", 5, 50)
				anchor.Fixed = true
				anchor.Velocity = dynamo.V(1, 2)
				eng.AddBody(anchor)
				mover := ball("mover", 20, 50)
				mover.Velocity = dynamo.V(-30, 0)
				eng.AddBody(mover)

				for i := 0; i < 60; i++ {
					eng.Update(0)
				}

				got, _ := eng.Body("anchor")
				Expect(got.Position).To(Equal(dynamo.V(5, 50)))
				Expect(got.Velocity).To(Equal(dynamo.V(1, 2)))
			},
			Entry("euler", dynamo.IntegratorEuler),
			Entry("verlet", dynamo.IntegratorVerlet),
			Entry("rk4", dynamo.IntegratorRK4),
		)

		// One update leaves the pair about 18.96 apart: the 80% positional
		// correction with 0.01 slop cannot close a 5.2 overlap in one pass.
		DescribeTable("bounces two approaching bodies apart",
			func(kind dynamo.IntegratorKind) {
				eng := withIntegrator(kind, dynamo.ConfigPatch{})
				a := ball("a", 0, 0)
				a.Velocity = dynamo.V(5, 0)
				b := ball("b", 15, 0)
				b.Velocity = dynamo.V(-5, 0)
				eng.AddBody(a)
				eng.AddBody(b)

				before := separation(eng, "a", "b")
				eng.Update(0)

				ga, _ := eng.Body("a")
				gb, _ := eng.Body("b")
				Expect(ga.Velocity.X).To(BeNumerically("<", 0))
				Expect(gb.Velocity.X).To(BeNumerically(">", 0))
				Expect(separation(eng, "a", "b")).To(BeNumerically(">", before))
				Expect(eng.Metrics().Collisions).To(Equal(1))
				Expect(eng.Metrics().CollisionChecks).To(Equal(1))

				for i := 0; i < 30; i++ {
					eng.Update(0)
				}
				Expect(separation(eng, "a", "b")).To(BeNumerically(">=", 20))
			},
			Entry("euler", dynamo.IntegratorEuler),
			Entry("verlet", dynamo.IntegratorVerlet),
			Entry("rk4", dynamo.IntegratorRK4),
		)

		DescribeTable("keeps bodies inside the bounds",
			func(kind dynamo.IntegratorKind) {
				eng := withIntegrator(kind, dynamo.ConfigPatch{
					Bounds: &dynamo.Bounds{Min: dynamo.V(0, 0), Max: dynamo.V(200, 200)},
				})
				b := ball("a", 12, 100)
				b.Velocity = dynamo.V(-600, 0)
				eng.AddBody(b)

				eng.Update(0)
				got, _ := eng.Body("a")
				Expect(got.Position.X).To(BeNumerically("~", 10, 1e-9))
				Expect(got.Velocity.X).To(BeNumerically(">", 0))

				eng.Update(0)
				moved, _ := eng.Body("a")
				Expect(moved.Position.X).To(BeNumerically(">", got.Position.X))
			},
			Entry("euler", dynamo.IntegratorEuler),
			Entry("verlet", dynamo.IntegratorVerlet),
			Entry("rk4", dynamo.IntegratorRK4),
		)

		DescribeTable("turns velocity changes into motion",
			func(kind dynamo.IntegratorKind) {
				eng := withIntegrator(kind, dynamo.ConfigPatch{})
				eng.AddBody(dynamo.Body{ID: "a", Mass: 1, Velocity: dynamo.V(100, 0)})

				eng.Update(0)
				got, _ := eng.Body("a")
				Expect(got.Position.X).To(BeNumerically(">", 0))
				Expect(got.Position.Y).To(Equal(0.0))

				eng.ApplyImpulse("a", dynamo.V(0, 100))
				for i := 0; i < 10; i++ {
					eng.Update(0)
				}
				got, _ = eng.Body("a")
				Expect(got.Position.Y).To(BeNumerically(">", 0))

				eng.SetVelocity("a", dynamo.Vec2{})
				eng.Update(0)
				stopped, _ := eng.Body("a")
				Expect(stopped.Position).To(Equal(got.Position))

				eng.UpdateBody("a", func(b *dynamo.Body) { b.Velocity = dynamo.V(-60, 0) })
				eng.Update(0)
				back, _ := eng.Body("a")
				Expect(back.Position.X).To(BeNumerically("<", stopped.Position.X))

				eng.SetPosition("a", dynamo.V(500, 500))
				eng.Update(0)
				teleported, _ := eng.Body("a")
				Expect(teleported.Position.X).To(BeNumerically("<", 500))
				Expect(teleported.Position.Y).To(BeNumerically("~", 500, 1e-9))
			},
			Entry("euler", dynamo.IntegratorEuler),
			Entry("verlet", dynamo.IntegratorVerlet),
			Entry("rk4", dynamo.IntegratorRK4),
		)

		DescribeTable("clamps speed before the next step",
			func(kind dynamo.IntegratorKind) {
				eng := withIntegrator(kind, dynamo.ConfigPatch{MaxVelocity: dynamo.Ptr(10.0)})
				b := ball("a", 0, 0)
				b.Velocity = dynamo.V(600, 0)
				eng.AddBody(b)

				eng.Update(0)
				first, _ := eng.Body("a")
				eng.Update(0)
				second, _ := eng.Body("a")

				Expect(second.Position.X - first.Position.X).To(BeNumerically("<=", 10*dynamo.DefaultTimeStep+1e-9))
			},
			Entry("euler", dynamo.IntegratorEuler),
			Entry("verlet", dynamo.IntegratorVerlet),
			Entry("rk4", dynamo.IntegratorRK4),
		)
	})

	Describe("pause and reset", func() {
		It("makes update a no-op while paused", func() {
			b := ball("a", 0, 0)
			b.Velocity = dynamo.V(10, 0)
			eng.AddBody(b)
			eng.Update(0)
			metricsBefore := eng.Metrics()
			timeBefore := eng.Time()

			eng.Pause()
			Expect(eng.IsPaused()).To(BeTrue())
			eng.Update(0)

			Expect(eng.Time()).To(Equal(timeBefore))
			Expect(eng.Metrics()).To(Equal(metricsBefore))

			eng.Resume()
			eng.Update(0)
			Expect(eng.Time()).To(BeNumerically(">", timeBefore))
		})

		It("clears everything on reset", func() {
			eng.AddBody(ball("a", 0, 0))
			eng.AddSpring(dynamo.Spring{ID: "s", BodyA: "a", BodyB: "a"})
			eng.AddForce(forces.Drag(1))
			eng.Update(0)

			eng.Reset()

			Expect(eng.Bodies()).To(BeEmpty())
			Expect(eng.Springs()).To(BeEmpty())
			Expect(eng.Forces()).To(BeEmpty())
			Expect(eng.Time()).To(Equal(0.0))
		})
	})

	Describe("direct mutation", func() {
		BeforeEach(func() {
			eng.AddBody(dynamo.Body{ID: "m", Mass: 2})
			eng.AddBody(dynamo.Body{ID: "f", Mass: 2, Fixed: true})
		})

		It("applies impulses as velocity change over mass", func() {
			eng.ApplyImpulse("m", dynamo.V(4, -2))
			got, _ := eng.Body("m")
			Expect(got.Velocity).To(Equal(dynamo.V(2, -1)))
		})

		It("ignores velocity changes on fixed bodies", func() {
			eng.ApplyImpulse("f", dynamo.V(4, 0))
			eng.SetVelocity("f", dynamo.V(4, 0))
			got, _ := eng.Body("f")
			Expect(got.Velocity.IsZero()).To(BeTrue())
		})

		It("sets position and velocity", func() {
			eng.SetPosition("m", dynamo.V(7, 8))
			eng.SetVelocity("m", dynamo.V(1, 1))
			got, _ := eng.Body("m")
			Expect(got.Position).To(Equal(dynamo.V(7, 8)))
			Expect(got.Velocity).To(Equal(dynamo.V(1, 1)))
		})

		It("ignores unknown ids", func() {
			Expect(func() {
				eng.ApplyImpulse("ghost", dynamo.V(1, 1))
				eng.SetPosition("ghost", dynamo.V(1, 1))
				eng.SetVelocity("ghost", dynamo.V(1, 1))
			}).NotTo(Panic())
			Expect(eng.Bodies()).To(HaveLen(2))
		})
	})

	Describe("metrics", func() {
		It("reports counts, energy and frame rate", func() {
			now := time.Unix(1000, 0)
			eng = engine.New(
				dynamo.ConfigPatch{GlobalDamping: dynamo.Ptr(0.0)},
				engine.WithClock(func() time.Time { return now }),
			)
			b := dynamo.Body{ID: "a", Mass: 2, Velocity: dynamo.V(3, 4)}
			eng.AddBody(b)
			eng.AddBody(dynamo.Body{ID: "b", Mass: 1, Position: dynamo.V(500, 500)})
			eng.AddSpring(dynamo.Spring{ID: "s", BodyA: "a", BodyB: "b", RestLength: 10})

			eng.Update(0)
			now = now.Add(20 * time.Millisecond)
			eng.Update(0)

			m := eng.Metrics()
			Expect(m.BodyCount).To(Equal(2))
			Expect(m.SpringCount).To(Equal(1))
			Expect(m.TotalEnergy).To(BeNumerically("~", 25, 1e-9))
			Expect(m.FPS).To(BeNumerically("~", 50, 1e-9))
		})

		It("returns a config copy", func() {
			eng.UpdateConfig(dynamo.ConfigPatch{Bounds: &dynamo.Bounds{Max: dynamo.V(10, 10)}})
			cfg := eng.Config()
			cfg.Bounds.Max = dynamo.V(1, 1)
			cfg.Gravity = dynamo.V(5, 5)

			Expect(eng.Config().Bounds.Max).To(Equal(dynamo.V(10, 10)))
			Expect(eng.Config().Gravity).To(Equal(dynamo.Vec2{}))
		})
	})
})
