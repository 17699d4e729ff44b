// Package analysis inspects recorded runs and live engines.
//
//   - [PowerSpectrum] and [DominantFrequency]: oscillation content of a sampled series
//   - [BodyPhase]: one body's position against its velocity along an axis
//   - [LyapunovExponent]: divergence rate of two nearly identical scenes
//
// # Chaos Detection
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	build := func() (*engine.Engine, error) { return scene.Build() }
//	lambda, err := analysis.LyapunovExponent(build, analysis.LyapunovConfig{Dt: 1.0 / 60, Duration: 10})
//	if err == nil && lambda > 0 {
//	    // scene is chaotic
//	}
package analysis
