// Package analysis extracts frequency content from recorded runs, e.g. the
// swing period of a pendulum or the ringing of an under-damped joint.
//
//	freq, _ := analysis.DominantFrequency(series.Column("bob.x"), dt)
//	period := 1 / freq
package analysis
