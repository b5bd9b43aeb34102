// apps/go-server/internal/crime/synth.go
//
// Stat synthesis: fabricates four crime statistics from a country's homicide rate.
//
// Formulas (h = homicide rate):
//   - property      = min(100, h*U[3,5) + U[0,10))
//   - robbery       = min(50,  h*U[1.5,3) + U[0,5))
//   - safety        = clamp(max(0, 100-3h) + U[-10,10), 0, 100)
//   - incarceration = clamp(h*U[10,30), 10, 1000)
//
// Values are random on every call. Callers synthesize each country once
// per process and keep the result (see countries.NewCatalog).

package crime

import "math"

// Rand is the random source used by the synthesizer.
// Float64 must return a value in [0,1). *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// RandFunc adapts a function such as math/rand.Float64 to Rand.
type RandFunc func() float64

func (f RandFunc) Float64() float64 { return f() }

// Synthesize returns a copy of c with Stats populated.
// Draws are taken in a fixed order so a scripted Rand yields exact values.
func Synthesize(c Country, r Rand) Country {
	h := c.HomicideRate

	propertyFactor := uniform(r, 3, 5)
	property := math.Min(100, h*propertyFactor+uniform(r, 0, 10))

	robberyFactor := uniform(r, 1.5, 3)
	robbery := math.Min(50, h*robberyFactor+uniform(r, 0, 5))

	safetyBase := math.Max(0, 100-h*3)
	safety := clamp(safetyBase+uniform(r, -10, 10), 0, 100)

	incarceration := clamp(h*uniform(r, 10, 30), 10, 1000)

	c.Stats = &Stats{
		PropertyCrimeIndex: property,
		RobberyRate:        robbery,
		SafetyIndex:        safety,
		IncarcerationRate:  incarceration,
	}
	return c
}

// uniform draws from [lo, hi).
func uniform(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
