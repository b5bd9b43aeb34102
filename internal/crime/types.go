// apps/go-server/internal/crime/types.go
//
// Core type definitions for the Criminle comparison engine.
// Defines:
//   - Country: one nation with its sourced homicide rate and derived stats.
//   - Stats: the four synthesized crime statistics.
//   - Hint: per-statistic comparison of a guess against the target.
//   - Result: full outcome of comparing one guess to the target.

package crime

import "errors"

// ErrNotSynthesized is returned when a country reaches the evaluator
// before its derived statistics were generated.
var ErrNotSynthesized = errors.New("crime: country stats not synthesized")

// Hint represents the evaluation of a single statistic in a guess.
// Possible values:
//   - "exact":  guess value equals the target value.
//   - "close":  within 10% of the target value.
//   - "higher": guess overshot the target (player should go lower).
//   - "lower":  guess undershot the target (player should go higher).
type Hint string

const (
	HintExact  Hint = "exact"
	HintClose  Hint = "close"
	HintHigher Hint = "higher"
	HintLower  Hint = "lower"
)

// Stats holds the synthesized statistics of a country.
type Stats struct {
	PropertyCrimeIndex float64 `json:"property_crime_index"` // [0,100]
	RobberyRate        float64 `json:"robbery_rate"`         // [0,50]
	SafetyIndex        float64 `json:"safety_index"`         // [0,100]
	IncarcerationRate  float64 `json:"incarceration_rate"`   // [10,1000]
}

// Country is a single record of the country pool.
// Stats is nil until Synthesize has run.
type Country struct {
	Name         string  `json:"country_name"`
	ISOCode      string  `json:"iso_code"`
	Region       string  `json:"region"`
	Subregion    string  `json:"subregion"`
	HomicideRate float64 `json:"homicide_rate"` // per 100,000 inhabitants
	Year         int     `json:"year"`
	FlagURL      string  `json:"flag_url"`
	Stats        *Stats  `json:"stats,omitempty"`
}

// Synthesized reports whether the derived statistics are present.
func (c Country) Synthesized() bool { return c.Stats != nil }

// Result is the outcome of comparing a guessed country to the target.
type Result struct {
	Correct           bool    `json:"correct"`
	RegionMatch       bool    `json:"regionMatch"`
	SubregionMatch    bool    `json:"subregionMatch"`
	HomicideRateHint  Hint    `json:"homicideRateHint"`
	PropertyHint      Hint    `json:"propertyHint"`
	RobberyHint       Hint    `json:"robberyHint"`
	SafetyHint        Hint    `json:"safetyHint"`
	IncarcerationHint Hint    `json:"incarcerationHint"`
	Distance          float64 `json:"distance"` // lower = more similar
}
