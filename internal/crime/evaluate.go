// apps/go-server/internal/crime/evaluate.go
//
// Guess evaluation: compares a guessed country against the target.
// Responsibilities:
//   - Exact match detection by ISO code (the only win condition).
//   - Region/subregion match flags.
//   - Per-statistic hints (exact/close/higher/lower).
//   - A rough distance score (lower = more similar).
//
// Notes:
//   - Incarceration rate gets a hint but is not part of the distance score.
//   - A target value of zero skips the percentage check (see Hint).

package crime

import "math"

// closePercent is the max relative difference (in %) that still counts as close.
const closePercent = 10

// Evaluate compares guess to target. Both countries must be synthesized.
func Evaluate(guess, target Country) (Result, error) {
	if !guess.Synthesized() || !target.Synthesized() {
		return Result{}, ErrNotSynthesized
	}
	g, t := guess.Stats, target.Stats
	return Result{
		Correct:           guess.ISOCode == target.ISOCode,
		RegionMatch:       guess.Region == target.Region,
		SubregionMatch:    guess.Subregion == target.Subregion,
		HomicideRateHint:  StatHint(guess.HomicideRate, target.HomicideRate),
		PropertyHint:      StatHint(g.PropertyCrimeIndex, t.PropertyCrimeIndex),
		RobberyHint:       StatHint(g.RobberyRate, t.RobberyRate),
		SafetyHint:        StatHint(g.SafetyIndex, t.SafetyIndex),
		IncarcerationHint: StatHint(g.IncarcerationRate, t.IncarcerationRate),
		Distance:          Distance(guess, target),
	}, nil
}

// StatHint compares a guessed value to the target value.
// The percentage is relative to the target. With a zero target only the
// direction is reported.
func StatHint(guess, target float64) Hint {
	if guess == target {
		return HintExact
	}
	if target != 0 {
		percent := math.Abs(guess-target) / target * 100
		if percent <= closePercent {
			return HintClose
		}
	}
	if guess > target {
		return HintHigher
	}
	return HintLower
}

// Distance returns the dissimilarity score between two synthesized countries.
// Unsynthesized countries only contribute their region and homicide terms.
func Distance(a, b Country) float64 {
	var d float64
	switch {
	case a.Region != b.Region:
		d += 3
	case a.Subregion != b.Subregion:
		d += 1
	}

	maxRate := math.Max(50, math.Max(a.HomicideRate, b.HomicideRate))
	d += math.Abs(a.HomicideRate-b.HomicideRate) / maxRate * 5

	if a.Stats != nil && b.Stats != nil {
		d += math.Abs(a.Stats.PropertyCrimeIndex-b.Stats.PropertyCrimeIndex) / 100 * 2
		d += math.Abs(a.Stats.RobberyRate-b.Stats.RobberyRate) / 100 * 2
		d += math.Abs(a.Stats.SafetyIndex-b.Stats.SafetyIndex) / 100 * 2
	}
	return d
}
