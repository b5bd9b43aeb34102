// apps/go-server/internal/game/types.go
//
// Core type definitions for a Criminle round.
// Defines:
//   - Status: lifecycle of a round (in_progress/won/lost).
//   - Guess: one guessed country paired with its evaluation.
//   - Pool: the country source a session draws targets and guesses from.
//   - Sentinel errors returned by Session methods.

package game

import (
	"errors"

	"github.com/robalobadob/criminle/apps/go-server/internal/crime"
)

// MaxAttempts is the number of guesses allowed per round.
const MaxAttempts = 6

// Status represents the state of a round.
// Transitions: in_progress → won (correct guess), in_progress → lost
// (MaxAttempts reached). won and lost are terminal.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool { return s == StatusWon || s == StatusLost }

// Guess pairs a guessed country with its evaluation.
type Guess struct {
	Country crime.Country `json:"country"`
	Result  crime.Result  `json:"result"`
}

// Pool is the synthesized country pool (see countries.Catalog).
type Pool interface {
	Len() int
	At(i int) crime.Country
	Lookup(iso string) (crime.Country, bool)
}

var (
	ErrNoCountries    = errors.New("no countries available")
	ErrUnknownCountry = errors.New("unknown country")
	ErrNotStarted     = errors.New("game not started")
	ErrGameOver       = errors.New("game finished")
)
