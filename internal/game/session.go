// apps/go-server/internal/game/session.go
//
// Game session for a single Criminle round.
// Responsibilities:
//   - Pick a target uniformly at random from the pool (or a fixed one for daily play).
//   - Evaluate guesses with the crime package and keep them in order.
//   - Track state transitions: in_progress → won/lost.
//
// Notes:
//   - Guesses are resolved against the pool's synthesized copy, so a country
//     always shows the same stats within a process.
//   - A Session is owned by its caller; the mutex only serializes requests
//     that reach the same session through the HTTP layer.

package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/criminle/apps/go-server/internal/crime"
)

// Session holds the state of one player's current round.
type Session struct {
	ID        string
	Owner     string // user id or guest id of the player; empty when unowned
	StartedAt time.Time

	mu      sync.Mutex
	pool    Pool
	rng     crime.Rand
	target  *crime.Country
	guesses []Guess
	status  Status
}

// NewSession constructs a session over pool. No round is started yet.
func NewSession(pool Pool, rng crime.Rand) *Session {
	return &Session{
		ID:     uuid.NewString(),
		pool:   pool,
		rng:    rng,
		status: StatusInProgress,
	}
}

// StartNewGame picks a random target and resets the guess history.
func (s *Session) StartNewGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := SelectRandomCountry(s.pool, s.rng)
	if err != nil {
		return err
	}
	s.reset(t)
	return nil
}

// StartWithTarget starts a round against the country with the given ISO code.
func (s *Session) StartWithTarget(iso string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pool.Lookup(iso)
	if !ok {
		return ErrUnknownCountry
	}
	s.reset(t)
	return nil
}

func (s *Session) reset(target crime.Country) {
	s.target = &target
	s.guesses = []Guess{}
	s.status = StatusInProgress
	s.StartedAt = time.Now().UTC()
}

// SubmitGuess evaluates c against the target and records the guess.
//
// Validation rules:
//   - A round must have been started.
//   - The round must not be finished.
//   - c must belong to the pool (matched by ISO code).
//
// State transitions:
//   - Correct guess → won.
//   - Else if the number of guesses reaches MaxAttempts → lost.
func (s *Session) SubmitGuess(c crime.Country) (Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return Guess{}, ErrNotStarted
	}
	if s.status.Finished() {
		return Guess{}, ErrGameOver
	}
	guessed, ok := s.pool.Lookup(c.ISOCode)
	if !ok {
		return Guess{}, ErrUnknownCountry
	}

	res, err := crime.Evaluate(guessed, *s.target)
	if err != nil {
		return Guess{}, err
	}
	g := Guess{Country: guessed, Result: res}
	s.guesses = append(s.guesses, g)

	if res.Correct {
		s.status = StatusWon
	} else if len(s.guesses) >= MaxAttempts {
		s.status = StatusLost
	}
	return g, nil
}

// Status reports the state of the current round.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Guesses returns the guesses made so far, oldest first.
func (s *Session) Guesses() []Guess {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Guess, len(s.guesses))
	copy(out, s.guesses)
	return out
}

// Remaining reports how many guesses are left.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MaxAttempts - len(s.guesses)
}

// Target returns the target country. ok is false before the first round.
func (s *Session) Target() (crime.Country, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return crime.Country{}, false
	}
	return *s.target, true
}

// SelectRandomCountry picks a uniformly random country from pool.
func SelectRandomCountry(pool Pool, r crime.Rand) (crime.Country, error) {
	n := pool.Len()
	if n == 0 {
		return crime.Country{}, ErrNoCountries
	}
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return pool.At(i), nil
}
