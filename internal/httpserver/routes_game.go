// apps/go-server/internal/httpserver/routes_game.go
//
// Country list and free-play game endpoints:
//   - GET  /countries   → selectable countries, sorted by name
//   - POST /game/new    → start a round against a random target
//   - POST /game/guess  → submit a guess by ISO code
//   - GET  /game/{id}   → current state of a round
//
// The target stays hidden while the round is in progress; only its
// statistics are sent as clues. Name and ISO code are revealed once the
// round is won or lost.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/criminle/apps/go-server/internal/crime"
	"github.com/robalobadob/criminle/apps/go-server/internal/game"
	"github.com/robalobadob/criminle/apps/go-server/internal/store"
)

// countryView is the selector entry for one country.
type countryView struct {
	Name      string `json:"name"`
	ISOCode   string `json:"iso"`
	Region    string `json:"region"`
	Subregion string `json:"subregion"`
	FlagURL   string `json:"flagUrl"`
}

// cluesView exposes the target's statistics without identifying it.
type cluesView struct {
	HomicideRate       float64 `json:"homicideRate"`
	Year               int     `json:"year"`
	PropertyCrimeIndex float64 `json:"propertyCrimeIndex"`
	RobberyRate        float64 `json:"robberyRate"`
	SafetyIndex        float64 `json:"safetyIndex"`
	IncarcerationRate  float64 `json:"incarcerationRate"`
}

// stateRes describes a round; returned by /game/new and /game/{id}.
type stateRes struct {
	GameID      string         `json:"gameId"`
	Status      game.Status    `json:"status"`
	MaxAttempts int            `json:"maxAttempts"`
	Remaining   int            `json:"remaining"`
	Clues       cluesView      `json:"clues"`
	Guesses     []game.Guess   `json:"guesses"`
	Target      *crime.Country `json:"target,omitempty"`
}

type guessReq struct {
	GameID string `json:"gameId"`
	ISO    string `json:"iso"`
}

type guessRes struct {
	Guess     game.Guess     `json:"guess"`
	Status    game.Status    `json:"status"`
	Remaining int            `json:"remaining"`
	Target    *crime.Country `json:"target,omitempty"`
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	all := s.pool.All()
	out := make([]countryView, 0, len(all))
	for _, c := range all {
		out = append(out, countryView{
			Name:      c.Name,
			ISOCode:   c.ISOCode,
			Region:    c.Region,
			Subregion: c.Subregion,
			FlagURL:   c.FlagURL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleNewGame creates a session, stores it, and records an owner row
// (user_id or anonymous_id) for history/stats.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	sess := game.NewSession(s.pool, s.rng)
	sess.Owner = s.playerID(w, r)
	if err := sess.StartNewGame(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		writeDomainError(w, r, err)
		return
	}
	target, _ := sess.Target()
	s.recordGameStart(r, sess.ID, sess.Owner, target.ISOCode)

	hlog.FromRequest(r).Debug().Str("gameId", sess.ID).Str("target", target.ISOCode).Msg("new game")
	writeJSON(w, http.StatusOK, viewState(sess))
}

// handleGuess applies a guess and, when the round ends, updates history and stats.
// Rounds of other players answer 404.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, err := s.store.Get(r.Context(), req.GameID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !s.owns(r, sess) {
		writeDomainError(w, r, store.ErrNotFound)
		return
	}
	country, ok := s.pool.Lookup(req.ISO)
	if !ok {
		writeDomainError(w, r, game.ErrUnknownCountry)
		return
	}
	g, err := sess.SubmitGuess(country)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := sess.Status()
	s.recordGuess(r, sess.ID, status)

	writeJSON(w, http.StatusOK, guessRes{
		Guess:     g,
		Status:    status,
		Remaining: sess.Remaining(),
		Target:    revealed(sess),
	})
}

// owns reports whether the caller started sess, either as the logged-in user
// or through the guest cookie (a guest round survives signup/login).
func (s *Server) owns(r *http.Request, sess *game.Session) bool {
	if sess.Owner == "" {
		return true
	}
	if me := userFrom(r); me != nil && me.ID == sess.Owner {
		return true
	}
	return anonID(r) == sess.Owner
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewState(sess))
}

func viewState(sess *game.Session) stateRes {
	res := stateRes{
		GameID:      sess.ID,
		Status:      sess.Status(),
		MaxAttempts: game.MaxAttempts,
		Remaining:   sess.Remaining(),
		Guesses:     sess.Guesses(),
		Target:      revealed(sess),
	}
	if t, ok := sess.Target(); ok {
		res.Clues = cluesFor(t)
	}
	return res
}

func cluesFor(c crime.Country) cluesView {
	v := cluesView{HomicideRate: c.HomicideRate, Year: c.Year}
	if c.Stats != nil {
		v.PropertyCrimeIndex = c.Stats.PropertyCrimeIndex
		v.RobberyRate = c.Stats.RobberyRate
		v.SafetyIndex = c.Stats.SafetyIndex
		v.IncarcerationRate = c.Stats.IncarcerationRate
	}
	return v
}

// revealed returns the target once the round is over, nil otherwise.
func revealed(sess *game.Session) *crime.Country {
	if !sess.Status().Finished() {
		return nil
	}
	t, ok := sess.Target()
	if !ok {
		return nil
	}
	return &t
}
