// apps/go-server/internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's round (creates or reuses the session)
//   - POST /daily/guess       → submit a guess for today's round
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Every player gets the same target on a given date (HMAC of date + salt).
// Each player can finish the daily round once; wins are persisted.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/criminle/apps/go-server/internal/crime"
	"github.com/robalobadob/criminle/apps/go-server/internal/daily"
	"github.com/robalobadob/criminle/apps/go-server/internal/game"
)

// dailyRound is a player's live daily session and the date it was started for.
type dailyRound struct {
	date string
	sess *game.Session
}

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv    *Server
	store  *daily.Store
	now    func() time.Time
	mu     sync.Mutex
	rounds map[string]dailyRound // keyed by playerID
	pruned string                // date of the last prune
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	d := &dailyServer{
		srv:    s,
		store:  daily.NewStore(s.db),
		now:    time.Now,
		rounds: make(map[string]dailyRound),
	}
	s.daily = d
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", d.handleNew)
		r.Post("/guess", d.handleGuess)
		r.Get("/leaderboard", d.handleLeaderboard)
	})
}

// today returns today's date key and target.
func (d *dailyServer) today() (string, crime.Country, error) {
	now := d.now().UTC()
	date := daily.DateKey(now)
	pool := d.srv.pool
	if pool.Len() == 0 {
		return date, crime.Country{}, game.ErrNoCountries
	}
	return date, pool.At(daily.CountryIndex(now, d.srv.cfg.DailySalt, pool.Len())), nil
}

type dailyNewRes struct {
	GameID    string    `json:"gameId"`
	Date      string    `json:"date"`
	Played    bool      `json:"played"`
	Remaining int       `json:"remaining"`
	Clues     cluesView `json:"clues"`
}

// handleNew creates or reuses today's session.
//   - A persisted result for today → Played=true, no session.
//   - Otherwise the in-memory session is created or reused.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid := d.srv.playerID(w, r)
	date, target, err := d.today()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err == nil && played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	} else if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("daily already played")
	}

	d.mu.Lock()
	d.prune(date)
	round, ok := d.rounds[uid]
	if !ok || round.date != date {
		sess := game.NewSession(d.srv.pool, d.srv.rng)
		sess.Owner = uid
		if err := sess.StartWithTarget(target.ISOCode); err != nil {
			d.mu.Unlock()
			writeDomainError(w, r, err)
			return
		}
		round = dailyRound{date: date, sess: sess}
		d.rounds[uid] = round
	}
	d.mu.Unlock()
	sess := round.sess

	writeJSON(w, http.StatusOK, dailyNewRes{
		GameID:    sess.ID,
		Date:      date,
		Played:    sess.Status().Finished(),
		Remaining: sess.Remaining(),
		Clues:     cluesFor(target),
	})
}

type dailyGuessReq struct {
	GameID string `json:"gameId"`
	ISO    string `json:"iso"`
}

type dailyGuessRes struct {
	Guess     *game.Guess    `json:"guess,omitempty"`
	Status    string         `json:"status"` // in_progress | won | lost | locked
	Guesses   int            `json:"guesses"`
	Remaining int            `json:"remaining"`
	Target    *crime.Country `json:"target,omitempty"`
}

// handleGuess validates and applies a guess for the player's daily session.
// The round keeps the date it was started for, so it can be finished after
// midnight. A finished session answers "locked"; a win is persisted for the
// leaderboard under the round's date.
func (d *dailyServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	uid := d.srv.playerID(w, r)

	var p dailyGuessReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	d.mu.Lock()
	round, ok := d.rounds[uid]
	d.mu.Unlock()
	if !ok || round.sess.ID != p.GameID {
		writeError(w, http.StatusConflict, "no_session")
		return
	}
	sess, date := round.sess, round.date
	if sess.Status().Finished() {
		writeJSON(w, http.StatusOK, dailyGuessRes{
			Status:  "locked",
			Guesses: len(sess.Guesses()),
			Target:  revealed(sess),
		})
		return
	}

	country, ok := d.srv.pool.Lookup(p.ISO)
	if !ok {
		writeDomainError(w, r, game.ErrUnknownCountry)
		return
	}
	g, err := sess.SubmitGuess(country)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := sess.Status()
	n := len(sess.Guesses())
	if status == game.StatusWon {
		target, _ := sess.Target()
		res := daily.Result{
			UserID:    uid,
			Date:      date,
			TargetISO: target.ISOCode,
			Guesses:   n,
			ElapsedMs: int(time.Since(sess.StartedAt).Milliseconds()),
		}
		if err := d.store.InsertResult(r.Context(), res); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("user", uid).Msg("insert daily result")
		}
	}

	writeJSON(w, http.StatusOK, dailyGuessRes{
		Guess:     &g,
		Status:    string(status),
		Guesses:   n,
		Remaining: sess.Remaining(),
		Target:    revealed(sess),
	})
}

// prune drops rounds started before yesterday, once per date. A round from
// yesterday is kept so it can still be finished. Callers hold d.mu.
func (d *dailyServer) prune(today string) {
	if d.pruned == today {
		return
	}
	day, err := time.Parse("2006-01-02", today)
	if err != nil {
		return
	}
	cutoff := daily.DateKey(day.AddDate(0, 0, -1))
	for uid, round := range d.rounds {
		if round.date < cutoff {
			delete(d.rounds, uid)
		}
	}
	d.pruned = today
}

type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for ?date= (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_date")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
