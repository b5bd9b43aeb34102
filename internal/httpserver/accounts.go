// apps/go-server/internal/httpserver/accounts.go
//
// Database access for accounts and round history.
//   - users: credentials plus games_played / wins / streak counters.
//   - games: one row per round (owner, target, status, guess count).
//
// History writes are best effort: failures are logged and the request goes on.

package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/criminle/apps/go-server/internal/game"
)

// account matches the users table shape.
type account struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	GamesPlayed  int
	Wins         int
	Streak       int
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 72 {
		return errors.New("password must be 8-72 chars")
	}
	return nil
}

// createAccount validates input, checks uniqueness, hashes the password and inserts the user.
func (s *Server) createAccount(ctx context.Context, username, pw string) (*account, error) {
	username = strings.TrimSpace(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	if _, err := s.findAccountByUsername(ctx, username); err == nil {
		return nil, errUsernameTaken
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := &account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		a.ID, a.Username, a.PasswordHash, a.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Server) findAccountByUsername(ctx context.Context, username string) (*account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, games_played, wins, streak
		 FROM users WHERE lower(username)=lower(?)`, username))
}

func (s *Server) findAccountByID(ctx context.Context, id string) (*account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, games_played, wins, streak
		 FROM users WHERE id=?`, id))
}

func scanAccount(row *sql.Row) (*account, error) {
	var a account
	var created string
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &created, &a.GamesPlayed, &a.Wins, &a.Streak); err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &a, nil
}

// claimAnonGames transfers guest games to a user account after auth.
func (s *Server) claimAnonGames(ctx context.Context, anonID, userID string) {
	if anonID == "" || userID == "" {
		return
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID); err != nil {
		log.Warn().Err(err).Msg("claim anon games")
	}
}

// recordGameStart inserts the history row of a new round owned by ownerID
// (the user id when logged in, the guest id otherwise).
func (s *Server) recordGameStart(r *http.Request, gameID, ownerID, targetISO string) {
	now := time.Now().UTC().Format(time.RFC3339)
	column := "anonymous_id"
	if me := userFrom(r); me != nil {
		column = "user_id"
	}
	if _, err := s.db.ExecContext(r.Context(),
		`INSERT INTO games (id, `+column+`, target_iso, started_at, status, guesses) VALUES (?,?,?,?,?,0)`,
		gameID, ownerID, targetISO, now, string(game.StatusInProgress)); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("gameId", gameID).Msg("insert game row")
	}
}

// recordGuess bumps the guess counter and, on a finished round, stores the
// outcome and updates the player's stats in one transaction. Every write is
// scoped to the row owner; stats move only when the caller's row was finished.
func (s *Server) recordGuess(r *http.Request, gameID string, status game.Status) {
	ctx := r.Context()
	logger := hlog.FromRequest(r)

	me := userFrom(r)
	ownerClause := `anonymous_id=?`
	ownerArg := anonID(r)
	if me != nil {
		ownerClause = `user_id=?`
		ownerArg = me.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("begin history tx")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET guesses = guesses + 1 WHERE id=? AND `+ownerClause, gameID, ownerArg); err != nil {
		logger.Warn().Err(err).Msg("update guesses")
	}
	if status.Finished() {
		res, err := tx.ExecContext(ctx, `UPDATE games SET status=?, finished_at=? WHERE id=? AND `+ownerClause,
			string(status), time.Now().UTC().Format(time.RFC3339), gameID, ownerArg)
		if err != nil {
			logger.Warn().Err(err).Msg("finish game")
		}
		if me != nil && err == nil {
			if n, _ := res.RowsAffected(); n == 1 {
				if err := bumpStats(ctx, tx, me.ID, status == game.StatusWon); err != nil {
					logger.Warn().Err(err).Str("user", me.ID).Msg("bump stats")
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		logger.Warn().Err(err).Msg("commit history tx")
	}
}

// bumpStats increments games played and updates wins and streak.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	if err := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID).
		Scan(&gp, &wins, &streak); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`, gp, wins, streak, userID)
	return err
}

// handleMyStats returns the caller's counters.
func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	a, err := s.findAccountByID(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          a.ID,
		"gamesPlayed": a.GamesPlayed,
		"wins":        a.Wins,
		"streak":      a.Streak,
	})
}

type gameRow struct {
	ID         string `json:"id"`
	TargetISO  string `json:"targetIso,omitempty"`
	Status     string `json:"status"`
	Guesses    int    `json:"guesses"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// handleMyGames lists the caller's 50 most recent rounds. Targets of rounds
// still in progress are not disclosed.
func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(),
		`SELECT id, target_iso, status, guesses, started_at, COALESCE(finished_at,'')
		 FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT 50`, userFrom(r).ID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list games")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	out := []gameRow{}
	for rows.Next() {
		var g gameRow
		if err := rows.Scan(&g.ID, &g.TargetISO, &g.Status, &g.Guesses, &g.StartedAt, &g.FinishedAt); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("scan game row")
			continue
		}
		if !game.Status(g.Status).Finished() {
			g.TargetISO = ""
		}
		out = append(out, g)
	}
	writeJSON(w, http.StatusOK, out)
}
