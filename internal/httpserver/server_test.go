package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/criminle/apps/go-server/assets"
	"github.com/robalobadob/criminle/apps/go-server/internal/config"
	"github.com/robalobadob/criminle/apps/go-server/internal/countries"
	"github.com/robalobadob/criminle/apps/go-server/internal/daily"
	"github.com/robalobadob/criminle/apps/go-server/internal/database"
	"github.com/robalobadob/criminle/apps/go-server/internal/game"
	"github.com/robalobadob/criminle/apps/go-server/internal/store"
)

const poolJSON = `[
  {"country_name": "Brazil", "iso_code": "BRA", "region": "Americas", "subregion": "Latin America and the Caribbean", "homicide_rate": 22.4, "year": 2021},
  {"country_name": "Canada", "iso_code": "CAN", "region": "Americas", "subregion": "Northern America", "homicide_rate": 2.1, "year": 2021},
  {"country_name": "France", "iso_code": "FRA", "region": "Europe", "subregion": "Western Europe", "homicide_rate": 1.3, "year": 2021},
  {"country_name": "Germany", "iso_code": "DEU", "region": "Europe", "subregion": "Western Europe", "homicide_rate": 0.8, "year": 2021},
  {"country_name": "Japan", "iso_code": "JPN", "region": "Asia", "subregion": "Eastern Asia", "homicide_rate": 0.2, "year": 2021},
  {"country_name": "Kenya", "iso_code": "KEN", "region": "Africa", "subregion": "Sub-Saharan Africa", "homicide_rate": 4.9, "year": 2020},
  {"country_name": "Mexico", "iso_code": "MEX", "region": "Americas", "subregion": "Latin America and the Caribbean", "homicide_rate": 28.2, "year": 2021},
  {"country_name": "Norway", "iso_code": "NOR", "region": "Europe", "subregion": "Northern Europe", "homicide_rate": 0.5, "year": 2021}
]`

type testApp struct {
	t     *testing.T
	srv   *Server
	store store.Store
	pool  *countries.Catalog
	cfg   config.Config
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	list, err := countries.Parse(strings.NewReader(poolJSON))
	require.NoError(t, err)
	pool := countries.NewCatalog(list, rand.New(rand.NewSource(11)))

	migrations, err := assets.Migrations()
	require.NoError(t, err)
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "app.db"), migrations)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		JWTSecret:      "test_secret",
		JWTExpiresDays: 1,
		CookieName:     "criminle_token",
		ClientOrigin:   "http://localhost:5173",
		DailySalt:      "test_salt",
	}
	st := store.NewMemoryStore()
	return &testApp{t: t, srv: New(cfg, st, pool, db), store: st, pool: pool, cfg: cfg}
}

// request sends a JSON request carrying the given cookies.
func (a *testApp) request(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// newGame starts a round and returns its id, its hidden target ISO code and
// the cookies identifying the round's owner.
func (a *testApp) newGame(cookies ...*http.Cookie) (string, string, []*http.Cookie) {
	a.t.Helper()
	rec := a.request(http.MethodPost, "/game/new", nil, cookies...)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[stateRes](a.t, rec)
	assert.Nil(a.t, res.Target, "target hidden while in progress")
	assert.NotContains(a.t, rec.Body.String(), `"target"`)

	sess, err := a.store.Get(context.Background(), res.GameID)
	require.NoError(a.t, err)
	target, ok := sess.Target()
	require.True(a.t, ok)

	owner := append([]*http.Cookie{}, cookies...)
	if anon := cookieNamed(rec, anonCookieName); anon != nil {
		owner = append(owner, anon)
	}
	return res.GameID, target.ISOCode, owner
}

// wrongISOs returns every pool ISO code except target.
func (a *testApp) wrongISOs(target string) []string {
	var out []string
	for _, c := range a.pool.All() {
		if c.ISOCode != target {
			out = append(out, c.ISOCode)
		}
	}
	return out
}

func TestServer_HealthAndCountries(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(http.MethodGet, "/countries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]countryView](t, rec)
	require.Len(t, list, 8)
	assert.Equal(t, "Brazil", list[0].Name)
	assert.Equal(t, "https://flagcdn.com/w320/br.png", list[0].FlagURL)
	assert.NotContains(t, rec.Body.String(), "property_crime_index")

	rec = app.request(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_NewGameReturnsClues(t *testing.T) {
	app := newTestApp(t)
	rec := app.request(http.MethodPost, "/game/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[stateRes](t, rec)
	assert.Equal(t, game.StatusInProgress, res.Status)
	assert.Equal(t, game.MaxAttempts, res.MaxAttempts)
	assert.Equal(t, game.MaxAttempts, res.Remaining)
	assert.Empty(t, res.Guesses)
	assert.GreaterOrEqual(t, res.Clues.IncarcerationRate, 10.0)
	assert.NotNil(t, cookieNamed(rec, anonCookieName), "guest cookie issued")
}

func TestServer_SixWrongGuessesLose(t *testing.T) {
	app := newTestApp(t)
	id, target, owner := app.newGame()

	wrong := app.wrongISOs(target)[:game.MaxAttempts]
	var last guessRes
	for i, iso := range wrong {
		rec := app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: strings.ToLower(iso)}, owner...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		last = decode[guessRes](t, rec)
		assert.False(t, last.Guess.Result.Correct)
		assert.Equal(t, game.MaxAttempts-i-1, last.Remaining)
		if i < len(wrong)-1 {
			assert.Equal(t, game.StatusInProgress, last.Status)
			assert.Nil(t, last.Target)
		}
	}
	assert.Equal(t, game.StatusLost, last.Status)
	require.NotNil(t, last.Target)
	assert.Equal(t, target, last.Target.ISOCode)

	rec := app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target}, owner...)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.request(http.MethodGet, "/game/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[stateRes](t, rec)
	assert.Len(t, state.Guesses, game.MaxAttempts)
	assert.Equal(t, wrong[0], state.Guesses[0].Country.ISOCode)
}

func TestServer_CorrectGuessWins(t *testing.T) {
	app := newTestApp(t)
	id, target, owner := app.newGame()

	rec := app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: app.wrongISOs(target)[0]}, owner...)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target}, owner...)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[guessRes](t, rec)
	assert.True(t, res.Guess.Result.Correct)
	assert.Equal(t, 0.0, res.Guess.Result.Distance)
	assert.Equal(t, game.StatusWon, res.Status)
	require.NotNil(t, res.Target)
	assert.Equal(t, target, res.Target.ISOCode)

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target}, owner...)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_GuessErrors(t *testing.T) {
	app := newTestApp(t)
	id, _, owner := app.newGame()

	rec := app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: "ATL"}, owner...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_country")

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: "missing", ISO: "FRA"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/game/guess", strings.NewReader("{"))
	bad := httptest.NewRecorder()
	app.srv.Router().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	rec = app.request(http.MethodGet, "/game/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[stateRes](t, rec).Guesses, "rejected guesses are not recorded")
}

func TestServer_AccountStatsAndHistory(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodGet, "/stats/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.request(http.MethodPost, "/auth/signup", credentials{Username: "detective", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	auth := cookieNamed(rec, app.cfg.CookieName)
	require.NotNil(t, auth)

	rec = app.request(http.MethodPost, "/auth/signup", credentials{Username: "Detective", Password: "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.request(http.MethodPost, "/auth/login", credentials{Username: "detective", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	id, target, _ := app.newGame(auth)
	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target}, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(http.MethodGet, "/stats/me", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["wins"])
	assert.EqualValues(t, 1, stats["streak"])

	rec = app.request(http.MethodGet, "/games/mine", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]gameRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, string(game.StatusWon), rows[0].Status)
	assert.Equal(t, target, rows[0].TargetISO)
	assert.Equal(t, 1, rows[0].Guesses)

	rec = app.request(http.MethodPost, "/auth/logout", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cookieNamed(rec, app.cfg.CookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestServer_BearerTokenAndGuestClaim(t *testing.T) {
	app := newTestApp(t)

	// a guest plays a round, then logs in with the same anon cookie
	rec := app.request(http.MethodPost, "/game/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)

	rec = app.request(http.MethodPost, "/auth/signup", credentials{Username: "sleuth_1", Password: "password123"}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	auth := cookieNamed(rec, app.cfg.CookieName)
	require.NotNil(t, auth)

	req := httptest.NewRequest(http.MethodGet, "/games/mine", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Value)
	out := httptest.NewRecorder()
	app.srv.Router().ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	rows := decode[[]gameRow](t, out)
	require.Len(t, rows, 1, "guest game claimed")
	assert.Empty(t, rows[0].TargetISO, "target of an unfinished round stays hidden")

	rec = app.request(http.MethodGet, "/auth/me", nil, &http.Cookie{Name: app.cfg.CookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_DailyChallenge(t *testing.T) {
	app := newTestApp(t)
	target := app.pool.At(daily.CountryIndex(time.Now(), app.cfg.DailySalt, app.pool.Len())).ISOCode

	rec := app.request(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)
	started := decode[dailyNewRes](t, rec)
	assert.False(t, started.Played)
	assert.NotEmpty(t, started.GameID)

	rec = app.request(http.MethodPost, "/daily/new", nil, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, started.GameID, decode[dailyNewRes](t, rec).GameID, "session reused")

	rec = app.request(http.MethodPost, "/daily/guess", dailyGuessReq{GameID: "other", ISO: target}, anon)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.request(http.MethodPost, "/daily/guess", dailyGuessReq{GameID: started.GameID, ISO: app.wrongISOs(target)[0]}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_progress", decode[dailyGuessRes](t, rec).Status)

	rec = app.request(http.MethodPost, "/daily/guess", dailyGuessReq{GameID: started.GameID, ISO: target}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	won := decode[dailyGuessRes](t, rec)
	assert.Equal(t, "won", won.Status)
	assert.Equal(t, 2, won.Guesses)

	rec = app.request(http.MethodPost, "/daily/guess", dailyGuessReq{GameID: started.GameID, ISO: target}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "locked", decode[dailyGuessRes](t, rec).Status)

	rec = app.request(http.MethodPost, "/daily/new", nil, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dailyNewRes](t, rec).Played)

	rec = app.request(http.MethodGet, "/daily/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lb := decode[lbRes](t, rec)
	require.Len(t, lb.Top, 1)
	assert.Equal(t, anon.Value, lb.Top[0].UserID)
	assert.Equal(t, 2, lb.Top[0].Guesses)

	rec = app.request(http.MethodGet, "/daily/leaderboard?date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	app := newTestApp(t)
	rec := app.request(http.MethodOptions, "/game/new", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_GuessOnAnotherPlayersGame(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodPost, "/game/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guestA := cookieNamed(rec, anonCookieName)
	require.NotNil(t, guestA)
	id := decode[stateRes](t, rec).GameID
	sess, err := app.store.Get(context.Background(), id)
	require.NoError(t, err)
	target, _ := sess.Target()

	rec = app.request(http.MethodPost, "/auth/signup", credentials{Username: "player_b", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	authB := cookieNamed(rec, app.cfg.CookieName)
	require.NotNil(t, authB)

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target.ISOCode}, authB)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target.ISOCode},
		&http.Cookie{Name: anonCookieName, Value: "someone-else"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.request(http.MethodGet, "/stats/me", nil, authB)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, stats["gamesPlayed"])
	assert.EqualValues(t, 0, stats["wins"])
	assert.Equal(t, game.StatusInProgress, sess.Status())

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target.ISOCode}, guestA)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.StatusWon, decode[guessRes](t, rec).Status)
}

func TestServer_GuestRoundFinishedAfterSignup(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodPost, "/game/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)
	id := decode[stateRes](t, rec).GameID
	sess, err := app.store.Get(context.Background(), id)
	require.NoError(t, err)
	target, _ := sess.Target()

	rec = app.request(http.MethodPost, "/auth/signup", credentials{Username: "convert", Password: "password123"}, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	auth := cookieNamed(rec, app.cfg.CookieName)
	require.NotNil(t, auth)

	rec = app.request(http.MethodPost, "/game/guess", guessReq{GameID: id, ISO: target.ISOCode}, auth, anon)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(http.MethodGet, "/stats/me", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["wins"])

	rec = app.request(http.MethodGet, "/games/mine", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]gameRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, string(game.StatusWon), rows[0].Status)
	assert.Equal(t, 1, rows[0].Guesses)
}

func TestServer_DailyRoundSpansMidnight(t *testing.T) {
	app := newTestApp(t)
	before := time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC)
	after := before.Add(2 * time.Minute)
	app.srv.daily.now = func() time.Time { return before }
	target := app.pool.At(daily.CountryIndex(before, app.cfg.DailySalt, app.pool.Len())).ISOCode

	rec := app.request(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)
	started := decode[dailyNewRes](t, rec)
	assert.Equal(t, "2026-10-19", started.Date)

	app.srv.daily.now = func() time.Time { return after }
	rec = app.request(http.MethodPost, "/daily/guess", dailyGuessReq{GameID: started.GameID, ISO: target}, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "won", decode[dailyGuessRes](t, rec).Status)

	rec = app.request(http.MethodGet, "/daily/leaderboard?date=2026-10-19", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[lbRes](t, rec).Top, 1)

	rec = app.request(http.MethodGet, "/daily/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[lbRes](t, rec).Top)

	// the new day gets a fresh round
	rec = app.request(http.MethodPost, "/daily/new", nil, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[dailyNewRes](t, rec)
	assert.Equal(t, "2026-10-20", next.Date)
	assert.False(t, next.Played)
	assert.NotEqual(t, started.GameID, next.GameID)
}

func TestServer_DailyPrunesOldRounds(t *testing.T) {
	app := newTestApp(t)
	d := app.srv.daily
	day := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return day }

	for i := 0; i < 3; i++ {
		rec := app.request(http.MethodPost, "/daily/new", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, d.rounds, 3)

	d.now = func() time.Time { return day.AddDate(0, 0, 1) }
	rec := app.request(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, d.rounds, 4, "yesterday's rounds are kept")

	d.now = func() time.Time { return day.AddDate(0, 0, 3) }
	rec = app.request(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, d.rounds, 1)
}
