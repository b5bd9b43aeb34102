// apps/go-server/main.go
//
// Entry point for the Criminle Go server.
// Startup order: .env → config → logging → country pool (synthesized once)
// → database + migrations → HTTP server.

package main

import (
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/criminle/apps/go-server/assets"
	"github.com/robalobadob/criminle/apps/go-server/internal/config"
	"github.com/robalobadob/criminle/apps/go-server/internal/countries"
	"github.com/robalobadob/criminle/apps/go-server/internal/database"
	"github.com/robalobadob/criminle/apps/go-server/internal/httpserver"
	"github.com/robalobadob/criminle/apps/go-server/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	raw, err := countries.Load(cfg.CountriesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CountriesFile).Msg("failed to load countries")
	}
	pool := countries.NewCatalog(raw, rand.New(rand.NewSource(time.Now().UnixNano())))
	log.Info().Int("countries", pool.Len()).Msg("country pool ready")

	migrations, err := assets.Migrations()
	if err != nil {
		log.Fatal().Err(err).Msg("load migrations")
	}
	db, err := database.OpenMigrated(cfg.DBPath, migrations)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("open database")
	}
	defer db.Close()

	srv := httpserver.New(cfg, store.NewMemoryStore(), pool, db)
	log.Info().Str("port", cfg.Port).Msg("starting go-server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
