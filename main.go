// main.go
//
// Entry point for the round-based Wordle server.
// Startup order: .env → config → store → word pool seed → round manager →
// stats recorder → attempt ledger → HTTP server. SIGINT/SIGTERM trigger a
// graceful shutdown of the server and the rotation loop.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/config"
	"github.com/robalobadob/wordle/apps/round-server/internal/httpserver"
	"github.com/robalobadob/wordle/apps/round-server/internal/ledger"
	"github.com/robalobadob/wordle/apps/round-server/internal/round"
	"github.com/robalobadob/wordle/apps/round-server/internal/stats"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
	"github.com/robalobadob/wordle/apps/round-server/internal/words"
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
	if !cfg.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("open store")
	}
	defer st.Close()

	pool := words.NewPool(st)
	seed, err := words.LoadSeed(cfg.WordsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word list")
	}
	added, err := pool.Seed(ctx, seed)
	if err != nil {
		log.Fatal().Err(err).Msg("seed word pool")
	}
	log.Info().Int("added", added).Int("listed", len(seed)).Msg("word pool seeded")

	rounds := round.New(pool, cfg.RoundPeriod)
	rec := stats.NewRecorder(st)
	led := ledger.New(st, rounds, rec, cfg.MaxAttempts, ledger.WithRevealWord(cfg.RevealWord))
	rounds.OnRotate(led.ExpireStale)
	rounds.Start(ctx)
	defer rounds.Stop()

	srv := httpserver.New(cfg, httpserver.Deps{
		Users:  st,
		Rounds: rounds,
		Ledger: led,
		Stats:  rec,
		Pool:   pool,
	})

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Dur("round", cfg.RoundPeriod).Msg("starting round-server")
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("server exited")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	}
}

// openStore picks the backing store from STORE.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Store == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.DBPath).Msg("sqlite ready")
	return db, nil
}
