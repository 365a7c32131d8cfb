// internal/stats/recorder.go
//
// Game completion and player statistics.
// Responsibilities:
//   - CompleteGame: the single place a game leaves in_progress. The store's
//     compare-and-set transition makes it exactly-once per game; only the
//     caller that wins the transition bumps counters and writes a WinRecord.
//   - Read side: per-user totals, top players, most guessed words.
//
// Counter/win-record failures are logged and swallowed: the guess result that
// triggered completion is already stored and stays valid.

package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
)

// DefaultLimit is the leaderboard size when none is requested.
const DefaultLimit = 10

// maxLimit caps leaderboard queries.
const maxLimit = 100

// Recorder completes games and serves statistics.
type Recorder struct {
	games store.Games
	users store.Users
	now   func() time.Time
}

// NewRecorder builds a Recorder over st.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{games: st, users: st, now: time.Now}
}

// CompleteGame transitions g to outcome (game.Won or game.Lost) and records
// statistics. It reports false, with no side effects, if g was already complete.
func (r *Recorder) CompleteGame(ctx context.Context, g *game.Game, outcome game.Status) (bool, error) {
	if !outcome.Completed() {
		return false, fmt.Errorf("complete game %s: invalid outcome %q", g.ID, outcome)
	}
	at := r.now().UTC()
	ok, err := r.games.FinishGame(ctx, g.ID, outcome, at)
	if err != nil {
		return false, fmt.Errorf("finish game %s: %w", g.ID, err)
	}
	if !ok {
		log.Debug().Str("game", g.ID).Msg("game already completed")
		return false, nil
	}
	g.Status = outcome
	g.FinishedAt = &at

	won := outcome == game.Won
	if err := r.users.BumpStats(ctx, g.UserID, won); err != nil {
		log.Error().Err(err).Str("user", g.UserID).Str("game", g.ID).Msg("bump stats")
	}
	if won {
		rec := game.WinRecord{UserID: g.UserID, WordID: g.WordID, AttemptsUsed: g.AttemptCount, WonAt: at}
		if err := r.users.InsertWin(ctx, rec); err != nil {
			log.Error().Err(err).Str("user", g.UserID).Int64("word", g.WordID).Msg("insert win record")
		}
	}
	log.Info().Str("game", g.ID).Str("user", g.UserID).Str("outcome", string(outcome)).
		Int("attempts", g.AttemptCount).Msg("game completed")
	return true, nil
}

// UserStats are a player's lifetime totals.
type UserStats struct {
	TotalGames int `json:"totalGames"`
	TotalWins  int `json:"totalWins"`
}

// UserStats returns totals for userID, or game.ErrUserOrWordNotFound.
func (r *Recorder) UserStats(ctx context.Context, userID string) (UserStats, error) {
	u, err := r.users.UserByID(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{TotalGames: u.TotalGames, TotalWins: u.TotalWins}, nil
}

// TopPlayers ranks players by total wins.
func (r *Recorder) TopPlayers(ctx context.Context, limit int) ([]store.PlayerRank, error) {
	return r.users.TopPlayers(ctx, clampLimit(limit))
}

// MostGuessedWords ranks words by number of wins.
func (r *Recorder) MostGuessedWords(ctx context.Context, limit int) ([]store.WordRank, error) {
	return r.users.MostGuessedWords(ctx, clampLimit(limit))
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}
