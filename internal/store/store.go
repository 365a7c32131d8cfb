// internal/store/store.go
//
// Persistence interface for words, games, attempts, wins and users.
// Implementations:
//   - memory.go: maps behind a RWMutex (dev/tests, state lost on restart).
//   - sqlite.go: SQLite via mattn/go-sqlite3 with embedded migrations.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

// ErrConflict is returned by CreateGame when the user already has a game
// for that round.
var ErrConflict = errors.New("store: conflict")

// Words persists the candidate word pool.
type Words interface {
	// AddWord inserts a normalized word. Returns game.ErrWordExists on duplicates.
	AddWord(ctx context.Context, text string) (game.Word, error)
	ListWords(ctx context.Context) ([]game.Word, error)
	// WordByID returns game.ErrUserOrWordNotFound if missing.
	WordByID(ctx context.Context, id int64) (game.Word, error)
	MarkWordUsed(ctx context.Context, id int64, at time.Time) error
}

// Games persists games and their attempts.
type Games interface {
	// CreateGame returns ErrConflict if (UserID, RoundID) already has a game.
	CreateGame(ctx context.Context, g *game.Game) error
	// GameForRound returns the user's game for a round, or game.ErrGameNotFound.
	GameForRound(ctx context.Context, userID, roundID string) (*game.Game, error)
	GameByID(ctx context.Context, id string) (*game.Game, error)
	// StaleGames lists in-progress games that do not belong to activeRoundID.
	StaleGames(ctx context.Context, activeRoundID string) ([]*game.Game, error)

	// AppendAttempt stores a and increments the game's attempt count atomically.
	// Returns the new count, or game.ErrAttemptsExhausted if the game already
	// has maxAttempts attempts or is no longer in progress.
	AppendAttempt(ctx context.Context, a *game.Attempt, maxAttempts int) (int, error)
	Attempts(ctx context.Context, gameID string) ([]game.Attempt, error)

	// FinishGame transitions in_progress → status. Reports false if the game
	// was already completed (no change made).
	FinishGame(ctx context.Context, gameID string, status game.Status, at time.Time) (bool, error)
}

// Users persists accounts, counters and win records.
type Users interface {
	// CreateUser returns game.ErrUsernameTaken on case-insensitive collision.
	CreateUser(ctx context.Context, u *game.User) error
	UserByID(ctx context.Context, id string) (*game.User, error)
	UserByUsername(ctx context.Context, username string) (*game.User, error)

	// BumpStats increments total games, and total wins when won.
	BumpStats(ctx context.Context, userID string, won bool) error
	InsertWin(ctx context.Context, w game.WinRecord) error

	TopPlayers(ctx context.Context, limit int) ([]PlayerRank, error)
	MostGuessedWords(ctx context.Context, limit int) ([]WordRank, error)
}

// Store is the full persistence surface.
type Store interface {
	Words
	Games
	Users
	Close() error
}

// PlayerRank is a leaderboard row.
type PlayerRank struct {
	Username  string `json:"username"`
	TotalWins int    `json:"totalWins"`
}

// WordRank counts how often a word was solved.
type WordRank struct {
	Word     string `json:"word"`
	WinCount int    `json:"winCount"`
}
