// internal/game/types.go
//
// Core type definitions for the round-based Wordle engine.
// Defines:
//   - LetterStatus: per-letter result of a guess (correct/present/absent).
//   - Word, Round: the secret word pool entry and the active round.
//   - Game, Attempt: one user's play against a round, and each scored guess.
//   - WinRecord, User: durable win history and per-user counters.

package game

import (
	"time"
)

const (
	// WordLength is the number of letters in every secret word and guess.
	WordLength = 5

	// DefaultMaxAttempts is the per-round guess budget for a user.
	DefaultMaxAttempts = 5
)

// LetterStatus represents the evaluation result for a single letter in a guess.
// Possible values:
//   - "correct": letter is in the secret at this exact position.
//   - "present": letter exists in the unmatched part of the secret, elsewhere.
//   - "absent":  letter is not available in the secret.
type LetterStatus string

const (
	StatusCorrect LetterStatus = "correct"
	StatusPresent LetterStatus = "present"
	StatusAbsent  LetterStatus = "absent"
)

// LetterResult pairs one guessed letter with its status.
type LetterResult struct {
	Letter string       `json:"letter"`
	Status LetterStatus `json:"status"`
}

// Status is the lifecycle state of a Game.
type Status string

const (
	InProgress Status = "in_progress"
	Won        Status = "won"
	Lost       Status = "lost"
)

// Completed reports whether the status is terminal.
func (s Status) Completed() bool { return s == Won || s == Lost }

// Word is a candidate secret in the pool.
type Word struct {
	ID        int64      `json:"id"`
	Text      string     `json:"word"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Round is the process-wide active secret plus its expiry.
// Rounds are replaced, never mutated.
type Round struct {
	ID        string
	Word      Word
	StartedAt time.Time
	ExpiresAt time.Time
}

// Game holds one user's play against a single round.
type Game struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	RoundID      string     `json:"roundId"`
	WordID       int64      `json:"wordId"`
	AttemptCount int        `json:"attemptCount"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Attempt is one scored guess. Immutable once stored.
type Attempt struct {
	ID        int64          `json:"id"`
	GameID    string         `json:"gameId"`
	Guess     string         `json:"guess"`
	Feedback  []LetterResult `json:"feedback"`
	CreatedAt time.Time      `json:"createdAt"`
}

// WinRecord is written once per won game.
type WinRecord struct {
	UserID       string    `json:"userId"`
	WordID       int64     `json:"wordId"`
	AttemptsUsed int       `json:"attemptsUsed"`
	WonAt        time.Time `json:"wonAt"`
}

// User is a registered player with denormalized counters.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	TotalGames   int       `json:"totalGames"`
	TotalWins    int       `json:"totalWins"`
}
