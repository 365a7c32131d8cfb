// internal/ledger/ledger.go
//
// Attempt ledger: the guess entry point.
// Responsibilities:
//   - Resolve or lazily create a user's Game for the active round.
//   - Validate, score and append guesses under a per-(user, round) lock so the
//     read-check-append-increment sequence is atomic.
//   - Enforce the attempt budget and detect win/loss, delegating completion
//     to the stats recorder (the single completion call site).
//   - Expire in-progress games from earlier rounds when a new round starts.
//
// Precondition order for RecordAttempt (first failure wins):
//   active round → guess shape → game resolution → budget.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
)

// Rounds serves the active round. Implemented by *round.Manager.
type Rounds interface {
	Current() (game.Round, error)
}

// Completer finishes games exactly once. Implemented by *stats.Recorder.
type Completer interface {
	CompleteGame(ctx context.Context, g *game.Game, outcome game.Status) (bool, error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRevealWord echoes the secret in StartGame results (dev/testing only).
func WithRevealWord(on bool) Option {
	return func(l *Ledger) { l.reveal = on }
}

// Ledger records attempts against the active round.
type Ledger struct {
	store       store.Store
	rounds      Rounds
	completer   Completer
	maxAttempts int
	reveal      bool
	locks       *keyLock
	// gate is read-held from round snapshot to commit by StartGame and
	// RecordAttempt, and write-held by ExpireStale, so a sweep never misses a
	// game created against the round it is closing.
	gate sync.RWMutex
	now         func() time.Time
}

// New builds a Ledger. A non-positive maxAttempts uses game.DefaultMaxAttempts.
func New(st store.Store, rounds Rounds, completer Completer, maxAttempts int, opts ...Option) *Ledger {
	if maxAttempts <= 0 {
		maxAttempts = game.DefaultMaxAttempts
	}
	l := &Ledger{
		store:       st,
		rounds:      rounds,
		completer:   completer,
		maxAttempts: maxAttempts,
		locks:       newKeyLock(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// MaxAttempts is the per-round guess budget.
func (l *Ledger) MaxAttempts() int { return l.maxAttempts }

// StartResult describes the user's game for the active round.
type StartResult struct {
	GameID       string      `json:"gameId"`
	RoundID      string      `json:"roundId"`
	WordLength   int         `json:"wordLength"`
	AttemptsUsed int         `json:"attemptsUsed"`
	AttemptsLeft int         `json:"attemptsLeft"`
	Status       game.Status `json:"status"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Word         string      `json:"word,omitempty"`
}

// GuessResult is the outcome of one recorded attempt.
type GuessResult struct {
	GameID        string              `json:"gameId"`
	Feedback      []game.LetterResult `json:"feedback"`
	IsWon         bool                `json:"isWon"`
	GameCompleted bool                `json:"gameCompleted"`
	AttemptsUsed  int                 `json:"attemptsUsed"`
	AttemptsLeft  int                 `json:"attemptsLeft"`
}

func lockKey(userID, roundID string) string { return userID + "|" + roundID }

// AttemptsLeft is max(0, MaxAttempts-used).
func (l *Ledger) AttemptsLeft(used int) int {
	if left := l.maxAttempts - used; left > 0 {
		return left
	}
	return 0
}

// StartGame creates or returns the user's game for the active round.
// Creating a game does not consume an attempt.
func (l *Ledger) StartGame(ctx context.Context, userID string) (StartResult, error) {
	l.gate.RLock()
	defer l.gate.RUnlock()

	r, err := l.rounds.Current()
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: %w", game.ErrNoWordsAvailable, err)
	}

	unlock := l.locks.Lock(lockKey(userID, r.ID))
	defer unlock()

	g, err := l.resolveGame(ctx, userID, r)
	if err != nil {
		return StartResult{}, err
	}
	res := StartResult{
		GameID:       g.ID,
		RoundID:      r.ID,
		WordLength:   game.WordLength,
		AttemptsUsed: g.AttemptCount,
		AttemptsLeft: l.AttemptsLeft(g.AttemptCount),
		Status:       g.Status,
		ExpiresAt:    r.ExpiresAt,
	}
	if l.reveal {
		res.Word = r.Word.Text
	}
	return res, nil
}

// RecordAttempt scores guess for userID against the active round.
// gameID is optional; when given it must be the user's current game, or the
// user's game from an earlier round (the session carries over to the new round).
func (l *Ledger) RecordAttempt(ctx context.Context, userID, gameID, guess string) (GuessResult, error) {
	l.gate.RLock()
	defer l.gate.RUnlock()

	r, err := l.rounds.Current()
	if err != nil {
		return GuessResult{}, err
	}
	guess = game.Normalize(guess)
	if err := game.ValidateGuess(guess); err != nil {
		return GuessResult{}, err
	}

	unlock := l.locks.Lock(lockKey(userID, r.ID))
	defer unlock()

	g, err := l.resolveGame(ctx, userID, r)
	if err != nil {
		return GuessResult{}, err
	}
	if gameID != "" && gameID != g.ID {
		if err := l.checkStaleSession(ctx, userID, gameID); err != nil {
			return GuessResult{}, err
		}
	}

	if g.Status.Completed() {
		if g.AttemptCount == 0 {
			// Expired before any guess: report completion, not an error.
			return GuessResult{GameID: g.ID, GameCompleted: true, AttemptsLeft: l.AttemptsLeft(0)}, nil
		}
		if g.Status == game.Won {
			return GuessResult{}, game.ErrGameCompleted
		}
		return GuessResult{}, game.ErrAttemptsExhausted
	}
	if g.AttemptCount >= l.maxAttempts {
		return GuessResult{}, game.ErrAttemptsExhausted
	}

	fb, err := game.Score(r.Word.Text, guess)
	if err != nil {
		return GuessResult{}, err
	}
	a := &game.Attempt{GameID: g.ID, Guess: guess, Feedback: fb, CreatedAt: l.now().UTC()}
	count, err := l.store.AppendAttempt(ctx, a, l.maxAttempts)
	if err != nil {
		return GuessResult{}, err
	}
	g.AttemptCount = count

	res := GuessResult{
		GameID:       g.ID,
		Feedback:     fb,
		IsWon:        game.IsWin(fb),
		AttemptsUsed: count,
		AttemptsLeft: l.AttemptsLeft(count),
	}
	switch {
	case res.IsWon:
		res.GameCompleted = true
		l.complete(ctx, g, game.Won)
	case count >= l.maxAttempts:
		res.GameCompleted = true
		l.complete(ctx, g, game.Lost)
	}
	return res, nil
}

// complete delegates to the completer; failures are logged, the attempt stands.
func (l *Ledger) complete(ctx context.Context, g *game.Game, outcome game.Status) {
	if _, err := l.completer.CompleteGame(ctx, g, outcome); err != nil {
		log.Error().Err(err).Str("game", g.ID).Str("outcome", string(outcome)).Msg("complete game")
	}
}

// checkStaleSession accepts gameID only if it is the user's game from another round.
func (l *Ledger) checkStaleSession(ctx context.Context, userID, gameID string) error {
	old, err := l.store.GameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			return game.ErrGameNotFound
		}
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	if old.UserID != userID {
		return game.ErrGameNotFound
	}
	log.Debug().Str("game", gameID).Str("user", userID).Msg("guess carried over from previous round")
	return nil
}

// resolveGame returns the user's game for r, creating it if needed.
// Callers hold the (user, round) lock.
func (l *Ledger) resolveGame(ctx context.Context, userID string, r game.Round) (*game.Game, error) {
	g, err := l.store.GameForRound(ctx, userID, r.ID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, game.ErrGameNotFound) {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if _, err := l.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}

	g = &game.Game{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoundID:   r.ID,
		WordID:    r.Word.ID,
		Status:    game.InProgress,
		CreatedAt: l.now().UTC(),
	}
	if err := l.store.CreateGame(ctx, g); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return l.store.GameForRound(ctx, userID, r.ID)
		}
		return nil, fmt.Errorf("create game: %w", err)
	}
	log.Debug().Str("game", g.ID).Str("user", userID).Str("round", r.ID).Msg("game created")
	return g, nil
}

// CurrentGame returns the user's game for the active round and its attempts.
func (l *Ledger) CurrentGame(ctx context.Context, userID string) (*game.Game, []game.Attempt, error) {
	r, err := l.rounds.Current()
	if err != nil {
		return nil, nil, err
	}
	g, err := l.store.GameForRound(ctx, userID, r.ID)
	if err != nil {
		return nil, nil, err
	}
	atts, err := l.store.Attempts(ctx, g.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load attempts: %w", err)
	}
	return g, atts, nil
}

// ExpireStale marks every in-progress game outside round r as lost.
// Registered as a round rotation hook. It waits for in-flight starts and
// guesses; any of them that snapshotted the old round is swept here.
func (l *Ledger) ExpireStale(ctx context.Context, r game.Round) {
	l.gate.Lock()
	defer l.gate.Unlock()

	stale, err := l.store.StaleGames(ctx, r.ID)
	if err != nil {
		log.Error().Err(err).Str("round", r.ID).Msg("list stale games")
		return
	}
	expired := 0
	for _, g := range stale {
		if l.expireOne(ctx, g) {
			expired++
		}
	}
	if expired > 0 {
		log.Info().Str("round", r.ID).Int("expired", expired).Msg("expired games from previous rounds")
	}
}

func (l *Ledger) expireOne(ctx context.Context, g *game.Game) bool {
	unlock := l.locks.Lock(lockKey(g.UserID, g.RoundID))
	defer unlock()

	cur, err := l.store.GameByID(ctx, g.ID)
	if err != nil {
		log.Warn().Err(err).Str("game", g.ID).Msg("reload stale game")
		return false
	}
	if cur.Status != game.InProgress {
		return false
	}
	ok, err := l.completer.CompleteGame(ctx, cur, game.Lost)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("expire game")
		return false
	}
	return ok
}
