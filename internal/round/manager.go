// internal/round/manager.go
//
// Manager owns the process-wide active round.
// Responsibilities:
//   - Hold the current Round behind a RWMutex; it is the only writer.
//   - Rotate on a fixed-period ticker (and once synchronously on Start).
//   - Degrade gracefully: a failed selection keeps the prior round alive.
//   - Notify hooks (e.g. stale-game expiry) after each successful rotation.
//
// Readers get a value snapshot (Current), never a pointer into manager state.

package round

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

// DefaultPeriod is the round length used when none is configured.
const DefaultPeriod = 5 * time.Minute

// Selector picks the next secret. Implemented by *words.Pool.
type Selector interface {
	RoundExclusions(ctx context.Context, currentID int64) (map[int64]struct{}, error)
	SelectNext(ctx context.Context, exclude map[int64]struct{}) (game.Word, error)
}

// Hook runs after a new round is published.
type Hook func(ctx context.Context, r game.Round)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager rotates rounds and serves the current one.
type Manager struct {
	pool   Selector
	period time.Duration
	now    func() time.Time

	mu  sync.RWMutex
	cur *game.Round

	hookMu sync.Mutex
	hooks  []Hook

	rotateMu sync.Mutex // serializes Rotate (ticker vs. manual)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Manager. A non-positive period falls back to DefaultPeriod.
func New(pool Selector, period time.Duration, opts ...Option) *Manager {
	if period <= 0 {
		period = DefaultPeriod
	}
	m := &Manager{pool: pool, period: period, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Period is the configured round length.
func (m *Manager) Period() time.Duration { return m.period }

// OnRotate registers h to run after every successful rotation.
func (m *Manager) OnRotate(h Hook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Start selects the first word synchronously, then rotates every period
// until ctx is cancelled or Stop is called. A failed first selection is
// logged; the ticker keeps retrying.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.Rotate(ctx)

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the rotation loop and waits for it to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	t := time.NewTicker(m.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Rotate(ctx)
		}
	}
}

// Rotate selects a new secret and publishes it as the current round.
// It reports whether a new round was published.
func (m *Manager) Rotate(ctx context.Context) bool {
	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	var currentID int64
	if prev, err := m.Current(); err == nil {
		currentID = prev.Word.ID
	}

	exclude, err := m.pool.RoundExclusions(ctx, currentID)
	if err != nil {
		log.Warn().Err(err).Msg("round exclusions; selecting from full pool")
		exclude = nil
	}
	w, err := m.pool.SelectNext(ctx, exclude)
	if err != nil {
		log.Error().Err(err).Msg("select next word; keeping current round")
		return false
	}

	now := m.now()
	r := game.Round{
		ID:        uuid.NewString(),
		Word:      w,
		StartedAt: now,
		ExpiresAt: now.Add(m.period),
	}
	m.mu.Lock()
	m.cur = &r
	m.mu.Unlock()
	log.Info().Str("round", r.ID).Int64("word", w.ID).Time("expiresAt", r.ExpiresAt).Msg("round started")

	m.hookMu.Lock()
	hooks := append([]Hook(nil), m.hooks...)
	m.hookMu.Unlock()
	for _, h := range hooks {
		h(ctx, r)
	}
	return true
}

// Current returns a snapshot of the active round, or game.ErrNoActiveWord
// if no word has been selected yet.
func (m *Manager) Current() (game.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return game.Round{}, game.ErrNoActiveWord
	}
	return *m.cur, nil
}

// TimeUntilNext is max(0, expiresAt-now); zero when there is no round.
func (m *Manager) TimeUntilNext() time.Duration {
	r, err := m.Current()
	if err != nil {
		return 0
	}
	if d := r.ExpiresAt.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}
