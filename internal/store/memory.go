// internal/store/memory.go
//
// In-memory implementation of Store.
// Used for ephemeral sessions in development/testing, or when durability is
// not required.
//
// Characteristics:
//   - Maps keyed by ID; copies are handed out so callers never alias state.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	words    map[int64]*game.Word
	nextWord int64
	games    map[string]*game.Game     // keyed by Game.ID
	byRound  map[string]string         // userID|roundID → Game.ID
	attempts map[string][]game.Attempt // keyed by Game.ID
	nextAtt  int64
	users    map[string]*game.User // keyed by User.ID
	wins     []game.WinRecord
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		words:    make(map[int64]*game.Word),
		games:    make(map[string]*game.Game),
		byRound:  make(map[string]string),
		attempts: make(map[string][]game.Attempt),
		users:    make(map[string]*game.User),
	}
}

func (m *memory) Close() error { return nil }

func roundKey(userID, roundID string) string { return userID + "|" + roundID }

// ------------------------------- words -------------------------------------

func (m *memory) AddWord(ctx context.Context, text string) (game.Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.words {
		if w.Text == text {
			return game.Word{}, game.ErrWordExists
		}
	}
	m.nextWord++
	w := &game.Word{ID: m.nextWord, Text: text, CreatedAt: time.Now().UTC()}
	m.words[w.ID] = w
	return *w, nil
}

func (m *memory) ListWords(ctx context.Context) ([]game.Word, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := lo.MapToSlice(m.words, func(_ int64, w *game.Word) game.Word { return *w })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memory) WordByID(ctx context.Context, id int64) (game.Word, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.words[id]; ok {
		return *w, nil
	}
	return game.Word{}, game.ErrUserOrWordNotFound
}

func (m *memory) MarkWordUsed(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.words[id]
	if !ok {
		return game.ErrUserOrWordNotFound
	}
	at = at.UTC()
	w.UsedAt = &at
	return nil
}

// ------------------------------- games -------------------------------------

func (m *memory) CreateGame(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey(g.UserID, g.RoundID)
	if _, ok := m.byRound[key]; ok {
		return ErrConflict
	}
	cp := *g
	m.games[g.ID] = &cp
	m.byRound[key] = g.ID
	return nil
}

func (m *memory) GameForRound(ctx context.Context, userID, roundID string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRound[roundKey(userID, roundID)]
	if !ok {
		return nil, game.ErrGameNotFound
	}
	cp := *m.games[id]
	return &cp, nil
}

func (m *memory) GameByID(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, game.ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memory) StaleGames(ctx context.Context, activeRoundID string) ([]*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Game
	for _, g := range m.games {
		if g.Status == game.InProgress && g.RoundID != activeRoundID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) AppendAttempt(ctx context.Context, a *game.Attempt, maxAttempts int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[a.GameID]
	if !ok {
		return 0, game.ErrGameNotFound
	}
	if g.Status != game.InProgress || g.AttemptCount >= maxAttempts {
		return g.AttemptCount, game.ErrAttemptsExhausted
	}
	m.nextAtt++
	a.ID = m.nextAtt
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.attempts[a.GameID] = append(m.attempts[a.GameID], *a)
	g.AttemptCount++
	return g.AttemptCount, nil
}

func (m *memory) Attempts(ctx context.Context, gameID string) ([]game.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]game.Attempt(nil), m.attempts[gameID]...), nil
}

func (m *memory) FinishGame(ctx context.Context, gameID string, status game.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return false, game.ErrGameNotFound
	}
	if g.Status != game.InProgress {
		return false, nil
	}
	at = at.UTC()
	g.Status = status
	g.FinishedAt = &at
	return true, nil
}

// ------------------------------- users -------------------------------------

func (m *memory) CreateUser(ctx context.Context, u *game.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if strings.EqualFold(x.Username, u.Username) {
			return game.ErrUsernameTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memory) UserByID(ctx context.Context, id string) (*game.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, game.ErrUserOrWordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memory) UserByUsername(ctx context.Context, username string) (*game.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := lo.Find(lo.Values(m.users), func(x *game.User) bool {
		return strings.EqualFold(x.Username, username)
	})
	if !ok {
		return nil, game.ErrUserOrWordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memory) BumpStats(ctx context.Context, userID string, won bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return game.ErrUserOrWordNotFound
	}
	u.TotalGames++
	if won {
		u.TotalWins++
	}
	return nil
}

func (m *memory) InsertWin(ctx context.Context, w game.WinRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[w.UserID]; !ok {
		return game.ErrUserOrWordNotFound
	}
	if _, ok := m.words[w.WordID]; !ok {
		return game.ErrUserOrWordNotFound
	}
	m.wins = append(m.wins, w)
	return nil
}

func (m *memory) TopPlayers(ctx context.Context, limit int) ([]PlayerRank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := lo.FilterMap(lo.Values(m.users), func(u *game.User, _ int) (PlayerRank, bool) {
		return PlayerRank{Username: u.Username, TotalWins: u.TotalWins}, u.TotalWins > 0
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalWins != out[j].TotalWins {
			return out[i].TotalWins > out[j].TotalWins
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) MostGuessedWords(ctx context.Context, limit int) ([]WordRank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := lo.CountValuesBy(m.wins, func(w game.WinRecord) int64 { return w.WordID })
	out := make([]WordRank, 0, len(counts))
	for id, n := range counts {
		if w, ok := m.words[id]; ok {
			out = append(out, WordRank{Word: w.Text, WinCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WinCount != out[j].WinCount {
			return out[i].WinCount > out[j].WinCount
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
