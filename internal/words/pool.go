// internal/words/pool.go
//
// Pool is the candidate set of secret words.
// Responsibilities:
//   - Uniform random selection with an exclusion set, falling back to the
//     full pool when the exclusion leaves nothing (the pool never exhausts).
//   - Global-round exclusion: words already used as secrets, plus the current one.
//   - Admin add/list and idempotent seeding.

package words

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
)

// Pool selects secrets from the persisted word list.
type Pool struct {
	store store.Words
	now   func() time.Time
}

// NewPool builds a Pool over st.
func NewPool(st store.Words) *Pool {
	return &Pool{store: st, now: time.Now}
}

// SelectNext picks a word uniformly at random from all words minus exclude.
// If that leaves nothing, it picks from the full pool. The chosen word is
// marked used (advisory; a failure to mark is logged, not returned).
func (p *Pool) SelectNext(ctx context.Context, exclude map[int64]struct{}) (game.Word, error) {
	all, err := p.store.ListWords(ctx)
	if err != nil {
		return game.Word{}, fmt.Errorf("list words: %w", err)
	}
	if len(all) == 0 {
		return game.Word{}, game.ErrNoWordsAvailable
	}

	candidates := lo.Reject(all, func(w game.Word, _ int) bool {
		_, skip := exclude[w.ID]
		return skip
	})
	if len(candidates) == 0 {
		log.Debug().Int("pool", len(all)).Msg("exclusion covers whole pool, recycling")
		candidates = all
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		return game.Word{}, fmt.Errorf("random pick: %w", err)
	}
	w := candidates[n.Int64()]

	now := p.now().UTC()
	if err := p.store.MarkWordUsed(ctx, w.ID, now); err != nil {
		log.Warn().Err(err).Int64("word", w.ID).Msg("mark word used")
	} else {
		w.UsedAt = &now
	}
	return w, nil
}

// RoundExclusions is the exclusion set for the next global round: every word
// that has already served as a secret, plus currentID. Once every word has
// been used it narrows to currentID alone, so the pool recycles without
// repeating the word that just ended.
func (p *Pool) RoundExclusions(ctx context.Context, currentID int64) (map[int64]struct{}, error) {
	all, err := p.store.ListWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	used := lo.FilterMap(all, func(w game.Word, _ int) (int64, bool) {
		return w.ID, w.UsedAt != nil || w.ID == currentID
	})
	if len(used) >= len(all) {
		used = []int64{currentID}
	}
	return lo.Keyify(used), nil
}

// AddWord normalizes and stores a new word.
func (p *Pool) AddWord(ctx context.Context, text string) (game.Word, error) {
	w := game.Normalize(text)
	if err := game.ValidateGuess(w); err != nil {
		return game.Word{}, game.ErrInvalidWord
	}
	return p.store.AddWord(ctx, w)
}

// List returns every word in the pool.
func (p *Pool) List(ctx context.Context) ([]game.Word, error) {
	return p.store.ListWords(ctx)
}

// Seed adds each word not yet in the pool and reports how many were added.
func (p *Pool) Seed(ctx context.Context, list []string) (int, error) {
	added := 0
	for _, s := range list {
		if _, err := p.AddWord(ctx, s); err != nil {
			if errors.Is(err, game.ErrWordExists) {
				continue
			}
			return added, fmt.Errorf("seed %q: %w", s, err)
		}
		added++
	}
	return added, nil
}
