// internal/words/words.go
//
// Seed list loading for the word pool.
//
// Sources (LoadSeed):
//   1. If a path is given (WORDS_FILE), read one word per line from it.
//   2. Otherwise fall back to the embedded assets/words.txt.
//
// Constraints:
//   • Words must be 5 letters (Unicode letters, so Ñ is allowed).
//   • Lists are normalized to upper case; blank lines and '#' comments are skipped.
//   • Invalid or duplicate lines are dropped, keeping first-seen order.

package words

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/robalobadob/wordle/apps/round-server/assets"
	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

// LoadSeed returns the normalized seed list from path, or from the embedded
// defaults when path is empty. Returns an error if the list ends up empty.
func LoadSeed(path string) ([]string, error) {
	var raw []string
	var err error
	if path != "" {
		raw, err = readWordFile(path)
	} else {
		raw, err = assets.SeedWords()
	}
	if err != nil {
		return nil, err
	}
	list := normalize(raw)
	if len(list) == 0 {
		return nil, errors.New("words: seed list is empty")
	}
	return list, nil
}

// readWordFile loads one word per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// normalize upper-cases, validates and de-duplicates a raw list.
func normalize(raw []string) []string {
	valid := lo.FilterMap(raw, func(s string, _ int) (string, bool) {
		w := game.Normalize(s)
		return w, game.ValidateGuess(w) == nil
	})
	return lo.Uniq(valid)
}
