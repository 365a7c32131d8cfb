// internal/game/score.go
//
// Letter scoring for a guess against the round's secret.
// Responsibilities:
//   - Normalize and validate words (5 letters, upper-case, Unicode letters so Ñ works).
//   - Score guesses using the two-pass algorithm (exact positions first).
//   - Report wins (all tiles correct).

package game

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize trims and upper-cases a word.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateGuess checks a normalized guess: exactly WordLength runes, letters only.
func ValidateGuess(guess string) error {
	if utf8.RuneCountInString(guess) != WordLength {
		return ErrInvalidGuessLength
	}
	if !isAlpha(guess) {
		return ErrInvalidGuess
	}
	return nil
}

// Score compares guess against secret and returns one LetterResult per position.
//
// Pass 1:
//   - Mark exact matches as correct; the matched secret letter is consumed.
//   - Count the remaining (unmatched) secret letters.
//
// Pass 2:
//   - For each unmatched guess letter: if a remaining count exists,
//     mark present and consume one occurrence; otherwise mark absent.
//
// A letter repeated in the guess is therefore credited at most as many times
// as it occurs in the secret.
func Score(secret, guess string) ([]LetterResult, error) {
	s := []rune(Normalize(secret))
	g := []rune(Normalize(guess))
	if len(s) != WordLength || len(g) != WordLength {
		return nil, ErrInvalidGuessLength
	}

	res := make([]LetterResult, WordLength)
	remaining := make(map[rune]int, WordLength)

	// First pass: exact positions.
	for i := range g {
		res[i].Letter = string(g[i])
		if g[i] == s[i] {
			res[i].Status = StatusCorrect
		} else {
			remaining[s[i]]++
		}
	}

	// Second pass: wrong position vs. absent.
	for i := range g {
		if res[i].Status == StatusCorrect {
			continue
		}
		if remaining[g[i]] > 0 {
			res[i].Status = StatusPresent
			remaining[g[i]]--
		} else {
			res[i].Status = StatusAbsent
		}
	}
	return res, nil
}

// IsWin reports whether every tile is correct.
func IsWin(fb []LetterResult) bool {
	if len(fb) == 0 {
		return false
	}
	for _, x := range fb {
		if x.Status != StatusCorrect {
			return false
		}
	}
	return true
}

// isAlpha reports whether s consists of letters only.
func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
