// internal/httpserver/errors.go
//
// Maps domain errors onto HTTP responses. Every error body has the shape
// {"error": "<code>", "message": "<human text>"}.

package httpserver

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

type errorRes struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorMapping is checked in order; the first errors.Is match wins.
// ErrNoWordsAvailable precedes ErrNoActiveWord because StartGame wraps both.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{game.ErrInvalidGuessLength, http.StatusBadRequest, "invalid_guess_length"},
	{game.ErrInvalidGuess, http.StatusBadRequest, "invalid_guess"},
	{game.ErrInvalidWord, http.StatusBadRequest, "invalid_word"},
	{game.ErrGameNotFound, http.StatusNotFound, "game_not_found"},
	{game.ErrUserOrWordNotFound, http.StatusNotFound, "not_found"},
	{game.ErrAttemptsExhausted, http.StatusConflict, "attempts_exhausted"},
	{game.ErrGameCompleted, http.StatusConflict, "game_completed"},
	{game.ErrWordExists, http.StatusConflict, "word_exists"},
	{game.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{game.ErrNoWordsAvailable, http.StatusServiceUnavailable, "no_words_available"},
	{game.ErrNoActiveWord, http.StatusServiceUnavailable, "no_active_word"},
}

// writeError translates err into a status code and JSON body.
// Unmapped errors are logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorRes{Error: m.code, Message: m.err.Error()})
			return
		}
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorRes{Error: "internal_error"})
}

// writeFail writes a client error that has no domain counterpart.
func writeFail(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorRes{Error: code, Message: msg})
}
