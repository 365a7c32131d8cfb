// internal/httpserver/routes_game.go
//
// Round game endpoints (all require auth):
//   POST /game/start    create or resume the caller's game for the active round
//   POST /game/guess    record one attempt (rate limited per IP)
//   GET  /game/current  the caller's game and attempts for the active round

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

type guessReq struct {
	GameID string `json:"gameId,omitempty"`
	Word   string `json:"word"`
}

type currentRes struct {
	Game            *game.Game     `json:"game"`
	Attempts        []game.Attempt `json:"attempts"`
	AttemptsLeft    int            `json:"attemptsLeft"`
	TimeRemainingMs int64          `json:"timeRemainingMs"`
}

func (s *Server) mountGameRoutes() {
	s.r.Route("/game", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/start", s.handleStart)
		r.With(s.limiter.middleware).Post("/guess", s.handleGuess)
		r.Get("/current", s.handleCurrent)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	res, err := s.deps.Ledger.StartGame(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGuess validates the body and records the attempt.
// Body: { "gameId"?: string, "word": string }
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var body guessReq
	if err := decodeJSON(w, r, &body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	me := userFrom(r.Context())
	res, err := s.deps.Ledger.RecordAttempt(r.Context(), me.ID, body.GameID, body.Word)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	g, atts, err := s.deps.Ledger.CurrentGame(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if atts == nil {
		atts = []game.Attempt{}
	}
	writeJSON(w, http.StatusOK, currentRes{
		Game:            g,
		Attempts:        atts,
		AttemptsLeft:    s.deps.Ledger.AttemptsLeft(g.AttemptCount),
		TimeRemainingMs: s.deps.Rounds.TimeUntilNext().Milliseconds(),
	})
}
