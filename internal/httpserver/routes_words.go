// internal/httpserver/routes_words.go
//
// Admin word pool endpoints (X-Admin-Token):
//   GET  /words   list the pool
//   POST /words   add a word { "word": "PLAZA" }

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

type addWordReq struct {
	Word string `json:"word"`
}

func (s *Server) mountWordRoutes() {
	s.r.Route("/words", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/", s.handleListWords)
		r.Post("/", s.handleAddWord)
	})
}

func (s *Server) handleListWords(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Pool.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []game.Word{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddWord(w http.ResponseWriter, r *http.Request) {
	var body addWordReq
	if err := decodeJSON(w, r, &body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	word, err := s.deps.Pool.AddWord(r.Context(), body.Word)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("id", word.ID).Str("word", word.Text).Msg("word added")
	writeJSON(w, http.StatusCreated, word)
}
