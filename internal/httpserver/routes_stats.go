// internal/httpserver/routes_stats.go
//
// Statistics endpoints:
//   GET /stats/me             caller's totals (auth)
//   GET /stats/top-players    players ranked by wins (?limit=)
//   GET /stats/popular-words  words ranked by wins (?limit=)

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/robalobadob/wordle/apps/round-server/internal/store"
)

func (s *Server) mountStatsRoutes() {
	s.r.With(s.requireAuth).Get("/stats/me", s.handleMyStats)
	s.r.Get("/stats/top-players", s.handleTopPlayers)
	s.r.Get("/stats/popular-words", s.handlePopularWords)
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	st, err := s.deps.Stats.UserStats(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         me.ID,
		"username":   me.Username,
		"totalGames": st.TotalGames,
		"totalWins":  st.TotalWins,
	})
}

func (s *Server) handleTopPlayers(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	out, err := s.deps.Stats.TopPlayers(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []store.PlayerRank{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePopularWords(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	out, err := s.deps.Stats.MostGuessedWords(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []store.WordRank{}
	}
	writeJSON(w, http.StatusOK, out)
}

// limitParam parses ?limit=; absent means 0 (the recorder's default).
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return 0, false
	}
	return n, true
}
