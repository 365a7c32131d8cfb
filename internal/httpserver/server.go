// internal/httpserver/server.go
//
// HTTP server wiring for the round-based Wordle backend.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery, timeouts,
//     JSON content type, CORS, request logging).
//   - Public endpoints: "/", "/health", "/round", leaderboards.
//   - Game endpoints (require auth): /game/start, /game/guess, /game/current.
//   - Auth + profile endpoints: /auth/*, /stats/me.
//   - Admin word pool endpoints: /words (X-Admin-Token).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Guesses are rate limited per client IP.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/config"
	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/ledger"
	"github.com/robalobadob/wordle/apps/round-server/internal/round"
	"github.com/robalobadob/wordle/apps/round-server/internal/stats"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
	"github.com/robalobadob/wordle/apps/round-server/internal/words"
)

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Users  store.Users
	Rounds *round.Manager
	Ledger *ledger.Ledger
	Stats  *stats.Recorder
	Pool   *words.Pool
}

// Server bundles router, config and the game components.
type Server struct {
	r       *chi.Mux
	cfg     config.Config
	deps    Deps
	limiter *ipLimiter
	http    *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		deps:    deps,
		limiter: newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)                   // zerolog access log
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "wordle-rounds",
			"endpoints": []string{"/health", "/round", "POST /game/start", "POST /game/guess", "/auth/*", "/stats/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	s.r.Get("/round", s.handleRound)
	s.mountAuthRoutes()
	s.mountGameRoutes()
	s.mountStatsRoutes()
	s.mountWordRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	s.http = &http.Server{Addr: ":" + cfg.Port, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Start serves HTTP on :PORT. It returns nil after Shutdown.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("reqId", chimw.GetReqID(r.Context())).
			Msg("http")
	})
}

// ------------------------------- round -------------------------------------

type roundRes struct {
	Active          bool   `json:"active"`
	RoundID         string `json:"roundId,omitempty"`
	WordLength      int    `json:"wordLength"`
	TimeRemainingMs int64  `json:"timeRemainingMs"`
}

// handleRound reports the active round's shape and countdown. Read-only.
func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	res := roundRes{WordLength: game.WordLength}
	if cur, err := s.deps.Rounds.Current(); err == nil {
		res.Active = true
		res.RoundID = cur.ID
		res.TimeRemainingMs = s.deps.Rounds.TimeUntilNext().Milliseconds()
	}
	writeJSON(w, http.StatusOK, res)
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// decodeJSON reads a size-capped JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v)
}
