package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/stats"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
)

// staticRounds serves a round set directly by the test.
type staticRounds struct {
	mu  sync.Mutex
	cur *game.Round
}

func (s *staticRounds) Current() (game.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return game.Round{}, game.ErrNoActiveWord
	}
	return *s.cur, nil
}

func (s *staticRounds) set(w game.Word) game.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.cur = &game.Round{ID: uuid.NewString(), Word: w, StartedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	return *s.cur
}

type env struct {
	st     store.Store
	rounds *staticRounds
	rec    *stats.Recorder
	l      *Ledger
	words  map[string]game.Word
}

func newEnv(t *testing.T, st store.Store) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{st: st, rounds: &staticRounds{}, rec: stats.NewRecorder(st), words: map[string]game.Word{}}
	for _, s := range []string{"GATOS", "LIMON", "PERRO"} {
		w, err := st.AddWord(ctx, s)
		if err != nil {
			t.Fatalf("add word: %v", err)
		}
		e.words[s] = w
	}
	e.l = New(st, e.rounds, e.rec, game.DefaultMaxAttempts)
	return e
}

func memEnv(t *testing.T) *env { return newEnv(t, store.NewMemoryStore()) }

func sqliteEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return newEnv(t, st)
}

func (e *env) user(t *testing.T, name string) string {
	t.Helper()
	u := &game.User{ID: uuid.NewString(), Username: name, PasswordHash: "x", CreatedAt: time.Now()}
	if err := e.st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func TestNoActiveWordComesFirst(t *testing.T) {
	e := memEnv(t)
	uid := e.user(t, "ana")
	// Even an invalid guess reports the missing round first.
	if _, err := e.l.RecordAttempt(context.Background(), uid, "", "XY"); !errors.Is(err, game.ErrNoActiveWord) {
		t.Fatalf("err = %v, want ErrNoActiveWord", err)
	}
	_, err := e.l.StartGame(context.Background(), uid)
	if !errors.Is(err, game.ErrNoWordsAvailable) || !errors.Is(err, game.ErrNoActiveWord) {
		t.Fatalf("start err = %v", err)
	}
}

func TestInvalidGuess(t *testing.T) {
	e := memEnv(t)
	e.rounds.set(e.words["GATOS"])
	uid := e.user(t, "ana")
	ctx := context.Background()
	if _, err := e.l.RecordAttempt(ctx, uid, "", "GATO"); !errors.Is(err, game.ErrInvalidGuessLength) {
		t.Fatalf("short err = %v", err)
	}
	if _, err := e.l.RecordAttempt(ctx, uid, "", "GAT0S"); !errors.Is(err, game.ErrInvalidGuess) {
		t.Fatalf("digit err = %v", err)
	}
	if _, _, err := e.l.CurrentGame(ctx, uid); !errors.Is(err, game.ErrGameNotFound) {
		t.Fatalf("invalid guesses must not create a game, err = %v", err)
	}
}

func TestUnknownUser(t *testing.T) {
	e := memEnv(t)
	e.rounds.set(e.words["GATOS"])
	if _, err := e.l.RecordAttempt(context.Background(), "nobody", "", "GATOS"); !errors.Is(err, game.ErrUserOrWordNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestWinOnFirstGuess(t *testing.T) {
	e := memEnv(t)
	e.rounds.set(e.words["GATOS"])
	uid := e.user(t, "ana")
	ctx := context.Background()

	res, err := e.l.RecordAttempt(ctx, uid, "", "gatos")
	if err != nil {
		t.Fatalf("guess: %v", err)
	}
	if !res.IsWon || !res.GameCompleted || res.AttemptsUsed != 1 || res.AttemptsLeft != 4 {
		t.Fatalf("result = %+v", res)
	}
	for _, r := range res.Feedback {
		if r.Status != game.StatusCorrect {
			t.Fatalf("feedback = %+v", res.Feedback)
		}
	}

	if _, err := e.l.RecordAttempt(ctx, uid, res.GameID, "GATOS"); !errors.Is(err, game.ErrGameCompleted) {
		t.Fatalf("guess after win err = %v", err)
	}
	s, _ := e.rec.UserStats(ctx, uid)
	if s.TotalGames != 1 || s.TotalWins != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestExhaustBudget(t *testing.T) {
	for name, mk := range map[string]func(*testing.T) *env{"memory": memEnv, "sqlite": sqliteEnv} {
		t.Run(name, func(t *testing.T) {
			e := mk(t)
			e.rounds.set(e.words["LIMON"])
			uid := e.user(t, "ana")
			ctx := context.Background()

			var last GuessResult
			for i := 1; i <= game.DefaultMaxAttempts; i++ {
				res, err := e.l.RecordAttempt(ctx, uid, "", "MONOS")
				if err != nil {
					t.Fatalf("guess %d: %v", i, err)
				}
				if res.AttemptsUsed != i || res.AttemptsLeft != game.DefaultMaxAttempts-i {
					t.Fatalf("guess %d result = %+v", i, res)
				}
				if res.IsWon {
					t.Fatal("unexpected win")
				}
				last = res
			}
			if !last.GameCompleted || last.AttemptsLeft != 0 {
				t.Fatalf("last result = %+v", last)
			}

			if _, err := e.l.RecordAttempt(ctx, uid, "", "LIMON"); !errors.Is(err, game.ErrAttemptsExhausted) {
				t.Fatalf("6th guess err = %v", err)
			}
			g, _, err := e.l.CurrentGame(ctx, uid)
			if err != nil || g.Status != game.Lost {
				t.Fatalf("game = %+v, %v", g, err)
			}
			s, _ := e.rec.UserStats(ctx, uid)
			if s.TotalGames != 1 || s.TotalWins != 0 {
				t.Fatalf("stats = %+v", s)
			}
		})
	}
}

func TestStartGameIsIdempotentAndFree(t *testing.T) {
	e := memEnv(t)
	r := e.rounds.set(e.words["PERRO"])
	uid := e.user(t, "ana")
	ctx := context.Background()

	a, err := e.l.StartGame(ctx, uid)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	b, _ := e.l.StartGame(ctx, uid)
	if a.GameID != b.GameID || a.RoundID != r.ID {
		t.Fatalf("start results differ: %+v vs %+v", a, b)
	}
	if a.AttemptsUsed != 0 || a.AttemptsLeft != 5 || a.WordLength != 5 || a.Status != game.InProgress {
		t.Fatalf("start = %+v", a)
	}
	if a.Word != "" {
		t.Fatal("word revealed without option")
	}

	res, err := e.l.RecordAttempt(ctx, uid, a.GameID, "PERRA")
	if err != nil || res.GameID != a.GameID || res.AttemptsUsed != 1 {
		t.Fatalf("guess = %+v, %v", res, err)
	}
}

func TestRevealWord(t *testing.T) {
	e := memEnv(t)
	e.l = New(e.st, e.rounds, e.rec, 0, WithRevealWord(true))
	e.rounds.set(e.words["GATOS"])
	res, err := e.l.StartGame(context.Background(), e.user(t, "dev"))
	if err != nil || res.Word != "GATOS" {
		t.Fatalf("start = %+v, %v", res, err)
	}
	if e.l.MaxAttempts() != game.DefaultMaxAttempts {
		t.Fatalf("max attempts = %d", e.l.MaxAttempts())
	}
}

func TestGameIDChecks(t *testing.T) {
	e := memEnv(t)
	e.rounds.set(e.words["GATOS"])
	ana, ben := e.user(t, "ana"), e.user(t, "ben")
	ctx := context.Background()

	benGame, _ := e.l.StartGame(ctx, ben)
	if _, err := e.l.RecordAttempt(ctx, ana, benGame.GameID, "GATOS"); !errors.Is(err, game.ErrGameNotFound) {
		t.Fatalf("foreign game err = %v", err)
	}
	if _, err := e.l.RecordAttempt(ctx, ana, "missing", "GATOS"); !errors.Is(err, game.ErrGameNotFound) {
		t.Fatalf("missing game err = %v", err)
	}

	// A session from the previous round carries over to the new one.
	anaOld, _ := e.l.StartGame(ctx, ana)
	e.rounds.set(e.words["LIMON"])
	res, err := e.l.RecordAttempt(ctx, ana, anaOld.GameID, "LIMON")
	if err != nil || !res.IsWon || res.GameID == anaOld.GameID {
		t.Fatalf("carried-over guess = %+v, %v", res, err)
	}
}

func TestCompletedWithoutAttemptsIsNoop(t *testing.T) {
	e := memEnv(t)
	e.rounds.set(e.words["GATOS"])
	uid := e.user(t, "ana")
	ctx := context.Background()

	start, _ := e.l.StartGame(ctx, uid)
	g, _ := e.st.GameByID(ctx, start.GameID)
	if _, err := e.rec.CompleteGame(ctx, g, game.Lost); err != nil {
		t.Fatal(err)
	}
	res, err := e.l.RecordAttempt(ctx, uid, start.GameID, "GATOS")
	if err != nil {
		t.Fatalf("err = %v, want silent completion", err)
	}
	if !res.GameCompleted || res.AttemptsUsed != 0 || res.Feedback != nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestExpireStale(t *testing.T) {
	e := memEnv(t)
	e.rounds.set(e.words["GATOS"])
	ana, ben := e.user(t, "ana"), e.user(t, "ben")
	ctx := context.Background()

	if _, err := e.l.RecordAttempt(ctx, ana, "", "GOTAS"); err != nil {
		t.Fatal(err)
	}
	benRes, _ := e.l.RecordAttempt(ctx, ben, "", "GATOS")

	next := e.rounds.set(e.words["PERRO"])
	e.l.ExpireStale(ctx, next)
	e.l.ExpireStale(ctx, next) // repeat is harmless

	sa, _ := e.rec.UserStats(ctx, ana)
	sb, _ := e.rec.UserStats(ctx, ben)
	if sa.TotalGames != 1 || sa.TotalWins != 0 {
		t.Fatalf("ana stats = %+v", sa)
	}
	if sb.TotalGames != 1 || sb.TotalWins != 1 {
		t.Fatalf("ben stats = %+v", sb)
	}
	bg, _ := e.st.GameByID(ctx, benRes.GameID)
	if bg.Status != game.Won {
		t.Fatalf("won game overwritten: %s", bg.Status)
	}

	// Fresh budget in the new round.
	res, err := e.l.RecordAttempt(ctx, ana, "", "PERRO")
	if err != nil || !res.IsWon || res.AttemptsUsed != 1 {
		t.Fatalf("new round guess = %+v, %v", res, err)
	}
}

func TestConcurrentGuessesRespectBudget(t *testing.T) {
	for name, mk := range map[string]func(*testing.T) *env{"memory": memEnv, "sqlite": sqliteEnv} {
		t.Run(name, func(t *testing.T) {
			e := mk(t)
			e.rounds.set(e.words["GATOS"])
			uid := e.user(t, "ana")
			ctx := context.Background()

			var wg sync.WaitGroup
			var mu sync.Mutex
			accepted, exhausted := 0, 0
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := e.l.RecordAttempt(ctx, uid, "", "PERRO")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						accepted++
					case errors.Is(err, game.ErrAttemptsExhausted):
						exhausted++
					default:
						t.Errorf("unexpected err: %v", err)
					}
				}()
			}
			wg.Wait()

			if accepted != game.DefaultMaxAttempts || exhausted != 20-game.DefaultMaxAttempts {
				t.Fatalf("accepted=%d exhausted=%d", accepted, exhausted)
			}
			g, atts, err := e.l.CurrentGame(ctx, uid)
			if err != nil {
				t.Fatal(err)
			}
			if g.AttemptCount != game.DefaultMaxAttempts || len(atts) != game.DefaultMaxAttempts {
				t.Fatalf("attemptCount=%d attempts=%d", g.AttemptCount, len(atts))
			}
			s, _ := e.rec.UserStats(ctx, uid)
			if s.TotalGames != 1 {
				t.Fatalf("totalGames = %d", s.TotalGames)
			}
			if n := e.l.locks.size(); n != 0 {
				t.Fatalf("lock entries leaked: %d", n)
			}
		})
	}
}

// rotateOnRead hands out r1 once, then publishes r2 and fires the rotation
// hook in the background, like a tick landing between snapshot and commit.
type rotateOnRead struct {
	mu     sync.Mutex
	r1, r2 game.Round
	served bool
	hook   func(context.Context, game.Round)
	done   chan struct{}
}

func (f *rotateOnRead) Current() (game.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.served {
		return f.r2, nil
	}
	f.served = true
	go func() {
		f.hook(context.Background(), f.r2)
		close(f.done)
	}()
	return f.r1, nil
}

func TestRotationDuringGuessExpiresPriorRoundGame(t *testing.T) {
	for name, mk := range map[string]func(*testing.T) *env{"memory": memEnv, "sqlite": sqliteEnv} {
		t.Run(name, func(t *testing.T) {
			e := mk(t)
			uid := e.user(t, "ana")
			ctx := context.Background()

			now := time.Now()
			f := &rotateOnRead{
				r1:   game.Round{ID: "r1", Word: e.words["GATOS"], StartedAt: now, ExpiresAt: now.Add(time.Minute)},
				r2:   game.Round{ID: "r2", Word: e.words["LIMON"], StartedAt: now, ExpiresAt: now.Add(time.Minute)},
				done: make(chan struct{}),
			}
			l := New(e.st, f, e.rec, game.DefaultMaxAttempts)
			f.hook = l.ExpireStale

			res, err := l.RecordAttempt(ctx, uid, "", "PERRO")
			if err != nil {
				t.Fatalf("guess: %v", err)
			}
			select {
			case <-f.done:
			case <-time.After(5 * time.Second):
				t.Fatal("rotation hook did not finish")
			}

			g, err := e.st.GameByID(ctx, res.GameID)
			if err != nil {
				t.Fatal(err)
			}
			if g.RoundID != "r1" || g.Status != game.Lost || g.AttemptCount != 1 {
				t.Fatalf("prior-round game = %+v", g)
			}
			s, _ := e.rec.UserStats(ctx, uid)
			if s.TotalGames != 1 || s.TotalWins != 0 {
				t.Fatalf("stats = %+v", s)
			}
		})
	}
}

func TestRotationDuringStartExpiresPriorRoundGame(t *testing.T) {
	e := memEnv(t)
	uid := e.user(t, "ana")
	ctx := context.Background()

	now := time.Now()
	f := &rotateOnRead{
		r1:   game.Round{ID: "r1", Word: e.words["GATOS"], StartedAt: now, ExpiresAt: now.Add(time.Minute)},
		r2:   game.Round{ID: "r2", Word: e.words["LIMON"], StartedAt: now, ExpiresAt: now.Add(time.Minute)},
		done: make(chan struct{}),
	}
	l := New(e.st, f, e.rec, game.DefaultMaxAttempts)
	f.hook = l.ExpireStale

	res, err := l.StartGame(ctx, uid)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-f.done
	g, _ := e.st.GameByID(ctx, res.GameID)
	if g.Status != game.Lost {
		t.Fatalf("status = %s, want lost", g.Status)
	}
	next, err := l.StartGame(ctx, uid)
	if err != nil || next.RoundID != "r2" || next.Status != game.InProgress {
		t.Fatalf("next round start = %+v, %v", next, err)
	}
}
