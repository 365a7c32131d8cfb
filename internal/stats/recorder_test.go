package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
	"github.com/robalobadob/wordle/apps/round-server/internal/store"
)

type fixture struct {
	st   store.Store
	rec  *Recorder
	user *game.User
	word game.Word
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	u := &game.User{ID: uuid.NewString(), Username: "ana", PasswordHash: "x", CreatedAt: time.Now()}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	w, err := st.AddWord(ctx, "GATOS")
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{st: st, rec: NewRecorder(st), user: u, word: w}
}

func (f *fixture) newGame(t *testing.T, round string, attempts int) *game.Game {
	t.Helper()
	g := &game.Game{
		ID: uuid.NewString(), UserID: f.user.ID, RoundID: round, WordID: f.word.ID,
		AttemptCount: attempts, Status: game.InProgress, CreatedAt: time.Now(),
	}
	if err := f.st.CreateGame(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCompleteGameWon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.newGame(t, "r1", 2)

	ok, err := f.rec.CompleteGame(ctx, g, game.Won)
	if err != nil || !ok {
		t.Fatalf("complete = %v, %v", ok, err)
	}
	if g.Status != game.Won || g.FinishedAt == nil {
		t.Fatalf("game not updated: %+v", g)
	}
	s, _ := f.rec.UserStats(ctx, f.user.ID)
	if s.TotalGames != 1 || s.TotalWins != 1 {
		t.Fatalf("stats = %+v", s)
	}
	words, _ := f.rec.MostGuessedWords(ctx, 0)
	if len(words) != 1 || words[0].Word != "GATOS" || words[0].WinCount != 1 {
		t.Fatalf("most guessed = %+v", words)
	}
}

func TestCompleteGameLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.newGame(t, "r1", 5)

	if ok, err := f.rec.CompleteGame(ctx, g, game.Lost); err != nil || !ok {
		t.Fatalf("complete = %v, %v", ok, err)
	}
	s, _ := f.rec.UserStats(ctx, f.user.ID)
	if s.TotalGames != 1 || s.TotalWins != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if words, _ := f.rec.MostGuessedWords(ctx, 10); len(words) != 0 {
		t.Fatalf("loss produced a win record: %+v", words)
	}
}

func TestCompleteGameExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.newGame(t, "r1", 1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := *g
			if _, err := f.rec.CompleteGame(ctx, &cp, game.Won); err != nil {
				t.Errorf("complete: %v", err)
			}
		}()
	}
	wg.Wait()

	s, _ := f.rec.UserStats(ctx, f.user.ID)
	if s.TotalGames != 1 || s.TotalWins != 1 {
		t.Fatalf("double counted: %+v", s)
	}
	if ok, _ := f.rec.CompleteGame(ctx, g, game.Lost); ok {
		t.Fatal("second completion reported a transition")
	}
}

func TestCompleteGameRejectsInProgressOutcome(t *testing.T) {
	f := newFixture(t)
	g := f.newGame(t, "r1", 0)
	if _, err := f.rec.CompleteGame(context.Background(), g, game.InProgress); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompleteGameStatsFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Game owned by a user the store does not know: counters fail, completion stands.
	g := &game.Game{ID: uuid.NewString(), UserID: "ghost", RoundID: "r1", WordID: f.word.ID, Status: game.InProgress, CreatedAt: time.Now()}
	if err := f.st.CreateGame(ctx, g); err != nil {
		t.Fatal(err)
	}
	ok, err := f.rec.CompleteGame(ctx, g, game.Won)
	if err != nil || !ok {
		t.Fatalf("complete = %v, %v", ok, err)
	}
	stored, _ := f.st.GameByID(ctx, g.ID)
	if stored.Status != game.Won {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 10, -3: 10, 5: 5, 1000: 100} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
