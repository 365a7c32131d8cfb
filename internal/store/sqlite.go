// internal/store/sqlite.go
//
// SQLite implementation of Store.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations from sql/*.sql, one transaction per file,
//     recorded in _migrations.
//   - Atomic attempt append and in_progress → won|lost transitions via
//     conditional UPDATEs, so concurrent requests cannot overrun the budget
//     or double-complete a game.
//
// Timestamps are stored as RFC3339 text in UTC.

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/round-server/internal/game"
)

//go:embed sql/*.sql
var migrations embed.FS

// SQLite is a Store backed by a *sql.DB.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the database at dsn and migrates it.
//
//   - Ensures the parent directory exists for relative paths (e.g. ./data/app.db).
//   - ":memory:" is pinned to a single connection so every query sees the same DB.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// migrate applies the embedded sql/*.sql files in lexical order. Each file
// runs in its own transaction together with its _migrations row, so a failed
// file leaves nothing behind and is retried on the next start.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "sql/*.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		applied, err := applyMigration(db, f)
		if err != nil {
			return err
		}
		if applied {
			log.Info().Str("migration", f).Msg("applied")
		}
	}
	return nil
}

// applyMigration runs one file unless it is already recorded.
func applyMigration(db *sql.DB, name string) (bool, error) {
	body, err := migrations.ReadFile(name)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	switch err := tx.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, name).Scan(&one); {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("query _migrations: %w", err)
	}

	if _, err := tx.Exec(string(body)); err != nil {
		return false, fmt.Errorf("apply %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, name); err != nil {
		return false, fmt.Errorf("record %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit %s: %w", name, err)
	}
	return true, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// parseTime parses stored timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

// ------------------------------- words -------------------------------------

func (s *SQLite) AddWord(ctx context.Context, text string) (game.Word, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO words (text, created_at) VALUES (?, ?)`, text, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return game.Word{}, game.ErrWordExists
		}
		return game.Word{}, fmt.Errorf("insert word: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return game.Word{}, err
	}
	return game.Word{ID: id, Text: text, CreatedAt: now}, nil
}

func (s *SQLite) ListWords(ctx context.Context) ([]game.Word, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, used_at, created_at FROM words ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLite) WordByID(ctx context.Context, id int64) (game.Word, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, text, used_at, created_at FROM words WHERE id=?`, id)
	w, err := scanWord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Word{}, game.ErrUserOrWordNotFound
	}
	return w, err
}

func (s *SQLite) MarkWordUsed(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE words SET used_at=? WHERE id=?`, formatTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.ErrUserOrWordNotFound
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanWord(row scanner) (game.Word, error) {
	var w game.Word
	var used sql.NullString
	var created string
	if err := row.Scan(&w.ID, &w.Text, &used, &created); err != nil {
		return game.Word{}, err
	}
	w.UsedAt = parseNullTime(used)
	w.CreatedAt = parseTime(created)
	return w, nil
}

// ------------------------------- games -------------------------------------

const gameCols = `id, user_id, round_id, word_id, attempt_count, status, created_at, finished_at`

func scanGame(row scanner) (*game.Game, error) {
	var g game.Game
	var status, created string
	var finished sql.NullString
	if err := row.Scan(&g.ID, &g.UserID, &g.RoundID, &g.WordID, &g.AttemptCount, &status, &created, &finished); err != nil {
		return nil, err
	}
	g.Status = game.Status(status)
	g.CreatedAt = parseTime(created)
	g.FinishedAt = parseNullTime(finished)
	return &g, nil
}

func (s *SQLite) CreateGame(ctx context.Context, g *game.Game) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO games (id, user_id, round_id, word_id, attempt_count, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.RoundID, g.WordID, g.AttemptCount, string(g.Status), formatTime(g.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *SQLite) GameForRound(ctx context.Context, userID, roundID string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameCols+` FROM games WHERE user_id=? AND round_id=?`, userID, roundID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrGameNotFound
	}
	return g, err
}

func (s *SQLite) GameByID(ctx context.Context, id string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameCols+` FROM games WHERE id=?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrGameNotFound
	}
	return g, err
}

func (s *SQLite) StaleGames(ctx context.Context, activeRoundID string) ([]*game.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gameCols+` FROM games WHERE status=? AND round_id<>? ORDER BY created_at`,
		string(game.InProgress), activeRoundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendAttempt(ctx context.Context, a *game.Attempt, maxAttempts int) (int, error) {
	fb, err := json.Marshal(a.Feedback)
	if err != nil {
		return 0, fmt.Errorf("encode feedback: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// Guarded increment: only one writer can take the last slot.
	res, err := tx.ExecContext(ctx, `
        UPDATE games SET attempt_count = attempt_count + 1
        WHERE id=? AND status=? AND attempt_count < ?`,
		a.GameID, string(game.InProgress), maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("bump attempt_count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var count int
		err := tx.QueryRowContext(ctx, `SELECT attempt_count FROM games WHERE id=?`, a.GameID).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, game.ErrGameNotFound
		}
		if err != nil {
			return 0, err
		}
		return count, game.ErrAttemptsExhausted
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (game_id, guess, feedback, created_at) VALUES (?, ?, ?, ?)`,
		a.GameID, a.Guess, string(fb), formatTime(a.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT attempt_count FROM games WHERE id=?`, a.GameID).Scan(&count); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attempt: %w", err)
	}
	return count, nil
}

func (s *SQLite) Attempts(ctx context.Context, gameID string) ([]game.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, guess, feedback, created_at FROM attempts WHERE game_id=? ORDER BY id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Attempt
	for rows.Next() {
		var a game.Attempt
		var fb, created string
		if err := rows.Scan(&a.ID, &a.GameID, &a.Guess, &fb, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fb), &a.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback for attempt %d: %w", a.ID, err)
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) FinishGame(ctx context.Context, gameID string, status game.Status, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET status=?, finished_at=? WHERE id=? AND status=?`,
		string(status), formatTime(at), gameID, string(game.InProgress))
	if err != nil {
		return false, fmt.Errorf("finish game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.GameByID(ctx, gameID); err != nil {
		return false, err
	}
	return false, nil
}

// ------------------------------- users -------------------------------------

const userCols = `id, username, password_hash, created_at, total_games, total_wins`

func scanUser(row scanner) (*game.User, error) {
	var u game.User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.TotalGames, &u.TotalWins); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (s *SQLite) CreateUser(ctx context.Context, u *game.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return game.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) UserByID(ctx context.Context, id string) (*game.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrUserOrWordNotFound
	}
	return u, err
}

func (s *SQLite) UserByUsername(ctx context.Context, username string) (*game.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(username)=lower(?)`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrUserOrWordNotFound
	}
	return u, err
}

func (s *SQLite) BumpStats(ctx context.Context, userID string, won bool) error {
	wins := 0
	if won {
		wins = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET total_games = total_games + 1, total_wins = total_wins + ? WHERE id=?`,
		wins, userID)
	if err != nil {
		return fmt.Errorf("bump stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.ErrUserOrWordNotFound
	}
	return nil
}

func (s *SQLite) InsertWin(ctx context.Context, w game.WinRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wins (user_id, word_id, attempts_used, won_at) VALUES (?,?,?,?)`,
		w.UserID, w.WordID, w.AttemptsUsed, formatTime(w.WonAt))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return game.ErrUserOrWordNotFound
		}
		return fmt.Errorf("insert win: %w", err)
	}
	return nil
}

func (s *SQLite) TopPlayers(ctx context.Context, limit int) ([]PlayerRank, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT username, total_wins
        FROM users
        WHERE total_wins > 0
        ORDER BY total_wins DESC, username ASC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PlayerRank, 0, limit)
	for rows.Next() {
		var r PlayerRank
		if err := rows.Scan(&r.Username, &r.TotalWins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) MostGuessedWords(ctx context.Context, limit int) ([]WordRank, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT w.text, COUNT(x.id) AS win_count
        FROM wins x
        JOIN words w ON w.id = x.word_id
        GROUP BY w.id
        ORDER BY win_count DESC, w.text ASC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WordRank, 0, limit)
	for rows.Next() {
		var r WordRank
		if err := rows.Scan(&r.Word, &r.WinCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
