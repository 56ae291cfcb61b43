package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists execution log entries in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newStore(db, path), nil
}

func newStore(db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{db: db, path: path}
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NewEntryID generates a ULID for a log entry created at t.
func NewEntryID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// Save inserts a new entry. Missing IDs and timestamps are filled in.
func (s *SQLiteStore) Save(ctx context.Context, entry domain.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.ID == "" {
		entry.ID = NewEntryID(entry.CreatedAt)
	}
	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	var promInfo sql.NullString
	if entry.PromInfo != nil {
		raw, err := json.Marshal(entry.PromInfo)
		if err != nil {
			return fmt.Errorf("encode prom info: %w", err)
		}
		promInfo = sql.NullString{String: string(raw), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO executions
		(id, session_id, created_at, kind, code_info, results, prom_info, code, error, execution_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.SessionID,
		entry.CreatedAt.UTC().Format(timeLayout),
		string(entry.Type),
		entry.CodeInfo,
		string(results),
		promInfo,
		entry.Code,
		entry.Error,
		entry.ExecutionTimeMS,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Records returns entries newest first, narrowed by filter.
func (s *SQLiteStore) Records(ctx context.Context, filter domain.HistoryFilter) ([]domain.LogEntry, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, session_id, created_at, kind, code_info, results, prom_info, code, error, execution_time_ms FROM executions`)
	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		where = append(where, `(code_info LIKE ? ESCAPE '\' OR error LIKE ? ESCAPE '\')`)
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if len(where) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(where, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var (
			entry    domain.LogEntry
			ts       string
			kind     string
			results  string
			promInfo sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.SessionID, &ts, &kind, &entry.CodeInfo, &results, &promInfo, &entry.Code, &entry.Error, &entry.ExecutionTimeMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, ts); err == nil {
			entry.CreatedAt = t
		}
		entry.Type = domain.QueryKind(kind)
		if err := json.Unmarshal([]byte(results), &entry.Results); err != nil {
			return nil, fmt.Errorf("decode results of %s: %w", entry.ID, err)
		}
		if promInfo.Valid {
			entry.PromInfo = &domain.PromInfo{}
			if err := json.Unmarshal([]byte(promInfo.String), entry.PromInfo); err != nil {
				return nil, fmt.Errorf("decode prom info of %s: %w", entry.ID, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Clear deletes all history entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM executions")
	return err
}

// PruneOlderThan deletes entries older than days and reports how many went.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("retention days must be > 0")
	}
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(timeLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportJSON writes the history to a jsonl file, oldest first.
func (s *SQLiteStore) ExportJSON(ctx context.Context, dest string) error {
	records, err := s.Records(ctx, domain.HistoryFilter{})
	if err != nil {
		return err
	}
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()
	for i := len(records) - 1; i >= 0; i-- {
		b, err := json.Marshal(records[i])
		if err != nil {
			return err
		}
		if _, err := file.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ ports.HistoryRepository = (*SQLiteStore)(nil)
