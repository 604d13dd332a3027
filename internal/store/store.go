package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/ideaminer/internal/config"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// dbTimeFormat sorts lexicographically in UTC.
const dbTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// SQLStore keeps the seen-set and idea records in SQLite or Postgres.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects with the configured driver and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var driverName string
	switch driver {
	case config.DriverSQLite, "":
		driverName = "sqlite"
		if dsn == "" {
			p, err := config.DefaultDSN()
			if err != nil {
				return nil, err
			}
			dsn = p
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
				return nil, err
			}
		}
	case config.DriverPostgres:
		driverName = "pgx"
		if dsn == "" {
			return nil, errors.New("postgres driver requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driverName == "sqlite" {
		// One writer; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection without touching the schema.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scraped_posts (
		post_id TEXT PRIMARY KEY,
		scraped_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scraped_results (
		uuid TEXT PRIMARY KEY,
		scraped_at TEXT NOT NULL,
		subreddit TEXT NOT NULL,
		reddit_url TEXT NOT NULL,
		reddit_title TEXT NOT NULL,
		reddit_id TEXT,
		user_id TEXT NOT NULL DEFAULT '',
		analysis TEXT NOT NULL,
		solution TEXT NOT NULL,
		cursor_playbook TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scraped_results_scraped_at ON scraped_results(scraped_at)`,
}

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// LoadSeen returns every id ever marked seen.
func (s *SQLStore) LoadSeen(ctx context.Context) (types.IDSet, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT post_id FROM scraped_posts`); err != nil {
		return nil, fmt.Errorf("load seen ids: %w", err)
	}
	return types.NewIDSet(ids...), nil
}

// MarkSeen records id. Marking an id twice is not an error.
func (s *SQLStore) MarkSeen(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO scraped_posts (post_id, scraped_at) VALUES (?, ?)
		ON CONFLICT (post_id) DO NOTHING
	`), id, s.now().UTC().Format(dbTimeFormat))
	if err != nil {
		return fmt.Errorf("mark %s seen: %w", id, err)
	}
	return nil
}

// SaveIdeas inserts records in one transaction. Records already stored under
// the same uuid are left alone.
func (s *SQLStore) SaveIdeas(ctx context.Context, records []types.IdeaRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := s.db.Rebind(`
		INSERT INTO scraped_results (uuid, scraped_at, subreddit, reddit_url, reddit_title, reddit_id,
			user_id, analysis, solution, cursor_playbook)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO NOTHING
	`)
	for _, rec := range records {
		row, err := toRow(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert,
			row.UUID, row.ScrapedAt, row.Subreddit, row.URL, row.Title, row.RedditID,
			row.UserID, row.Analysis, row.Solution, row.Playbook,
		); err != nil {
			return fmt.Errorf("insert idea %s: %w", rec.Meta.UUID, err)
		}
	}
	return tx.Commit()
}

// RecentIdeas lists the newest records first.
func (s *SQLStore) RecentIdeas(ctx context.Context, limit int) ([]types.IdeaSummary, error) {
	var rows []ideaRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+ideaColumns+` FROM scraped_results
		ORDER BY scraped_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("recent ideas: %w", err)
	}

	out := make([]types.IdeaSummary, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summary())
	}
	return out, nil
}

// IdeaByUUID loads one full record.
func (s *SQLStore) IdeaByUUID(ctx context.Context, id string) (types.IdeaRecord, error) {
	var row ideaRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+ideaColumns+` FROM scraped_results WHERE uuid = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.IdeaRecord{}, ErrNotFound
	}
	if err != nil {
		return types.IdeaRecord{}, fmt.Errorf("idea %s: %w", id, err)
	}
	return row.record()
}

func marshalColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
