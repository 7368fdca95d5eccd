// Package archive persists finished report artifacts to SQLite so the desk
// can re-download them after the wizard session is gone. Live sessions never
// touch this store; only terminal submissions are written.
package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	token       TEXT PRIMARY KEY,
	case_id     TEXT NOT NULL,
	case_type   TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL,
	report_text TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
`

// Entry is one archived report.
type Entry struct {
	Token     string    `json:"token"`
	CaseID    string    `json:"case_id"`
	CaseType  string    `json:"case_type"`
	Filename  string    `json:"filename"`
	Text      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the listing view: everything except the report text.
type Summary struct {
	Token     string    `json:"token"`
	CaseID    string    `json:"case_id"`
	CaseType  string    `json:"case_type"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound reports a token with no archived report.
var ErrNotFound = errors.New("archive: report not found")

// Store is the SQLite-backed report archive. Writes go straight through;
// there is no in-memory copy to fall out of sync.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("archive: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one finished report. Saving the same token again replaces the
// row, which keeps a retried persist idempotent.
func (s *Store) Save(e Entry) error {
	if strings.TrimSpace(e.Token) == "" {
		return errors.New("archive: token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO reports (token, case_id, case_type, filename, report_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Token, e.CaseID, e.CaseType, e.Filename, e.Text, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("archive: save report: %w", err)
	}
	return nil
}

// Get loads one archived report, text included.
func (s *Store) Get(token string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT token, case_id, case_type, filename, report_text, created_at FROM reports WHERE token = ?`, token)
	var e Entry
	var createdAt string
	if err := row.Scan(&e.Token, &e.CaseID, &e.CaseType, &e.Filename, &e.Text, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("archive: load report: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

// List returns summaries of every archived report, newest first.
func (s *Store) List() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT token, case_id, case_type, filename, created_at FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("archive: list reports: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		var createdAt string
		if err := rows.Scan(&sm.Token, &sm.CaseID, &sm.CaseType, &sm.Filename, &createdAt); err != nil {
			return nil, fmt.Errorf("archive: scan report: %w", err)
		}
		sm.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, sm)
	}
	return out, rows.Err()
}
