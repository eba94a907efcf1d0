package schedule

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles persistence of scheduled jobs using SQLite
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-backed job store at the given path
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			schedule    TEXT NOT NULL,
			question    TEXT NOT NULL,
			platform    TEXT,
			channel_id  TEXT,
			enabled     INTEGER NOT NULL DEFAULT 1,
			created_at  TEXT NOT NULL,
			last_run    TEXT,
			last_error  TEXT
		);
	`)
	return err
}

// SaveJob inserts or replaces a job.
func (s *Store) SaveJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastRun any
	if job.LastRun != nil {
		lastRun = job.LastRun.Format(time.RFC3339Nano)
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO jobs (id, name, schedule, question, platform, channel_id, enabled, created_at, last_run, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.Schedule, job.Question, job.Platform, job.ChannelID,
		boolToInt(job.Enabled), job.CreatedAt.Format(time.RFC3339Nano), lastRun, job.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// DeleteJob removes a job by id.
func (s *Store) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Load returns all persisted jobs.
func (s *Store) Load() ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, name, schedule, question, platform, channel_id, enabled, created_at, last_run, last_error FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		var enabled int
		var created string
		var lastRun, lastError sql.NullString
		var platform, channelID sql.NullString
		if err := rows.Scan(&job.ID, &job.Name, &job.Schedule, &job.Question,
			&platform, &channelID, &enabled, &created, &lastRun, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Platform = platform.String
		job.ChannelID = channelID.String
		job.Enabled = enabled != 0
		job.LastError = lastError.String
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			job.CreatedAt = t
		}
		if lastRun.Valid {
			if t, err := time.Parse(time.RFC3339Nano, lastRun.String); err == nil {
				job.LastRun = &t
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
