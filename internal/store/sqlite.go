package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// SQLiteStore handles SQLite database operations. Used in development when no
// DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/relay.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/relay.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		host_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		key_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		event_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transcript_entries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		speaker_id TEXT NOT NULL,
		speaker TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		lang TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at);
	CREATE INDEX IF NOT EXISTS idx_transcript_session_ts ON transcript_entries(session_id, ts);
	CREATE INDEX IF NOT EXISTS idx_summaries_session_ts ON summaries(session_id, ts);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession creates a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, title, hostID, keyHash string) (*models.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var keyHashPtr *string
	if keyHash != "" {
		keyHashPtr = &keyHash
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, host_id, status, key_hash, created_at, last_active_at, event_count)
		VALUES (?, ?, ?, 'active', ?, ?, ?, 0)
	`, id, title, hostID, keyHashPtr, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetSession(ctx, uuid.MustParse(id))
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess := &models.Session{}
	var idStr string
	var keyHash *string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, host_id, status, key_hash, created_at, ended_at, last_active_at, event_count
		FROM sessions WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&sess.Title,
		&sess.HostID,
		&sess.Status,
		&keyHash,
		&sess.CreatedAt,
		&sess.EndedAt,
		&sess.LastActiveAt,
		&sess.EventCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sess.ID = uuid.MustParse(idStr)
	sess.IsPrivate = keyHash != nil && *keyHash != ""
	return sess, nil
}

// GetSessionKeyHash retrieves the join key hash for a private session.
func (s *SQLiteStore) GetSessionKeyHash(ctx context.Context, id uuid.UUID) (string, error) {
	var keyHash *string
	err := s.db.QueryRowContext(ctx, `
		SELECT key_hash FROM sessions WHERE id = ?
	`, id.String()).Scan(&keyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if keyHash == nil {
		return "", nil
	}
	return *keyHash, nil
}

// ListActiveSessions retrieves active sessions with pagination.
func (s *SQLiteStore) ListActiveSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE status = 'active'`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, host_id, status, key_hash, created_at, ended_at, last_active_at, event_count
		FROM sessions
		WHERE status = 'active'
		ORDER BY last_active_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		var idStr string
		var keyHash *string
		err := rows.Scan(
			&idStr,
			&sess.Title,
			&sess.HostID,
			&sess.Status,
			&keyHash,
			&sess.CreatedAt,
			&sess.EndedAt,
			&sess.LastActiveAt,
			&sess.EventCount,
		)
		if err != nil {
			return nil, 0, err
		}
		sess.ID = uuid.MustParse(idStr)
		sess.IsPrivate = keyHash != nil && *keyHash != ""
		sessions = append(sessions, sess)
	}

	return sessions, total, nil
}

// EndSession marks a session ended. Ending an already-ended session is a
// no-op.
func (s *SQLiteStore) EndSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'ended', ended_at = ?
		WHERE id = ? AND status = 'active'
	`, time.Now().UTC(), id.String())
	return err
}

// IncrementEventCount bumps the event counter and refreshes activity.
func (s *SQLiteStore) IncrementEventCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET event_count = event_count + 1, last_active_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id.String())
	return err
}

// CountSessions returns the total number of sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// GetMostRecentActivity returns the newest last_active_at across sessions.
func (s *SQLiteStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_active_at) FROM sessions`).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}

// AddTranscriptEntry appends a caption line to a session's transcript.
func (s *SQLiteStore) AddTranscriptEntry(ctx context.Context, entry *models.TranscriptEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript_entries (id, session_id, speaker_id, speaker, text, lang, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.SessionID, entry.SpeakerID, entry.Speaker, entry.Text, entry.Lang, entry.Timestamp)
	return err
}

// ListTranscript retrieves transcript entries, newest first.
func (s *SQLiteStore) ListTranscript(ctx context.Context, sessionID string, limit int, before int64) ([]models.TranscriptEntry, error) {
	query := `
		SELECT id, session_id, speaker_id, speaker, text, lang, ts
		FROM transcript_entries
		WHERE session_id = ?
	`
	args := []any{sessionID}
	if before > 0 {
		query += ` AND ts < ? ORDER BY ts DESC LIMIT ?`
		args = append(args, before, limit)
	} else {
		query += ` ORDER BY ts DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.TranscriptEntry, 0, limit)
	for rows.Next() {
		var e models.TranscriptEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SpeakerID, &e.Speaker, &e.Text, &e.Lang, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveSummary stores a generated summary.
func (s *SQLiteStore) SaveSummary(ctx context.Context, summary *models.Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (id, session_id, text, ts)
		VALUES (?, ?, ?, ?)
	`, summary.ID, summary.SessionID, summary.Text, summary.Timestamp)
	return err
}

// GetLatestSummary returns the most recent summary for a session.
func (s *SQLiteStore) GetLatestSummary(ctx context.Context, sessionID string) (*models.Summary, error) {
	summary := &models.Summary{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, text, ts
		FROM summaries
		WHERE session_id = ?
		ORDER BY ts DESC
		LIMIT 1
	`, sessionID).Scan(&summary.ID, &summary.SessionID, &summary.Text, &summary.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return summary, nil
}
