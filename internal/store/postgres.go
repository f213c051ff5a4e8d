package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSession creates a new session record.
func (s *PostgresStore) CreateSession(ctx context.Context, title, hostID, keyHash string) (*models.Session, error) {
	sess := &models.Session{}
	var keyHashPtr *string
	if keyHash != "" {
		keyHashPtr = &keyHash
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (title, host_id, key_hash, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING id, title, host_id, status, key_hash IS NOT NULL, created_at, ended_at, last_active_at, event_count
	`, title, hostID, keyHashPtr).Scan(
		&sess.ID,
		&sess.Title,
		&sess.HostID,
		&sess.Status,
		&sess.IsPrivate,
		&sess.CreatedAt,
		&sess.EndedAt,
		&sess.LastActiveAt,
		&sess.EventCount,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess := &models.Session{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, host_id, status, key_hash IS NOT NULL, created_at, ended_at, last_active_at, event_count
		FROM sessions WHERE id = $1
	`, id).Scan(
		&sess.ID,
		&sess.Title,
		&sess.HostID,
		&sess.Status,
		&sess.IsPrivate,
		&sess.CreatedAt,
		&sess.EndedAt,
		&sess.LastActiveAt,
		&sess.EventCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// GetSessionKeyHash retrieves the join key hash for a private session.
func (s *PostgresStore) GetSessionKeyHash(ctx context.Context, id uuid.UUID) (string, error) {
	var keyHash *string
	err := s.pool.QueryRow(ctx, `
		SELECT key_hash FROM sessions WHERE id = $1
	`, id).Scan(&keyHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) ListActiveSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE status = 'active'`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, host_id, status, key_hash IS NOT NULL, created_at, ended_at, last_active_at, event_count
		FROM sessions
		WHERE status = 'active'
		ORDER BY last_active_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		err := rows.Scan(
			&sess.ID,
			&sess.Title,
			&sess.HostID,
			&sess.Status,
			&sess.IsPrivate,
			&sess.CreatedAt,
			&sess.EndedAt,
			&sess.LastActiveAt,
			&sess.EventCount,
		)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}

	return sessions, total, nil
}

// EndSession marks a session ended. Ending an already-ended session is a
// no-op.
func (s *PostgresStore) EndSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'ended', ended_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, id)
	return err
}

// IncrementEventCount bumps the event counter and refreshes activity.
func (s *PostgresStore) IncrementEventCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET event_count = event_count + 1, last_active_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// CountSessions returns the total number of sessions.
func (s *PostgresStore) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// GetMostRecentActivity returns the newest last_active_at across sessions.
func (s *PostgresStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(last_active_at) FROM sessions`).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}

// AddTranscriptEntry appends a caption line to a session's transcript.
func (s *PostgresStore) AddTranscriptEntry(ctx context.Context, entry *models.TranscriptEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_entries (id, session_id, speaker_id, speaker, text, lang, ts)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7)
	`, entry.ID, entry.SessionID, entry.SpeakerID, entry.Speaker, entry.Text, entry.Lang, entry.Timestamp)
	return err
}

// ListTranscript retrieves transcript entries, newest first. A non-zero
// before timestamp excludes entries at or after it.
func (s *PostgresStore) ListTranscript(ctx context.Context, sessionID string, limit int, before int64) ([]models.TranscriptEntry, error) {
	query := `
		SELECT id, session_id, speaker_id, speaker, text, lang, ts
		FROM transcript_entries
		WHERE session_id = $1::uuid
	`
	args := []any{sessionID}
	if before > 0 {
		query += ` AND ts < $2 ORDER BY ts DESC LIMIT $3`
		args = append(args, before, limit)
	} else {
		query += ` ORDER BY ts DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
func (s *PostgresStore) SaveSummary(ctx context.Context, summary *models.Summary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO summaries (id, session_id, text, ts)
		VALUES ($1, $2::uuid, $3, $4)
	`, summary.ID, summary.SessionID, summary.Text, summary.Timestamp)
	return err
}

// GetLatestSummary returns the most recent summary for a session.
func (s *PostgresStore) GetLatestSummary(ctx context.Context, sessionID string) (*models.Summary, error) {
	summary := &models.Summary{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, session_id, text, ts
		FROM summaries
		WHERE session_id = $1::uuid
		ORDER BY ts DESC
		LIMIT 1
	`, sessionID).Scan(&summary.ID, &summary.SessionID, &summary.Text, &summary.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return summary, nil
}
