package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// DataStore defines the interface for persistent storage of sessions,
// transcripts and summaries. Both PostgresStore and SQLiteStore implement
// this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Session operations
	CreateSession(ctx context.Context, title, hostID, keyHash string) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionKeyHash(ctx context.Context, id uuid.UUID) (string, error)
	ListActiveSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	IncrementEventCount(ctx context.Context, id uuid.UUID) error
	CountSessions(ctx context.Context) (int64, error)
	GetMostRecentActivity(ctx context.Context) (*time.Time, error)

	// Transcript operations
	AddTranscriptEntry(ctx context.Context, entry *models.TranscriptEntry) error
	ListTranscript(ctx context.Context, sessionID string, limit int, before int64) ([]models.TranscriptEntry, error)

	// Summary operations
	SaveSummary(ctx context.Context, summary *models.Summary) error
	GetLatestSummary(ctx context.Context, sessionID string) (*models.Summary, error)
}

// LifecycleGate adapts a DataStore to the relay's join authorization check:
// a join target is valid only while the session exists and is active.
type LifecycleGate struct {
	ds DataStore
}

// NewLifecycleGate wraps a DataStore as a session gate.
func NewLifecycleGate(ds DataStore) *LifecycleGate {
	return &LifecycleGate{ds: ds}
}

// SessionIsActive reports whether the session can be joined. Malformed IDs
// count as inactive, not as errors.
func (g *LifecycleGate) SessionIsActive(ctx context.Context, sessionID string) (bool, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return false, nil
	}
	sess, err := g.ds.GetSession(ctx, id)
	if err != nil {
		return false, err
	}
	return sess != nil && sess.IsActive(), nil
}
