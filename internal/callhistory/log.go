package callhistory

import (
	"context"
	"log/slog"
	"time"
)

// Entry records one call attempt. BorrowerName is denormalized from the
// account store at append time and may be "Unknown".
type Entry struct {
	Method       string      `json:"method"`
	TargetPhone  string      `json:"targetPhone"`
	BorrowerName string      `json:"borrowerName"`
	Status       EntryStatus `json:"status"`

	// Timestamp is a display string, not a parsed time.
	Timestamp string `json:"timestamp"`
	Details   string `json:"details,omitempty"`
}

type EntryStatus string

const (
	StatusInitiated    EntryStatus = "initiated"
	StatusFailed       EntryStatus = "failed"
	StatusDisconnected EntryStatus = "disconnected"
)

// MaxEntries caps the retained ring; the oldest entry is evicted on overflow.
const MaxEntries = 50

// Repository is the persistence contract for the capped ring.
type Repository interface {
	Push(ctx context.Context, e Entry, max int) error
	List(ctx context.Context, max int) ([]Entry, error)
	Clear(ctx context.Context) error
}

// Archiver receives every appended entry for long-term retention beyond the
// ring cap. Archive failures are best-effort and never block the append.
type Archiver interface {
	Record(ctx context.Context, e Entry) error
}

// Log is the append-only, most-recent-first call history.
type Log struct {
	repo    Repository
	archive Archiver
	clock   func() time.Time
}

func NewLog(repo Repository) *Log {
	return &Log{repo: repo, clock: time.Now}
}

// WithArchive enables the long-term archive.
func (l *Log) WithArchive(a Archiver) *Log {
	l.archive = a
	return l
}

// Append inserts at the head and truncates to the most recent MaxEntries.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if e.Method == "" {
		e.Method = "Outbound Call"
	}
	if e.Timestamp == "" {
		e.Timestamp = l.clock().Format("2006-01-02 15:04:05")
	}
	if err := l.repo.Push(ctx, e, MaxEntries); err != nil {
		return err
	}
	if l.archive != nil {
		if err := l.archive.Record(ctx, e); err != nil {
			slog.Warn("call attempt archive failed", "target", e.TargetPhone, "err", err)
		}
	}
	return nil
}

// List returns entries most-recent-first.
func (l *Log) List(ctx context.Context) ([]Entry, error) {
	return l.repo.List(ctx, MaxEntries)
}

// Clear empties the persisted ring. Confirmation is the UI's concern, not
// the log's. The archive, when enabled, is unaffected.
func (l *Log) Clear(ctx context.Context) error {
	return l.repo.Clear(ctx)
}
