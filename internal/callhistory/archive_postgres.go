package callhistory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// NOTE: This archive assumes the following table exists:
//
//   CREATE TABLE call_attempts (
//     id            UUID PRIMARY KEY,
//     method        TEXT NOT NULL,
//     target_phone  TEXT NOT NULL,
//     borrower_name TEXT NOT NULL DEFAULT '',
//     status        TEXT NOT NULL,
//     attempted_at  TEXT NOT NULL,
//     details       TEXT NOT NULL DEFAULT '',
//     created_at    TIMESTAMPTZ NOT NULL
//   );
//
// It is INSERT-only: collection contact attempts are a compliance trail and
// are never updated or deleted. The 50-entry ring remains the UI source of
// truth; this table retains everything beyond the cap.

type PostgresArchive struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{db: db, clock: time.Now}
}

func (a *PostgresArchive) Record(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO call_attempts (
  id, method, target_phone, borrower_name, status, attempted_at, details, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := a.db.ExecContext(ctx, q,
		uuid.NewString(),
		e.Method,
		e.TargetPhone,
		e.BorrowerName,
		string(e.Status),
		e.Timestamp,
		e.Details,
		a.clock().UTC(),
	)
	return err
}
