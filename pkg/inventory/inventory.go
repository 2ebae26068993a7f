package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skylatch/s3lite/pkg/s3lite"
	"github.com/skylatch/s3lite/pkg/sweep"
)

// Store records sweep results and answers queries over them.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Entry is one tracked object.
type Entry struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	LastSeenAt   time.Time
	DeletedAt    *time.Time
}

// RecordSweep upserts the sweep's matched objects and tombstones
// previously tracked keys under the swept prefixes that this sweep did
// not match. A key can stop matching because the object was deleted or
// because the patterns narrowed; the inventory does not distinguish the
// two. Runs in one transaction; a failed sweep leaves the inventory
// untouched.
func (s *Store) RecordSweep(ctx context.Context, endpoint string, objects []s3lite.ObjectInfo, sum *sweep.Summary) error {
	if sum == nil {
		return fmt.Errorf("sweep summary is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sweeps (sweep_id, endpoint, started_at, duration_ns, objects_listed, objects_matched, bytes_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.JobID, endpoint, now, sum.Duration.Nanoseconds(),
		sum.ObjectsListed, sum.ObjectsMatched, sum.BytesTotal,
	); err != nil {
		return fmt.Errorf("insert sweep: %w", err)
	}

	upsert, err := tx.PrepareContext(ctx,
		`INSERT INTO objects_current (key, size_bytes, last_modified, etag, last_seen_sweep_id, last_seen_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT(key) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			last_modified = excluded.last_modified,
			etag = excluded.etag,
			last_seen_sweep_id = excluded.last_seen_sweep_id,
			last_seen_at = excluded.last_seen_at,
			deleted_at = NULL`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = upsert.Close() }()

	for _, obj := range objects {
		var lastModified any
		if !obj.LastModified.IsZero() {
			lastModified = obj.LastModified.UTC().Format(time.RFC3339Nano)
		}
		if _, err := upsert.ExecContext(ctx, obj.Key, obj.Size, lastModified, obj.ETag, sum.JobID, now); err != nil {
			return fmt.Errorf("upsert object %s: %w", obj.Key, err)
		}
	}

	// Tombstone tracked keys the sweep did not match. Only keys under
	// the swept prefixes are candidates; objects outside the sweep's
	// scope keep their state. Deletion and un-matching are not told
	// apart here.
	for _, prefix := range sum.Prefixes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE objects_current
			 SET deleted_at = ?
			 WHERE key LIKE ? ESCAPE '\'
			   AND last_seen_sweep_id != ?
			   AND deleted_at IS NULL`,
			now, escapeLike(prefix)+"%", sum.JobID,
		); err != nil {
			return fmt.Errorf("tombstone prefix %s: %w", prefix, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sweep tx: %w", err)
	}
	return nil
}

// Objects returns tracked entries under a prefix, ordered by key.
// Tombstoned entries are excluded unless includeDeleted is set.
func (s *Store) Objects(ctx context.Context, prefix string, includeDeleted bool) ([]Entry, error) {
	query := `SELECT key, size_bytes, last_modified, etag, last_seen_at, deleted_at
		 FROM objects_current
		 WHERE key LIKE ? ESCAPE '\'`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var lastModified, lastSeen sql.NullString
		var deletedAt sql.NullString
		if err := rows.Scan(&e.Key, &e.Size, &lastModified, &e.ETag, &lastSeen, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan object row: %w", err)
		}
		if lastModified.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastModified.String); err == nil {
				e.LastModified = ts
			}
		}
		if lastSeen.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastSeen.String); err == nil {
				e.LastSeenAt = ts
			}
		}
		if deletedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, deletedAt.String); err == nil {
				e.DeletedAt = &ts
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object rows: %w", err)
	}
	return entries, nil
}

// SweepCount reports how many sweeps have been recorded.
func (s *Store) SweepCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sweeps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sweeps: %w", err)
	}
	return n, nil
}

// escapeLike escapes LIKE metacharacters so prefixes containing % or _
// match literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
