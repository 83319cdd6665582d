// Package cache keeps the last-known activity per channel in the local
// state database so a run does not refetch per-channel history that was
// already fetched recently. It is a performance optimization only: every
// failure path degrades to an empty cache, never to an error.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// Activity is one cached channel observation.
type Activity struct {
	TS      string // YYYY-MM-DD
	Snippet string
}

// Entry is a full cache generation. Generations are replaced wholesale,
// never merged.
type Entry struct {
	CapturedAt time.Time
	Activity   map[string]Activity
}

// Empty reports whether the entry carries no usable data.
func (e Entry) Empty() bool { return len(e.Activity) == 0 }

// Store reads and writes cache generations.
type Store struct {
	DB  *sql.DB
	TTL time.Duration
	Now func() time.Time
	Log io.Writer
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) logf(format string, args ...any) {
	if s.Log != nil {
		fmt.Fprintf(s.Log, format+"\n", args...)
	}
}

// Load returns the current generation, or an empty entry when the cache is
// absent, unreadable, or older than the TTL. It never returns an error.
func (s *Store) Load(ctx context.Context) Entry {
	var capturedAt string
	err := s.DB.QueryRowContext(ctx, `SELECT captured_at FROM cache_meta WHERE id = 1`).Scan(&capturedAt)
	if err == sql.ErrNoRows {
		return Entry{}
	}
	if err != nil {
		s.logf("warning: activity cache unreadable, ignoring: %v", err)
		return Entry{}
	}
	ts, err := time.Parse(time.RFC3339, capturedAt)
	if err != nil {
		s.logf("warning: activity cache has invalid timestamp %q, ignoring", capturedAt)
		return Entry{}
	}
	if s.now().Sub(ts) > s.TTL {
		s.logf("activity cache expired (captured %s), refetching", ts.Format("2006-01-02 15:04"))
		return Entry{}
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT channel_id, last_activity, COALESCE(snippet,'') FROM activity_cache`)
	if err != nil {
		s.logf("warning: activity cache unreadable, ignoring: %v", err)
		return Entry{}
	}
	defer rows.Close()
	activity := map[string]Activity{}
	for rows.Next() {
		var id string
		var a Activity
		if err := rows.Scan(&id, &a.TS, &a.Snippet); err != nil {
			s.logf("warning: activity cache row unreadable, ignoring cache: %v", err)
			return Entry{}
		}
		activity[id] = a
	}
	if err := rows.Err(); err != nil {
		s.logf("warning: activity cache unreadable, ignoring: %v", err)
		return Entry{}
	}
	return Entry{CapturedAt: ts, Activity: activity}
}

// Save replaces the cache with the activity extracted from the given
// channels, in one transaction. Failure is logged and swallowed.
func (s *Store) Save(ctx context.Context, channels []domain.Channel) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		s.logf("warning: could not write activity cache: %v", err)
		return
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_cache`); err != nil {
		s.logf("warning: could not write activity cache: %v", err)
		return
	}
	for _, ch := range channels {
		if ch.LastActivity == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_cache(channel_id, last_activity, snippet) VALUES (?,?,?)`,
			ch.ID, ch.LastActivity, ch.LastMessage); err != nil {
			s.logf("warning: could not write activity cache: %v", err)
			return
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_meta(id, captured_at) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET captured_at = excluded.captured_at`,
		s.now().UTC().Format(time.RFC3339)); err != nil {
		s.logf("warning: could not write activity cache: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.logf("warning: could not write activity cache: %v", err)
	}
}

// Apply fills LastActivity on channels present in the entry and returns the
// hit count. Channels missing from the entry are left for a fresh fetch.
func Apply(channels []domain.Channel, entry Entry) int {
	if entry.Empty() {
		return 0
	}
	hits := 0
	for i := range channels {
		if a, ok := entry.Activity[channels[i].ID]; ok {
			channels[i].LastActivity = a.TS
			channels[i].LastMessage = a.Snippet
			hits++
		}
	}
	return hits
}
