// Package events records per-run action outcomes in the local state
// database. The history backs the `chancur history` command and the undo
// hint after archives.
package events

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// BeginRun inserts a run row and returns its ID.
func (w *Writer) BeginRun(ctx context.Context, mode string, dryRun bool) (string, error) {
	id := uuid.New().String()
	_, err := w.DB.ExecContext(ctx,
		`INSERT INTO runs(id, started_at, mode, dry_run) VALUES (?,?,?,?)`,
		id, w.now().UTC().Format(time.RFC3339), mode, boolInt(dryRun))
	if err != nil {
		return "", err
	}
	return id, nil
}

// Append records one executed action outcome.
func (w *Writer) Append(ctx context.Context, runID string, rec domain.Record, out domain.Outcome) error {
	_, err := w.DB.ExecContext(ctx,
		`INSERT INTO run_actions(run_id, ts, channel_id, channel_name, action, target_value, success, message)
		 VALUES (?,?,?,?,?,?,?,?)`,
		runID, w.now().UTC().Format(time.RFC3339),
		rec.ChannelID, rec.Name, string(rec.Action), nullable(rec.TargetValue),
		boolInt(out.Success), out.Message)
	return err
}

// HistoryEntry is one recorded action for display.
type HistoryEntry struct {
	TS          string `json:"ts"`
	RunID       string `json:"run_id"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Action      string `json:"action"`
	TargetValue string `json:"target_value,omitempty"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
}

// Recent returns the latest n recorded actions, newest first.
func (w *Writer) Recent(ctx context.Context, n int) ([]HistoryEntry, error) {
	rows, err := w.DB.QueryContext(ctx,
		`SELECT ts, run_id, channel_id, channel_name, action, COALESCE(target_value,''), success, message
		 FROM run_actions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var success int
		if err := rows.Scan(&e.TS, &e.RunID, &e.ChannelID, &e.ChannelName, &e.Action, &e.TargetValue, &success, &e.Message); err != nil {
			return nil, err
		}
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
