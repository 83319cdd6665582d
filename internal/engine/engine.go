// Package engine holds the reconciliation and action-execution core: the
// ledger/live merge, the approval workflow, and the execution pipeline that
// re-verifies live state before every mutation.
package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/guardzcom/slack-channel-cleanup/internal/config"
	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
	"github.com/guardzcom/slack-channel-cleanup/internal/enumerate"
	"github.com/guardzcom/slack-channel-cleanup/internal/events"
	"github.com/guardzcom/slack-channel-cleanup/internal/ledger"
	"github.com/guardzcom/slack-channel-cleanup/internal/slackapi"
)

type Engine struct {
	API      slackapi.API
	Store    ledger.Store
	Enum     *enumerate.Enumerator
	Events   *events.Writer
	Approver *Approver
	Cfg      *config.Config
	Out      io.Writer
	Sleep    func(time.Duration)
}

func (e *Engine) printf(format string, args ...any) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, format+"\n", args...)
	}
}

func (e *Engine) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Snapshot indexes one live enumeration for target-existence and
// name-collision checks, so execution does not issue a remote call per
// lookup.
type Snapshot struct {
	ByID   map[string]*domain.Channel
	ByName map[string]*domain.Channel
}

func NewSnapshot(channels []domain.Channel) *Snapshot {
	s := &Snapshot{
		ByID:   make(map[string]*domain.Channel, len(channels)),
		ByName: make(map[string]*domain.Channel, len(channels)),
	}
	for i := range channels {
		ch := &channels[i]
		s.ByID[ch.ID] = ch
		s.ByName[ch.Name] = ch
	}
	return s
}

// Rename moves a channel under its new name so later records in the same
// run see the final state.
func (s *Snapshot) Rename(oldName, newName string) {
	ch, ok := s.ByName[oldName]
	if !ok {
		return
	}
	delete(s.ByName, oldName)
	ch.Name = newName
	s.ByName[newName] = ch
}

// Sync enumerates the workspace, reconciles the result against the ledger
// and persists the merged ledger. With dryRun set nothing is written, the
// merged result is only reported.
func (e *Engine) Sync(ctx context.Context, forceRefresh, dryRun bool) ([]domain.Record, error) {
	records, err := e.Store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := ledger.ValidateRecords(records); err != nil {
		return nil, err
	}
	e.printf("Fetching current channels...")
	live, err := e.Enum.Enumerate(ctx, true, forceRefresh, dryRun)
	if err != nil {
		return nil, err
	}
	merged := Reconcile(records, live)

	added, removed := diffCounts(records, merged)
	e.printf("\nLedger now tracks %d channels (%d new, %d removed)", len(merged), added, removed)
	if dryRun {
		e.printf("Dry run: ledger not written")
		return merged, nil
	}
	if err := e.Store.Write(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Apply reads the ledger, executes pending actions through the approval
// workflow and writes the mutated ledger back. It reports whether any
// pending actions existed; when none do, callers fall through to Sync.
func (e *Engine) Apply(ctx context.Context, dryRun bool) (bool, *RunResult, error) {
	records, err := e.Store.Read(ctx)
	if err != nil {
		return false, nil, err
	}
	if err := ledger.ValidateRecords(records); err != nil {
		return false, nil, err
	}
	var pending []domain.Record
	counts := map[domain.ActionKind]int{}
	for _, r := range records {
		if r.Pending() {
			pending = append(pending, r)
			counts[r.Action]++
		}
	}
	if len(pending) == 0 {
		return false, nil, nil
	}

	e.printf("\nFound actions to process:")
	for _, kind := range domain.Actions() {
		if counts[kind] > 0 {
			e.printf("  %s: %d channels", kind, counts[kind])
		}
	}
	if dryRun {
		e.printf("\nDRY RUN MODE - no changes will be made")
	}

	live, err := e.Enum.Enumerate(ctx, true, false, dryRun)
	if err != nil {
		return true, nil, err
	}

	// Remember pre-execution intent; the executor mutates the pending
	// copies (renames update names in place).
	intents := make(map[string]domain.Record, len(pending))
	for _, p := range pending {
		intents[p.ChannelID] = p
	}

	res := e.ExecuteActions(ctx, pending, live, dryRun)

	if !dryRun && len(res.SuccessIDs) > 0 {
		updated := applyOutcomes(records, pending, res.SuccessIDs, intents)
		if err := e.Store.Write(ctx, updated); err != nil {
			return true, res, fmt.Errorf("write back ledger: %w", err)
		}
		e.printf("Ledger updated: actions cleared for %d channels", len(res.SuccessIDs))
	}
	if res.Cancelled {
		return true, res, domain.ErrCancelled
	}
	return true, res, nil
}

// applyOutcomes folds execution results back into the full ledger:
// archived channels are dropped, renames and description updates take
// effect, and completed actions reset to keep with the target cleared.
func applyOutcomes(records, executed []domain.Record, successIDs []string, intents map[string]domain.Record) []domain.Record {
	succeeded := make(map[string]bool, len(successIDs))
	for _, id := range successIDs {
		succeeded[id] = true
	}
	finals := make(map[string]domain.Record, len(executed))
	for _, p := range executed {
		finals[p.ChannelID] = p
	}

	out := records[:0:0]
	for _, rec := range records {
		if !succeeded[rec.ChannelID] {
			out = append(out, rec)
			continue
		}
		intent := intents[rec.ChannelID]
		switch intent.Action {
		case domain.ActionArchive:
			continue // gone remotely, drop from the ledger
		case domain.ActionRename:
			// The executor carries the name the server settled on.
			rec.Name = finals[rec.ChannelID].Name
		case domain.ActionUpdateDescription:
			rec.Description = intent.TargetValue
		}
		rec.Action = domain.ActionKeep
		rec.TargetValue = ""
		out = append(out, rec)
	}
	return out
}

func diffCounts(before, after []domain.Record) (added, removed int) {
	prev := make(map[string]bool, len(before))
	for _, r := range before {
		prev[r.ChannelID] = true
	}
	next := make(map[string]bool, len(after))
	for _, r := range after {
		next[r.ChannelID] = true
		if !prev[r.ChannelID] {
			added++
		}
	}
	for id := range prev {
		if !next[id] {
			removed++
		}
	}
	return added, removed
}
