package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// RunResult summarizes one execution pass over pending actions.
type RunResult struct {
	SuccessIDs   []string
	Succeeded    int
	Failed       int
	Skipped      int
	Cancelled    bool
	LastArchived *domain.Record
}

// ExecuteActions runs the pending actions in priority order (renames
// first, then archives, then description updates), routing each through
// the approval workflow and re-verifying live state immediately before
// every mutation. The pending slice is mutated in place: successful
// renames update the record's name.
func (e *Engine) ExecuteActions(ctx context.Context, pending []domain.Record, live []domain.Channel, dryRun bool) *RunResult {
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Action.Priority() < pending[j].Action.Priority()
	})
	snap := NewSnapshot(live)
	res := &RunResult{}

	runID := ""
	if !dryRun && e.Events != nil {
		id, err := e.Events.BeginRun(ctx, "apply", dryRun)
		if err != nil {
			e.printf("warning: run history unavailable: %v", err)
		} else {
			runID = id
		}
	}

	step := e.Approver.BatchSize
	if step <= 0 {
		step = 1
	}
	for start := 0; start < len(pending) && !res.Cancelled; start += step {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		end := start + step
		if end > len(pending) {
			end = len(pending)
		}

		decision := BatchIndividual
		if e.Approver.BatchSize > 0 && !e.Approver.AssumeYes {
			decision = e.Approver.ReviewBatch(pending[start:end], snap)
			if decision == BatchApproveAll {
				// "approve all" answers for the rest of the run, not
				// just this batch. Confirm stops prompting once the
				// latch is set but still skips unusable targets.
				e.Approver.AssumeYes = true
			}
		}

		for i := start; i < end; i++ {
			rec := &pending[i]
			switch decision {
			case BatchQuit:
				res.Cancelled = true
			case BatchSkipAll:
				res.Skipped++
				e.printf("⏭ Skipped %s", displayName(rec))
			default:
				switch e.Approver.Confirm(rec, snap) {
				case Quit:
					res.Cancelled = true
				case Skip:
					res.Skipped++
					e.printf("⏭ Skipped %s", displayName(rec))
				case Approve:
					e.processRecord(ctx, rec, snap, dryRun, runID, res)
				}
			}
			if res.Cancelled {
				break
			}
		}
	}

	if res.Cancelled {
		e.printf("\nRun interrupted; completed actions are kept")
	}
	e.printSummary(res, dryRun)
	return res
}

// processRecord executes one approved action. Outside dry runs the live
// channel is re-fetched first and the action skipped when its
// precondition no longer holds.
func (e *Engine) processRecord(ctx context.Context, rec *domain.Record, snap *Snapshot, dryRun bool, runID string, res *RunResult) {
	if dryRun {
		e.printf("✔ Would %s", rec.Action.Describe(rec.TargetValue))
		res.Succeeded++
		res.SuccessIDs = append(res.SuccessIDs, rec.ChannelID)
		return
	}

	if err := e.verifyFresh(ctx, rec); err != nil {
		e.printf("⏭ Skipped %s: %v", displayName(rec), err)
		res.Skipped++
		return
	}

	out := e.runAction(ctx, rec, snap)
	if runID != "" {
		if err := e.Events.Append(ctx, runID, *rec, out); err != nil {
			e.printf("warning: could not record action in history: %v", err)
		}
	}

	if !out.Success {
		e.printf("✘ %s", out.Message)
		res.Failed++
		return
	}
	e.printf("✔ %s", out.Message)
	res.Succeeded++
	res.SuccessIDs = append(res.SuccessIDs, rec.ChannelID)
	switch rec.Action {
	case domain.ActionRename:
		snap.Rename(rec.Name, rec.TargetValue)
		rec.Name = rec.TargetValue
		res.LastArchived = nil
	case domain.ActionArchive:
		if ch, ok := snap.ByID[rec.ChannelID]; ok {
			ch.IsArchived = true
		}
		archived := *rec
		res.LastArchived = &archived
	default:
		res.LastArchived = nil
	}
	e.sleep(e.Cfg.Slack.RatePause.Std())
}

// verifyFresh re-fetches the channel and reports why the action must be
// skipped, or nil when the ledger's view still matches reality.
func (e *Engine) verifyFresh(ctx context.Context, rec *domain.Record) error {
	ch, err := e.API.GetChannel(ctx, rec.ChannelID)
	if err != nil {
		var rej *domain.RemoteRejection
		if errors.As(err, &rej) && rej.Cause == domain.RejectNotFound {
			return &domain.StaleError{Channel: rec.Name, Reason: "channel no longer exists"}
		}
		return fmt.Errorf("could not verify live state: %w", err)
	}
	if ch.IsArchived {
		return &domain.StaleError{Channel: rec.Name, Reason: "channel is already archived"}
	}
	if ch.Name != rec.Name {
		return &domain.StaleError{
			Channel: rec.Name,
			Reason:  fmt.Sprintf("live name #%s no longer matches the ledger", ch.Name),
		}
	}
	return nil
}

func (e *Engine) printSummary(res *RunResult, dryRun bool) {
	label := "Summary"
	if dryRun {
		label = "Summary (dry run)"
	}
	e.printf("\n%s: %d succeeded, %d failed, %d skipped", label, res.Succeeded, res.Failed, res.Skipped)
	if !dryRun && res.LastArchived != nil {
		e.printf("Archived channels can be restored from Slack: channel settings → Archive & unarchive → Unarchive")
	}
}
