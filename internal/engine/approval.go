package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
	"github.com/guardzcom/slack-channel-cleanup/internal/ledger"
)

// Decision is the outcome of reviewing a single action.
type Decision int

const (
	Approve Decision = iota
	Skip
	Quit
)

// BatchDecision is the outcome of reviewing a batch up front.
type BatchDecision int

const (
	BatchApproveAll BatchDecision = iota
	BatchSkipAll
	BatchIndividual
	BatchQuit
)

// Approver drives the interactive review of pending actions. With
// AssumeYes set every action is approved without prompting; target
// problems still surface, as skips.
type Approver struct {
	In        io.Reader
	Out       io.Writer
	BatchSize int
	AssumeYes bool

	scanner *bufio.Scanner
}

func (a *Approver) printf(format string, args ...any) {
	if a.Out != nil {
		fmt.Fprintf(a.Out, format+"\n", args...)
	}
}

// readLine returns the next input line, trimmed and lowercased. EOF on
// stdin reads as quit everywhere, so a closed pipe never loops forever.
func (a *Approver) readLine() (string, bool) {
	if a.scanner == nil {
		a.scanner = bufio.NewScanner(a.In)
	}
	if !a.scanner.Scan() {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(a.scanner.Text())), true
}

// Confirm reviews one pending action against the live snapshot. Target
// problems are reported before the approval prompt, with the chance to
// retype the target in place.
func (a *Approver) Confirm(rec *domain.Record, snap *Snapshot) Decision {
	for {
		problem := targetProblem(rec, snap)
		if problem == "" {
			break
		}
		a.printf("\n⚠ %s", problem)
		if a.AssumeYes {
			return Skip
		}
		a.printf("[r]etype target / [s]kip / [q]uit")
		line, ok := a.readLine()
		if !ok {
			return Quit
		}
		switch line {
		case "r":
			a.printf("New target value:")
			value, ok := a.readLine()
			if !ok {
				return Quit
			}
			if rec.Action == domain.ActionArchive {
				value = ledger.RedirectTarget(value)
			}
			rec.TargetValue = strings.TrimSpace(value)
		case "s":
			return Skip
		case "q":
			return Quit
		}
	}

	if a.AssumeYes {
		return Approve
	}

	a.describe(rec, snap)
	for {
		a.printf("Approve this action? [y/n/q]")
		line, ok := a.readLine()
		if !ok {
			return Quit
		}
		switch line {
		case "y":
			return Approve
		case "n":
			return Skip
		case "q":
			return Quit
		}
	}
}

// ReviewBatch shows the next group of actions as a table and asks for a
// batch-level decision.
func (a *Approver) ReviewBatch(batch []domain.Record, snap *Snapshot) BatchDecision {
	if a.AssumeYes {
		return BatchApproveAll
	}

	t := table.NewWriter()
	t.SetOutputMirror(a.Out)
	t.AppendHeader(table.Row{"#", "Channel", "Members", "Last activity", "Action"})
	for i, rec := range batch {
		members := ""
		if ch, ok := snap.ByID[rec.ChannelID]; ok {
			members = fmt.Sprintf("%d", ch.MemberCount)
		}
		t.AppendRow(table.Row{i + 1, displayName(&rec), members, rec.LastActivity, rec.Action.Describe(rec.TargetValue)})
	}
	t.Render()

	for {
		a.printf("[a]pprove all / [s]kip all / [i]ndividual review / [q]uit")
		line, ok := a.readLine()
		if !ok {
			return BatchQuit
		}
		switch line {
		case "a":
			return BatchApproveAll
		case "s":
			return BatchSkipAll
		case "i":
			return BatchIndividual
		case "q":
			return BatchQuit
		}
	}
}

// describe prints the review context for one action from ledger and
// snapshot data, without extra API calls.
func (a *Approver) describe(rec *domain.Record, snap *Snapshot) {
	a.printf("\nChannel: %s", displayName(rec))
	if ch, ok := snap.ByID[rec.ChannelID]; ok {
		a.printf("Members: %d", ch.MemberCount)
	}
	if rec.CreatedDate != "" {
		a.printf("Created: %s", rec.CreatedDate)
	}
	if rec.LastActivity != "" {
		a.printf("Last activity: %s", rec.LastActivity)
	}
	if rec.Description != "" {
		a.printf("Purpose: %s", rec.Description)
	}
	if rec.Notes != "" {
		a.printf("Notes: %s", rec.Notes)
	}
	a.printf("Proposed: %s", rec.Action.Describe(rec.TargetValue))

	if rec.Action == domain.ActionArchive {
		if target := ledger.RedirectTarget(rec.TargetValue); target != "" {
			if tch, ok := snap.ByName[target]; ok {
				a.printf("Redirect target #%s: %d members", tch.Name, tch.MemberCount)
				if tch.Description != "" {
					a.printf("  purpose: %s", tch.Description)
				}
				if src, ok := snap.ByID[rec.ChannelID]; ok && tch.MemberCount < src.MemberCount {
					a.printf("⚠ Redirect target has fewer members than the channel being archived")
				}
			}
		}
		a.printf("⚠ Archiving is disruptive: members lose the channel from their sidebar")
	}
}

// targetProblem checks a pending action's target against the live
// snapshot. The empty string means the target is usable.
func targetProblem(rec *domain.Record, snap *Snapshot) string {
	switch rec.Action {
	case domain.ActionRename:
		newName := strings.TrimSpace(rec.TargetValue)
		if err := ledger.ValidateChannelName(newName); err != nil {
			return fmt.Sprintf("rename target for #%s: %v", rec.Name, err)
		}
		if ch, ok := snap.ByName[newName]; ok && ch.ID != rec.ChannelID {
			return fmt.Sprintf("rename target #%s is already in use", newName)
		}
	case domain.ActionArchive:
		target := ledger.RedirectTarget(rec.TargetValue)
		if target == "" {
			return ""
		}
		ch, ok := snap.ByName[target]
		if !ok {
			return fmt.Sprintf("redirect target #%s not found in the workspace", target)
		}
		if ch.IsArchived {
			return fmt.Sprintf("redirect target #%s is archived", target)
		}
		if ch.ID == rec.ChannelID {
			return fmt.Sprintf("#%s cannot redirect to itself", rec.Name)
		}
	case domain.ActionUpdateDescription:
		if strings.TrimSpace(rec.TargetValue) == "" {
			return fmt.Sprintf("update_description for #%s needs a target value", rec.Name)
		}
	}
	return ""
}

func displayName(rec *domain.Record) string {
	if rec.IsPrivate {
		return "🔒 #" + rec.Name
	}
	return "#" + rec.Name
}
