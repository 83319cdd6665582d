package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
	"github.com/guardzcom/slack-channel-cleanup/internal/ledger"
)

// runAction dispatches one approved action and converts any panic from a
// handler into a failed outcome, so a single bad channel cannot take down
// the run.
func (e *Engine) runAction(ctx context.Context, rec *domain.Record, snap *Snapshot) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Outcome{Message: fmt.Sprintf("unexpected failure handling #%s: %v", rec.Name, r)}
		}
	}()

	switch rec.Action {
	case domain.ActionArchive:
		return e.archiveChannel(ctx, rec, snap)
	case domain.ActionRename:
		return e.renameChannel(ctx, rec, snap)
	case domain.ActionUpdateDescription:
		return e.updateDescription(ctx, rec)
	default:
		return domain.Outcome{Success: true, Message: fmt.Sprintf("#%s kept as is", rec.Name)}
	}
}

func (e *Engine) isProtected(name string) bool {
	for _, p := range e.Cfg.Protected {
		if p == name {
			return true
		}
	}
	return false
}

func (e *Engine) archiveChannel(ctx context.Context, rec *domain.Record, snap *Snapshot) domain.Outcome {
	if e.isProtected(rec.Name) {
		return domain.Outcome{Message: fmt.Sprintf("#%s is protected and cannot be archived", rec.Name)}
	}
	if ch, ok := snap.ByID[rec.ChannelID]; ok && ch.IsGeneral {
		return domain.Outcome{Message: fmt.Sprintf("#%s is the workspace general channel and cannot be archived", rec.Name)}
	}
	if rec.IsShared {
		return domain.Outcome{Message: fmt.Sprintf("#%s is shared with another workspace and cannot be archived", rec.Name)}
	}

	target := ledger.RedirectTarget(rec.TargetValue)
	if target != "" {
		tch, ok := snap.ByName[target]
		if !ok {
			return domain.Outcome{Message: fmt.Sprintf("redirect target #%s not found", target)}
		}
		if tch.IsArchived {
			return domain.Outcome{Message: fmt.Sprintf("redirect target #%s is archived", target)}
		}

		// Joining first lets the bot post in channels it is not a
		// member of. Failure here is fine if posting still works.
		if err := e.API.Join(ctx, rec.ChannelID); err != nil {
			e.printf("note: could not join #%s before posting: %v", rec.Name, err)
		}

		notice := fmt.Sprintf(e.Cfg.RedirectNotice, target)
		if err := e.API.PostMessage(ctx, rec.ChannelID, notice); err != nil {
			var rej *domain.RemoteRejection
			if errors.As(err, &rej) && rej.Cause == domain.RejectNotInChannel {
				return domain.Outcome{Message: fmt.Sprintf("cannot post redirect notice in #%s: not a member", rec.Name)}
			}
			e.printf("warning: redirect notice in #%s failed, archiving anyway: %v", rec.Name, err)
		}
	}

	if err := e.API.Archive(ctx, rec.ChannelID); err != nil {
		return domain.Outcome{Message: archiveFailure(rec.Name, err)}
	}
	msg := fmt.Sprintf("Archived #%s", rec.Name)
	if target != "" {
		msg += fmt.Sprintf(" (members redirected to #%s)", target)
	}
	return domain.Outcome{Success: true, Message: msg}
}

func archiveFailure(name string, err error) string {
	var rej *domain.RemoteRejection
	if errors.As(err, &rej) {
		switch rej.Cause {
		case domain.RejectAlreadyArchived:
			return fmt.Sprintf("#%s is already archived", name)
		case domain.RejectPermission:
			return fmt.Sprintf("no permission to archive #%s", name)
		case domain.RejectRestricted:
			return fmt.Sprintf("workspace policy forbids archiving #%s", name)
		case domain.RejectMissingScope:
			return fmt.Sprintf("token lacks the scope to archive #%s", name)
		}
	}
	return fmt.Sprintf("archive #%s: %v", name, err)
}

func (e *Engine) renameChannel(ctx context.Context, rec *domain.Record, snap *Snapshot) domain.Outcome {
	newName := strings.TrimSpace(rec.TargetValue)
	if err := ledger.ValidateChannelName(newName); err != nil {
		return domain.Outcome{Message: fmt.Sprintf("rename #%s: %v", rec.Name, err)}
	}
	if ch, ok := snap.ByName[newName]; ok && ch.ID != rec.ChannelID {
		return domain.Outcome{Message: fmt.Sprintf("rename #%s: name #%s is already in use", rec.Name, newName)}
	}

	got, err := e.API.Rename(ctx, rec.ChannelID, newName)
	if err != nil {
		var rej *domain.RemoteRejection
		if errors.As(err, &rej) {
			switch rej.Cause {
			case domain.RejectNameTaken:
				return domain.Outcome{Message: fmt.Sprintf("rename #%s: name #%s is already taken", rec.Name, newName)}
			case domain.RejectInvalidName:
				return domain.Outcome{Message: fmt.Sprintf("rename #%s: server rejected name %q", rec.Name, newName)}
			case domain.RejectPermission:
				return domain.Outcome{Message: fmt.Sprintf("no permission to rename #%s", rec.Name)}
			case domain.RejectNotInChannel:
				return domain.Outcome{Message: fmt.Sprintf("cannot rename #%s: not a member", rec.Name)}
			}
		}
		return domain.Outcome{Message: fmt.Sprintf("rename #%s: %v", rec.Name, err)}
	}

	msg := fmt.Sprintf("Renamed #%s to #%s", rec.Name, got)
	if got != newName {
		// The server normalizes names it only partially accepts.
		rec.TargetValue = got
		msg += fmt.Sprintf(" (server adjusted from %q)", newName)
	}
	return domain.Outcome{Success: true, Message: msg}
}

func (e *Engine) updateDescription(ctx context.Context, rec *domain.Record) domain.Outcome {
	if err := e.API.SetDescription(ctx, rec.ChannelID, rec.TargetValue); err != nil {
		var rej *domain.RemoteRejection
		if errors.As(err, &rej) {
			switch rej.Cause {
			case domain.RejectNotInChannel:
				return domain.Outcome{Message: fmt.Sprintf("cannot update description of #%s: not a member", rec.Name)}
			case domain.RejectPermission:
				return domain.Outcome{Message: fmt.Sprintf("no permission to update description of #%s", rec.Name)}
			}
		}
		return domain.Outcome{Message: fmt.Sprintf("update description of #%s: %v", rec.Name, err)}
	}
	return domain.Outcome{Success: true, Message: fmt.Sprintf("Updated description of #%s", rec.Name)}
}
