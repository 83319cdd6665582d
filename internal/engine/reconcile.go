package engine

import (
	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// NewRecord builds a ledger record for a channel that was not tracked
// before.
func NewRecord(ch domain.Channel) domain.Record {
	rec := domain.Record{
		ChannelID:    ch.ID,
		Name:         ch.Name,
		Description:  ch.Description,
		IsPrivate:    ch.IsPrivate,
		IsShared:     ch.IsShared,
		MemberCount:  ch.MemberCount,
		LastActivity: ch.LastActivity,
		Action:       domain.ActionNew,
	}
	if !ch.Created.IsZero() {
		rec.CreatedDate = ch.Created.Format("2006-01-02")
	}
	return rec
}

// Reconcile merges the ledger with a live enumeration. Records whose
// channel vanished remotely are dropped (a pending archive counts as
// fulfilled); surviving records get their metadata refreshed while the
// operator's action and target are preserved; live channels the ledger
// does not know yet are appended as new records in enumeration order.
//
// Running Reconcile twice over the same live set yields the same result.
func Reconcile(records []domain.Record, live []domain.Channel) []domain.Record {
	byID := make(map[string]*domain.Channel, len(live))
	for i := range live {
		byID[live[i].ID] = &live[i]
	}

	out := make([]domain.Record, 0, len(live))
	known := make(map[string]bool, len(records))
	for _, rec := range records {
		ch, ok := byID[rec.ChannelID]
		if !ok {
			continue
		}
		known[rec.ChannelID] = true

		// A pending rename keeps the operator's chosen name visible;
		// everything else tracks the live state.
		if rec.Action != domain.ActionRename {
			rec.Name = ch.Name
		}
		rec.Description = ch.Description
		rec.IsPrivate = ch.IsPrivate
		rec.IsShared = ch.IsShared
		rec.MemberCount = ch.MemberCount
		if !ch.Created.IsZero() {
			rec.CreatedDate = ch.Created.Format("2006-01-02")
		}
		if ch.LastActivity != "" {
			rec.LastActivity = ch.LastActivity
		}
		out = append(out, rec)
	}

	for _, ch := range live {
		if !known[ch.ID] {
			out = append(out, NewRecord(ch))
		}
	}
	return out
}
