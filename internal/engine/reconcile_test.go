package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

func TestReconcileDropsVanishedChannels(t *testing.T) {
	records := []domain.Record{
		{ChannelID: "C1", Name: "general", Action: domain.ActionKeep},
		{ChannelID: "C2", Name: "gone", Action: domain.ActionArchive},
	}
	live := []domain.Channel{{ID: "C1", Name: "general"}}

	merged := Reconcile(records, live)
	require.Len(t, merged, 1)
	assert.Equal(t, "C1", merged[0].ChannelID)
}

func TestReconcileRefreshesMetadata(t *testing.T) {
	records := []domain.Record{
		{ChannelID: "C1", Name: "old-name", Description: "stale", MemberCount: 3, Action: domain.ActionKeep, Notes: "keep an eye on this"},
	}
	live := []domain.Channel{{
		ID:           "C1",
		Name:         "new-name",
		Description:  "fresh",
		MemberCount:  7,
		IsPrivate:    true,
		Created:      time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		LastActivity: "2026-08-30",
	}}

	merged := Reconcile(records, live)
	require.Len(t, merged, 1)
	got := merged[0]
	assert.Equal(t, "new-name", got.Name)
	assert.Equal(t, "fresh", got.Description)
	assert.Equal(t, 7, got.MemberCount)
	assert.True(t, got.IsPrivate)
	assert.Equal(t, "2021-03-01", got.CreatedDate)
	assert.Equal(t, "2026-08-30", got.LastActivity)
	assert.Equal(t, "keep an eye on this", got.Notes, "operator columns survive the merge")
}

func TestReconcileKeepsNameWhilePendingRename(t *testing.T) {
	records := []domain.Record{
		{ChannelID: "C1", Name: "ledger-name", Action: domain.ActionRename, TargetValue: "wanted-name"},
	}
	live := []domain.Channel{{ID: "C1", Name: "live-name"}}

	merged := Reconcile(records, live)
	require.Len(t, merged, 1)
	assert.Equal(t, "ledger-name", merged[0].Name)
	assert.Equal(t, "wanted-name", merged[0].TargetValue)
}

func TestReconcileAppendsNewChannelsInOrder(t *testing.T) {
	records := []domain.Record{
		{ChannelID: "C1", Name: "general", Action: domain.ActionKeep},
	}
	live := []domain.Channel{
		{ID: "C3", Name: "zulu"},
		{ID: "C1", Name: "general"},
		{ID: "C2", Name: "alpha"},
	}

	merged := Reconcile(records, live)
	require.Len(t, merged, 3)
	assert.Equal(t, "C1", merged[0].ChannelID, "tracked records keep ledger order")
	assert.Equal(t, "C3", merged[1].ChannelID, "new records follow enumeration order")
	assert.Equal(t, "C2", merged[2].ChannelID)
	assert.Equal(t, domain.ActionNew, merged[1].Action)
	assert.Equal(t, domain.ActionNew, merged[2].Action)
}

func TestReconcileKeepsActivityWhenLiveUnknown(t *testing.T) {
	records := []domain.Record{
		{ChannelID: "C1", Name: "general", LastActivity: "2026-07-01", Action: domain.ActionKeep},
	}
	live := []domain.Channel{{ID: "C1", Name: "general"}}

	merged := Reconcile(records, live)
	require.Len(t, merged, 1)
	assert.Equal(t, "2026-07-01", merged[0].LastActivity)
}

func TestReconcileIsIdempotent(t *testing.T) {
	records := []domain.Record{
		{ChannelID: "C1", Name: "general", Action: domain.ActionKeep},
		{ChannelID: "C9", Name: "vanished", Action: domain.ActionKeep},
	}
	live := []domain.Channel{
		{ID: "C1", Name: "general", MemberCount: 10},
		{ID: "C2", Name: "newcomer", MemberCount: 2},
	}

	once := Reconcile(records, live)
	twice := Reconcile(once, live)
	assert.Equal(t, once, twice)
}
