package engine

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardzcom/slack-channel-cleanup/internal/config"
	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

func newTestEngine(api *fakeAPI, in string) *Engine {
	return &Engine{
		API:      api,
		Approver: &Approver{In: strings.NewReader(in), Out: io.Discard, AssumeYes: in == ""},
		Cfg:      config.Default(),
		Out:      io.Discard,
		Sleep:    func(time.Duration) {},
	}
}

func liveSet(api *fakeAPI) []domain.Channel {
	out, _, _ := api.ListChannels(context.Background(), "", 0)
	return out
}

func TestExecuteRunsRenamesBeforeArchives(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "doomed"},
		domain.Channel{ID: "C2", Name: "temp"},
		domain.Channel{ID: "C3", Name: "docs"},
	)
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C3", Name: "docs", Action: domain.ActionUpdateDescription, TargetValue: "docs home"},
		{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive},
		{ChannelID: "C2", Name: "temp", Action: domain.ActionRename, TargetValue: "temp-archive"},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, []string{"rename:C2", "archive:C1", "describe:C3"}, api.calls)
}

func TestRenameFeedsLaterRedirect(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "doomed", MemberCount: 5},
		domain.Channel{ID: "C2", Name: "old-target", MemberCount: 20},
	)
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive, TargetValue: "new-target"},
		{ChannelID: "C2", Name: "old-target", Action: domain.ActionRename, TargetValue: "new-target"},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	require.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []string{"C1"}, api.archived)
	assert.Contains(t, api.posts["C1"], "#new-target", "notice names the post-rename channel")
}

func TestExecuteSkipsStaleRecords(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "renamed-out-of-band"},
		domain.Channel{ID: "C2", Name: "already-gone", IsArchived: true},
	)
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "stale-name", Action: domain.ActionArchive},
		{ChannelID: "C2", Name: "already-gone", Action: domain.ActionArchive},
		{ChannelID: "C9", Name: "vanished", Action: domain.ActionArchive},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 0, res.Succeeded)
	assert.Equal(t, 3, res.Skipped)
	assert.Empty(t, api.archived)
}

func TestDryRunTouchesNothing(t *testing.T) {
	api := newFakeAPI(domain.Channel{ID: "C1", Name: "doomed"})
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), true)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"C1"}, res.SuccessIDs)
	assert.Empty(t, api.calls, "dry run must not call the API at all")
}

func TestQuitStopsRemainingActions(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "first"},
		domain.Channel{ID: "C2", Name: "second"},
	)
	e := newTestEngine(api, "q\n")
	e.Approver.BatchSize = 0
	pending := []domain.Record{
		{ChannelID: "C1", Name: "first", Action: domain.ActionArchive},
		{ChannelID: "C2", Name: "second", Action: domain.ActionArchive},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.True(t, res.Cancelled)
	assert.Empty(t, api.archived)
}

func TestProtectedChannelIsNeverArchived(t *testing.T) {
	api := newFakeAPI(domain.Channel{ID: "C1", Name: "general"})
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "general", Action: domain.ActionArchive},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, api.archived)
}

func TestBlockedNoticeBlocksArchive(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "doomed"},
		domain.Channel{ID: "C2", Name: "team"},
	)
	api.postErr["C1"] = &domain.RemoteRejection{Cause: domain.RejectNotInChannel}
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive, TargetValue: "team"},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, api.archived, "archive must not proceed when members cannot be notified")
}

func TestOtherNoticeFailureStillArchives(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "doomed"},
		domain.Channel{ID: "C2", Name: "team"},
	)
	api.postErr["C1"] = &domain.RemoteRejection{Cause: domain.RejectRestricted}
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive, TargetValue: "team"},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"C1"}, api.archived)
}

func TestFailureIsIsolatedPerChannel(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "first"},
		domain.Channel{ID: "C2", Name: "second"},
	)
	api.archiveErr["C1"] = &domain.RemoteRejection{Cause: domain.RejectPermission}
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "first", Action: domain.ActionArchive},
		{ChannelID: "C2", Name: "second", Action: domain.ActionArchive},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"C2"}, api.archived)
	assert.Equal(t, []string{"C2"}, res.SuccessIDs)
}

func TestMissingRedirectTargetSkipsArchive(t *testing.T) {
	api := newFakeAPI(domain.Channel{ID: "C1", Name: "doomed"})
	e := newTestEngine(api, "")
	pending := []domain.Record{
		{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive, TargetValue: "nowhere"},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Empty(t, api.archived)
}

func TestArchiveHandlerRejectsMissingTarget(t *testing.T) {
	api := newFakeAPI(domain.Channel{ID: "C1", Name: "doomed"})
	e := newTestEngine(api, "")
	rec := domain.Record{ChannelID: "C1", Name: "doomed", Action: domain.ActionArchive, TargetValue: "nowhere"}

	out := e.runAction(context.Background(), &rec, NewSnapshot(liveSet(api)))
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "nowhere")
	assert.Empty(t, api.archived)
}

func TestApproveAllCoversWholeRun(t *testing.T) {
	api := newFakeAPI(
		domain.Channel{ID: "C1", Name: "first"},
		domain.Channel{ID: "C2", Name: "second"},
	)
	e := newTestEngine(api, "a\n")
	e.Approver.BatchSize = 1
	pending := []domain.Record{
		{ChannelID: "C1", Name: "first", Action: domain.ActionArchive},
		{ChannelID: "C2", Name: "second", Action: domain.ActionArchive},
	}

	res := e.ExecuteActions(context.Background(), pending, liveSet(api), false)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []string{"C1", "C2"}, api.archived, "one approve-all answers every later batch")
}
