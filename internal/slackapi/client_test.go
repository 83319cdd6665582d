package slackapi

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

func TestTranslateRateLimit(t *testing.T) {
	err := translate(&slack.RateLimitedError{RetryAfter: 5 * time.Second})
	var rl *domain.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 5*time.Second, rl.RetryAfter)
}

func TestTranslateRejections(t *testing.T) {
	cases := []struct {
		code string
		want domain.RejectionCause
	}{
		{"already_archived", domain.RejectAlreadyArchived},
		{"is_archived", domain.RejectAlreadyArchived},
		{"name_taken", domain.RejectNameTaken},
		{"invalid_name_specials", domain.RejectInvalidName},
		{"not_in_channel", domain.RejectNotInChannel},
		{"channel_not_found", domain.RejectNotFound},
		{"cant_archive_general", domain.RejectRestricted},
		{"restricted_action", domain.RejectRestricted},
		{"no_permission", domain.RejectPermission},
		{"missing_scope", domain.RejectMissingScope},
	}
	for _, tc := range cases {
		err := translate(slack.SlackErrorResponse{Err: tc.code})
		var rej *domain.RemoteRejection
		require.ErrorAs(t, err, &rej, tc.code)
		assert.Equal(t, tc.want, rej.Cause, tc.code)
	}
}

func TestTranslateAuthFailureIsConfigError(t *testing.T) {
	for _, code := range []string{"invalid_auth", "not_authed", "token_revoked", "account_inactive"} {
		err := translate(slack.SlackErrorResponse{Err: code})
		var cfgErr *domain.ConfigError
		assert.ErrorAs(t, err, &cfgErr, code)
	}
}

func TestTranslateUnknownCodePassesThrough(t *testing.T) {
	orig := errors.New("some_future_code")
	err := translate(orig)
	require.Error(t, err)
	assert.ErrorIs(t, err, orig)
	assert.False(t, domain.IsRemote(err))
}

func TestParseSlackTS(t *testing.T) {
	ts, err := parseSlackTS("1756684800.000200")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), ts)

	_, err = parseSlackTS("not-a-ts")
	assert.Error(t, err)
	_, err = parseSlackTS("0")
	assert.Error(t, err)
}

func TestSnippetTruncates(t *testing.T) {
	short := "release is out"
	assert.Equal(t, short, snippet(short))

	long := strings.Repeat("é", 100)
	got := snippet(long)
	assert.Equal(t, 81, len([]rune(got)), "80 runes plus ellipsis")
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestFromSlackDecodesEntitiesAndSharedFlags(t *testing.T) {
	ch := slack.Channel{}
	ch.ID = "C1"
	ch.Name = "general"
	ch.Purpose.Value = "Q&amp;A &amp; announcements"
	ch.IsExtShared = true
	ch.NumMembers = 12

	got := fromSlack(ch)
	assert.Equal(t, "Q&A & announcements", got.Description)
	assert.True(t, got.IsShared, "externally shared counts as shared")
	assert.Equal(t, 12, got.MemberCount)
}
