// Package slackapi wraps the Slack Web API behind a narrow interface and
// translates provider error codes into the domain error taxonomy.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// API is the remote-client boundary consumed by the enumerator and the
// action handlers. Every method returns domain-taxonomy errors.
type API interface {
	ListChannels(ctx context.Context, cursor string, limit int) ([]domain.Channel, string, error)
	GetChannel(ctx context.Context, id string) (*domain.Channel, error)
	LatestActivity(ctx context.Context, id string) (time.Time, string, error)
	Archive(ctx context.Context, id string) error
	Rename(ctx context.Context, id, name string) (string, error)
	SetDescription(ctx context.Context, id, description string) error
	PostMessage(ctx context.Context, id, text string) error
	Join(ctx context.Context, id string) error
}

// Client implements API on top of slack-go.
type Client struct {
	api *slack.Client
}

// New constructs a Client from a bot/user token.
func New(token string, opts ...slack.Option) *Client {
	return &Client{api: slack.New(token, opts...)}
}

// Validate runs auth.test plus a one-element list call so missing scopes
// fail at startup instead of mid-run.
func (c *Client) Validate(ctx context.Context) (user, team string, err error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", "", &domain.ConfigError{
			Reason: "Slack authentication failed; check SLACK_TOKEN",
			Err:    translate(err),
		}
	}
	_, _, listErr := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 1,
	})
	if listErr != nil {
		return "", "", &domain.ConfigError{
			Reason: "token cannot list channels; required scopes: channels:read, groups:read, channels:write, groups:write, chat:write",
			Err:    translate(listErr),
		}
	}
	return resp.User, resp.Team, nil
}

func (c *Client) ListChannels(ctx context.Context, cursor string, limit int) ([]domain.Channel, string, error) {
	channels, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types:           []string{"public_channel", "private_channel"},
		ExcludeArchived: true,
		Limit:           limit,
		Cursor:          cursor,
	})
	if err != nil {
		return nil, "", translate(err)
	}
	out := make([]domain.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, fromSlack(ch))
	}
	return out, next, nil
}

func (c *Client) GetChannel(ctx context.Context, id string) (*domain.Channel, error) {
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID:         id,
		IncludeNumMembers: true,
	})
	if err != nil {
		return nil, translate(err)
	}
	out := fromSlack(*ch)
	return &out, nil
}

// LatestActivity returns the timestamp and a snippet of the most recent
// non-system message. A zero time means the channel has no user activity.
func (c *Client) LatestActivity(ctx context.Context, id string) (time.Time, string, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: id,
		Limit:     20,
	})
	if err != nil {
		return time.Time{}, "", translate(err)
	}
	for _, msg := range resp.Messages {
		if msg.SubType != "" {
			continue // joins, topic changes and other system noise
		}
		ts, err := parseSlackTS(msg.Timestamp)
		if err != nil {
			continue
		}
		return ts, snippet(msg.Text), nil
	}
	return time.Time{}, "", nil
}

func (c *Client) Archive(ctx context.Context, id string) error {
	return translate(c.api.ArchiveConversationContext(ctx, id))
}

// Rename renames the channel and returns the name the server settled on,
// which may differ from the requested one.
func (c *Client) Rename(ctx context.Context, id, name string) (string, error) {
	ch, err := c.api.RenameConversationContext(ctx, id, name)
	if err != nil {
		return "", translate(err)
	}
	return ch.Name, nil
}

func (c *Client) SetDescription(ctx context.Context, id, description string) error {
	_, err := c.api.SetPurposeOfConversationContext(ctx, id, description)
	return translate(err)
}

func (c *Client) PostMessage(ctx context.Context, id, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, id, slack.MsgOptionText(text, false))
	return translate(err)
}

func (c *Client) Join(ctx context.Context, id string) error {
	_, _, _, err := c.api.JoinConversationContext(ctx, id)
	return translate(err)
}

func fromSlack(ch slack.Channel) domain.Channel {
	return domain.Channel{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: html.UnescapeString(ch.Purpose.Value),
		IsPrivate:   ch.IsPrivate,
		IsShared:    ch.IsShared || ch.IsExtShared || ch.IsOrgShared,
		IsGeneral:   ch.IsGeneral,
		IsArchived:  ch.IsArchived,
		MemberCount: ch.NumMembers,
		Created:     ch.Created.Time(),
	}
}

func parseSlackTS(ts string) (time.Time, error) {
	secs, err := strconv.ParseFloat(ts, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, fmt.Errorf("invalid slack timestamp %q", ts)
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}

const snippetLen = 80

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetLen {
		return string(runes[:snippetLen]) + "…"
	}
	return text
}

// translate maps slack-go errors onto the domain taxonomy. Unknown codes
// pass through wrapped so callers can still report them per channel.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		return &domain.RateLimitedError{RetryAfter: rle.RetryAfter}
	}
	switch code := errorCode(err); code {
	case "ratelimited", "rate_limited":
		return &domain.RateLimitedError{RetryAfter: time.Second}
	case "missing_scope":
		return &domain.RemoteRejection{Cause: domain.RejectMissingScope, Detail: code}
	case "invalid_auth", "not_authed", "token_revoked", "account_inactive":
		return &domain.ConfigError{Reason: "invalid or expired Slack credentials", Err: err}
	case "already_archived", "is_archived":
		return &domain.RemoteRejection{Cause: domain.RejectAlreadyArchived}
	case "name_taken":
		return &domain.RemoteRejection{Cause: domain.RejectNameTaken}
	case "invalid_name", "invalid_name_specials", "invalid_name_maxlength", "invalid_name_punctuation":
		return &domain.RemoteRejection{Cause: domain.RejectInvalidName, Detail: code}
	case "not_in_channel":
		return &domain.RemoteRejection{Cause: domain.RejectNotInChannel}
	case "channel_not_found":
		return &domain.RemoteRejection{Cause: domain.RejectNotFound}
	case "restricted_action", "cant_archive_general", "cant_archive_required", "method_not_supported_for_channel_type":
		return &domain.RemoteRejection{Cause: domain.RejectRestricted, Detail: code}
	case "access_denied", "no_permission", "ekm_access_denied", "not_authorized":
		return &domain.RemoteRejection{Cause: domain.RejectPermission, Detail: code}
	default:
		return fmt.Errorf("slack api: %w", err)
	}
}

func errorCode(err error) string {
	var ser slack.SlackErrorResponse
	if errors.As(err, &ser) {
		return ser.Err
	}
	return err.Error()
}
