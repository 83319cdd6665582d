package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is raised when the operator quits mid-run. Processing stops
// after a summary; already-applied remote mutations stay applied.
var ErrCancelled = errors.New("cancelled by operator")

// ConfigError is fatal: missing or invalid credentials, missing scopes.
// The operator must fix the environment; nothing is retried.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError names the ledger row and the rule it violates so the
// operator can fix the spreadsheet.
type ValidationError struct {
	Channel string
	Rule    string
}

func (e *ValidationError) Error() string {
	if e.Channel == "" {
		return e.Rule
	}
	return fmt.Sprintf("channel %s: %s", e.Channel, e.Rule)
}

// RateLimitedError is transient; callers retry with the server-suggested
// delay up to a fixed bound.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by Slack (retry after %s)", e.RetryAfter)
}

// RejectionCause is the closed set of non-retryable per-channel refusals.
type RejectionCause string

const (
	RejectPermission      RejectionCause = "permission_denied"
	RejectAlreadyArchived RejectionCause = "already_archived"
	RejectNameTaken       RejectionCause = "name_taken"
	RejectInvalidName     RejectionCause = "invalid_name"
	RejectNotInChannel    RejectionCause = "not_in_channel"
	RejectNotFound        RejectionCause = "not_found"
	RejectRestricted      RejectionCause = "restricted_by_policy"
	RejectMissingScope    RejectionCause = "missing_scope"
	RejectSharedChannel   RejectionCause = "shared_channel_protection"
)

// RemoteRejection maps a provider refusal to a specific per-channel outcome.
// It never aborts the run.
type RemoteRejection struct {
	Cause  RejectionCause
	Detail string
}

func (e *RemoteRejection) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Cause, e.Detail)
	}
	return string(e.Cause)
}

// StaleError reports that a channel's live state changed between
// enumeration and execution. The record is skipped, never overwritten.
type StaleError struct {
	Channel string
	Reason  string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("channel %s changed since enumeration: %s", e.Channel, e.Reason)
}

// IsRemote reports whether err belongs to the remote-API error family, for
// the outermost reporting boundary.
func IsRemote(err error) bool {
	var rl *RateLimitedError
	var rr *RemoteRejection
	return errors.As(err, &rl) || errors.As(err, &rr)
}
