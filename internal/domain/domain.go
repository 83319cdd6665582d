package domain

import "time"

// Channel is the live view of one Slack conversation, owned by the remote
// workspace. This tool only observes it and, through approved actions,
// requests mutations.
type Channel struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsPrivate    bool      `json:"is_private"`
	IsShared     bool      `json:"is_shared"`
	IsGeneral    bool      `json:"is_general"`
	IsArchived   bool      `json:"is_archived"`
	MemberCount  int       `json:"member_count"`
	Created      time.Time `json:"created"`
	LastActivity string    `json:"last_activity,omitempty"` // YYYY-MM-DD, empty = unknown
	LastMessage  string    `json:"last_message,omitempty"`
}

// Record is one ledger row: a channel snapshot plus the operator's
// declared intent for it.
type Record struct {
	ChannelID    string     `json:"channel_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	IsPrivate    bool       `json:"is_private"`
	IsShared     bool       `json:"is_shared"`
	MemberCount  int        `json:"member_count"`
	CreatedDate  string     `json:"created_date,omitempty"`
	LastActivity string     `json:"last_activity,omitempty"`
	Action       ActionKind `json:"action"`
	TargetValue  string     `json:"target_value,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// Pending reports whether the record carries an action the executor should
// process. new records are triage markers, not work.
func (r Record) Pending() bool {
	return r.Action != ActionKeep && r.Action != ActionNew
}

// Outcome is the result of attempting one action against one channel.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
