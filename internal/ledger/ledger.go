// Package ledger reads and writes the channel ledger: the persisted table of
// channels plus operator-declared actions, backed by a local CSV file or a
// hosted Google Sheet.
package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// Headers is the required column set, in order. Both backends must preserve
// it exactly.
var Headers = []string{
	"channel_id",
	"name",
	"description",
	"is_private",
	"is_shared",
	"member_count",
	"created_date",
	"last_activity",
	"action",
	"target_value",
	"notes",
}

// Store is the ledger persistence boundary.
type Store interface {
	// Read returns all ledger records, validating each row. A missing
	// ledger (first run) yields an empty slice, not an error.
	Read(ctx context.Context) ([]domain.Record, error)
	// Write replaces the whole ledger with the given records.
	Write(ctx context.Context, records []domain.Record) error
}

const maxNameLen = 80

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateChannelName enforces Slack naming rules, naming the specific rule
// violated so the operator knows what to fix.
func ValidateChannelName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name must not be empty")
	case len(name) > maxNameLen:
		return fmt.Errorf("name %q exceeds %d characters", name, maxNameLen)
	case strings.ToLower(name) != name:
		return fmt.Errorf("name %q must be lowercase", name)
	case strings.Contains(name, " "):
		return fmt.Errorf("name %q must not contain spaces", name)
	case strings.Contains(name, "."):
		return fmt.Errorf("name %q must not contain periods", name)
	case !namePattern.MatchString(name):
		return fmt.Errorf("name %q may only contain lowercase letters, digits, hyphens and underscores", name)
	}
	return nil
}

// ValidateRecord enforces the action/target rules on one row. Called before
// any remote call is attempted.
func ValidateRecord(r domain.Record) error {
	if r.ChannelID == "" {
		return &domain.ValidationError{Channel: r.Name, Rule: "missing channel_id"}
	}
	if r.Name == "" {
		return &domain.ValidationError{Channel: r.ChannelID, Rule: "missing name"}
	}
	switch r.Action {
	case domain.ActionKeep, domain.ActionNew:
		if r.TargetValue != "" {
			return &domain.ValidationError{Channel: r.Name, Rule: fmt.Sprintf("target_value must be empty for %q", r.Action)}
		}
	case domain.ActionRename:
		if r.TargetValue == "" {
			return &domain.ValidationError{Channel: r.Name, Rule: "rename requires a new name in target_value"}
		}
		if err := ValidateChannelName(r.TargetValue); err != nil {
			return &domain.ValidationError{Channel: r.Name, Rule: err.Error()}
		}
	case domain.ActionArchive:
		if r.IsShared {
			return &domain.ValidationError{Channel: r.Name, Rule: "shared channels cannot be archived; disconnect the channel first"}
		}
		if target := RedirectTarget(r.TargetValue); target != "" {
			if err := ValidateChannelName(target); err != nil {
				return &domain.ValidationError{Channel: r.Name, Rule: fmt.Sprintf("redirect target: %v", err)}
			}
		}
	case domain.ActionUpdateDescription:
		if r.TargetValue == "" {
			return &domain.ValidationError{Channel: r.Name, Rule: "update_description requires the new description in target_value"}
		}
	default:
		return &domain.ValidationError{Channel: r.Name, Rule: fmt.Sprintf("unknown action %q", r.Action)}
	}
	return nil
}

// ValidateRecords checks every row plus the cross-row invariant that no two
// records share a channel ID.
func ValidateRecords(records []domain.Record) error {
	seen := make(map[string]string, len(records))
	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			return err
		}
		if prev, ok := seen[r.ChannelID]; ok {
			return &domain.ValidationError{
				Channel: r.Name,
				Rule:    fmt.Sprintf("duplicate channel_id %s (also used by %s)", r.ChannelID, prev),
			}
		}
		seen[r.ChannelID] = r.Name
	}
	return nil
}

// RedirectTarget normalizes an archive redirect value: leading '#' stripped,
// surrounding whitespace dropped.
func RedirectTarget(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "#")
}

func validateHeaders(got []string) error {
	have := make(map[string]bool, len(got))
	for _, h := range got {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, h := range Headers {
		if !have[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Rule: "missing required headers: " + strings.Join(missing, ", ")}
	}
	return nil
}

// recordFromRow maps a header-indexed row to a Record, validating the action
// cell and the row itself.
func recordFromRow(row map[string]string) (domain.Record, error) {
	action, err := domain.ParseAction(strings.ToLower(strings.TrimSpace(row["action"])))
	if err != nil {
		return domain.Record{}, &domain.ValidationError{Channel: row["name"], Rule: err.Error()}
	}
	members := 0
	if v := strings.TrimSpace(row["member_count"]); v != "" {
		if members, err = strconv.Atoi(v); err != nil {
			return domain.Record{}, &domain.ValidationError{Channel: row["name"], Rule: fmt.Sprintf("invalid member_count %q", v)}
		}
	}
	rec := domain.Record{
		ChannelID:    strings.TrimSpace(row["channel_id"]),
		Name:         strings.TrimSpace(row["name"]),
		Description:  row["description"],
		IsPrivate:    parseBool(row["is_private"]),
		IsShared:     parseBool(row["is_shared"]),
		MemberCount:  members,
		CreatedDate:  strings.TrimSpace(row["created_date"]),
		LastActivity: strings.TrimSpace(row["last_activity"]),
		Action:       action,
		TargetValue:  strings.TrimSpace(row["target_value"]),
		Notes:        row["notes"],
	}
	if err := ValidateRecord(rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func rowFromRecord(r domain.Record) []string {
	return []string{
		r.ChannelID,
		r.Name,
		r.Description,
		strconv.FormatBool(r.IsPrivate),
		strconv.FormatBool(r.IsShared),
		strconv.Itoa(r.MemberCount),
		r.CreatedDate,
		r.LastActivity,
		string(r.Action),
		r.TargetValue,
		r.Notes,
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
