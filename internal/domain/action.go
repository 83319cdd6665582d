package domain

import "fmt"

// ActionKind is the closed set of operator intents a ledger row may carry.
type ActionKind string

const (
	// ActionKeep is the default no-op.
	ActionKeep ActionKind = "keep"
	// ActionNew marks a freshly discovered channel awaiting triage. It
	// executes like keep but is rendered distinctly.
	ActionNew ActionKind = "new"
	// ActionArchive archives the channel, optionally posting a redirect
	// notice pointing at the channel named in TargetValue.
	ActionArchive ActionKind = "archive"
	// ActionRename renames the channel to TargetValue.
	ActionRename ActionKind = "rename"
	// ActionUpdateDescription sets the channel purpose to TargetValue.
	ActionUpdateDescription ActionKind = "update_description"
)

// Actions lists every recognized kind in display order.
func Actions() []ActionKind {
	return []ActionKind{ActionKeep, ActionNew, ActionArchive, ActionRename, ActionUpdateDescription}
}

// ParseAction maps a ledger cell to an ActionKind. Empty cells default to
// keep; anything unrecognized is a ledger-read error, never silently
// defaulted.
func ParseAction(s string) (ActionKind, error) {
	switch ActionKind(s) {
	case "":
		return ActionKeep, nil
	case ActionKeep, ActionNew, ActionArchive, ActionRename, ActionUpdateDescription:
		return ActionKind(s), nil
	case "merge":
		return "", fmt.Errorf("action 'merge' is retired; use 'archive' with a redirect channel in target_value")
	default:
		return "", fmt.Errorf("unknown action %q; must be one of %v", s, Actions())
	}
}

// RequiresTarget reports whether the kind is invalid without a target value.
func (a ActionKind) RequiresTarget() bool {
	return a == ActionRename || a == ActionUpdateDescription
}

// AllowsTarget reports whether the kind may carry a target value.
func (a ActionKind) AllowsTarget() bool {
	return a.RequiresTarget() || a == ActionArchive
}

// Priority orders execution: renames must land before archives so redirect
// notices and name lookups use final names.
func (a ActionKind) Priority() int {
	switch a {
	case ActionRename:
		return 0
	case ActionArchive:
		return 1
	case ActionUpdateDescription:
		return 2
	default:
		return 3
	}
}

// Describe renders the intent for prompts and dry-run output.
func (a ActionKind) Describe(target string) string {
	switch a {
	case ActionArchive:
		if target != "" {
			return fmt.Sprintf("archive (with notice to join #%s)", target)
		}
		return "archive"
	case ActionRename:
		return fmt.Sprintf("rename to %q", target)
	case ActionUpdateDescription:
		return fmt.Sprintf("update description to %q", target)
	case ActionNew:
		return "newly discovered, keep as is"
	default:
		return "keep as is"
	}
}
