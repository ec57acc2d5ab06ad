package registry

import (
	"strings"

	"github.com/High-Performance-IO/capiocl-go/pkg/cerrors"
)

// CommitRule is when a file is considered committed.
type CommitRule string

const (
	CommitOnClose       CommitRule = "on_close"
	CommitOnFile        CommitRule = "on_file"
	CommitOnNFiles      CommitRule = "on_n_files"
	CommitOnTermination CommitRule = "on_termination"
)

// FireRule is whether consumers are re-notified on every update or once.
type FireRule string

const (
	FireUpdate   FireRule = "update"
	FireNoUpdate FireRule = "no_update"
)

// ParseCommitRule validates a wire-format commit rule string. The
// ":N" suffix used by "on_close" in the codec is handled by the
// caller (codec.parseCommitted); this function only validates the
// bare rule name.
func ParseCommitRule(s string) (CommitRule, error) {
	switch CommitRule(s) {
	case CommitOnClose, CommitOnFile, CommitOnNFiles, CommitOnTermination:
		return CommitRule(s), nil
	default:
		return "", cerrors.InvalidRule("registry", "ParseCommitRule", "unknown commit_rule "+s)
	}
}

// ParseFireRule validates a wire-format fire rule string. Only
// "update" and "no_update" are accepted; "MODE_NO_UPDATE" style
// historical spellings are rejected per spec.md §9.
func ParseFireRule(s string) (FireRule, error) {
	switch FireRule(s) {
	case FireUpdate, FireNoUpdate:
		return FireRule(s), nil
	default:
		return "", cerrors.InvalidRule("registry", "ParseFireRule", "unknown fire_rule "+s)
	}
}

// Entry is the coordination record for one stored path or pattern.
// Scalar fields are plain values; the three ordered-set fields use
// OrderedSet so iteration preserves insertion order while membership
// stays deduplicated.
type Entry struct {
	Producers              *OrderedSet
	Consumers              *OrderedSet
	FileDependencies       *OrderedSet
	CommitRule             CommitRule
	FireRule               FireRule
	CommitOnCloseCount     int
	DirectoryChildrenCount int
	AutoUpdateDirCount     bool
	Permanent              bool
	Excluded               bool
	IsFile                 bool
	StoreInMemory          bool
}

// NewDefaultEntry returns an Entry with the spec's documented defaults:
// commit_rule=ON_TERMINATION, fire_rule=UPDATE, is_file=true,
// auto_update_dir_count=true, empty role sets.
func NewDefaultEntry() *Entry {
	return &Entry{
		Producers:          NewOrderedSet(),
		Consumers:          NewOrderedSet(),
		FileDependencies:   NewOrderedSet(),
		CommitRule:         CommitOnTermination,
		FireRule:           FireUpdate,
		AutoUpdateDirCount: true,
		IsFile:             true,
	}
}

// Clone deep-copies e, including its ordered sets, so editing the copy
// never mutates the donor (invariant enforced by get_or_create's
// inheritance step).
func (e *Entry) Clone() *Entry {
	if e == nil {
		return NewDefaultEntry()
	}
	return &Entry{
		Producers:              e.Producers.Clone(),
		Consumers:              e.Consumers.Clone(),
		FileDependencies:       e.FileDependencies.Clone(),
		CommitRule:             e.CommitRule,
		FireRule:               e.FireRule,
		CommitOnCloseCount:     e.CommitOnCloseCount,
		DirectoryChildrenCount: e.DirectoryChildrenCount,
		AutoUpdateDirCount:     e.AutoUpdateDirCount,
		Permanent:              e.Permanent,
		Excluded:               e.Excluded,
		IsFile:                 e.IsFile,
		StoreInMemory:          e.StoreInMemory,
	}
}

// IsFirable reports whether a file is "firable" under spec.md §9's open
// question: the spec keeps the source's counter-intuitive behavior —
// firable means the fire rule does NOT require re-propagating updates.
func (e *Entry) IsFirable() bool {
	return e.FireRule == FireNoUpdate
}

// Equal compares two entries structurally: scalar fields by value, the
// three ordered sets as sets (order-insensitive), per the Entry
// Store's equality contract.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.CommitRule == other.CommitRule &&
		e.FireRule == other.FireRule &&
		e.CommitOnCloseCount == other.CommitOnCloseCount &&
		e.DirectoryChildrenCount == other.DirectoryChildrenCount &&
		e.AutoUpdateDirCount == other.AutoUpdateDirCount &&
		e.Permanent == other.Permanent &&
		e.Excluded == other.Excluded &&
		e.IsFile == other.IsFile &&
		e.StoreInMemory == other.StoreInMemory &&
		e.Producers.EqualAsSet(other.Producers) &&
		e.Consumers.EqualAsSet(other.Consumers) &&
		e.FileDependencies.EqualAsSet(other.FileDependencies)
}

// sanitizeStep strips whitespace the way OrderedSet.Add does, so
// callers can check for an empty step name before mutating state.
func sanitizeStep(step string) string {
	return strings.TrimSpace(step)
}
