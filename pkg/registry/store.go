// Package registry owns the mapping from path pattern to Entry: the
// CAPIO-CL "Entry Store". It implements longest-prefix-match
// inheritance on auto-creation, pattern-aware producer/consumer
// lookups, and directory-child-count auto-tracking.
package registry

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/High-Performance-IO/capiocl-go/internal/metrics"
	"github.com/High-Performance-IO/capiocl-go/pkg/pathmatch"
)

// Store owns the pattern -> Entry mapping. It is not internally
// synchronized beyond its own mutex (spec.md §5): it is safe for
// concurrent callers by itself, but is not a coordination point for
// anything outside of it.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  *logrus.Logger

	// storeAllInMemory mirrors the engine-wide setAllStoreInMemory
	// flag (invariant I5): once true, every subsequently auto-created
	// entry is forced to StoreInMemory = true.
	storeAllInMemory bool
}

// New returns an empty Store. A nil logger falls back to
// logrus.StandardLogger(), matching the teacher's constructor
// convention of requiring but defaulting the logger dependency.
func New(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// emptyPathDefault returns the sensible-default, never-stored Entry
// spec.md §8 documents for the empty-path boundary case: is_firable =
// true (fire_rule = NO_UPDATE), is_permanent = true, is_file = true,
// directory_file_count = 0, no membership in any role set. Every
// other field keeps NewDefaultEntry's ordinary default.
func emptyPathDefault() *Entry {
	e := NewDefaultEntry()
	e.FireRule = FireNoUpdate
	e.Permanent = true
	return e
}

// SetAllStoreInMemory flips the monotone store_all_in_memory flag and
// (per invariant I5's engine-level contract) retro-applies
// StoreInMemory = true to every existing entry.
func (s *Store) SetAllStoreInMemory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeAllInMemory = true
	for _, e := range s.entries {
		e.StoreInMemory = true
	}
	metrics.RegistryMutation("set_all_store_in_memory")
}

// Contains reports whether there exists a stored pattern q with
// matches(q, p) — no auto-materialization.
func (s *Store) Contains(p string) bool {
	if p == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bestMatchLocked(p) != ""
}

// Size returns the number of stored patterns.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Paths returns a snapshot of stored patterns, in no particular order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	return out
}

// bestMatchLocked implements the longest-prefix-match tie-break rule:
// among stored patterns matching p, the longest wins; ties broken
// lexicographically. Must be called with s.mu held (read or write).
// Returns "" if no pattern matches.
func (s *Store) bestMatchLocked(p string) string {
	if _, ok := s.entries[p]; ok {
		return p
	}

	best := ""
	for q := range s.entries {
		if !pathmatch.Matches(q, p) {
			continue
		}
		if best == "" || len(q) > len(best) || (len(q) == len(best) && q < best) {
			best = q
		}
	}
	return best
}

// allMatchesLocked returns every stored pattern matching p, including
// an exact-match entry for p itself. Must be called with s.mu held.
func (s *Store) allMatchesLocked(p string) []string {
	var matches []string
	for q := range s.entries {
		if q == p || pathmatch.Matches(q, p) {
			matches = append(matches, q)
		}
	}
	sort.Strings(matches)
	return matches
}

// GetOrCreate idempotently materializes p: if already a key, returns
// it; otherwise inherits from the longest matching donor pattern (deep
// copy), or creates a default Entry if none matches. Either way, the
// parent directory's directory_children_count is auto-incremented if
// the parent exists and has auto-update enabled (step 5 of the
// algorithm in spec.md §4.2).
func (s *Store) GetOrCreate(p string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p)
}

func (s *Store) getOrCreateLocked(p string) *Entry {
	// Empty path: spec.md §8's boundary case. Never stored; every
	// getter/setter treats it as a no-op returning sensible defaults.
	if p == "" {
		return emptyPathDefault()
	}

	if e, ok := s.entries[p]; ok {
		return e
	}

	donor := s.bestMatchLocked(p)
	var entry *Entry
	if donor != "" {
		entry = s.entries[donor].Clone()
		s.logger.WithFields(logrus.Fields{"path": p, "donor": donor}).Debug("auto-materialized entry by inheritance")
	} else {
		entry = NewDefaultEntry()
		s.logger.WithFields(logrus.Fields{"path": p}).Debug("auto-materialized default entry")
	}
	if s.storeAllInMemory {
		entry.StoreInMemory = true
	}

	s.entries[p] = entry
	metrics.RegistryMutation("get_or_create")

	s.updateParentDirCountLocked(p)
	return entry
}

// updateParentDirCountLocked increments the parent directory entry's
// DirectoryChildrenCount and marks it as a directory, iff the parent
// is already a stored entry with auto-update enabled (invariant I4).
// It never materializes the parent — only existing parent entries
// participate.
func (s *Store) updateParentDirCountLocked(p string) {
	parent := filepath.Dir(p)
	if parent == p {
		return
	}
	parentEntry, ok := s.entries[parent]
	if !ok || !parentEntry.AutoUpdateDirCount {
		return
	}
	parentEntry.DirectoryChildrenCount++
	parentEntry.IsFile = false
}

// Add materializes p, then overwrites the listed fields, per spec.md
// §4.2's add contract. Role sets are replaced wholesale (not merged)
// to match add's "overwrite" semantics.
func (s *Store) Add(p string, producers, consumers []string, commitRule CommitRule, fireRule FireRule, permanent, excluded bool, fileDeps []string) *Entry {
	if p == "" {
		return emptyPathDefault()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(p)
	e.Producers = NewOrderedSet()
	for _, step := range producers {
		e.Producers.Add(step)
	}
	e.Consumers = NewOrderedSet()
	for _, step := range consumers {
		e.Consumers.Add(step)
	}
	e.FileDependencies = NewOrderedSet()
	for _, dep := range fileDeps {
		e.FileDependencies.Add(dep)
	}
	if len(fileDeps) > 0 {
		e.CommitRule = CommitOnFile
	} else {
		e.CommitRule = commitRule
	}
	e.FireRule = fireRule
	e.Permanent = permanent
	e.Excluded = excluded

	metrics.RegistryMutation("add")
	return e
}

// Remove erases the exact-match pattern p. A no-op if missing; matched
// children (if materialized as their own entries) are unaffected.
func (s *Store) Remove(p string) {
	if p == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[p]; !ok {
		return
	}
	delete(s.entries, p)
	metrics.RegistryMutation("remove")
}

// IsProducer reports whether step is a producer of any stored pattern
// matching p (disjunction across all matches, no longest-prefix
// restriction). Auto-materializes p if nothing matched.
func (s *Store) IsProducer(p, step string) bool {
	return s.isRole(p, step, func(e *Entry) *OrderedSet { return e.Producers })
}

// IsConsumer reports whether step is a consumer of any stored pattern
// matching p. Same contract as IsProducer.
func (s *Store) IsConsumer(p, step string) bool {
	return s.isRole(p, step, func(e *Entry) *OrderedSet { return e.Consumers })
}

func (s *Store) isRole(p, step string, roleSet func(*Entry) *OrderedSet) bool {
	if p == "" {
		return false
	}
	step = sanitizeStep(step)

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.allMatchesLocked(p)
	if len(matches) == 0 {
		s.getOrCreateLocked(p)
		return false
	}
	for _, q := range matches {
		if roleSet(s.entries[q]).Contains(step) {
			return true
		}
	}
	return false
}

// IsExcluded returns the excluded flag of p if stored; otherwise the
// excluded value of the longest matching pattern; otherwise false. It
// never materializes p (a pure read, per spec.md §4.2).
func (s *Store) IsExcluded(p string) bool {
	if p == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.bestMatchLocked(p)
	if q == "" {
		return false
	}
	return s.entries[q].Excluded
}

// AddProducer appends step (materializing p first) to p's producer
// set.
func (s *Store) AddProducer(p, step string) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).Producers.Add(step)
	metrics.RegistryMutation("add_producer")
}

// AddConsumer appends step (materializing p first) to p's consumer set.
func (s *Store) AddConsumer(p, step string) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).Consumers.Add(step)
	metrics.RegistryMutation("add_consumer")
}

// AddFileDependency appends dep to p's file_dependencies and, per
// invariant I3, sets p's commit_rule to ON_FILE.
func (s *Store) AddFileDependency(p, dep string) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.getOrCreateLocked(p)
	e.FileDependencies.Add(dep)
	e.CommitRule = CommitOnFile
	metrics.RegistryMutation("add_file_dependency")
}

// SetCommitRule validates and sets p's commit rule.
func (s *Store) SetCommitRule(p string, rule CommitRule) error {
	if _, err := ParseCommitRule(string(rule)); err != nil {
		return err
	}
	if p == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).CommitRule = rule
	metrics.RegistryMutation("set_commit_rule")
	return nil
}

// GetCommitRule returns p's commit rule, materializing p if unseen.
func (s *Store) GetCommitRule(p string) CommitRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).CommitRule
}

// SetFireRule validates and sets p's fire rule.
func (s *Store) SetFireRule(p string, rule FireRule) error {
	if _, err := ParseFireRule(string(rule)); err != nil {
		return err
	}
	if p == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).FireRule = rule
	metrics.RegistryMutation("set_fire_rule")
	return nil
}

// GetFireRule returns p's fire rule, materializing p if unseen.
func (s *Store) GetFireRule(p string) FireRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).FireRule
}

// IsFirable returns p's IsFirable() value, materializing p if unseen.
func (s *Store) IsFirable(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).IsFirable()
}

// SetCloseCount sets p's commit_on_close_count.
func (s *Store) SetCloseCount(p string, n int) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).CommitOnCloseCount = n
	metrics.RegistryMutation("set_close_count")
}

// GetCloseCount returns p's commit_on_close_count, materializing p if
// unseen (spec.md §8 scenario 3: querying an unknown path both
// returns 0 and leaves a new default entry behind).
func (s *Store) GetCloseCount(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).CommitOnCloseCount
}

// SetDirectory marks p as a directory (is_file = false) without
// touching its child count.
func (s *Store) SetDirectory(p string) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).IsFile = false
	metrics.RegistryMutation("set_directory")
}

// IsDirectory returns !is_file for p, materializing p if unseen.
func (s *Store) IsDirectory(p string) bool {
	return !s.IsFile(p)
}

// IsFile returns p's is_file field. Per spec.md §9's open question,
// this returns the entry's actual is_file field (default true) rather
// than the source's is_permanent value.
func (s *Store) IsFile(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).IsFile
}

// SetDirectoryFileCount sets p's directory_children_count, marks p as
// a directory, and disables further auto-updates of that entry's
// count (invariant I4's explicit regime).
func (s *Store) SetDirectoryFileCount(p string, n int) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(p)
	e.DirectoryChildrenCount = n
	e.IsFile = false
	e.AutoUpdateDirCount = false
	metrics.RegistryMutation("set_directory_file_count")
}

// GetDirectoryFileCount returns p's directory_children_count,
// materializing p if unseen.
func (s *Store) GetDirectoryFileCount(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).DirectoryChildrenCount
}

// SetPermanent sets p's permanent flag.
func (s *Store) SetPermanent(p string, permanent bool) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).Permanent = permanent
	metrics.RegistryMutation("set_permanent")
}

// IsPermanent returns p's permanent flag, materializing p if unseen.
func (s *Store) IsPermanent(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).Permanent
}

// SetExcluded sets p's excluded flag directly (bypassing the
// longest-match fallback IsExcluded reads use).
func (s *Store) SetExcluded(p string, excluded bool) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).Excluded = excluded
	metrics.RegistryMutation("set_excluded")
}

// SetStoreInMemory overrides a single entry's storage placement hint,
// independent of the engine-wide store_all_in_memory flag (invariant
// I5 permits this single-entry override).
func (s *Store) SetStoreInMemory(p string, inMemory bool) {
	if p == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(p).StoreInMemory = inMemory
	metrics.RegistryMutation("set_store_in_memory")
}

// IsStoredInMemory returns p's store_in_memory flag, materializing p
// if unseen.
func (s *Store) IsStoredInMemory(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(p).StoreInMemory
}

// Snapshot returns a read-only-intent deep copy of the entire pattern
// -> Entry mapping, for diagnostic or serializer use without handing
// out the live map (spec.md §9's friend-class design note; §4.4's
// Snapshot supplemented feature).
func (s *Store) Snapshot() map[string]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Entry, len(s.entries))
	for p, e := range s.entries {
		out[p] = e.Clone()
	}
	return out
}

// Equal reports whether two stores contain the same set of patterns
// and, for every pattern, equal entries per Entry.Equal.
func (s *Store) Equal(other *Store) bool {
	if s == nil || other == nil {
		return s == other
	}

	s.mu.RLock()
	other.mu.RLock()
	defer s.mu.RUnlock()
	defer other.mu.RUnlock()

	if len(s.entries) != len(other.entries) {
		return false
	}
	for p, e := range s.entries {
		oe, ok := other.entries[p]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}
