package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// FilterPredicate is an opaque field→value constraint on submission records.
// Its contents are not validated here beyond being a mapping; query syntax is
// the record store's problem.
type FilterPredicate map[string]any

// Matches reports whether a decoded submission record satisfies the
// predicate: every predicate field must be present in the record with an
// equal value. This is the in-process counterpart of the store's jsonb
// containment check.
func (p FilterPredicate) Matches(record map[string]any) bool {
	for field, want := range p {
		got, ok := record[field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// FilterSet maps a record-scoped codename to an ordered sequence of filter
// predicates. A user holding a partial permission may act on a submission only
// if it matches at least one predicate for that codename.
//
// Two FilterSets with the same content but different insertion order must
// compare equal during reconciliation, so equality and persistence both go
// through Serialize, which sorts keys and preserves per-key predicate order.
type FilterSet map[Codename][]FilterPredicate

// Add appends a predicate to the codename's sequence. Duplicate codenames
// accumulate predicates, they never overwrite.
func (fs FilterSet) Add(codename Codename, predicate FilterPredicate) {
	fs[codename] = append(fs[codename], predicate)
}

// Serialize returns the canonical JSON representation: object keys sorted,
// predicate order preserved per key. encoding/json already sorts map keys.
func (fs FilterSet) Serialize() (string, error) {
	data, err := json.Marshal(fs)
	if err != nil {
		return "", fmt.Errorf("serialize filter set: %w", err)
	}
	return string(data), nil
}

// ParseFilterSet decodes a previously serialized FilterSet.
func ParseFilterSet(data []byte) (FilterSet, error) {
	var fs FilterSet
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse filter set: %w", err)
	}
	return fs, nil
}

// Equal reports structural equality via canonical serialization.
func (fs FilterSet) Equal(other FilterSet) bool {
	a, errA := fs.Serialize()
	b, errB := other.Serialize()
	return errA == nil && errB == nil && a == b
}

// Clone returns a deep-enough copy: predicate slices are copied, predicate
// maps are shared (predicates are treated as immutable values).
func (fs FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(fs))
	for codename, predicates := range fs {
		out[codename] = append([]FilterPredicate(nil), predicates...)
	}
	return out
}

// ExpandImplied merges, in place, each codename's predicates into every
// record-scoped codename it implies. Source codenames are visited in sorted
// order over a snapshot so the outcome is deterministic and newly merged
// entries are not re-expanded. Predicates already present on the target (by
// canonical form) are skipped.
func (fs FilterSet) ExpandImplied(catalog Catalog) {
	source := make([]Codename, 0, len(fs))
	for codename := range fs {
		source = append(source, codename)
	}
	sort.Slice(source, func(i, j int) bool { return source[i] < source[j] })

	snapshot := fs.Clone()
	for _, codename := range source {
		for _, implied := range catalog.ImpliedPermissions(codename) {
			if !implied.IsRecordScoped() {
				continue
			}
			fs.mergePredicates(implied, snapshot[codename])
		}
	}
}

func (fs FilterSet) mergePredicates(codename Codename, predicates []FilterPredicate) {
	present := make(map[string]bool, len(fs[codename]))
	for _, p := range fs[codename] {
		present[canonicalPredicate(p)] = true
	}
	for _, p := range predicates {
		key := canonicalPredicate(p)
		if present[key] {
			continue
		}
		present[key] = true
		fs[codename] = append(fs[codename], p)
	}
}

func canonicalPredicate(p FilterPredicate) string {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", p)
	}
	return string(data)
}
