package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/resolver"
)

// triple is one element of the desired/existing assignment sets. Filters
// holds the canonical FilterSet serialization for partial-submissions rows
// and is empty otherwise, so set equality is exact on
// (user, codename, filters-or-none).
type triple struct {
	UserID   int
	Codename model.Codename
	Filters  string
}

// resolvedBulkEntry keeps a validated bulk entry before expansion.
type resolvedBulkEntry struct {
	userID   int
	codename model.Codename
	partial  model.FilterSet
}

// Reconcile makes the asset's explicit assignment set exactly equal to the
// expanded desired set, by the minimal delta.
//
// Every entry is validated before anything mutates: one bad entry rejects the
// whole batch. Reading existing state costs exactly two queries regardless of
// input size; writes are bounded by the symmetric difference, applied in one
// transaction (removals first).
func (s *PermissionService) Reconcile(ctx context.Context, asset *model.Asset, viewer *model.User, inputs []AssignmentInput) error {
	entries, err := s.resolveBulk(ctx, asset, inputs)
	if err != nil {
		return err
	}

	desired, err := s.expandDesired(entries)
	if err != nil {
		return err
	}

	existing, err := s.loadExisting(ctx, asset, viewer)
	if err != nil {
		return err
	}

	var removals []model.RevokeDelta
	for t := range existing {
		if _, ok := desired[t]; !ok {
			removals = append(removals, model.RevokeDelta{UserID: t.UserID, Codename: t.Codename})
		}
	}

	var additions []model.GrantDelta
	for t := range desired {
		if _, ok := existing[t]; ok {
			continue
		}
		// Safety net: a well-formed caller can never produce an owner
		// triple, but the invariant is enforced here regardless, before
		// anything is written.
		if t.UserID == asset.OwnerID {
			return ErrOwnerAssignment
		}
		add := model.GrantDelta{UserID: t.UserID, Codename: t.Codename}
		if t.Filters != "" {
			if add.Partial, err = model.ParseFilterSet([]byte(t.Filters)); err != nil {
				return err
			}
		}
		additions = append(additions, add)
	}

	if len(removals) == 0 && len(additions) == 0 {
		return nil
	}

	// Deterministic apply order for logs and tests.
	sort.Slice(removals, func(i, j int) bool {
		if removals[i].UserID != removals[j].UserID {
			return removals[i].UserID < removals[j].UserID
		}
		return removals[i].Codename < removals[j].Codename
	})
	sort.Slice(additions, func(i, j int) bool {
		if additions[i].UserID != additions[j].UserID {
			return additions[i].UserID < additions[j].UserID
		}
		return additions[i].Codename < additions[j].Codename
	})

	if err := s.assignments.ApplyDelta(ctx, asset.ID, removals, additions); err != nil {
		return err
	}

	touched := map[int]bool{}
	var touchedIDs []int
	for _, rm := range removals {
		if !touched[rm.UserID] {
			touched[rm.UserID] = true
			touchedIDs = append(touchedIDs, rm.UserID)
		}
	}
	for _, add := range additions {
		if !touched[add.UserID] {
			touched[add.UserID] = true
			touchedIDs = append(touchedIDs, add.UserID)
		}
	}
	s.invalidateCache(ctx, asset.ID, touchedIDs...)

	s.log.Info().
		Str("asset", asset.UID).
		Int("removed", len(removals)).
		Int("added", len(additions)).
		Msg("permissions reconciled")
	return nil
}

// resolveBulk validates every entry up front, resolving all usernames with a
// single query. The owner check is deferred to apply time, matching the
// single-assignment flow's remaining steps 1-3.
func (s *PermissionService) resolveBulk(ctx context.Context, asset *model.Asset, inputs []AssignmentInput) ([]resolvedBulkEntry, error) {
	type pendingEntry struct {
		username string
		codename model.Codename
		partial  model.FilterSet
	}

	pending := make([]pendingEntry, 0, len(inputs))
	usernameSet := map[string]bool{}

	for i, in := range inputs {
		codename, err := s.resolvePermission(in.Permission)
		if err != nil {
			return nil, &BulkAssignmentError{Index: i, Err: err}
		}
		if !s.assignable(asset, codename) {
			return nil, &BulkAssignmentError{Index: i, Err: &NotAssignableError{Codename: codename}}
		}

		var partial model.FilterSet
		if s.catalog.RequiresPartialFilters(codename) {
			if partial, err = s.validatePartialPermissions(asset, in.PartialPermissions); err != nil {
				return nil, &BulkAssignmentError{Index: i, Err: err}
			}
		}

		ref, err := resolver.Resolve(in.User)
		if err != nil || ref.Kind != resolver.KindUser {
			return nil, &BulkAssignmentError{Index: i, Err: &ReferenceError{Field: "user", Reference: in.User}}
		}

		usernameSet[ref.Key] = true
		pending = append(pending, pendingEntry{username: ref.Key, codename: codename, partial: partial})
	}

	usernames := make([]string, 0, len(usernameSet))
	for username := range usernameSet {
		usernames = append(usernames, username)
	}
	users, err := s.users.GetByUsernames(ctx, usernames)
	if err != nil {
		return nil, err
	}
	userByName := make(map[string]model.User, len(users))
	for _, u := range users {
		userByName[u.Username] = u
	}

	entries := make([]resolvedBulkEntry, 0, len(pending))
	for i, p := range pending {
		u, ok := userByName[p.username]
		if !ok {
			return nil, &BulkAssignmentError{
				Index: i,
				Err:   &ReferenceError{Field: "user", Reference: inputs[i].User},
			}
		}
		entries = append(entries, resolvedBulkEntry{userID: u.ID, codename: p.codename, partial: p.partial})
	}
	return entries, nil
}

// expandDesired builds the desired triple set. Non-partial codenames fan out
// into their implied codenames (implied grants never carry filters); the
// partial-submissions codename instead expands its FilterSet in place,
// merging each sub-codename's predicates into its record-scoped implied
// codenames before serializing.
func (s *PermissionService) expandDesired(entries []resolvedBulkEntry) (map[triple]struct{}, error) {
	desired := make(map[triple]struct{})

	for _, entry := range entries {
		if entry.codename == model.PermPartialSubmissions {
			fs := entry.partial.Clone()
			fs.ExpandImplied(s.catalog)
			serialized, err := fs.Serialize()
			if err != nil {
				return nil, fmt.Errorf("expand partial filters for user %d: %w", entry.userID, err)
			}
			desired[triple{UserID: entry.userID, Codename: entry.codename, Filters: serialized}] = struct{}{}
			continue
		}

		for _, implied := range s.catalog.ImpliedPermissions(entry.codename) {
			desired[triple{UserID: entry.userID, Codename: implied}] = struct{}{}
		}
		desired[triple{UserID: entry.userID, Codename: entry.codename}] = struct{}{}
	}
	return desired, nil
}

// loadExisting builds the existing triple set from exactly two queries: the
// per-user partial filter sets, and all (user, codename) pairs excluding the
// owner (whose implicit access is never stored and must never be diffed).
func (s *PermissionService) loadExisting(ctx context.Context, asset *model.Asset, viewer *model.User) (map[triple]struct{}, error) {
	partials, err := s.assignments.PartialFilterSets(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	viewerID := 0
	if viewer != nil {
		viewerID = viewer.ID
	}
	pairs, err := s.assignments.Pairs(ctx, asset.ID, asset.OwnerID, viewerID)
	if err != nil {
		return nil, err
	}

	existing := make(map[triple]struct{}, len(pairs))
	for _, pair := range pairs {
		t := triple{UserID: pair.UserID, Codename: pair.Codename}
		if pair.Codename == model.PermPartialSubmissions {
			if t.Filters, err = partials[pair.UserID].Serialize(); err != nil {
				return nil, err
			}
		}
		existing[t] = struct{}{}
	}
	return existing, nil
}
