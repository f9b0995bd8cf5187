package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/JacquelineMorrissette/kpi/internal/config"
	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/resolver"
)

// PartialPermissionInput is one entry of a partial-permissions payload: a
// permission reference plus the filter predicates scoping it. Filters stay
// raw until validation so a malformed predicate surfaces as a
// partial-permissions error rather than a binding failure.
type PartialPermissionInput struct {
	URL     string            `json:"url"`
	Filters []json.RawMessage `json:"filters"`
}

// AssignmentInput is one raw user+permission(+filters) request, referencing
// both by URL.
type AssignmentInput struct {
	User               string                   `json:"user" binding:"required"`
	Permission         string                   `json:"permission" binding:"required"`
	PartialPermissions []PartialPermissionInput `json:"partial_permissions,omitempty"`
}

// ResolvedAssignment is a validated assignment ready to persist.
type ResolvedAssignment struct {
	User     *model.User
	Codename model.Codename
	Partial  model.FilterSet // nil unless the codename requires filters
}

// PermissionService validates and applies permission assignments against an
// asset, and answers effective-permission queries.
type PermissionService struct {
	catalog     model.Catalog
	users       UserStore
	assignments AssignmentStore
	rdb         *redis.Client // optional; nil disables caching
	cfg         *config.Config
	log         zerolog.Logger
}

// NewPermissionService creates a new PermissionService. rdb may be nil, in
// which case effective-permission lookups always hit the store.
func NewPermissionService(
	catalog model.Catalog,
	users UserStore,
	assignments AssignmentStore,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *PermissionService {
	return &PermissionService{
		catalog:     catalog,
		users:       users,
		assignments: assignments,
		rdb:         rdb,
		cfg:         cfg,
		log:         log,
	}
}

// Catalog exposes the injected permission catalog.
func (s *PermissionService) Catalog() model.Catalog {
	return s.catalog
}

// ListAssignments returns all explicit assignment rows on the asset, with
// partial filter sets attached to partial-submissions rows.
func (s *PermissionService) ListAssignments(ctx context.Context, asset *model.Asset) ([]model.Assignment, error) {
	assignments, err := s.assignments.ListForAsset(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	var partials map[int]model.FilterSet
	for i := range assignments {
		if assignments[i].Codename != model.PermPartialSubmissions {
			continue
		}
		if partials == nil {
			if partials, err = s.assignments.PartialFilterSets(ctx, asset.ID); err != nil {
				return nil, err
			}
		}
		assignments[i].Partial = partials[assignments[i].UserID]
	}
	return assignments, nil
}

// GetAssignment returns one assignment row by uid.
func (s *PermissionService) GetAssignment(ctx context.Context, asset *model.Asset, uid string) (*model.Assignment, error) {
	a, err := s.assignments.GetByUID(ctx, asset.ID, uid)
	if err != nil {
		return nil, err
	}
	if a.Codename == model.PermPartialSubmissions {
		if a.Partial, err = s.assignments.PartialFilterSet(ctx, asset.ID, a.UserID); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// ValidateAssignment validates one raw assignment against the asset without
// side effects: reference resolution, assignability, partial-filter
// well-formedness, and the owner invariant.
func (s *PermissionService) ValidateAssignment(ctx context.Context, asset *model.Asset, in AssignmentInput) (*ResolvedAssignment, error) {
	codename, err := s.resolvePermission(in.Permission)
	if err != nil {
		return nil, err
	}
	if !s.assignable(asset, codename) {
		return nil, &NotAssignableError{Codename: codename}
	}

	var partial model.FilterSet
	if s.catalog.RequiresPartialFilters(codename) {
		if partial, err = s.validatePartialPermissions(asset, in.PartialPermissions); err != nil {
			return nil, err
		}
	}

	ref, err := resolver.Resolve(in.User)
	if err != nil || ref.Kind != resolver.KindUser {
		return nil, &ReferenceError{Field: "user", Reference: in.User}
	}
	user, err := s.users.GetByUsername(ctx, ref.Key)
	if err != nil {
		return nil, &ReferenceError{Field: "user", Reference: in.User}
	}

	if user.ID == asset.OwnerID {
		return nil, ErrOwnerAssignment
	}

	return &ResolvedAssignment{User: user, Codename: codename, Partial: partial}, nil
}

// AssignPermission validates and applies one assignment: the requested grant
// plus its implied grants. Partial filter sets are expanded with implied
// record-scoped codenames before persisting.
func (s *PermissionService) AssignPermission(ctx context.Context, asset *model.Asset, in AssignmentInput) (*model.Assignment, error) {
	resolved, err := s.ValidateAssignment(ctx, asset, in)
	if err != nil {
		return nil, err
	}

	if resolved.Partial != nil {
		resolved.Partial.ExpandImplied(s.catalog)
	}

	created, err := s.assignments.Grant(ctx, asset.ID, resolved.User.ID, resolved.Codename, resolved.Partial)
	if err != nil {
		return nil, err
	}
	for _, implied := range s.catalog.ImpliedPermissions(resolved.Codename) {
		if _, err := s.assignments.Grant(ctx, asset.ID, resolved.User.ID, implied, nil); err != nil {
			return nil, err
		}
	}

	s.invalidateCache(ctx, asset.ID, resolved.User.ID)

	s.log.Info().
		Str("asset", asset.UID).
		Str("user", resolved.User.Username).
		Str("codename", string(resolved.Codename)).
		Msg("permission assigned")

	return created, nil
}

// RemoveAssignment revokes the assignment identified by uid.
func (s *PermissionService) RemoveAssignment(ctx context.Context, asset *model.Asset, uid string) error {
	a, err := s.assignments.GetByUID(ctx, asset.ID, uid)
	if err != nil {
		return err
	}
	if err := s.assignments.Revoke(ctx, asset.ID, a.UserID, a.Codename); err != nil {
		return err
	}

	s.invalidateCache(ctx, asset.ID, a.UserID)

	s.log.Info().
		Str("asset", asset.UID).
		Str("user", a.Username).
		Str("codename", string(a.Codename)).
		Msg("permission revoked")
	return nil
}

// EffectivePermissions returns the codenames a user currently holds on an
// asset. The owner implicitly holds every assignable codename; no explicit
// rows exist for them. Results are cached in Redis when available.
func (s *PermissionService) EffectivePermissions(ctx context.Context, asset *model.Asset, userID int) ([]model.Codename, error) {
	if userID == asset.OwnerID {
		return s.catalog.AssignablePermissions(asset.AssetType, false), nil
	}

	cacheKey := config.CacheKey.EffectivePermsKey(asset.ID, userID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var codenames []model.Codename
			if json.Unmarshal(cached, &codenames) == nil {
				return codenames, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("permission cache read failed")
		}
	}

	codenames, err := s.assignments.Codenames(ctx, asset.ID, userID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(codenames); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, data, s.cfg.PermCacheTTL).Err(); err != nil {
				s.log.Warn().Err(err).Msg("permission cache write failed")
			}
		}
	}
	return codenames, nil
}

// HasPermission reports whether the user effectively holds the codename on
// the asset.
func (s *PermissionService) HasPermission(ctx context.Context, asset *model.Asset, userID int, codename model.Codename) (bool, error) {
	codenames, err := s.EffectivePermissions(ctx, asset, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(codenames, codename), nil
}

// PartialFilterSet returns the user's stored partial filter set on the
// asset, or nil.
func (s *PermissionService) PartialFilterSet(ctx context.Context, asset *model.Asset, userID int) (model.FilterSet, error) {
	return s.assignments.PartialFilterSet(ctx, asset.ID, userID)
}

func (s *PermissionService) resolvePermission(reference string) (model.Codename, error) {
	ref, err := resolver.Resolve(reference)
	if err != nil || ref.Kind != resolver.KindPermission || ref.Key == "" {
		return "", &ReferenceError{Field: "permission", Reference: reference}
	}
	return model.Codename(ref.Key), nil
}

func (s *PermissionService) assignable(asset *model.Asset, codename model.Codename) bool {
	return slices.Contains(s.catalog.AssignablePermissions(asset.AssetType, true), codename)
}

// validatePartialPermissions checks each {url, filters} entry: the reference
// must resolve to an assignable, record-scoped codename and every filter must
// be a mapping. Validated entries accumulate into a FilterSet grouped by
// codename; duplicates append.
func (s *PermissionService) validatePartialPermissions(asset *model.Asset, entries []PartialPermissionInput) (model.FilterSet, error) {
	if len(entries) == 0 {
		return nil, &PartialPermissionsError{
			Reason: fmt.Sprintf("this field is required for the %q permission", model.PermPartialSubmissions),
		}
	}

	fs := model.FilterSet{}
	for _, entry := range entries {
		ref, err := resolver.Resolve(entry.URL)
		if err != nil || ref.Kind != resolver.KindPermission {
			return nil, &PartialPermissionsError{Reason: "invalid url"}
		}
		codename := model.Codename(ref.Key)
		if !s.assignable(asset, codename) || !codename.IsRecordScoped() {
			return nil, &PartialPermissionsError{Reason: "invalid url"}
		}
		if len(entry.Filters) == 0 {
			return nil, &PartialPermissionsError{Reason: "invalid filters"}
		}
		for _, raw := range entry.Filters {
			// Deep query syntax is the record store's concern; here the
			// predicate only has to be a mapping.
			var filter model.FilterPredicate
			if err := json.Unmarshal(raw, &filter); err != nil || filter == nil {
				return nil, &PartialPermissionsError{Reason: "invalid filters"}
			}
			fs.Add(codename, filter)
		}
	}
	return fs, nil
}

func (s *PermissionService) invalidateCache(ctx context.Context, assetID int, userIDs ...int) {
	if s.rdb == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, config.CacheKey.EffectivePermsKey(assetID, userID))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Msg("permission cache invalidation failed")
	}
}
