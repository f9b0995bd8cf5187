package service

import (
	"context"
	"encoding/json"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// The store interfaces below are the entity-store boundary. The repository
// package implements them on PostgreSQL; tests substitute in-memory fakes.

// UserStore resolves principals.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]model.User, error)
}

// AssignmentStore persists permission assignment rows and partial filter
// sets.
type AssignmentStore interface {
	ListForAsset(ctx context.Context, assetID int) ([]model.Assignment, error)
	GetByUID(ctx context.Context, assetID int, uid string) (*model.Assignment, error)

	// Pairs returns every (user, codename) assignment on the asset except
	// rows belonging to excludeUserID, in one query.
	Pairs(ctx context.Context, assetID, excludeUserID, viewerID int) ([]model.AssignmentPair, error)

	// PartialFilterSets returns the stored partial filter set per user, in
	// one query.
	PartialFilterSets(ctx context.Context, assetID int) (map[int]model.FilterSet, error)
	PartialFilterSet(ctx context.Context, assetID, userID int) (model.FilterSet, error)

	Codenames(ctx context.Context, assetID, userID int) ([]model.Codename, error)

	Grant(ctx context.Context, assetID, userID int, codename model.Codename, partial model.FilterSet) (*model.Assignment, error)
	Revoke(ctx context.Context, assetID, userID int, codename model.Codename) error

	// ApplyDelta applies removals then additions atomically.
	ApplyDelta(ctx context.Context, assetID int, removals []model.RevokeDelta, additions []model.GrantDelta) error
}

// SubmissionStore is the record-query executor partial-permission predicates
// run against.
type SubmissionStore interface {
	ListForAsset(ctx context.Context, assetID int) ([]model.Submission, error)
	ListFiltered(ctx context.Context, assetID int, predicates []model.FilterPredicate) ([]model.Submission, error)
	GetByUID(ctx context.Context, assetID int, uid string) (*model.Submission, error)
	Create(ctx context.Context, assetID int, submittedBy string, content json.RawMessage) (*model.Submission, error)
	Delete(ctx context.Context, assetID int, uid string) error
	SetValidationStatus(ctx context.Context, assetID int, uid, status string) (*model.Submission, error)
}
