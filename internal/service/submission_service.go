package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// SubmissionService gates access to submitted records. Users with the full
// view permission see everything; users holding only a partial permission see
// the records matching their stored filter predicates.
type SubmissionService struct {
	perms       *PermissionService
	submissions SubmissionStore
	log         zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(perms *PermissionService, submissions SubmissionStore, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{perms: perms, submissions: submissions, log: log}
}

// List returns the submissions of the asset the user may view. Full
// view_submissions (or ownership) yields all records; partial_submissions
// restricts to records matching the user's view predicates; anything else is
// denied.
func (s *SubmissionService) List(ctx context.Context, asset *model.Asset, user *model.User) ([]model.Submission, error) {
	full, err := s.perms.HasPermission(ctx, asset, user.ID, model.PermViewSubmissions)
	if err != nil {
		return nil, err
	}
	if full {
		return s.submissions.ListForAsset(ctx, asset.ID)
	}

	partial, err := s.perms.HasPermission(ctx, asset, user.ID, model.PermPartialSubmissions)
	if err != nil {
		return nil, err
	}
	if !partial {
		return nil, ErrPermissionDenied
	}

	fs, err := s.perms.PartialFilterSet(ctx, asset, user.ID)
	if err != nil {
		return nil, err
	}
	predicates := fs[model.PermViewSubmissions]
	if len(predicates) == 0 {
		return nil, ErrPermissionDenied
	}
	return s.submissions.ListFiltered(ctx, asset.ID, predicates)
}

// Get returns one submission if the user may view it, either through the
// full view permission or through a matching partial view predicate.
func (s *SubmissionService) Get(ctx context.Context, asset *model.Asset, user *model.User, uid string) (*model.Submission, error) {
	sub, err := s.submissions.GetByUID(ctx, asset.ID, uid)
	if err != nil {
		return nil, err
	}
	allowed, err := s.allows(ctx, asset, user, model.PermViewSubmissions, sub)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return sub, nil
}

// Delete removes one submission. Partial holders may only delete records
// matching their delete predicates; their view or other predicates do not
// count.
func (s *SubmissionService) Delete(ctx context.Context, asset *model.Asset, user *model.User, uid string) error {
	sub, err := s.submissions.GetByUID(ctx, asset.ID, uid)
	if err != nil {
		return err
	}
	allowed, err := s.allows(ctx, asset, user, model.PermDeleteSubmissions, sub)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	if err := s.submissions.Delete(ctx, asset.ID, sub.UID); err != nil {
		return err
	}
	s.log.Info().
		Str("asset_uid", asset.UID).
		Str("submission_uid", sub.UID).
		Str("username", user.Username).
		Msg("submission deleted")
	return nil
}

// ValidationStatuses enumerates the accepted validation states. The empty
// string clears the status.
var ValidationStatuses = map[string]bool{
	"validation_status_approved":     true,
	"validation_status_not_approved": true,
	"validation_status_on_hold":      true,
}

// ErrInvalidValidationStatus reports an unknown validation status value.
var ErrInvalidValidationStatus = errors.New("invalid validation status")

// SetValidationStatus updates a submission's validation status, gated by the
// full or partial validate permission.
func (s *SubmissionService) SetValidationStatus(ctx context.Context, asset *model.Asset, user *model.User, uid, status string) (*model.Submission, error) {
	if status != "" && !ValidationStatuses[status] {
		return nil, ErrInvalidValidationStatus
	}
	sub, err := s.submissions.GetByUID(ctx, asset.ID, uid)
	if err != nil {
		return nil, err
	}
	allowed, err := s.allows(ctx, asset, user, model.PermValidateSubmissions, sub)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return s.submissions.SetValidationStatus(ctx, asset.ID, sub.UID, status)
}

// allows reports whether the user may act on the given record under a
// record-scoped codename: the full permission covers every record, while
// partial_submissions covers only records matching one of the stored
// predicates for that codename.
func (s *SubmissionService) allows(ctx context.Context, asset *model.Asset, user *model.User, codename model.Codename, sub *model.Submission) (bool, error) {
	full, err := s.perms.HasPermission(ctx, asset, user.ID, codename)
	if err != nil {
		return false, err
	}
	if full {
		return true, nil
	}

	partial, err := s.perms.HasPermission(ctx, asset, user.ID, model.PermPartialSubmissions)
	if err != nil || !partial {
		return false, err
	}

	fs, err := s.perms.PartialFilterSet(ctx, asset, user.ID)
	if err != nil {
		return false, err
	}
	predicates := fs[codename]
	if len(predicates) == 0 {
		return false, nil
	}

	var record map[string]any
	if err := json.Unmarshal(sub.Content, &record); err != nil {
		return false, fmt.Errorf("decode submission content: %w", err)
	}
	for _, p := range predicates {
		if p.Matches(record) {
			return true, nil
		}
	}
	return false, nil
}

// Create stores one submission on behalf of the user, stamping the submitter
// field into the record content so filter predicates can match on it.
func (s *SubmissionService) Create(ctx context.Context, asset *model.Asset, user *model.User, content map[string]any) (*model.Submission, error) {
	allowed, err := s.perms.HasPermission(ctx, asset, user.ID, model.PermAddSubmissions)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}

	if content == nil {
		content = map[string]any{}
	}
	content[model.FieldSubmittedBy] = user.Username

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	return s.submissions.Create(ctx, asset.ID, user.Username, raw)
}
