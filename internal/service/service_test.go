package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/JacquelineMorrissette/kpi/internal/config"
	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// In-memory store fakes. They mutate state the way the repositories do so
// multi-step flows (assign then reconcile, reconcile twice) behave
// realistically.

var errNotFound = errors.New("not found")

type fakeUserStore struct {
	users []model.User
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			v := u
			return &v, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id int) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			v := u
			return &v, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeUserStore) GetByUsernames(_ context.Context, usernames []string) ([]model.User, error) {
	var out []model.User
	for _, name := range usernames {
		for _, u := range f.users {
			if u.Username == name {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type appliedDelta struct {
	removals  []model.RevokeDelta
	additions []model.GrantDelta
}

type fakeAssignmentStore struct {
	rows     []model.Assignment
	partials map[int]model.FilterSet

	grants  []model.GrantDelta
	revokes []model.RevokeDelta
	deltas  []appliedDelta

	pairsCalls       int
	partialSetsCalls int
	codenamesCalls   int
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{partials: map[int]model.FilterSet{}}
}

func (f *fakeAssignmentStore) seed(userID int, username string, codename model.Codename) {
	f.rows = append(f.rows, model.Assignment{
		ID:        len(f.rows) + 1,
		UID:       model.NewAssignmentUID(),
		AssetID:   1,
		UserID:    userID,
		Username:  username,
		Codename:  codename,
		CreatedAt: time.Now(),
	})
}

func (f *fakeAssignmentStore) ListForAsset(_ context.Context, assetID int) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range f.rows {
		if a.AssetID == assetID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) GetByUID(_ context.Context, assetID int, uid string) (*model.Assignment, error) {
	for _, a := range f.rows {
		if a.AssetID == assetID && a.UID == uid {
			v := a
			return &v, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeAssignmentStore) Pairs(_ context.Context, assetID, excludeUserID, _ int) ([]model.AssignmentPair, error) {
	f.pairsCalls++
	var pairs []model.AssignmentPair
	for _, a := range f.rows {
		if a.AssetID == assetID && a.UserID != excludeUserID {
			pairs = append(pairs, model.AssignmentPair{UserID: a.UserID, Codename: a.Codename})
		}
	}
	return pairs, nil
}

func (f *fakeAssignmentStore) PartialFilterSets(_ context.Context, _ int) (map[int]model.FilterSet, error) {
	f.partialSetsCalls++
	out := make(map[int]model.FilterSet, len(f.partials))
	for userID, fs := range f.partials {
		out[userID] = fs
	}
	return out, nil
}

func (f *fakeAssignmentStore) PartialFilterSet(_ context.Context, _, userID int) (model.FilterSet, error) {
	return f.partials[userID], nil
}

func (f *fakeAssignmentStore) Codenames(_ context.Context, assetID, userID int) ([]model.Codename, error) {
	f.codenamesCalls++
	var codenames []model.Codename
	for _, a := range f.rows {
		if a.AssetID == assetID && a.UserID == userID {
			codenames = append(codenames, a.Codename)
		}
	}
	return codenames, nil
}

func (f *fakeAssignmentStore) Grant(_ context.Context, assetID, userID int, codename model.Codename, partial model.FilterSet) (*model.Assignment, error) {
	f.grants = append(f.grants, model.GrantDelta{UserID: userID, Codename: codename, Partial: partial})
	a := f.upsert(assetID, userID, codename, partial)
	return &a, nil
}

func (f *fakeAssignmentStore) Revoke(_ context.Context, assetID, userID int, codename model.Codename) error {
	f.revokes = append(f.revokes, model.RevokeDelta{UserID: userID, Codename: codename})
	f.remove(assetID, userID, codename)
	return nil
}

func (f *fakeAssignmentStore) ApplyDelta(_ context.Context, assetID int, removals []model.RevokeDelta, additions []model.GrantDelta) error {
	if len(removals) == 0 && len(additions) == 0 {
		return nil
	}
	f.deltas = append(f.deltas, appliedDelta{removals: removals, additions: additions})
	for _, rm := range removals {
		f.remove(assetID, rm.UserID, rm.Codename)
	}
	for _, add := range additions {
		f.upsert(assetID, add.UserID, add.Codename, add.Partial)
	}
	return nil
}

func (f *fakeAssignmentStore) upsert(assetID, userID int, codename model.Codename, partial model.FilterSet) model.Assignment {
	if codename == model.PermPartialSubmissions {
		f.partials[userID] = partial
	}
	for _, a := range f.rows {
		if a.AssetID == assetID && a.UserID == userID && a.Codename == codename {
			return a
		}
	}
	a := model.Assignment{
		ID:        len(f.rows) + 1,
		UID:       model.NewAssignmentUID(),
		AssetID:   assetID,
		UserID:    userID,
		Codename:  codename,
		Partial:   partial,
		CreatedAt: time.Now(),
	}
	f.rows = append(f.rows, a)
	return a
}

func (f *fakeAssignmentStore) remove(assetID, userID int, codename model.Codename) {
	for i, a := range f.rows {
		if a.AssetID == assetID && a.UserID == userID && a.Codename == codename {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	if codename == model.PermPartialSubmissions {
		delete(f.partials, userID)
	}
}

// codenamesFor reads current state for assertions without counting as a store
// call.
func (f *fakeAssignmentStore) codenamesFor(userID int) []model.Codename {
	var out []model.Codename
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a.Codename)
		}
	}
	return out
}

type fakeSubmissionStore struct {
	submissions []model.Submission

	listCalls      int
	lastPredicates []model.FilterPredicate
	created        []model.Submission
}

func (f *fakeSubmissionStore) ListForAsset(_ context.Context, assetID int) ([]model.Submission, error) {
	f.listCalls++
	var out []model.Submission
	for _, sub := range f.submissions {
		if sub.AssetID == assetID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) ListFiltered(_ context.Context, assetID int, predicates []model.FilterPredicate) ([]model.Submission, error) {
	f.lastPredicates = predicates
	var out []model.Submission
	for _, sub := range f.submissions {
		if sub.AssetID == assetID && matchesAny(sub.Content, predicates) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func matchesAny(content json.RawMessage, predicates []model.FilterPredicate) bool {
	var record map[string]any
	if json.Unmarshal(content, &record) != nil {
		return false
	}
	for _, p := range predicates {
		matched := true
		for field, want := range p {
			if record[field] != want {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (f *fakeSubmissionStore) GetByUID(_ context.Context, assetID int, uid string) (*model.Submission, error) {
	for i := range f.submissions {
		if f.submissions[i].AssetID == assetID && f.submissions[i].UID == uid {
			sub := f.submissions[i]
			return &sub, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeSubmissionStore) Delete(_ context.Context, assetID int, uid string) error {
	for i := range f.submissions {
		if f.submissions[i].AssetID == assetID && f.submissions[i].UID == uid {
			f.submissions = append(f.submissions[:i], f.submissions[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (f *fakeSubmissionStore) SetValidationStatus(_ context.Context, assetID int, uid, status string) (*model.Submission, error) {
	for i := range f.submissions {
		if f.submissions[i].AssetID == assetID && f.submissions[i].UID == uid {
			f.submissions[i].ValidationStatus = status
			sub := f.submissions[i]
			return &sub, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeSubmissionStore) Create(_ context.Context, assetID int, submittedBy string, content json.RawMessage) (*model.Submission, error) {
	sub := model.Submission{
		ID:          len(f.submissions) + 1,
		UID:         model.NewSubmissionUID(),
		AssetID:     assetID,
		SubmittedBy: submittedBy,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	f.submissions = append(f.submissions, sub)
	f.created = append(f.created, sub)
	return &sub, nil
}

// Shared fixtures. User 1 owns the asset; 2 and 3 are collaborators.

func testUsers() *fakeUserStore {
	return &fakeUserStore{users: []model.User{
		{ID: 1, Username: "olivia"},
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "zoe"},
	}}
}

func surveyAsset() *model.Asset {
	return &model.Asset{
		ID:            1,
		UID:           "aTestSurvey",
		Name:          "Household survey",
		AssetType:     model.AssetTypeSurvey,
		OwnerID:       1,
		OwnerUsername: "olivia",
	}
}

func collectionAsset() *model.Asset {
	return &model.Asset{
		ID:            2,
		UID:           "aTestCollection",
		Name:          "Shared library",
		AssetType:     model.AssetTypeCollection,
		OwnerID:       1,
		OwnerUsername: "olivia",
	}
}

func newTestPermissionService(users *fakeUserStore, assignments *fakeAssignmentStore) *PermissionService {
	return NewPermissionService(
		model.NewCatalog(),
		users,
		assignments,
		nil,
		&config.Config{PermCacheTTL: time.Minute},
		zerolog.Nop(),
	)
}

func userURL(username string) string {
	return "/api/v2/users/" + username + "/"
}

func permURL(codename model.Codename) string {
	return "/api/v2/permissions/" + string(codename) + "/"
}

func rawFilters(filters ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(filters))
	for _, f := range filters {
		out = append(out, json.RawMessage(f))
	}
	return out
}
