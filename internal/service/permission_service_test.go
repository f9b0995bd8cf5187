package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

func TestValidateAssignment(t *testing.T) {
	svc := newTestPermissionService(testUsers(), newFakeAssignmentStore())
	ctx := context.Background()

	t.Run("plain permission", func(t *testing.T) {
		resolved, err := svc.ValidateAssignment(ctx, surveyAsset(), AssignmentInput{
			User:       userURL("bob"),
			Permission: permURL(model.PermViewAsset),
		})
		if err != nil {
			t.Fatalf("ValidateAssignment: %v", err)
		}
		if resolved.User.ID != 2 || resolved.Codename != model.PermViewAsset {
			t.Errorf("resolved = %+v", resolved)
		}
		if resolved.Partial != nil {
			t.Errorf("non-partial assignment carries filters: %v", resolved.Partial)
		}
	})

	t.Run("partial permission with filters", func(t *testing.T) {
		resolved, err := svc.ValidateAssignment(ctx, surveyAsset(), AssignmentInput{
			User:       userURL("bob"),
			Permission: permURL(model.PermPartialSubmissions),
			PartialPermissions: []PartialPermissionInput{{
				URL:     permURL(model.PermViewSubmissions),
				Filters: rawFilters(`{"_submitted_by": "zoe"}`),
			}},
		})
		if err != nil {
			t.Fatalf("ValidateAssignment: %v", err)
		}
		want := model.FilterSet{
			model.PermViewSubmissions: {{"_submitted_by": "zoe"}},
		}
		if !resolved.Partial.Equal(want) {
			t.Errorf("Partial = %v, want %v", resolved.Partial, want)
		}
	})

	t.Run("duplicate partial codenames accumulate", func(t *testing.T) {
		resolved, err := svc.ValidateAssignment(ctx, surveyAsset(), AssignmentInput{
			User:       userURL("bob"),
			Permission: permURL(model.PermPartialSubmissions),
			PartialPermissions: []PartialPermissionInput{
				{URL: permURL(model.PermViewSubmissions), Filters: rawFilters(`{"_submitted_by": "zoe"}`)},
				{URL: permURL(model.PermViewSubmissions), Filters: rawFilters(`{"region": "north"}`)},
			},
		})
		if err != nil {
			t.Fatalf("ValidateAssignment: %v", err)
		}
		if got := len(resolved.Partial[model.PermViewSubmissions]); got != 2 {
			t.Errorf("expected 2 accumulated predicates, got %d", got)
		}
	})

	errTests := []struct {
		name  string
		asset *model.Asset
		in    AssignmentInput
		check func(*testing.T, error)
	}{
		{
			name:  "permission reference is not a url",
			asset: surveyAsset(),
			in:    AssignmentInput{User: userURL("bob"), Permission: "view_asset"},
			check: wantReferenceError("permission"),
		},
		{
			name:  "unknown codename",
			asset: surveyAsset(),
			in:    AssignmentInput{User: userURL("bob"), Permission: permURL("fly_asset")},
			check: wantNotAssignable,
		},
		{
			name:  "submission permission on a collection",
			asset: collectionAsset(),
			in:    AssignmentInput{User: userURL("bob"), Permission: permURL(model.PermViewSubmissions)},
			check: wantNotAssignable,
		},
		{
			name:  "partial permission without filters payload",
			asset: surveyAsset(),
			in:    AssignmentInput{User: userURL("bob"), Permission: permURL(model.PermPartialSubmissions)},
			check: wantPartialError,
		},
		{
			name:  "partial entry references a user",
			asset: surveyAsset(),
			in: AssignmentInput{
				User:       userURL("bob"),
				Permission: permURL(model.PermPartialSubmissions),
				PartialPermissions: []PartialPermissionInput{{
					URL:     userURL("zoe"),
					Filters: rawFilters(`{"_submitted_by": "zoe"}`),
				}},
			},
			check: wantPartialError,
		},
		{
			name:  "partial entry references an asset-level codename",
			asset: surveyAsset(),
			in: AssignmentInput{
				User:       userURL("bob"),
				Permission: permURL(model.PermPartialSubmissions),
				PartialPermissions: []PartialPermissionInput{{
					URL:     permURL(model.PermViewAsset),
					Filters: rawFilters(`{"_submitted_by": "zoe"}`),
				}},
			},
			check: wantPartialError,
		},
		{
			name:  "partial entry with empty filters",
			asset: surveyAsset(),
			in: AssignmentInput{
				User:       userURL("bob"),
				Permission: permURL(model.PermPartialSubmissions),
				PartialPermissions: []PartialPermissionInput{{
					URL: permURL(model.PermViewSubmissions),
				}},
			},
			check: wantPartialError,
		},
		{
			name:  "partial entry with non-mapping filter",
			asset: surveyAsset(),
			in: AssignmentInput{
				User:       userURL("bob"),
				Permission: permURL(model.PermPartialSubmissions),
				PartialPermissions: []PartialPermissionInput{{
					URL:     permURL(model.PermViewSubmissions),
					Filters: rawFilters(`["_submitted_by"]`),
				}},
			},
			check: wantPartialError,
		},
		{
			name:  "partial entry with null filter",
			asset: surveyAsset(),
			in: AssignmentInput{
				User:       userURL("bob"),
				Permission: permURL(model.PermPartialSubmissions),
				PartialPermissions: []PartialPermissionInput{{
					URL:     permURL(model.PermViewSubmissions),
					Filters: rawFilters(`null`),
				}},
			},
			check: wantPartialError,
		},
		{
			name:  "unknown user",
			asset: surveyAsset(),
			in:    AssignmentInput{User: userURL("nobody"), Permission: permURL(model.PermViewAsset)},
			check: wantReferenceError("user"),
		},
		{
			name:  "user reference is a permission url",
			asset: surveyAsset(),
			in:    AssignmentInput{User: permURL(model.PermViewAsset), Permission: permURL(model.PermViewAsset)},
			check: wantReferenceError("user"),
		},
		{
			name:  "owner assignment",
			asset: surveyAsset(),
			in:    AssignmentInput{User: userURL("olivia"), Permission: permURL(model.PermViewAsset)},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrOwnerAssignment) {
					t.Errorf("error = %v, want ErrOwnerAssignment", err)
				}
			},
		},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAssignment(ctx, tt.asset, tt.in)
			if err == nil {
				t.Fatal("ValidateAssignment succeeded, want error")
			}
			tt.check(t, err)
		})
	}
}

func wantReferenceError(field string) func(*testing.T, error) {
	return func(t *testing.T, err error) {
		var refErr *ReferenceError
		if !errors.As(err, &refErr) {
			t.Fatalf("error = %v, want ReferenceError", err)
		}
		if refErr.Field != field {
			t.Errorf("Field = %q, want %q", refErr.Field, field)
		}
	}
}

func wantNotAssignable(t *testing.T, err error) {
	var naErr *NotAssignableError
	if !errors.As(err, &naErr) {
		t.Errorf("error = %v, want NotAssignableError", err)
	}
}

func wantPartialError(t *testing.T, err error) {
	var ppErr *PartialPermissionsError
	if !errors.As(err, &ppErr) {
		t.Errorf("error = %v, want PartialPermissionsError", err)
	}
}

func TestAssignPermissionGrantsImplied(t *testing.T) {
	store := newFakeAssignmentStore()
	svc := newTestPermissionService(testUsers(), store)

	created, err := svc.AssignPermission(context.Background(), surveyAsset(), AssignmentInput{
		User:       userURL("bob"),
		Permission: permURL(model.PermManageAsset),
	})
	if err != nil {
		t.Fatalf("AssignPermission: %v", err)
	}
	if created.Codename != model.PermManageAsset {
		t.Errorf("created codename = %s", created.Codename)
	}

	var granted []model.Codename
	for _, g := range store.grants {
		if g.UserID != 2 {
			t.Errorf("grant targeted user %d", g.UserID)
		}
		granted = append(granted, g.Codename)
	}
	want := []model.Codename{model.PermManageAsset, model.PermChangeAsset, model.PermViewAsset}
	if !reflect.DeepEqual(granted, want) {
		t.Errorf("grants = %v, want %v", granted, want)
	}
}

func TestAssignPermissionExpandsPartialFilters(t *testing.T) {
	store := newFakeAssignmentStore()
	svc := newTestPermissionService(testUsers(), store)

	_, err := svc.AssignPermission(context.Background(), surveyAsset(), AssignmentInput{
		User:       userURL("bob"),
		Permission: permURL(model.PermPartialSubmissions),
		PartialPermissions: []PartialPermissionInput{{
			URL:     permURL(model.PermDeleteSubmissions),
			Filters: rawFilters(`{"_submitted_by": "zoe"}`),
		}},
	})
	if err != nil {
		t.Fatalf("AssignPermission: %v", err)
	}

	stored := store.partials[2]
	want := model.FilterSet{
		model.PermDeleteSubmissions: {{"_submitted_by": "zoe"}},
		model.PermViewSubmissions:   {{"_submitted_by": "zoe"}},
	}
	if !stored.Equal(want) {
		t.Errorf("stored filter set = %v, want %v", stored, want)
	}

	// The outer grant set is partial_submissions plus its implied view_asset.
	want2 := []model.Codename{model.PermPartialSubmissions, model.PermViewAsset}
	var granted []model.Codename
	for _, g := range store.grants {
		granted = append(granted, g.Codename)
	}
	if !reflect.DeepEqual(granted, want2) {
		t.Errorf("grants = %v, want %v", granted, want2)
	}
}

func TestRemoveAssignment(t *testing.T) {
	store := newFakeAssignmentStore()
	store.seed(2, "bob", model.PermViewAsset)
	uid := store.rows[0].UID
	svc := newTestPermissionService(testUsers(), store)

	if err := svc.RemoveAssignment(context.Background(), surveyAsset(), uid); err != nil {
		t.Fatalf("RemoveAssignment: %v", err)
	}
	if got := store.codenamesFor(2); len(got) != 0 {
		t.Errorf("rows remain after revoke: %v", got)
	}

	if err := svc.RemoveAssignment(context.Background(), surveyAsset(), "pMissing"); err == nil {
		t.Error("removing an unknown assignment succeeded")
	}
}

func TestEffectivePermissionsOwner(t *testing.T) {
	store := newFakeAssignmentStore()
	svc := newTestPermissionService(testUsers(), store)

	codenames, err := svc.EffectivePermissions(context.Background(), surveyAsset(), 1)
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	// The owner implicitly holds the full assignable set, partial excluded.
	want := model.NewCatalog().AssignablePermissions(model.AssetTypeSurvey, false)
	if !reflect.DeepEqual(codenames, want) {
		t.Errorf("owner permissions = %v, want %v", codenames, want)
	}
	if store.codenamesCalls != 0 {
		t.Errorf("owner lookup hit the store %d times", store.codenamesCalls)
	}
}

func TestEffectivePermissionsCollaborator(t *testing.T) {
	store := newFakeAssignmentStore()
	store.seed(2, "bob", model.PermViewAsset)
	store.seed(2, "bob", model.PermViewSubmissions)
	svc := newTestPermissionService(testUsers(), store)

	codenames, err := svc.EffectivePermissions(context.Background(), surveyAsset(), 2)
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	want := []model.Codename{model.PermViewAsset, model.PermViewSubmissions}
	if !reflect.DeepEqual(codenames, want) {
		t.Errorf("permissions = %v, want %v", codenames, want)
	}
}

func TestHasPermission(t *testing.T) {
	store := newFakeAssignmentStore()
	store.seed(2, "bob", model.PermViewAsset)
	svc := newTestPermissionService(testUsers(), store)
	ctx := context.Background()
	asset := surveyAsset()

	if ok, err := svc.HasPermission(ctx, asset, 2, model.PermViewAsset); err != nil || !ok {
		t.Errorf("HasPermission(view_asset) = %v, %v", ok, err)
	}
	if ok, err := svc.HasPermission(ctx, asset, 2, model.PermChangeAsset); err != nil || ok {
		t.Errorf("HasPermission(change_asset) = %v, %v", ok, err)
	}
	// Owner holds everything implicitly.
	if ok, err := svc.HasPermission(ctx, asset, 1, model.PermManageAsset); err != nil || !ok {
		t.Errorf("owner HasPermission(manage_asset) = %v, %v", ok, err)
	}
}

func TestListAssignmentsAttachesPartials(t *testing.T) {
	store := newFakeAssignmentStore()
	store.seed(2, "bob", model.PermViewAsset)
	store.seed(3, "zoe", model.PermPartialSubmissions)
	store.partials[3] = model.FilterSet{
		model.PermViewSubmissions: {{"_submitted_by": "bob"}},
	}
	svc := newTestPermissionService(testUsers(), store)

	assignments, err := svc.ListAssignments(context.Background(), surveyAsset())
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("got %d assignments", len(assignments))
	}
	for _, a := range assignments {
		if a.Codename == model.PermPartialSubmissions && a.Partial == nil {
			t.Error("partial assignment missing its filter set")
		}
		if a.Codename != model.PermPartialSubmissions && a.Partial != nil {
			t.Errorf("%s assignment carries a filter set", a.Codename)
		}
	}
}
