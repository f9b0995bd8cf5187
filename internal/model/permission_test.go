package model

import (
	"reflect"
	"testing"
)

func TestIsRecordScoped(t *testing.T) {
	tests := []struct {
		codename Codename
		want     bool
	}{
		{PermViewAsset, false},
		{PermChangeAsset, false},
		{PermManageAsset, false},
		{PermAddSubmissions, true},
		{PermViewSubmissions, true},
		{PermChangeSubmissions, true},
		{PermDeleteSubmissions, true},
		{PermValidateSubmissions, true},
		{PermPartialSubmissions, true},
	}
	for _, tt := range tests {
		if got := tt.codename.IsRecordScoped(); got != tt.want {
			t.Errorf("%s.IsRecordScoped() = %v, want %v", tt.codename, got, tt.want)
		}
	}
}

func TestAssignablePermissions(t *testing.T) {
	catalog := NewCatalog()

	tests := []struct {
		name        string
		assetType   AssetType
		withPartial bool
		want        []Codename
	}{
		{
			name:        "survey without partial",
			assetType:   AssetTypeSurvey,
			withPartial: false,
			want: []Codename{
				PermAddSubmissions,
				PermChangeAsset,
				PermChangeSubmissions,
				PermDeleteSubmissions,
				PermManageAsset,
				PermValidateSubmissions,
				PermViewAsset,
				PermViewSubmissions,
			},
		},
		{
			name:        "survey with partial",
			assetType:   AssetTypeSurvey,
			withPartial: true,
			want: []Codename{
				PermAddSubmissions,
				PermChangeAsset,
				PermChangeSubmissions,
				PermDeleteSubmissions,
				PermManageAsset,
				PermPartialSubmissions,
				PermValidateSubmissions,
				PermViewAsset,
				PermViewSubmissions,
			},
		},
		{
			name:        "collection has asset-level only",
			assetType:   AssetTypeCollection,
			withPartial: true,
			want:        []Codename{PermChangeAsset, PermManageAsset, PermViewAsset},
		},
		{
			name:        "template has asset-level only",
			assetType:   AssetTypeTemplate,
			withPartial: false,
			want:        []Codename{PermChangeAsset, PermManageAsset, PermViewAsset},
		},
		{
			name:        "unknown type yields empty set",
			assetType:   AssetType("widget"),
			withPartial: true,
			want:        []Codename{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.AssignablePermissions(tt.assetType, tt.withPartial)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AssignablePermissions(%s, %v) = %v, want %v", tt.assetType, tt.withPartial, got, tt.want)
			}
		})
	}
}

func TestImpliedPermissions(t *testing.T) {
	catalog := NewCatalog()

	tests := []struct {
		codename Codename
		want     []Codename
	}{
		{PermViewAsset, []Codename{}},
		{PermChangeAsset, []Codename{PermViewAsset}},
		// manage_asset implies change_asset, which transitively implies view_asset
		{PermManageAsset, []Codename{PermChangeAsset, PermViewAsset}},
		{PermViewSubmissions, []Codename{PermViewAsset}},
		{PermChangeSubmissions, []Codename{PermAddSubmissions, PermViewAsset, PermViewSubmissions}},
		{PermDeleteSubmissions, []Codename{PermViewAsset, PermViewSubmissions}},
		{PermValidateSubmissions, []Codename{PermViewAsset, PermViewSubmissions}},
		{PermPartialSubmissions, []Codename{PermViewAsset}},
		{Codename("nonexistent"), []Codename{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.codename), func(t *testing.T) {
			got := catalog.ImpliedPermissions(tt.codename)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ImpliedPermissions(%s) = %v, want %v", tt.codename, got, tt.want)
			}
		})
	}
}

func TestRequiresPartialFilters(t *testing.T) {
	catalog := NewCatalog()
	if !catalog.RequiresPartialFilters(PermPartialSubmissions) {
		t.Error("partial_submissions must require filters")
	}
	for _, c := range []Codename{PermViewAsset, PermViewSubmissions, PermManageAsset} {
		if catalog.RequiresPartialFilters(c) {
			t.Errorf("%s must not require filters", c)
		}
	}
}

func TestLabel(t *testing.T) {
	catalog := NewCatalog()
	if got := catalog.Label(PermViewAsset); got != "View form" {
		t.Errorf("Label(view_asset) = %q", got)
	}
	if got := catalog.Label(Codename("mystery_perm")); got != "mystery_perm" {
		t.Errorf("Label falls back to codename, got %q", got)
	}
}
