package model

import (
	"sort"
	"strings"
)

// Codename identifies a grantable capability on an asset.
type Codename string

const (
	PermViewAsset           Codename = "view_asset"
	PermChangeAsset         Codename = "change_asset"
	PermManageAsset         Codename = "manage_asset"
	PermAddSubmissions      Codename = "add_submissions"
	PermViewSubmissions     Codename = "view_submissions"
	PermChangeSubmissions   Codename = "change_submissions"
	PermDeleteSubmissions   Codename = "delete_submissions"
	PermValidateSubmissions Codename = "validate_submissions"
	PermPartialSubmissions  Codename = "partial_submissions"
)

// submissionSuffix marks record-scoped codenames, i.e. the ones that act on
// individual submissions and are legal inside a partial permission's filters.
const submissionSuffix = "_submissions"

// IsRecordScoped reports whether the codename acts on individual submissions.
func (c Codename) IsRecordScoped() bool {
	return strings.HasSuffix(string(c), submissionSuffix)
}

// assignableByType is the strategy table of explicitly assignable codenames
// per asset type. Survey assets carry the full submission set; container
// types only expose asset-level permissions.
var assignableByType = map[AssetType][]Codename{
	AssetTypeSurvey: {
		PermViewAsset,
		PermChangeAsset,
		PermManageAsset,
		PermAddSubmissions,
		PermViewSubmissions,
		PermChangeSubmissions,
		PermDeleteSubmissions,
		PermValidateSubmissions,
	},
	AssetTypeCollection: {PermViewAsset, PermChangeAsset, PermManageAsset},
	AssetTypeBlock:      {PermViewAsset, PermChangeAsset, PermManageAsset},
	AssetTypeQuestion:   {PermViewAsset, PermChangeAsset, PermManageAsset},
	AssetTypeTemplate:   {PermViewAsset, PermChangeAsset, PermManageAsset},
}

// partialByType lists the partial-capable codenames per asset type, returned
// by the catalog only when the caller asks for them.
var partialByType = map[AssetType][]Codename{
	AssetTypeSurvey: {PermPartialSubmissions},
}

// impliedRules holds the direct implication edges. The catalog exposes the
// transitive closure.
var impliedRules = map[Codename][]Codename{
	PermChangeAsset:         {PermViewAsset},
	PermManageAsset:         {PermChangeAsset},
	PermAddSubmissions:      {PermViewAsset},
	PermViewSubmissions:     {PermViewAsset},
	PermChangeSubmissions:   {PermViewSubmissions, PermAddSubmissions},
	PermDeleteSubmissions:   {PermViewSubmissions},
	PermValidateSubmissions: {PermViewSubmissions},
	PermPartialSubmissions:  {PermViewAsset},
}

// permissionLabels maps codenames to display labels. The "form" placeholder
// is swapped per asset type when rendering.
var permissionLabels = map[Codename]string{
	PermViewAsset:           "View form",
	PermChangeAsset:         "Edit form",
	PermManageAsset:         "Manage form",
	PermAddSubmissions:      "Add submissions",
	PermViewSubmissions:     "View submissions",
	PermChangeSubmissions:   "Edit submissions",
	PermDeleteSubmissions:   "Delete submissions",
	PermValidateSubmissions: "Validate submissions",
	PermPartialSubmissions:  "Act on submissions only from specific users",
}

// Catalog resolves which codenames are assignable on an asset type, expands a
// codename into its implied codenames, and flags the filter-requiring partial
// codename. Injected into services so tests can substitute a fixed catalog.
type Catalog interface {
	// AssignablePermissions returns the codenames legal to assign on the
	// given asset type, sorted. Unknown types yield an empty set.
	AssignablePermissions(assetType AssetType, withPartial bool) []Codename

	// ImpliedPermissions returns the transitive closure of codenames that
	// must co-exist with the given one, sorted, excluding the codename
	// itself. Unknown codenames yield an empty set.
	ImpliedPermissions(codename Codename) []Codename

	// RequiresPartialFilters reports whether granting the codename demands
	// an accompanying, non-empty filter set.
	RequiresPartialFilters(codename Codename) bool

	// Label returns the display label for a codename, or the codename
	// itself when no label is registered.
	Label(codename Codename) string
}

// DefaultCatalog is the process-wide permission catalog backed by the
// constant strategy tables above.
type DefaultCatalog struct{}

// NewCatalog returns the default catalog.
func NewCatalog() Catalog {
	return DefaultCatalog{}
}

func (DefaultCatalog) AssignablePermissions(assetType AssetType, withPartial bool) []Codename {
	base := assignableByType[assetType]
	out := make([]Codename, 0, len(base)+1)
	out = append(out, base...)
	if withPartial {
		out = append(out, partialByType[assetType]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (DefaultCatalog) ImpliedPermissions(codename Codename) []Codename {
	seen := map[Codename]bool{}
	var walk func(c Codename)
	walk = func(c Codename) {
		for _, implied := range impliedRules[c] {
			if seen[implied] {
				continue
			}
			seen[implied] = true
			walk(implied)
		}
	}
	walk(codename)

	out := make([]Codename, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (DefaultCatalog) RequiresPartialFilters(codename Codename) bool {
	return codename == PermPartialSubmissions
}

func (DefaultCatalog) Label(codename Codename) string {
	if label, ok := permissionLabels[codename]; ok {
		return label
	}
	return string(codename)
}
