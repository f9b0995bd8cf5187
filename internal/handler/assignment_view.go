package handler

import (
	"sort"

	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/resolver"
)

// AssignmentView is the external representation of one permission assignment.
// PartialPermissions is omitted entirely, not null, when not applicable.
type AssignmentView struct {
	URL                string                  `json:"url"`
	User               string                  `json:"user"`
	Permission         string                  `json:"permission"`
	Label              string                  `json:"label"`
	PartialPermissions []PartialPermissionView `json:"partial_permissions,omitempty"`
}

// PartialPermissionView is one rendered (permission, filters) pair of a
// partial assignment.
type PartialPermissionView struct {
	URL     string                  `json:"url"`
	Filters []model.FilterPredicate `json:"filters"`
}

// newAssignmentView renders an assignment. The asset comes from the request
// context, so the label never costs an extra lookup; absent an asset the
// label falls back to the catalog default.
func newAssignmentView(catalog model.Catalog, asset *model.Asset, a *model.Assignment) AssignmentView {
	label := catalog.Label(a.Codename)
	assetUID := ""
	if asset != nil {
		label = asset.LabelForPermission(catalog, a.Codename)
		assetUID = asset.UID
	}

	view := AssignmentView{
		URL:        resolver.AssignmentPath(assetUID, a.UID),
		User:       resolver.UserPath(a.Username),
		Permission: resolver.PermissionPath(string(a.Codename)),
		Label:      label,
	}

	if a.Codename == model.PermPartialSubmissions && len(a.Partial) > 0 {
		codenames := make([]model.Codename, 0, len(a.Partial))
		for codename := range a.Partial {
			codenames = append(codenames, codename)
		}
		sort.Slice(codenames, func(i, j int) bool { return codenames[i] < codenames[j] })

		for _, codename := range codenames {
			view.PartialPermissions = append(view.PartialPermissions, PartialPermissionView{
				URL:     resolver.PermissionPath(string(codename)),
				Filters: a.Partial[codename],
			})
		}
	}
	return view
}
