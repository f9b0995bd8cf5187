package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JacquelineMorrissette/kpi/internal/middleware"
	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/resolver"
	"github.com/JacquelineMorrissette/kpi/internal/response"
	"github.com/JacquelineMorrissette/kpi/internal/service"
	"github.com/JacquelineMorrissette/kpi/internal/validator"
)

// PermissionHandler serves the permission catalog and per-asset permission
// assignment routes.
type PermissionHandler struct {
	perms *service.PermissionService
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(perms *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{perms: perms}
}

// ListCatalog returns every known permission codename with its URL and
// default label.
func (h *PermissionHandler) ListCatalog(c *gin.Context) {
	catalog := h.perms.Catalog()

	type permissionView struct {
		URL      string         `json:"url"`
		Codename model.Codename `json:"codename"`
		Implied  []string       `json:"implied"`
		Label    string         `json:"label"`
	}

	// The survey set with partials is the superset of every asset type.
	codenames := catalog.AssignablePermissions(model.AssetTypeSurvey, true)
	views := make([]permissionView, 0, len(codenames))
	for _, codename := range codenames {
		implied := catalog.ImpliedPermissions(codename)
		impliedURLs := make([]string, 0, len(implied))
		for _, ic := range implied {
			impliedURLs = append(impliedURLs, resolver.PermissionPath(string(ic)))
		}
		views = append(views, permissionView{
			URL:      resolver.PermissionPath(string(codename)),
			Codename: codename,
			Implied:  impliedURLs,
			Label:    catalog.Label(codename),
		})
	}
	response.Success(c, http.StatusOK, views)
}

// ListAssignments returns the asset's explicit permission assignments.
func (h *PermissionHandler) ListAssignments(c *gin.Context) {
	asset := middleware.GetAsset(c)

	assignments, err := h.perms.ListAssignments(c.Request.Context(), asset)
	if err != nil {
		failServiceError(c, err)
		return
	}

	views := make([]AssignmentView, 0, len(assignments))
	for i := range assignments {
		views = append(views, newAssignmentView(h.perms.Catalog(), asset, &assignments[i]))
	}
	response.Success(c, http.StatusOK, views)
}

// CreateAssignment validates and applies one permission assignment,
// returning its external view.
func (h *PermissionHandler) CreateAssignment(c *gin.Context) {
	asset := middleware.GetAsset(c)

	var req service.AssignmentInput
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	created, err := h.perms.AssignPermission(c.Request.Context(), asset, req)
	if err != nil {
		failServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newAssignmentView(h.perms.Catalog(), asset, created))
}

// GetAssignment returns one assignment's external view.
func (h *PermissionHandler) GetAssignment(c *gin.Context) {
	asset := middleware.GetAsset(c)

	assignment, err := h.perms.GetAssignment(c.Request.Context(), asset, c.Param("assignment_uid"))
	if err != nil {
		failServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, newAssignmentView(h.perms.Catalog(), asset, assignment))
}

// DeleteAssignment revokes one assignment.
func (h *PermissionHandler) DeleteAssignment(c *gin.Context) {
	asset := middleware.GetAsset(c)

	if err := h.perms.RemoveAssignment(c.Request.Context(), asset, c.Param("assignment_uid")); err != nil {
		failServiceError(c, err)
		return
	}
	response.NoContent(c)
}

// BulkAssignRequest is the bulk reconciliation payload.
type BulkAssignRequest struct {
	Assignments []service.AssignmentInput `json:"assignments" binding:"required"`
}

// BulkAssign reconciles the asset's assignment set against the request.
// Success returns no body; callers re-query the assignment list to observe
// the effect.
func (h *PermissionHandler) BulkAssign(c *gin.Context) {
	asset := middleware.GetAsset(c)
	claims := middleware.GetClaims(c)

	var req BulkAssignRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	viewer := &model.User{ID: claims.UserID, Username: claims.Username}
	if err := h.perms.Reconcile(c.Request.Context(), asset, viewer, req.Assignments); err != nil {
		failServiceError(c, err)
		return
	}
	response.NoContent(c)
}
