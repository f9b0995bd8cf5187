package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JacquelineMorrissette/kpi/internal/middleware"
	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/response"
	"github.com/JacquelineMorrissette/kpi/internal/service"
	"github.com/JacquelineMorrissette/kpi/internal/validator"
)

// SubmissionHandler serves submitted-record routes, gated by full or partial
// submission permissions.
type SubmissionHandler struct {
	submissions *service.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissions *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// ListSubmissions returns the submissions the user may view. Partial
// permission holders only see records matching their filters.
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	asset := middleware.GetAsset(c)
	claims := middleware.GetClaims(c)

	user := &model.User{ID: claims.UserID, Username: claims.Username}
	submissions, err := h.submissions.List(c.Request.Context(), asset, user)
	if err != nil {
		failServiceError(c, err)
		return
	}
	if submissions == nil {
		submissions = []model.Submission{}
	}
	response.Success(c, http.StatusOK, submissions)
}

// GetSubmission returns one record, if the user's full or partial view
// permission covers it.
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	asset := middleware.GetAsset(c)
	claims := middleware.GetClaims(c)

	user := &model.User{ID: claims.UserID, Username: claims.Username}
	sub, err := h.submissions.Get(c.Request.Context(), asset, user, c.Param("submission_uid"))
	if err != nil {
		failServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// DeleteSubmission removes one record, if the user's full or partial delete
// permission covers it.
func (h *SubmissionHandler) DeleteSubmission(c *gin.Context) {
	asset := middleware.GetAsset(c)
	claims := middleware.GetClaims(c)

	user := &model.User{ID: claims.UserID, Username: claims.Username}
	if err := h.submissions.Delete(c.Request.Context(), asset, user, c.Param("submission_uid")); err != nil {
		failServiceError(c, err)
		return
	}
	response.NoContent(c)
}

// SetValidationStatusRequest carries the new validation state. An empty
// string clears it.
type SetValidationStatusRequest struct {
	ValidationStatus string `json:"validation_status"`
}

// SetValidationStatus updates a record's validation status, if the user's
// full or partial validate permission covers it.
func (h *SubmissionHandler) SetValidationStatus(c *gin.Context) {
	asset := middleware.GetAsset(c)
	claims := middleware.GetClaims(c)

	var req SetValidationStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user := &model.User{ID: claims.UserID, Username: claims.Username}
	sub, err := h.submissions.SetValidationStatus(c.Request.Context(), asset, user, c.Param("submission_uid"), req.ValidationStatus)
	if err != nil {
		if errors.Is(err, service.ErrInvalidValidationStatus) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"validation_status": err.Error(),
			})
			return
		}
		failServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// CreateSubmissionRequest is the submission payload.
type CreateSubmissionRequest struct {
	Content map[string]any `json:"content" binding:"required"`
}

// CreateSubmission stores one record on the asset.
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	asset := middleware.GetAsset(c)
	claims := middleware.GetClaims(c)

	var req CreateSubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user := &model.User{ID: claims.UserID, Username: claims.Username}
	created, err := h.submissions.Create(c.Request.Context(), asset, user, req.Content)
	if err != nil {
		failServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}
