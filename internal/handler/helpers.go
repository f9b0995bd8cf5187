package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/JacquelineMorrissette/kpi/internal/response"
	"github.com/JacquelineMorrissette/kpi/internal/service"
)

// failServiceError translates service-layer errors into the response
// envelope. Validation errors carry field-level detail; unknown errors
// surface as 500.
func failServiceError(c *gin.Context, err error) {
	var refErr *service.ReferenceError
	if errors.As(err, &refErr) {
		fields := map[string]string{refErr.Field: "Invalid reference: " + refErr.Reference}
		code := response.ErrInvalidReference
		if bulkField(err) != "" {
			fields = map[string]string{bulkField(err): refErr.Error()}
			code = response.ErrInvalidBulkAssignment
		}
		response.FailWithFields(c, http.StatusBadRequest, code, fields)
		return
	}

	var naErr *service.NotAssignableError
	if errors.As(err, &naErr) {
		code := response.ErrPermissionNotAssignable
		fields := map[string]string{"permission": naErr.Error()}
		if field := bulkField(err); field != "" {
			code = response.ErrInvalidBulkAssignment
			fields = map[string]string{field: naErr.Error()}
		}
		response.FailWithFields(c, http.StatusBadRequest, code, fields)
		return
	}

	var ppErr *service.PartialPermissionsError
	if errors.As(err, &ppErr) {
		code := response.ErrInvalidPartialPermissions
		fields := map[string]string{"partial_permissions": ppErr.Reason}
		if field := bulkField(err); field != "" {
			code = response.ErrInvalidBulkAssignment
			fields = map[string]string{field: ppErr.Error()}
		}
		response.FailWithFields(c, http.StatusBadRequest, code, fields)
		return
	}

	switch {
	case errors.Is(err, service.ErrOwnerAssignment):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrOwnerAssignmentForbidden,
			map[string]string{"user": "Owner's permissions cannot be assigned explicitly"})
	case errors.Is(err, service.ErrPermissionDenied):
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// bulkField names the offending entry of a bulk request, or "" when the
// error did not come from one.
func bulkField(err error) string {
	var bulkErr *service.BulkAssignmentError
	if errors.As(err, &bulkErr) {
		return "assignments[" + strconv.Itoa(bulkErr.Index) + "]"
	}
	return ""
}
