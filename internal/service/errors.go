package service

import (
	"errors"
	"fmt"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// Sentinel errors shared across services.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token has been revoked")

	// ErrOwnerAssignment rejects any attempt to grant the asset owner an
	// explicit permission. Ownership implies all permissions implicitly.
	ErrOwnerAssignment = errors.New("owner's permissions cannot be assigned explicitly")

	// ErrPermissionDenied reports that the acting user lacks the required
	// permission on the asset.
	ErrPermissionDenied = errors.New("permission denied")
)

// ReferenceError reports a reference (URL) that does not resolve to an
// existing user or permission. Field names the offending request field.
type ReferenceError struct {
	Field     string
	Reference string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("invalid %s reference: %q", e.Field, e.Reference)
}

// NotAssignableError reports a codename that is not legal to assign on the
// asset's type.
type NotAssignableError struct {
	Codename model.Codename
}

func (e *NotAssignableError) Error() string {
	return fmt.Sprintf("%s cannot be assigned explicitly to objects of this type", e.Codename)
}

// PartialPermissionsError reports a missing or malformed partial-permissions
// payload. Reason identifies which check failed.
type PartialPermissionsError struct {
	Reason string
}

func (e *PartialPermissionsError) Error() string {
	return "invalid partial permissions: " + e.Reason
}

// BulkAssignmentError wraps the first validation failure in a bulk request.
// The whole batch is rejected before any mutation.
type BulkAssignmentError struct {
	Index int
	Err   error
}

func (e *BulkAssignmentError) Error() string {
	return fmt.Sprintf("assignment %d: %v", e.Index, e.Err)
}

func (e *BulkAssignmentError) Unwrap() error {
	return e.Err
}
