package model

import (
	"encoding/json"
	"time"
)

// FieldSubmittedBy is the record field partial-permission filters most
// commonly constrain; set automatically on submission creation.
const FieldSubmittedBy = "_submitted_by"

// Submission is one submitted data record belonging to a survey asset.
type Submission struct {
	ID               int             `json:"_id"`
	UID              string          `json:"_uuid"`
	AssetID          int             `json:"-"`
	SubmittedBy      string          `json:"_submitted_by"`
	ValidationStatus string          `json:"_validation_status,omitempty"`
	Content          json.RawMessage `json:"content"`
	CreatedAt        time.Time       `json:"_submission_time"`
}

// NewSubmissionUID generates a submission identifier.
func NewSubmissionUID() string {
	return newHexUID()
}
