package model

import "time"

// Assignment is one explicit permission grant: (user, codename) on an asset,
// optionally carrying a partial-permission FilterSet. Never held by the
// asset's owner.
type Assignment struct {
	ID        int
	UID       string
	AssetID   int
	UserID    int
	Username  string
	Codename  Codename
	Partial   FilterSet // non-nil only for the partial-submissions codename
	CreatedAt time.Time
}

// AssignmentPair is the (user, codename) projection used when diffing
// existing state against a desired set.
type AssignmentPair struct {
	UserID   int
	Codename Codename
}

// GrantDelta is one addition computed by reconciliation.
type GrantDelta struct {
	UserID   int
	Codename Codename
	Partial  FilterSet
}

// RevokeDelta is one removal computed by reconciliation.
type RevokeDelta struct {
	UserID   int
	Codename Codename
}

// NewAssignmentUID generates an assignment identifier: "p" + 32 hex chars.
func NewAssignmentUID() string {
	return "p" + newHexUID()
}
