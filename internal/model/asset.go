package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetType distinguishes the kinds of shareable objects.
type AssetType string

const (
	AssetTypeSurvey     AssetType = "survey"
	AssetTypeCollection AssetType = "collection"
	AssetTypeBlock      AssetType = "block"
	AssetTypeQuestion   AssetType = "question"
	AssetTypeTemplate   AssetType = "template"
)

// ValidAssetType reports whether t names a known asset type.
func ValidAssetType(t AssetType) bool {
	_, ok := assignableByType[t]
	return ok
}

// Asset is the shareable object permissions are assigned on. The owner never
// holds explicit assignment rows; ownership implies all permissions.
type Asset struct {
	ID            int             `json:"-"`
	UID           string          `json:"uid"`
	Name          string          `json:"name"`
	AssetType     AssetType       `json:"asset_type"`
	OwnerID       int             `json:"-"`
	OwnerUsername string          `json:"owner__username"`
	Content       json.RawMessage `json:"content,omitempty"`
	CreatedAt     time.Time       `json:"date_created"`
}

// LabelForPermission renders the catalog label for a codename in terms of
// this asset's type ("form" for surveys, the type name otherwise).
func (a *Asset) LabelForPermission(catalog Catalog, codename Codename) string {
	label := catalog.Label(codename)
	if a.AssetType != AssetTypeSurvey {
		label = strings.ReplaceAll(label, "form", string(a.AssetType))
	}
	return label
}

// NewAssetUID generates an asset identifier: "a" + 32 hex chars.
func NewAssetUID() string {
	return "a" + newHexUID()
}

func newHexUID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}
