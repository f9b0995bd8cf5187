// Package resolver maps opaque references (absolute URLs or paths) back to
// stable identifiers, and builds the hyperlinks the API hands out. The wire
// contract references users and permissions by URL, not by bare identifier.
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind classifies what a reference points at.
type Kind string

const (
	KindUser       Kind = "user"
	KindPermission Kind = "permission"
)

// Reference is a resolved identifier.
type Reference struct {
	Kind Kind
	Key  string
}

// ErrUnresolvable is wrapped by Resolve for any reference that does not match
// a known URL shape.
var ErrUnresolvable = errors.New("reference does not resolve")

// Resolve maps a reference like "https://host/api/v2/users/alice/" or
// "/api/v2/permissions/view_asset/" to its kind and key. Host and scheme are
// ignored; only the path matters.
func Resolve(reference string) (Reference, error) {
	if reference == "" {
		return Reference{}, fmt.Errorf("%w: empty reference", ErrUnresolvable)
	}

	parsed, err := url.Parse(reference)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnresolvable, reference)
	}

	segments := splitPath(parsed.Path)
	// Expected: api / v2 / <collection> / <key>
	if len(segments) != 4 || segments[0] != "api" || segments[1] != "v2" {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnresolvable, reference)
	}

	key := segments[3]
	if key == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnresolvable, reference)
	}

	switch segments[2] {
	case "users":
		return Reference{Kind: KindUser, Key: key}, nil
	case "permissions":
		return Reference{Kind: KindPermission, Key: key}, nil
	}
	return Reference{}, fmt.Errorf("%w: %q", ErrUnresolvable, reference)
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

// UserPath returns the canonical path for a username.
func UserPath(username string) string {
	return fmt.Sprintf("/api/v2/users/%s/", username)
}

// PermissionPath returns the canonical path for a permission codename.
func PermissionPath(codename string) string {
	return fmt.Sprintf("/api/v2/permissions/%s/", codename)
}

// AssignmentPath returns the canonical path for a permission assignment on an
// asset.
func AssignmentPath(assetUID, assignmentUID string) string {
	return fmt.Sprintf("/api/v2/assets/%s/permission-assignments/%s/", assetUID, assignmentUID)
}

// AssetPath returns the canonical path for an asset.
func AssetPath(assetUID string) string {
	return fmt.Sprintf("/api/v2/assets/%s/", assetUID)
}
