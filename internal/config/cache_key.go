package config

import "fmt"

// CacheKeyStruct centralizes Redis key construction so services and workers
// never disagree on key formats.
type CacheKeyStruct struct{}

// CacheKey is the shared key builder.
var CacheKey = CacheKeyStruct{}

// EffectivePermsKey caches the effective codename list for a user on an
// asset. Invalidated on any grant, revoke, or reconcile touching the pair.
func (CacheKeyStruct) EffectivePermsKey(assetID, userID int) string {
	return fmt.Sprintf("perms:asset:%d:user:%d", assetID, userID)
}

// RevokedTokenKey marks a JWT (by jti) as logged out until it expires.
func (CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}
