package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/response"
	"github.com/JacquelineMorrissette/kpi/internal/service"
)

const (
	// ContextKeyAsset is the Gin context key for the resolved asset.
	ContextKeyAsset = "asset"
)

// LoadAsset resolves the :uid route parameter into an asset and stores it in
// the context for handlers downstream.
func LoadAsset(assets *service.AssetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		asset, err := assets.GetByUID(c.Request.Context(), c.Param("uid"))
		if err != nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		c.Set(ContextKeyAsset, asset)
		c.Next()
	}
}

// GetAsset retrieves the resolved asset from the Gin context.
func GetAsset(c *gin.Context) *model.Asset {
	val, exists := c.Get(ContextKeyAsset)
	if !exists {
		return nil
	}
	asset, ok := val.(*model.Asset)
	if !ok {
		return nil
	}
	return asset
}

// RequireAssetPermission checks that the authenticated user effectively
// holds at least one of the given codenames on the context asset. The owner
// always passes.
func RequireAssetPermission(perms *service.PermissionService, codenames ...model.Codename) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		asset := GetAsset(c)
		if asset == nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}

		for _, codename := range codenames {
			ok, err := perms.HasPermission(c.Request.Context(), asset, claims.UserID, codename)
			if err != nil {
				response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
				return
			}
			if ok {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}
