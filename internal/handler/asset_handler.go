package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JacquelineMorrissette/kpi/internal/middleware"
	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/response"
	"github.com/JacquelineMorrissette/kpi/internal/service"
	"github.com/JacquelineMorrissette/kpi/internal/validator"
)

// AssetHandler serves asset listing, creation and detail routes.
type AssetHandler struct {
	assets *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assets *service.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// ListAssets returns assets the user owns or holds permissions on.
func (h *AssetHandler) ListAssets(c *gin.Context) {
	claims := middleware.GetClaims(c)
	assets, err := h.assets.ListVisible(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, assets)
}

// CreateAssetRequest is the asset creation payload.
type CreateAssetRequest struct {
	Name      string          `json:"name" binding:"required"`
	AssetType model.AssetType `json:"asset_type" binding:"required"`
	Content   json.RawMessage `json:"content"`
}

// CreateAsset creates an asset owned by the authenticated user.
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req CreateAssetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	asset, err := h.assets.Create(c.Request.Context(), req.Name, req.AssetType, claims.UserID, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAssetType) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"asset_type": "Unknown asset type"})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, asset)
}

// GetAsset returns the context asset. The permission check happened in
// middleware.
func (h *AssetHandler) GetAsset(c *gin.Context) {
	response.Success(c, http.StatusOK, middleware.GetAsset(c))
}
