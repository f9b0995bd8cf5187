package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// ErrInvalidAssetType rejects unknown asset types on creation.
var ErrInvalidAssetType = errors.New("invalid asset type")

// AssetStore persists assets.
type AssetStore interface {
	GetByUID(ctx context.Context, uid string) (*model.Asset, error)
	ListVisible(ctx context.Context, userID int) ([]model.Asset, error)
	Create(ctx context.Context, name string, assetType model.AssetType, ownerID int, content json.RawMessage) (*model.Asset, error)
}

// AssetService handles asset lookup and creation.
type AssetService struct {
	assets AssetStore
	log    zerolog.Logger
}

// NewAssetService creates a new AssetService.
func NewAssetService(assets AssetStore, log zerolog.Logger) *AssetService {
	return &AssetService{assets: assets, log: log}
}

// GetByUID retrieves one asset.
func (s *AssetService) GetByUID(ctx context.Context, uid string) (*model.Asset, error) {
	return s.assets.GetByUID(ctx, uid)
}

// ListVisible retrieves the assets the user owns or holds permissions on.
func (s *AssetService) ListVisible(ctx context.Context, userID int) ([]model.Asset, error) {
	return s.assets.ListVisible(ctx, userID)
}

// Create validates the asset type and persists a new asset.
func (s *AssetService) Create(ctx context.Context, name string, assetType model.AssetType, ownerID int, content json.RawMessage) (*model.Asset, error) {
	if !model.ValidAssetType(assetType) {
		return nil, ErrInvalidAssetType
	}
	asset, err := s.assets.Create(ctx, name, assetType, ownerID, content)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("asset", asset.UID).Str("type", string(assetType)).Msg("asset created")
	return asset, nil
}
