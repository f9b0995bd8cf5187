package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

type fakeAssetStore struct {
	assets []model.Asset
}

func (f *fakeAssetStore) GetByUID(_ context.Context, uid string) (*model.Asset, error) {
	for _, a := range f.assets {
		if a.UID == uid {
			v := a
			return &v, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeAssetStore) ListVisible(_ context.Context, userID int) ([]model.Asset, error) {
	var out []model.Asset
	for _, a := range f.assets {
		if a.OwnerID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssetStore) Create(_ context.Context, name string, assetType model.AssetType, ownerID int, content json.RawMessage) (*model.Asset, error) {
	a := model.Asset{
		ID:        len(f.assets) + 1,
		UID:       model.NewAssetUID(),
		Name:      name,
		AssetType: assetType,
		OwnerID:   ownerID,
		Content:   content,
	}
	f.assets = append(f.assets, a)
	return &a, nil
}

func TestAssetCreateValidatesType(t *testing.T) {
	svc := NewAssetService(&fakeAssetStore{}, zerolog.Nop())
	ctx := context.Background()

	asset, err := svc.Create(ctx, "Household survey", model.AssetTypeSurvey, 1, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if asset.UID == "" || asset.UID[0] != 'a' {
		t.Errorf("asset uid = %q", asset.UID)
	}

	_, err = svc.Create(ctx, "Bad", model.AssetType("widget"), 1, nil)
	if !errors.Is(err, ErrInvalidAssetType) {
		t.Errorf("error = %v, want ErrInvalidAssetType", err)
	}
}
