package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// AssetRepository handles asset data access.
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// GetByUID retrieves an asset (with its owner's username) by uid.
func (r *AssetRepository) GetByUID(ctx context.Context, uid string) (*model.Asset, error) {
	a := &model.Asset{}
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.uid, a.name, a.asset_type, a.owner_id, u.username, a.content, a.created_at
		 FROM assets a
		 JOIN users u ON u.id = a.owner_id
		 WHERE a.uid = $1`, uid,
	).Scan(&a.ID, &a.UID, &a.Name, &a.AssetType, &a.OwnerID, &a.OwnerUsername, &a.Content, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListVisible retrieves assets the user owns or holds any explicit
// permission on, newest first.
func (r *AssetRepository) ListVisible(ctx context.Context, userID int) ([]model.Asset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT a.id, a.uid, a.name, a.asset_type, a.owner_id, u.username, a.content, a.created_at
		 FROM assets a
		 JOIN users u ON u.id = a.owner_id
		 LEFT JOIN asset_permissions ap ON ap.asset_id = a.id AND ap.user_id = $1
		 WHERE a.owner_id = $1 OR ap.id IS NOT NULL
		 ORDER BY a.created_at DESC, a.id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.UID, &a.Name, &a.AssetType, &a.OwnerID, &a.OwnerUsername, &a.Content, &a.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Create inserts a new asset owned by ownerID and returns it.
func (r *AssetRepository) Create(ctx context.Context, name string, assetType model.AssetType, ownerID int, content json.RawMessage) (*model.Asset, error) {
	if content == nil {
		content = json.RawMessage(`{}`)
	}
	uid := model.NewAssetUID()
	var id int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO assets (uid, name, asset_type, owner_id, content)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		uid, name, assetType, ownerID, content,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByUID(ctx, uid)
}
