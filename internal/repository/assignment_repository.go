package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so single-row grant
// and revoke operations can run standalone or inside a reconciliation
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AssignmentRepository handles permission assignment rows and their partial
// filter sets.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

const assignmentColumns = `ap.id, ap.uid, ap.asset_id, ap.user_id, u.username, ap.codename, ap.created_at`

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := row.Scan(&a.ID, &a.UID, &a.AssetID, &a.UserID, &a.Username, &a.Codename, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListForAsset retrieves all assignment rows on an asset, ordered by
// username then codename.
func (r *AssignmentRepository) ListForAsset(ctx context.Context, assetID int) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+`
		 FROM asset_permissions ap
		 JOIN users u ON u.id = ap.user_id
		 WHERE ap.asset_id = $1
		 ORDER BY u.username, ap.codename`, assetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a := model.Assignment{}
		if err := rows.Scan(&a.ID, &a.UID, &a.AssetID, &a.UserID, &a.Username, &a.Codename, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetByUID retrieves one assignment row on an asset.
func (r *AssignmentRepository) GetByUID(ctx context.Context, assetID int, uid string) (*model.Assignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+`
		 FROM asset_permissions ap
		 JOIN users u ON u.id = ap.user_id
		 WHERE ap.asset_id = $1 AND ap.uid = $2`, assetID, uid,
	))
}

// Pairs retrieves every (user_id, codename) assignment pair on an asset in a
// single query, excluding the given user (the asset owner, whose implicit
// access is never stored as rows). The viewer argument is accepted for
// interface parity; every caller that may mutate assignments may also see
// all of them.
func (r *AssignmentRepository) Pairs(ctx context.Context, assetID, excludeUserID, viewerID int) ([]model.AssignmentPair, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, codename FROM asset_permissions
		 WHERE asset_id = $1 AND user_id <> $2`, assetID, excludeUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.AssignmentPair
	for rows.Next() {
		var p model.AssignmentPair
		if err := rows.Scan(&p.UserID, &p.Codename); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// PartialFilterSets retrieves, with a single query, the stored partial
// filter set of every user holding one on the asset.
func (r *AssignmentRepository) PartialFilterSets(ctx context.Context, assetID int) (map[int]model.FilterSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, permissions FROM asset_partial_permissions WHERE asset_id = $1`,
		assetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]model.FilterSet)
	for rows.Next() {
		var userID int
		var raw []byte
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, err
		}
		fs, err := model.ParseFilterSet(raw)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", userID, err)
		}
		out[userID] = fs
	}
	return out, rows.Err()
}

// PartialFilterSet retrieves one user's stored partial filter set on an
// asset, or nil when none exists.
func (r *AssignmentRepository) PartialFilterSet(ctx context.Context, assetID, userID int) (model.FilterSet, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT permissions FROM asset_partial_permissions WHERE asset_id = $1 AND user_id = $2`,
		assetID, userID,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ParseFilterSet(raw)
}

// Codenames retrieves the codenames explicitly assigned to one user on an
// asset.
func (r *AssignmentRepository) Codenames(ctx context.Context, assetID, userID int) ([]model.Codename, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT codename FROM asset_permissions
		 WHERE asset_id = $1 AND user_id = $2
		 ORDER BY codename`, assetID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codenames []model.Codename
	for rows.Next() {
		var c model.Codename
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codenames = append(codenames, c)
	}
	return codenames, rows.Err()
}

// Grant upserts one assignment row, storing the filter set alongside when the
// codename carries one, and returns the row.
func (r *AssignmentRepository) Grant(ctx context.Context, assetID, userID int, codename model.Codename, partial model.FilterSet) (*model.Assignment, error) {
	a, err := grant(ctx, r.pool, assetID, userID, codename, partial)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Revoke deletes one assignment row by user and codename. Revoking the
// partial-submissions codename also drops the stored filter set.
func (r *AssignmentRepository) Revoke(ctx context.Context, assetID, userID int, codename model.Codename) error {
	return revoke(ctx, r.pool, assetID, userID, codename)
}

// ApplyDelta executes a reconciliation delta — removals first, then
// additions — inside a single transaction, so a mid-apply failure leaves the
// previous state intact.
func (r *AssignmentRepository) ApplyDelta(ctx context.Context, assetID int, removals []model.RevokeDelta, additions []model.GrantDelta) error {
	if len(removals) == 0 && len(additions) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rm := range removals {
		if err := revoke(ctx, tx, assetID, rm.UserID, rm.Codename); err != nil {
			return fmt.Errorf("revoke %s from user %d: %w", rm.Codename, rm.UserID, err)
		}
	}
	for _, add := range additions {
		if _, err := grant(ctx, tx, assetID, add.UserID, add.Codename, add.Partial); err != nil {
			return fmt.Errorf("grant %s to user %d: %w", add.Codename, add.UserID, err)
		}
	}

	return tx.Commit(ctx)
}

func grant(ctx context.Context, q querier, assetID, userID int, codename model.Codename, partial model.FilterSet) (*model.Assignment, error) {
	uid := model.NewAssignmentUID()
	_, err := q.Exec(ctx,
		`INSERT INTO asset_permissions (uid, asset_id, user_id, codename)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (asset_id, user_id, codename) DO NOTHING`,
		uid, assetID, userID, codename,
	)
	if err != nil {
		return nil, err
	}

	if codename == model.PermPartialSubmissions {
		serialized, err := partial.Serialize()
		if err != nil {
			return nil, err
		}
		_, err = q.Exec(ctx,
			`INSERT INTO asset_partial_permissions (asset_id, user_id, permissions)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (asset_id, user_id) DO UPDATE SET permissions = EXCLUDED.permissions`,
			assetID, userID, []byte(serialized),
		)
		if err != nil {
			return nil, err
		}
	}

	a, err := scanAssignment(q.QueryRow(ctx,
		`SELECT `+assignmentColumns+`
		 FROM asset_permissions ap
		 JOIN users u ON u.id = ap.user_id
		 WHERE ap.asset_id = $1 AND ap.user_id = $2 AND ap.codename = $3`,
		assetID, userID, codename,
	))
	if err != nil {
		return nil, err
	}
	if codename == model.PermPartialSubmissions {
		a.Partial = partial
	}
	return a, nil
}

func revoke(ctx context.Context, q querier, assetID, userID int, codename model.Codename) error {
	if _, err := q.Exec(ctx,
		`DELETE FROM asset_permissions WHERE asset_id = $1 AND user_id = $2 AND codename = $3`,
		assetID, userID, codename,
	); err != nil {
		return err
	}

	if codename == model.PermPartialSubmissions {
		if _, err := q.Exec(ctx,
			`DELETE FROM asset_partial_permissions WHERE asset_id = $1 AND user_id = $2`,
			assetID, userID,
		); err != nil {
			return err
		}
	}
	return nil
}
