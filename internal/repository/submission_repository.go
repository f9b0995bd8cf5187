package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JacquelineMorrissette/kpi/internal/model"
)

// SubmissionRepository handles submitted data records. It is the query
// executor that partial-permission filter predicates ultimately run against:
// predicates become jsonb containment checks, OR'ed together.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const submissionColumns = `id, uid, asset_id, submitted_by, validation_status, content, created_at`

// ListForAsset retrieves all submissions of an asset, oldest first.
func (r *SubmissionRepository) ListForAsset(ctx context.Context, assetID int) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE asset_id = $1 ORDER BY id`,
		assetID,
	)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// ListFiltered retrieves the submissions of an asset matching at least one of
// the given predicates. An empty predicate list matches nothing.
func (r *SubmissionRepository) ListFiltered(ctx context.Context, assetID int, predicates []model.FilterPredicate) ([]model.Submission, error) {
	if len(predicates) == 0 {
		return nil, nil
	}

	encoded := make([][]byte, 0, len(predicates))
	for _, p := range predicates {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, data)
	}

	// content @> ANY(...) matches a record against any one predicate.
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE asset_id = $1 AND content @> ANY($2::jsonb[])
		 ORDER BY id`,
		assetID, encoded,
	)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// GetByUID retrieves one submission of an asset.
func (r *SubmissionRepository) GetByUID(ctx context.Context, assetID int, uid string) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE asset_id = $1 AND uid = $2`,
		assetID, uid,
	).Scan(&s.ID, &s.UID, &s.AssetID, &s.SubmittedBy, &s.ValidationStatus, &s.Content, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a submission record. The content must already carry the
// submitter metadata fields.
func (r *SubmissionRepository) Create(ctx context.Context, assetID int, submittedBy string, content json.RawMessage) (*model.Submission, error) {
	uid := model.NewSubmissionUID()
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (uid, asset_id, submitted_by, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+submissionColumns,
		uid, assetID, submittedBy, content,
	).Scan(&s.ID, &s.UID, &s.AssetID, &s.SubmittedBy, &s.ValidationStatus, &s.Content, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes one submission of an asset.
func (r *SubmissionRepository) Delete(ctx context.Context, assetID int, uid string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM submissions WHERE asset_id = $1 AND uid = $2`,
		assetID, uid,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetValidationStatus updates a submission's validation status and returns
// the updated record.
func (r *SubmissionRepository) SetValidationStatus(ctx context.Context, assetID int, uid, status string) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`UPDATE submissions SET validation_status = $3
		 WHERE asset_id = $1 AND uid = $2
		 RETURNING `+submissionColumns,
		assetID, uid, status,
	).Scan(&s.ID, &s.UID, &s.AssetID, &s.SubmittedBy, &s.ValidationStatus, &s.Content, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collectSubmissions(rows pgx.Rows) ([]model.Submission, error) {
	defer rows.Close()
	var submissions []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UID, &s.AssetID, &s.SubmittedBy, &s.ValidationStatus, &s.Content, &s.CreatedAt); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}
