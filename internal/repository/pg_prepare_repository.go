package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/truecontent/content-review-service/internal/domain"
)

// Compile-time interface verification.
var _ PrepareRepository = (*PgPrepareRepository)(nil)

// PgPrepareRepository persists dedup survivors to the content_prepare table.
type PgPrepareRepository struct {
	db DBTX
}

// NewPgPrepareRepository creates a new prepared-records repository.
func NewPgPrepareRepository(db DBTX) *PgPrepareRepository {
	return &PgPrepareRepository{db: db}
}

// WorkflowProcessed reports whether the workflow already has prepared rows.
func (r *PgPrepareRepository) WorkflowProcessed(ctx context.Context, workflowID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM content_prepare WHERE workflow_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, workflowID).Scan(&exists); err != nil {
		return false, domain.NewPersistError("content_prepare", "workflow processed check", err)
	}

	return exists, nil
}

// UpsertSurvivors writes survivor rows idempotently via a single batch.
// ON CONFLICT keeps the row and refreshes notes, so re-running a workflow
// never duplicates survivors.
func (r *PgPrepareRepository) UpsertSurvivors(ctx context.Context, records []domain.PreparedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO content_prepare (workflow_id, link_id, similarity_notes, processed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (workflow_id, link_id)
		DO UPDATE SET similarity_notes = EXCLUDED.similarity_notes`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.WorkflowID, rec.LinkID, nullString(rec.SimilarityNotes))
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return written, domain.NewPersistError("content_prepare", "upsert survivors", err)
		}
		written += tag.RowsAffected()
	}

	return written, nil
}

// LinkIDs returns the survivor link_ids for a workflow, ordered by link_id.
func (r *PgPrepareRepository) LinkIDs(ctx context.Context, workflowID string) ([]string, error) {
	query := `
		SELECT link_id
		FROM content_prepare
		WHERE workflow_id = $1
		ORDER BY link_id`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, domain.NewPersistError("content_prepare", "link ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.NewPersistError("content_prepare", "scan link id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistError("content_prepare", "iterate link ids", err)
	}

	return ids, nil
}

// CountByWorkflow returns the number of prepared rows for a workflow.
func (r *PgPrepareRepository) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	query := `SELECT COUNT(*) FROM content_prepare WHERE workflow_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, workflowID).Scan(&count); err != nil {
		return 0, domain.NewPersistError("content_prepare", "count", err)
	}

	return count, nil
}
