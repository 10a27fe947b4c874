package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/truecontent/content-review-service/internal/domain"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Compile-time interface verification.
var _ ReviewedRepository = (*PgReviewedRepository)(nil)

// PgReviewedRepository persists reviewed records to the final-store tables,
// one table per output language.
type PgReviewedRepository struct {
	db DBTX
}

// NewPgReviewedRepository creates a new reviewed-records repository.
func NewPgReviewedRepository(db DBTX) *PgReviewedRepository {
	return &PgReviewedRepository{db: db}
}

// tableFor maps a language to its final-store table. The table names are
// fixed identifiers, never user input.
func tableFor(lang domain.Language) string {
	if lang == domain.LanguageTranslated {
		return "reviewed_content_translated"
	}
	return "reviewed_content"
}

// Exists reports whether a link_id already has a row in the given language table.
func (r *PgReviewedRepository) Exists(ctx context.Context, linkID string, lang domain.Language) (bool, error) {
	table := tableFor(lang)
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE link_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, linkID).Scan(&exists); err != nil {
		return false, domain.NewPersistError(table, "exists check", err)
	}

	return exists, nil
}

// Insert appends one reviewed record. A duplicate link_id surfaces as
// domain.ErrAlreadyProcessed so callers can count it as a skip.
func (r *PgReviewedRepository) Insert(ctx context.Context, rec *domain.ReviewedRecord) error {
	if rec == nil || rec.LinkID == "" {
		return domain.ErrInvalidInput
	}

	table := tableFor(rec.Language)
	query := `
		INSERT INTO ` + table + ` (
			link_id, title, content,
			event_tags, space_tags, impact_factors, cat_tags,
			publish_time, importance, importance_score,
			source_note, homepage_url, workflow_id,
			review_status, review_note
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15
		)`

	_, err := r.db.Exec(ctx, query,
		rec.LinkID, rec.Title, rec.Content,
		jsonTags(rec.EventTags), jsonTags(rec.SpaceTags), jsonTags(rec.ImpactFactors), jsonTags(rec.CatTags),
		rec.PublishTime, string(rec.Importance), rec.ImportanceScore,
		nullString(rec.SourceNote), nullString(rec.HomepageURL), rec.WorkflowID,
		string(rec.ReviewStatus), nullString(rec.ReviewNote),
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.ErrAlreadyProcessed
		}
		return domain.NewPersistError(table, "insert", err)
	}

	return nil
}

// CountByWorkflow returns the number of reviewed rows for a workflow in the
// given language table.
func (r *PgReviewedRepository) CountByWorkflow(ctx context.Context, workflowID string, lang domain.Language) (int64, error) {
	table := tableFor(lang)
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE workflow_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, workflowID).Scan(&count); err != nil {
		return 0, domain.NewPersistError(table, "count", err)
	}

	return count, nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// jsonTags normalizes a tag slice for a jsonb NOT NULL column: nil becomes
// an empty array instead of SQL NULL.
func jsonTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// nullString converts an empty string to a nil pointer for nullable columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
