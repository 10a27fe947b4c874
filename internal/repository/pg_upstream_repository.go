package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/truecontent/content-review-service/internal/domain"
)

// crawlSucceeded is the upstream state value marking a record as fully
// crawled and eligible for processing.
const crawlSucceeded = "crawl_succeeded"

// Compile-time interface verification.
var _ UpstreamRepository = (*PgUpstreamRepository)(nil)

// PgUpstreamRepository reads the crawler-owned news_records table. All
// queries filter on the crawl-succeeded state; partially crawled rows are
// invisible to this service.
type PgUpstreamRepository struct {
	db DBTX
}

// NewPgUpstreamRepository creates a new upstream store repository.
func NewPgUpstreamRepository(db DBTX) *PgUpstreamRepository {
	return &PgUpstreamRepository{db: db}
}

// LatestWorkflow returns the most recently updated workflow among
// successfully crawled records.
func (r *PgUpstreamRepository) LatestWorkflow(ctx context.Context) (*domain.WorkflowInfo, error) {
	query := `
		SELECT workflow_id, MAX(created_at) AS latest_update
		FROM news_records
		WHERE state = $1
		GROUP BY workflow_id
		ORDER BY latest_update DESC
		LIMIT 1`

	var info domain.WorkflowInfo
	err := r.db.QueryRow(ctx, query, crawlSucceeded).Scan(&info.WorkflowID, &info.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("workflow", "latest")
		}
		return nil, domain.NewUpstreamReadError("latest workflow", err)
	}

	return &info, nil
}

// CountRecords returns the number of successfully crawled rows for a workflow.
func (r *PgUpstreamRepository) CountRecords(ctx context.Context, workflowID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM news_records
		WHERE workflow_id = $1 AND state = $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, workflowID, crawlSucceeded).Scan(&count); err != nil {
		return 0, domain.NewUpstreamReadError("count records", err)
	}

	return count, nil
}

// RecordsByWorkflow returns the workflow's crawled records filtered by
// importance, ordered by link_id so paging is stable across calls.
func (r *PgUpstreamRepository) RecordsByWorkflow(ctx context.Context, workflowID string, importance []domain.Importance) ([]domain.NewsRecord, error) {
	if len(importance) == 0 {
		importance = domain.DefaultImportanceFilter
	}

	levels := make([]string, len(importance))
	for i, imp := range importance {
		levels[i] = string(imp)
	}

	query := `
		SELECT link_id, workflow_id, title, content,
		       event_tags, space_tags, impact_factors, cat_tags,
		       importance, source_note, homepage_url, publish_time
		FROM news_records
		WHERE workflow_id = $1
		  AND state = $2
		  AND importance = ANY($3)
		ORDER BY link_id`

	rows, err := r.db.Query(ctx, query, workflowID, crawlSucceeded, levels)
	if err != nil {
		return nil, domain.NewUpstreamReadError("records by workflow", err)
	}
	defer rows.Close()

	var records []domain.NewsRecord
	for rows.Next() {
		rec, err := scanNewsRecord(rows)
		if err != nil {
			return nil, domain.NewUpstreamReadError("scan record", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewUpstreamReadError("iterate records", err)
	}

	return records, nil
}

// RecordByLinkID returns the full record for one link_id.
func (r *PgUpstreamRepository) RecordByLinkID(ctx context.Context, linkID string) (*domain.NewsRecord, error) {
	query := `
		SELECT link_id, workflow_id, title, content,
		       event_tags, space_tags, impact_factors, cat_tags,
		       importance, source_note, homepage_url, publish_time
		FROM news_records
		WHERE link_id = $1
		LIMIT 1`

	rows, err := r.db.Query(ctx, query, linkID)
	if err != nil {
		return nil, domain.NewUpstreamReadError("record by link_id", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, domain.NewUpstreamReadError("record by link_id", err)
		}
		return nil, domain.NewNotFoundError("record", linkID)
	}

	rec, err := scanNewsRecord(rows)
	if err != nil {
		return nil, domain.NewUpstreamReadError("scan record", err)
	}

	return rec, nil
}

// scanNewsRecord scans one news_records row. Tag columns are jsonb arrays;
// pgx decodes them directly into string slices. Nullable text columns scan
// through pointers.
func scanNewsRecord(row pgx.Row) (*domain.NewsRecord, error) {
	var (
		rec         domain.NewsRecord
		content     *string
		importance  string
		sourceNote  *string
		homepageURL *string
	)

	err := row.Scan(
		&rec.LinkID, &rec.WorkflowID, &rec.Title, &content,
		&rec.EventTags, &rec.SpaceTags, &rec.ImpactFactors, &rec.CatTags,
		&importance, &sourceNote, &homepageURL, &rec.PublishTime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan news record: %w", err)
	}

	if content != nil {
		rec.Content = *content
	}
	rec.Importance = domain.Importance(importance)
	if sourceNote != nil {
		rec.SourceNote = *sourceNote
	}
	if homepageURL != nil {
		rec.HomepageURL = *homepageURL
	}

	return &rec, nil
}
