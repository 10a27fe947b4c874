// Package repository provides data access interfaces and implementations
// for the content review service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from business logic.
//
// # Repository Interfaces
//
//   - UpstreamRepository: Read-only access to the crawler-owned news store
//   - PrepareRepository: Dedup survivors in the intermediate store
//   - ReviewedRepository: Final reviewed records, per output language
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrUpstreamRead: Upstream store query failed
//   - domain.ErrPersist: Content store write failed
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass transaction from database.DB.WithTransaction for atomic operations.
package repository

import (
	"context"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
//
// Repository implementations follow a constructor pattern that accepts DBTX:
//
//	type PgPrepareRepository struct {
//	    db DBTX
//	}
//
//	func NewPgPrepareRepository(db DBTX) *PgPrepareRepository {
//	    return &PgPrepareRepository{db: db}
//	}
//
// This design enables:
//   - Direct usage with a connection pool for standard operations
//   - Transaction support by passing a transaction (pgx.Tx) instead
//   - Easy testing with mock implementations of DBTX
type DBTX = database.DBTX

// UpstreamRepository reads the crawler-owned news store. This service never
// writes to it.
type UpstreamRepository interface {
	// LatestWorkflow returns the most recently updated workflow among
	// successfully crawled records. Returns domain.ErrNotFound when the
	// store has no eligible rows.
	LatestWorkflow(ctx context.Context) (*domain.WorkflowInfo, error)

	// CountRecords returns the number of successfully crawled rows for a
	// workflow. The monitor samples this to detect growth.
	CountRecords(ctx context.Context, workflowID string) (int64, error)

	// RecordsByWorkflow returns the workflow's successfully crawled records
	// whose importance is in the filter, ordered by link_id for stable paging.
	RecordsByWorkflow(ctx context.Context, workflowID string, importance []domain.Importance) ([]domain.NewsRecord, error)

	// RecordByLinkID returns the full record for one link_id. Returns
	// domain.ErrNotFound when the record does not exist.
	RecordByLinkID(ctx context.Context, linkID string) (*domain.NewsRecord, error)
}

// PrepareRepository manages dedup survivors in the content store.
type PrepareRepository interface {
	// WorkflowProcessed reports whether the workflow already has prepared
	// rows. Presence of rows is the dedup stage's processed-marker.
	WorkflowProcessed(ctx context.Context, workflowID string) (bool, error)

	// UpsertSurvivors writes survivor rows idempotently. Re-running a
	// workflow updates similarity notes instead of duplicating rows.
	// Returns the number of rows written.
	UpsertSurvivors(ctx context.Context, records []domain.PreparedRecord) (int64, error)

	// LinkIDs returns the survivor link_ids for a workflow, ordered by link_id.
	LinkIDs(ctx context.Context, workflowID string) ([]string, error)

	// CountByWorkflow returns the number of prepared rows for a workflow.
	CountByWorkflow(ctx context.Context, workflowID string) (int64, error)
}

// ReviewedRepository manages final reviewed records. Rows are append-only
// per link_id and language.
type ReviewedRepository interface {
	// Exists reports whether a link_id already has a row in the given
	// language table.
	Exists(ctx context.Context, linkID string, lang domain.Language) (bool, error)

	// Insert appends one reviewed record to the table selected by its
	// Language field. Returns domain.ErrAlreadyProcessed on a duplicate
	// link_id.
	Insert(ctx context.Context, rec *domain.ReviewedRecord) error

	// CountByWorkflow returns the number of reviewed rows for a workflow in
	// the given language table.
	CountByWorkflow(ctx context.Context, workflowID string, lang domain.Language) (int64, error)
}
