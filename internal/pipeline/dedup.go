// Package pipeline implements the two-stage content processing pipeline:
// deduplication of a crawl workflow's records followed by per-record agent
// review, and the runner that executes both stages under a single run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/observability"
	"github.com/truecontent/content-review-service/internal/repository"
)

// DefaultPageSize is how many records go to the similarity agent per call.
// Larger pages dilute the agent's attention; smaller ones waste calls.
const DefaultPageSize = 30

// Deduplicator is the similarity agent as the dedup stage sees it.
type Deduplicator interface {
	Deduplicate(ctx context.Context, records []domain.NewsRecord) (*domain.DuplicateVerdict, error)
}

// DedupStageConfig holds the configuration for the dedup stage.
type DedupStageConfig struct {
	// PageSize is the number of records per similarity-agent call.
	PageSize int

	// Retry governs datastore reads and writes. Agent calls are never
	// retried.
	Retry database.RetryConfig
}

// DedupStage pages a workflow's records through the similarity agent and
// persists the survivors to the intermediate store.
//
// A failed page is logged and skipped; the stage only fails when every page
// fails. Duplicates that happen to land on different pages are not compared
// against each other, so page boundaries can leak the occasional duplicate
// through.
type DedupStage struct {
	upstream repository.UpstreamRepository
	prepare  repository.PrepareRepository
	agent    Deduplicator
	cfg      DedupStageConfig
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewDedupStage creates a dedup stage.
func NewDedupStage(
	upstream repository.UpstreamRepository,
	prepare repository.PrepareRepository,
	agent Deduplicator,
	cfg DedupStageConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *DedupStage {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = database.DefaultRetryConfig()
	}

	return &DedupStage{
		upstream: upstream,
		prepare:  prepare,
		agent:    agent,
		cfg:      cfg,
		logger:   logger.With().Str("stage", "dedup").Logger(),
		metrics:  metrics,
	}
}

// Run deduplicates one workflow. A workflow that already has intermediate
// rows is skipped without any agent call, which makes reruns idempotent.
func (s *DedupStage) Run(ctx context.Context, workflowID string) (*domain.DedupResult, error) {
	logger := s.logger.With().Str("workflow_id", workflowID).Logger()
	result := &domain.DedupResult{WorkflowID: workflowID}

	var processed bool
	err := database.WithRetry(ctx, s.cfg.Retry, logger, "dedup.workflow_processed", func(ctx context.Context) error {
		var err error
		processed, err = s.prepare.WorkflowProcessed(ctx, workflowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if processed {
		logger.Info().Msg("workflow already deduplicated, skipping")
		result.Skipped = true
		return result, nil
	}

	var records []domain.NewsRecord
	err = database.WithRetry(ctx, s.cfg.Retry, logger, "dedup.fetch_records", func(ctx context.Context) error {
		var err error
		records, err = s.upstream.RecordsByWorkflow(ctx, workflowID, domain.DefaultImportanceFilter)
		return err
	})
	if err != nil {
		return nil, err
	}

	result.Input = len(records)
	if len(records) == 0 {
		logger.Info().Msg("no records to deduplicate")
		return result, nil
	}

	survivors, groups, err := s.deduplicatePages(ctx, logger, workflowID, records)
	if err != nil {
		return nil, err
	}

	result.Selected = len(survivors)
	result.DuplicateGroupsFound = groups

	if len(survivors) > 0 {
		err = database.WithRetry(ctx, s.cfg.Retry, logger, "dedup.upsert_survivors", func(ctx context.Context) error {
			_, err := s.prepare.UpsertSurvivors(ctx, survivors)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Info().
		Int("input", result.Input).
		Int("selected", result.Selected).
		Int("duplicate_groups", result.DuplicateGroupsFound).
		Msg("dedup stage completed")

	return result, nil
}

// deduplicatePages sends records to the agent page by page. It returns the
// union of survivors across the pages that succeeded and the total number of
// duplicate groups found.
func (s *DedupStage) deduplicatePages(
	ctx context.Context,
	logger zerolog.Logger,
	workflowID string,
	records []domain.NewsRecord,
) ([]domain.PreparedRecord, int, error) {
	var (
		survivors   []domain.PreparedRecord
		totalGroups int
		failedPages int
		lastErr     error
	)

	pages := paginate(records, s.cfg.PageSize)
	for i, page := range pages {
		pageLogger := observability.WithStageContext(logger, "dedup", i+1)

		verdict, err := s.agent.Deduplicate(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, err
			}
			pageLogger.Warn().Err(err).Int("records", len(page)).Msg("page dedup failed, skipping page")
			if s.metrics != nil {
				s.metrics.RecordDedupPageFailed()
			}
			failedPages++
			lastErr = err
			continue
		}

		kept := s.collectSurvivors(pageLogger, workflowID, page, verdict, &survivors)
		totalGroups += len(verdict.DuplicateGroups)
		if s.metrics != nil {
			s.metrics.RecordDedupPage(len(page), kept)
		}
	}

	if failedPages == len(pages) {
		return nil, 0, fmt.Errorf("all %d dedup pages failed: %w", len(pages), lastErr)
	}
	return survivors, totalGroups, nil
}

// collectSurvivors appends the verdict's survivors to out and returns how
// many were kept. Link IDs the agent invented (not present in the page) are
// logged and dropped; similarity notes come from the duplicate group whose
// kept_id matches.
func (s *DedupStage) collectSurvivors(
	logger zerolog.Logger,
	workflowID string,
	page []domain.NewsRecord,
	verdict *domain.DuplicateVerdict,
	out *[]domain.PreparedRecord,
) int {
	inPage := make(map[string]bool, len(page))
	for _, rec := range page {
		inPage[rec.LinkID] = true
	}

	notes := make(map[string]string, len(verdict.DuplicateGroups))
	for _, group := range verdict.DuplicateGroups {
		if group.KeptID != "" && group.Rationale != "" {
			notes[group.KeptID] = group.Rationale
		}
	}

	kept := 0
	for _, linkID := range verdict.SelectedLinkIDs {
		if !inPage[linkID] {
			logger.Warn().Str("link_id", linkID).Msg("agent selected a link_id not in the page, dropping")
			continue
		}
		*out = append(*out, domain.PreparedRecord{
			LinkID:          linkID,
			WorkflowID:      workflowID,
			SimilarityNotes: notes[linkID],
		})
		kept++
	}
	return kept
}

// paginate splits records into consecutive pages of at most size records.
func paginate(records []domain.NewsRecord, size int) [][]domain.NewsRecord {
	var pages [][]domain.NewsRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		pages = append(pages, records[start:end])
	}
	return pages
}
