package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/observability"
	"github.com/truecontent/content-review-service/internal/repository"
)

// Reviewer is the review agent as the review stage sees it.
type Reviewer interface {
	Review(ctx context.Context, record *domain.NewsRecord) (*domain.ReviewVerdict, error)
}

// ReviewStageConfig holds the configuration for the review stage.
type ReviewStageConfig struct {
	// Retry governs datastore reads and writes. Agent calls are never
	// retried.
	Retry database.RetryConfig
}

// ReviewStage runs each dedup survivor through the review agent and writes
// the native and translated renditions to the final store. Failures are
// isolated per record: one bad record never stops the rest of the workflow.
type ReviewStage struct {
	upstream repository.UpstreamRepository
	prepare  repository.PrepareRepository
	reviewed repository.ReviewedRepository
	agent    Reviewer
	cfg      ReviewStageConfig
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewReviewStage creates a review stage.
func NewReviewStage(
	upstream repository.UpstreamRepository,
	prepare repository.PrepareRepository,
	reviewed repository.ReviewedRepository,
	agent Reviewer,
	cfg ReviewStageConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *ReviewStage {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = database.DefaultRetryConfig()
	}

	return &ReviewStage{
		upstream: upstream,
		prepare:  prepare,
		reviewed: reviewed,
		agent:    agent,
		cfg:      cfg,
		logger:   logger.With().Str("stage", "review").Logger(),
		metrics:  metrics,
	}
}

// Run reviews one workflow's dedup survivors. The workflow is skipped as a
// whole only when every survivor already has a native-language row; a partial
// earlier run leaves the unreviewed records to be retried here, with the
// per-record checks skipping the ones that are done.
func (s *ReviewStage) Run(ctx context.Context, workflowID string) (*domain.ReviewResult, error) {
	logger := s.logger.With().Str("workflow_id", workflowID).Logger()
	result := &domain.ReviewResult{WorkflowID: workflowID}

	var linkIDs []string
	err := database.WithRetry(ctx, s.cfg.Retry, logger, "review.fetch_survivors", func(ctx context.Context) error {
		var err error
		linkIDs, err = s.prepare.LinkIDs(ctx, workflowID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(linkIDs) == 0 {
		logger.Info().Msg("no dedup survivors to review")
		return result, nil
	}

	var reviewedCount int64
	err = database.WithRetry(ctx, s.cfg.Retry, logger, "review.count_reviewed", func(ctx context.Context) error {
		var err error
		reviewedCount, err = s.reviewed.CountByWorkflow(ctx, workflowID, domain.LanguageNative)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reviewedCount >= int64(len(linkIDs)) {
		logger.Info().Int("survivors", len(linkIDs)).Msg("all survivors already reviewed, skipping")
		result.SkippedWorkflow = true
		return result, nil
	}

	for _, linkID := range linkIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch outcome := s.reviewRecord(ctx, logger, workflowID, linkID); outcome {
		case reviewSucceeded:
			result.Succeeded++
		case reviewSkipped:
			result.Skipped++
		case reviewFailed:
			result.Failed++
		}
	}

	logger.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("review stage completed")

	return result, nil
}

type reviewOutcome string

const (
	reviewSucceeded reviewOutcome = "succeeded"
	reviewSkipped   reviewOutcome = "skipped"
	reviewFailed    reviewOutcome = "failed"
)

// reviewRecord processes a single survivor end to end. The record counts as
// skipped only when every rendition already existed; any real failure makes
// it a failure even if the other rendition was written.
func (s *ReviewStage) reviewRecord(ctx context.Context, logger zerolog.Logger, workflowID, linkID string) reviewOutcome {
	recLogger := observability.WithRecordContext(logger, linkID, workflowID)

	outcome := s.doReviewRecord(ctx, recLogger, workflowID, linkID)
	if s.metrics != nil {
		s.metrics.RecordReviewOutcome(string(outcome))
	}
	return outcome
}

func (s *ReviewStage) doReviewRecord(ctx context.Context, logger zerolog.Logger, workflowID, linkID string) reviewOutcome {
	// A record with rows in both language tables is settled. A missing
	// translated row does not settle it: the translation may legitimately
	// have been absent, so the agent is called again and the duplicate
	// native insert is absorbed below.
	var nativeDone, translatedDone bool
	err := database.WithRetry(ctx, s.cfg.Retry, logger, "review.check_reviewed", func(ctx context.Context) error {
		var err error
		if nativeDone, err = s.reviewed.Exists(ctx, linkID, domain.LanguageNative); err != nil {
			return err
		}
		translatedDone, err = s.reviewed.Exists(ctx, linkID, domain.LanguageTranslated)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to check reviewed state")
		return reviewFailed
	}
	if nativeDone && translatedDone {
		logger.Debug().Msg("record already reviewed in both languages")
		return reviewSkipped
	}

	var record *domain.NewsRecord
	err = database.WithRetry(ctx, s.cfg.Retry, logger, "review.fetch_record", func(ctx context.Context) error {
		var err error
		record, err = s.upstream.RecordByLinkID(ctx, linkID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to load upstream record")
		return reviewFailed
	}

	verdict, err := s.agent.Review(ctx, record)
	if err != nil {
		logger.Error().Err(err).Msg("review agent call failed")
		return reviewFailed
	}

	written := 0
	for _, row := range s.buildRows(record, verdict, workflowID) {
		var alreadyExists bool
		err := database.WithRetry(ctx, s.cfg.Retry, logger, "review.insert_reviewed", func(ctx context.Context) error {
			insertErr := s.reviewed.Insert(ctx, row)
			if errors.Is(insertErr, domain.ErrAlreadyProcessed) {
				// A duplicate row is settled state, not a transient fault.
				alreadyExists = true
				return nil
			}
			return insertErr
		})
		if err != nil {
			logger.Error().Err(err).Str("language", string(row.Language)).Msg("failed to persist reviewed record")
			return reviewFailed
		}
		if alreadyExists {
			logger.Debug().Str("language", string(row.Language)).Msg("rendition already reviewed")
		} else {
			written++
		}
	}

	if written == 0 {
		return reviewSkipped
	}
	return reviewSucceeded
}

// buildRows assembles the final-store rows for one verdict. The translated
// rendition is omitted when the agent returned no translation.
func (s *ReviewStage) buildRows(record *domain.NewsRecord, verdict *domain.ReviewVerdict, workflowID string) []*domain.ReviewedRecord {
	base := domain.ReviewedRecord{
		LinkID:          record.LinkID,
		WorkflowID:      workflowID,
		EventTags:       record.EventTags,
		SpaceTags:       record.SpaceTags,
		ImpactFactors:   record.ImpactFactors,
		CatTags:         record.CatTags,
		Importance:      record.Importance,
		ImportanceScore: verdict.ImportanceScore,
		ReviewStatus:    verdict.ReviewStatus,
		ReviewNote:      verdict.ReviewNote,
		SourceNote:      record.SourceNote,
		HomepageURL:     record.HomepageURL,
		PublishTime:     record.PublishTime,
	}

	native := base
	native.Language = domain.LanguageNative
	native.Title = verdict.OptimizedTitle
	native.Content = verdict.OptimizedContent
	rows := []*domain.ReviewedRecord{&native}

	if verdict.TranslatedTitle != "" || verdict.TranslatedContent != "" {
		translated := base
		translated.Language = domain.LanguageTranslated
		translated.Title = verdict.TranslatedTitle
		translated.Content = verdict.TranslatedContent
		rows = append(rows, &translated)
	}

	return rows
}
