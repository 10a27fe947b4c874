package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
)

// testRetry keeps retries out of unit tests.
var testRetry = database.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond}

type fakeUpstream struct {
	latest    *domain.WorkflowInfo
	latestErr error

	records  map[string][]domain.NewsRecord
	fetchErr error

	recordErr map[string]error

	recordsByWorkflowCalls int
}

func (f *fakeUpstream) LatestWorkflow(ctx context.Context) (*domain.WorkflowInfo, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if f.latest == nil {
		return nil, domain.NewNotFoundError("workflow", "latest")
	}
	return f.latest, nil
}

func (f *fakeUpstream) CountRecords(ctx context.Context, workflowID string) (int64, error) {
	return int64(len(f.records[workflowID])), nil
}

func (f *fakeUpstream) RecordsByWorkflow(ctx context.Context, workflowID string, importance []domain.Importance) ([]domain.NewsRecord, error) {
	f.recordsByWorkflowCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	allowed := make(map[domain.Importance]bool, len(importance))
	for _, level := range importance {
		allowed[level] = true
	}

	var out []domain.NewsRecord
	for _, rec := range f.records[workflowID] {
		if allowed[rec.Importance] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeUpstream) RecordByLinkID(ctx context.Context, linkID string) (*domain.NewsRecord, error) {
	if err := f.recordErr[linkID]; err != nil {
		return nil, err
	}
	for _, recs := range f.records {
		for _, rec := range recs {
			if rec.LinkID == linkID {
				r := rec
				return &r, nil
			}
		}
	}
	return nil, domain.NewNotFoundError("news record", linkID)
}

type fakePrepare struct {
	processed    map[string]bool
	processedErr error

	upserted  []domain.PreparedRecord
	upsertErr error

	linkIDsErr error
}

func (f *fakePrepare) WorkflowProcessed(ctx context.Context, workflowID string) (bool, error) {
	if f.processedErr != nil {
		return false, f.processedErr
	}
	if f.processed[workflowID] {
		return true, nil
	}
	for _, rec := range f.upserted {
		if rec.WorkflowID == workflowID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrepare) UpsertSurvivors(ctx context.Context, records []domain.PreparedRecord) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return int64(len(records)), nil
}

func (f *fakePrepare) LinkIDs(ctx context.Context, workflowID string) ([]string, error) {
	if f.linkIDsErr != nil {
		return nil, f.linkIDsErr
	}
	var ids []string
	for _, rec := range f.upserted {
		if rec.WorkflowID == workflowID {
			ids = append(ids, rec.LinkID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakePrepare) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	var n int64
	for _, rec := range f.upserted {
		if rec.WorkflowID == workflowID {
			n++
		}
	}
	return n, nil
}

type reviewedKey struct {
	linkID string
	lang   domain.Language
}

type fakeReviewed struct {
	rows      map[reviewedKey]*domain.ReviewedRecord
	countErr  error
	insertErr func(rec *domain.ReviewedRecord) error
}

func newFakeReviewed() *fakeReviewed {
	return &fakeReviewed{rows: map[reviewedKey]*domain.ReviewedRecord{}}
}

// seed records an existing reviewed row so skip checks derive from row
// presence the same way the real repository does.
func (f *fakeReviewed) seed(linkID, workflowID string, lang domain.Language) {
	f.rows[reviewedKey{linkID, lang}] = &domain.ReviewedRecord{
		LinkID:     linkID,
		WorkflowID: workflowID,
		Language:   lang,
	}
}

func (f *fakeReviewed) Exists(ctx context.Context, linkID string, lang domain.Language) (bool, error) {
	_, ok := f.rows[reviewedKey{linkID, lang}]
	return ok, nil
}

func (f *fakeReviewed) Insert(ctx context.Context, rec *domain.ReviewedRecord) error {
	if f.insertErr != nil {
		if err := f.insertErr(rec); err != nil {
			return err
		}
	}
	key := reviewedKey{rec.LinkID, rec.Language}
	if _, ok := f.rows[key]; ok {
		return domain.ErrAlreadyProcessed
	}
	f.rows[key] = rec
	return nil
}

func (f *fakeReviewed) CountByWorkflow(ctx context.Context, workflowID string, lang domain.Language) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for key, rec := range f.rows {
		if key.lang == lang && rec.WorkflowID == workflowID {
			n++
		}
	}
	return n, nil
}

type fakeDeduplicator struct {
	pages    [][]domain.NewsRecord
	verdicts []*domain.DuplicateVerdict
	errs     []error
}

func (f *fakeDeduplicator) Deduplicate(ctx context.Context, records []domain.NewsRecord) (*domain.DuplicateVerdict, error) {
	call := len(f.pages)
	f.pages = append(f.pages, records)

	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.verdicts) {
		return f.verdicts[call], nil
	}

	// Everything is unique unless scripted otherwise.
	verdict := &domain.DuplicateVerdict{}
	for _, rec := range records {
		verdict.SelectedLinkIDs = append(verdict.SelectedLinkIDs, rec.LinkID)
	}
	return verdict, nil
}

type fakeReviewer struct {
	verdicts map[string]*domain.ReviewVerdict
	errs     map[string]error
	calls    []string
}

func (f *fakeReviewer) Review(ctx context.Context, record *domain.NewsRecord) (*domain.ReviewVerdict, error) {
	f.calls = append(f.calls, record.LinkID)
	if err := f.errs[record.LinkID]; err != nil {
		return nil, err
	}
	if v, ok := f.verdicts[record.LinkID]; ok {
		return v, nil
	}
	return &domain.ReviewVerdict{
		OptimizedTitle:    "Reviewed: " + record.Title,
		OptimizedContent:  record.Content,
		TranslatedTitle:   "Translated: " + record.Title,
		TranslatedContent: record.Content,
		ImportanceScore:   0.5,
		ReviewStatus:      domain.ReviewStatusApproved,
	}, nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
	err      error
}

func (f *fakeLocker) AcquireAdvisoryLock(ctx context.Context, key int64) (database.AdvisoryLock, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	f.acquired++
	return &fakeLock{locker: f}, true, nil
}

type fakeLock struct {
	locker *fakeLocker
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.locker.held = false
	l.locker.released++
	return nil
}
