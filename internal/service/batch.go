package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/retry"
	"github.com/timmy/hireflow/internal/source"
	"github.com/timmy/hireflow/internal/storage"
	"gorm.io/gorm"
)

// FileState is the terminal state of one batch item.
type FileState string

const (
	FileSucceeded   FileState = "success"
	FileFailed      FileState = "error"
	FileRateLimited FileState = "rate_limited"
)

// DefaultGroupSize bounds the concurrency of bulk re-analysis.
const DefaultGroupSize = 5

// Analyzer runs one analysis. *AnalysisService implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error)
}

// BatchFile is one uploaded resume. When ApplicationID is empty a candidate
// and a pending application are created for it.
type BatchFile struct {
	Name          string
	MIMEType      string
	Data          []byte
	ApplicationID string
	CandidateName string
	Email         string
	JobRole       string
	CoverLetter   string
}

// BatchOptions apply to every item of a batch.
type BatchOptions struct {
	JobRole string
	Profile string
	// OnProgress is called after each item (sequential mode) or group
	// (re-analysis) with the number of finished items.
	OnProgress func(done, total int)
}

// FileResult is the outcome of one batch item.
type FileResult struct {
	Index            int       `json:"index"`
	Name             string    `json:"name,omitempty"`
	ApplicationID    string    `json:"applicationId,omitempty"`
	State            FileState `json:"state"`
	Error            string    `json:"error,omitempty"`
	Attempts         int       `json:"attempts"`
	ExtractionMethod string    `json:"extractionMethod,omitempty"`
	OverallScore     int       `json:"overallScore,omitempty"`
}

// BatchSummary aggregates the terminal states of a batch.
type BatchSummary struct {
	BatchID     string       `json:"batchId"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	RateLimited int          `json:"rateLimited"`
	Results     []FileResult `json:"results"`
}

func (s *BatchSummary) add(r FileResult) {
	switch r.State {
	case FileSucceeded:
		s.Succeeded++
	case FileRateLimited:
		s.RateLimited++
	default:
		s.Failed++
	}
}

// BatchConfig holds configuration for the batch service.
type BatchConfig struct {
	Retry          retry.Policy
	InterFileDelay time.Duration
	GroupSize      int
	StoragePrefix  string
	// Sleep waits between files; nil means retry.Wait.
	Sleep retry.SleepFunc
}

// BatchService sequences extraction and analysis of many resumes under
// external rate limits.
type BatchService struct {
	apps       *repository.ApplicationRepository
	runs       *repository.BatchRunRepository
	analyzer   Analyzer
	extraction *ExtractionService
	storage    storage.ObjectStorage
	logger     *logger.Logger

	policy         retry.Policy
	interFileDelay time.Duration
	groupSize      int
	prefix         string
	sleep          retry.SleepFunc
}

// NewBatchService creates a new BatchService.
// Parameters:
//   - apps: application intake and lookups.
//   - runs: batch run bookkeeping.
//   - analyzer: the analysis orchestrator.
//   - extraction: text extraction adapter.
//   - objectStorage: resume file storage; nil disables storage.
//   - log: fallback logger.
//   - cfg: retry policy, pacing and group size.
func NewBatchService(
	apps *repository.ApplicationRepository,
	runs *repository.BatchRunRepository,
	analyzer Analyzer,
	extraction *ExtractionService,
	objectStorage storage.ObjectStorage,
	log *logger.Logger,
	cfg *BatchConfig,
) *BatchService {
	groupSize := cfg.GroupSize
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = retry.Wait
	}
	return &BatchService{
		apps:           apps,
		runs:           runs,
		analyzer:       analyzer,
		extraction:     extraction,
		storage:        objectStorage,
		logger:         log,
		policy:         cfg.Retry,
		interFileDelay: cfg.InterFileDelay,
		groupSize:      groupSize,
		prefix:         cfg.StoragePrefix,
		sleep:          sleep,
	}
}

func (s *BatchService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// ProcessFiles handles new uploads one at a time in input order. Each file's
// analysis is wrapped in the retry policy and a fixed delay separates files.
// A file's failure never stops the rest of the batch; if ctx is cancelled,
// the unprocessed files are marked as errors.
func (s *BatchService) ProcessFiles(ctx context.Context, files []BatchFile, opts BatchOptions) (*BatchSummary, error) {
	summary, run, ctx, err := s.begin(ctx, domain.BatchKindUpload, len(files))
	if err != nil {
		return nil, err
	}
	start := time.Now()

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(files),
		"job_role":        opts.JobRole,
	}).Info("Starting file batch")

	for i, f := range files {
		if i > 0 && s.interFileDelay > 0 {
			if err := s.sleep(ctx, s.interFileDelay); err != nil {
				s.abandon(summary, files[i:], i, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			s.abandon(summary, files[i:], i, err)
			break
		}

		res := s.processFile(ctx, i, f, opts)
		summary.Results = append(summary.Results, res)
		summary.add(res)
		if opts.OnProgress != nil {
			opts.OnProgress(len(summary.Results), summary.Total)
		}
	}

	s.finish(ctx, run, summary, start)
	return summary, nil
}

// ProcessSource reads every file from src and runs it through ProcessFiles.
func (s *BatchService) ProcessSource(ctx context.Context, src source.Source, readFile func(path string) ([]byte, error), opts BatchOptions) (*BatchSummary, error) {
	var files []BatchFile
	cursor := ""
	for {
		batch, next, err := src.FetchBatch(ctx, cursor, 100)
		if err != nil {
			return nil, fmt.Errorf("fetch from %s: %w", src.GetSourceID(), err)
		}
		for _, item := range batch {
			data, err := readFile(item.LocalPath)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", item.LocalPath, err)
			}
			files = append(files, BatchFile{
				Name:          item.Name,
				MIMEType:      item.MIMEType,
				Data:          data,
				CandidateName: item.CandidateName,
				Email:         item.Email,
				JobRole:       item.JobRole,
				CoverLetter:   item.CoverLetter,
			})
		}
		if next == "" || len(batch) == 0 {
			break
		}
		cursor = next
	}
	return s.ProcessFiles(ctx, files, opts)
}

func (s *BatchService) processFile(ctx context.Context, index int, f BatchFile, opts BatchOptions) FileResult {
	res := FileResult{Index: index, Name: f.Name, ApplicationID: f.ApplicationID}

	if res.ApplicationID == "" {
		appID, err := s.intake(ctx, f, opts)
		if err != nil {
			res.State = FileFailed
			res.Error = err.Error()
			s.log(ctx).WithField("file", f.Name).WithError(err).Error("Failed to register application")
			return res
		}
		res.ApplicationID = appID
	}

	extracted := s.extraction.Extract(ctx, ai.Document{Name: f.Name, MIMEType: f.MIMEType, Data: f.Data})
	res.ExtractionMethod = extracted.Method

	result, attempts, err := s.analyzeWithRetry(ctx, AnalyzeRequest{
		ApplicationID: res.ApplicationID,
		ResumeText:    extracted.Text,
		CoverLetter:   f.CoverLetter,
		Profile:       opts.Profile,
		Degraded:      extracted.Degraded(),
	})
	res.Attempts = attempts
	classify(&res, result, err)

	logger.With(logger.Fields{
		logger.FieldApplicationID: res.ApplicationID,
		"file":                    f.Name,
		"extraction":              extracted.Method,
	}).WithAttempt(attempts).WithStatus(string(res.State)).Info(ctx, "File processed")
	return res
}

// intake creates the candidate and pending application for a new file and
// stores the original bytes. A storage failure is logged, not fatal.
func (s *BatchService) intake(ctx context.Context, f BatchFile, opts BatchOptions) (string, error) {
	role := firstNonEmpty(f.JobRole, opts.JobRole)
	if role == "" {
		return "", errors.New("job role is required")
	}
	name := f.CandidateName
	if name == "" {
		name = strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	}
	mimeType := f.MIMEType
	if mimeType == "" {
		mimeType = source.DetectMIMEType(f.Name)
	}

	app := &domain.Application{
		ID:          uuid.New().String(),
		JobRole:     role,
		ResumeName:  f.Name,
		ResumeMIME:  mimeType,
		CoverLetter: f.CoverLetter,
		Status:      domain.StatusPending,
	}
	if s.storage != nil && len(f.Data) > 0 {
		key := storage.ResumeKey(s.prefix, app.ID, f.Name)
		if err := s.storage.Put(ctx, key, f.Data, mimeType); err != nil {
			s.log(ctx).WithField("key", key).WithError(err).Warn("Failed to store resume file")
		} else {
			app.ResumeKey = key
		}
	}

	cand := &domain.Candidate{FullName: name, Email: f.Email}
	if err := s.apps.CreateWithCandidate(ctx, cand, app); err != nil {
		if app.ResumeKey != "" {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), app.ResumeKey); delErr != nil {
				s.log(ctx).WithField("key", app.ResumeKey).WithError(delErr).Warn("Failed to remove orphaned resume file")
			}
		}
		return "", fmt.Errorf("create application: %w", err)
	}
	return app.ID, nil
}

// Reanalyze re-runs analysis for existing applications in concurrent groups
// of at most groupSize, waiting for each group before starting the next.
// Order within a group is not guaranteed; results are reported in input order.
func (s *BatchService) Reanalyze(ctx context.Context, applicationIDs []string, opts BatchOptions) (*BatchSummary, error) {
	summary, run, ctx, err := s.begin(ctx, domain.BatchKindReanalysis, len(applicationIDs))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	results := make([]FileResult, len(applicationIDs))

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(applicationIDs),
		"group_size":      s.groupSize,
	}).Info("Starting bulk re-analysis")

	for lo := 0; lo < len(applicationIDs); lo += s.groupSize {
		hi := lo + s.groupSize
		if hi > len(applicationIDs) {
			hi = len(applicationIDs)
		}

		if err := ctx.Err(); err != nil {
			for i := lo; i < len(applicationIDs); i++ {
				results[i] = FileResult{Index: i, ApplicationID: applicationIDs[i], State: FileFailed, Error: err.Error()}
			}
			break
		}

		var wg sync.WaitGroup
		for i := lo; i < hi; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.reanalyzeOne(ctx, i, applicationIDs[i], opts)
			}(i)
		}
		wg.Wait()

		if opts.OnProgress != nil {
			opts.OnProgress(hi, len(applicationIDs))
		}
	}

	for _, r := range results {
		summary.Results = append(summary.Results, r)
		summary.add(r)
	}
	s.finish(ctx, run, summary, start)
	return summary, nil
}

// ReanalyzeStatus re-runs analysis for up to limit applications currently in
// status, oldest first. A non-positive limit selects all of them.
func (s *BatchService) ReanalyzeStatus(ctx context.Context, status domain.ApplicationStatus, limit int, opts BatchOptions) (*BatchSummary, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	apps, err := s.apps.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}
	return s.Reanalyze(ctx, ids, opts)
}

func (s *BatchService) reanalyzeOne(ctx context.Context, index int, appID string, opts BatchOptions) FileResult {
	res := FileResult{Index: index, ApplicationID: appID}

	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrApplicationNotFound
		}
		res.State = FileFailed
		res.Error = err.Error()
		return res
	}
	res.Name = app.ResumeName

	text := app.ResumeText
	if text == FallbackText(app.ResumeName) {
		text = ""
	}
	degraded := false
	if strings.TrimSpace(text) == "" && s.storage != nil && app.ResumeKey != "" {
		data, err := s.storage.Get(ctx, app.ResumeKey)
		if err != nil {
			s.log(ctx).WithField(logger.FieldApplicationID, appID).WithError(err).Warn("Failed to load stored resume")
		} else {
			extracted := s.extraction.Extract(ctx, ai.Document{Name: app.ResumeName, MIMEType: app.ResumeMIME, Data: data})
			res.ExtractionMethod = extracted.Method
			text = extracted.Text
			degraded = extracted.Degraded()
		}
	}
	if strings.TrimSpace(text) == "" && app.ResumeName != "" {
		text = FallbackText(app.ResumeName)
		res.ExtractionMethod = ExtractionFallback
		degraded = true
	}

	result, attempts, err := s.analyzeWithRetry(ctx, AnalyzeRequest{
		ApplicationID: appID,
		ResumeText:    text,
		CoverLetter:   app.CoverLetter,
		Profile:       opts.Profile,
		Degraded:      degraded,
	})
	res.Attempts = attempts
	classify(&res, result, err)
	return res
}

func (s *BatchService) analyzeWithRetry(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, int, error) {
	attempts := 0
	policy := s.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldApplicationID: req.ApplicationID,
			logger.FieldAttempt:       attempt,
			"delay_ms":                delay.Milliseconds(),
		}).WithError(err).Warn("Rate limited, backing off")
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	result, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*AnalysisResult, error) {
		attempts++
		return s.analyzer.Analyze(ctx, req)
	})
	return result, attempts, err
}

func classify(res *FileResult, result *AnalysisResult, err error) {
	switch {
	case err == nil:
		res.State = FileSucceeded
		if result != nil && result.Analysis != nil {
			res.OverallScore = result.Analysis.OverallScore
		}
	case IsRateLimited(err):
		res.State = FileRateLimited
		res.Error = err.Error()
	default:
		res.State = FileFailed
		res.Error = err.Error()
	}
}

func (s *BatchService) begin(ctx context.Context, kind string, total int) (*BatchSummary, *domain.BatchRun, context.Context, error) {
	summary := &BatchSummary{Total: total, Results: make([]FileResult, 0, total)}
	if s.runs == nil {
		summary.BatchID = uuid.New().String()
		return summary, nil, s.log(ctx).WithField(logger.FieldBatchID, summary.BatchID).WithContext(ctx), nil
	}
	run, err := s.runs.Start(ctx, kind, total)
	if err != nil {
		return nil, nil, ctx, fmt.Errorf("start batch run: %w", err)
	}
	summary.BatchID = run.ID
	return summary, run, s.log(ctx).WithField(logger.FieldBatchID, run.ID).WithContext(ctx), nil
}

func (s *BatchService) finish(ctx context.Context, run *domain.BatchRun, summary *BatchSummary, start time.Time) {
	logger.With(logger.Fields{
		"succeeded":    summary.Succeeded,
		"failed":       summary.Failed,
		"rate_limited": summary.RateLimited,
	}).WithCount(summary.Total).WithDuration(time.Since(start)).Info(ctx, "Batch finished")

	if run == nil {
		return
	}
	run.Succeeded = summary.Succeeded
	run.Failed = summary.Failed
	run.RateLimited = summary.RateLimited
	run.Status = domain.BatchRunCompleted
	if ctx.Err() != nil {
		run.Status = domain.BatchRunFailed
	}
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record batch run")
	}
}

// abandon marks files that were never started as errors.
func (s *BatchService) abandon(summary *BatchSummary, rest []BatchFile, offset int, cause error) {
	for j, f := range rest {
		r := FileResult{
			Index:         offset + j,
			Name:          f.Name,
			ApplicationID: f.ApplicationID,
			State:         FileFailed,
			Error:         fmt.Sprintf("batch cancelled: %v", cause),
		}
		summary.Results = append(summary.Results, r)
		summary.add(r)
	}
}
