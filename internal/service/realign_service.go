package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsgrid/patchwin-api/internal/models"
	"github.com/opsgrid/patchwin-api/internal/patchtuesday"
	"github.com/opsgrid/patchwin-api/internal/report"
	appErrors "github.com/opsgrid/patchwin-api/pkg/errors"
	"github.com/opsgrid/patchwin-api/pkg/jobs"
)

type platformClient interface {
	ListCollections(ctx context.Context, siteID, pattern string) ([]models.Collection, error)
	GetMaintenanceWindow(ctx context.Context, collectionID string) (*models.MaintenanceWindow, error)
	ApplyServiceWindow(ctx context.Context, collectionID, windowName string, window models.ServiceWindow) error
}

type runRepository interface {
	CreateRun(ctx context.Context, run *models.RealignRun) error
	FinishRun(ctx context.Context, run *models.RealignRun) error
	InsertResults(ctx context.Context, results []models.RealignResult) error
	GetRun(ctx context.Context, id string) (*models.RealignRun, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RealignRun, int, error)
	ListResults(ctx context.Context, runID string) ([]models.RealignResult, error)
	HasRunInMonth(ctx context.Context, siteID string, day time.Time) (bool, error)
}

type reportDispatcher interface {
	Enqueue(job jobs.Job) error
}

type latestReportStore interface {
	SetLatestReport(ctx context.Context, siteID, body string) error
}

// MailJobType identifies report delivery jobs on the dispatch queue.
const MailJobType = "report_email"

// MailPayload is the dispatch queue payload for one report email.
type MailPayload struct {
	Recipient string
	Subject   string
	HTMLBody  string
}

// RunRequest triggers one realignment run. Today may be set explicitly for
// out-of-schedule runs and deterministic testing; it defaults to the clock.
type RunRequest struct {
	SiteID    string     `json:"site_id" validate:"required"`
	Pattern   string     `json:"pattern" validate:"required"`
	Recipient string     `json:"recipient" validate:"omitempty,email"`
	Today     *time.Time `json:"today,omitempty"`
}

// RealignService is the driver: it discovers collections, asks the calculator
// for the realigned window, applies it through the platform client and
// reports the outcome. Collections are processed strictly in discovery order
// and one collection's failure never aborts the rest.
type RealignService struct {
	platform  platformClient
	runs      runRepository
	dispatch  reportDispatcher
	reports   latestReportStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
}

// NewRealignService constructs the service. dispatch and reports may be nil,
// in which case email delivery and report caching are skipped.
func NewRealignService(platform platformClient, runs runRepository, dispatch reportDispatcher, reports latestReportStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RealignService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealignService{
		platform:  platform,
		runs:      runs,
		dispatch:  dispatch,
		reports:   reports,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Intended for tests and for the
// auto-run trigger, which shares the service's notion of "today".
func (s *RealignService) WithClock(clock func() time.Time) *RealignService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Run executes one realignment cycle and returns the persisted run.
func (s *RealignService) Run(ctx context.Context, req RunRequest) (*models.RealignRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}

	today := s.clock()
	if req.Today != nil {
		today = *req.Today
	}
	patchTuesday := patchtuesday.ResolveCycle(today)

	run := &models.RealignRun{
		ID:           uuid.NewString(),
		SiteID:       req.SiteID,
		Pattern:      req.Pattern,
		Recipient:    req.Recipient,
		PatchTuesday: patchTuesday,
		Status:       models.RunStatusRunning,
		StartedAt:    s.clock(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist run")
	}

	collections, err := s.platform.ListCollections(ctx, req.SiteID, req.Pattern)
	if err != nil {
		run.Status = models.RunStatusFailed
		if finishErr := s.runs.FinishRun(ctx, run); finishErr != nil {
			s.logger.Error("failed to finish failed run", zap.Error(finishErr))
		}
		s.observeRun(run)
		return nil, appErrors.Wrap(err, appErrors.ErrPlatform.Code, appErrors.ErrPlatform.Status, "collection discovery failed")
	}

	results := make([]models.RealignResult, 0, len(collections))
	for i, col := range collections {
		rec := s.processCollection(ctx, patchTuesday, col)
		rec.RunID = run.ID
		rec.Position = i
		results = append(results, rec)
		s.metrics.ObserveCollection(string(rec.Outcome))
		switch rec.Outcome {
		case models.OutcomeUpdated:
			run.Updated++
		case models.OutcomeSkipped:
			run.Skipped++
		default:
			run.Failed++
		}
	}

	run.Status = models.RunStatusCompleted
	if err := s.runs.InsertResults(ctx, results); err != nil {
		s.logger.Error("failed to persist run results", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := s.runs.FinishRun(ctx, run); err != nil {
		s.logger.Error("failed to finish run", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.observeRun(run)

	rep := report.FromRun(run, results)
	s.publishReport(ctx, run, rep)

	return run, nil
}

// processCollection handles a single collection. All failures are converted
// into a FAILED record so the caller's loop keeps going.
func (s *RealignService) processCollection(ctx context.Context, patchTuesday time.Time, col models.Collection) models.RealignResult {
	rec := models.RealignResult{CollectionID: col.ID, CollectionName: col.Name}

	if reason := exclusionReason(col.Name); reason != "" {
		rec.Outcome = models.OutcomeSkipped
		rec.Detail = reason
		return rec
	}

	window, err := s.platform.GetMaintenanceWindow(ctx, col.ID)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Detail = err.Error()
		return rec
	}
	rec.WindowName = window.Name
	rec.OldStart = window.NextStart

	spec := patchtuesday.WindowSpec{
		StartDay:        window.StartDay,
		StartHour:       window.StartHour,
		StartMinute:     window.StartMinute,
		DurationMinutes: window.DurationMinutes,
	}
	if err := spec.Validate(); err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Detail = "invalid window spec: " + err.Error()
		return rec
	}

	realigned := patchtuesday.Realign(patchTuesday, spec)
	if realigned.BeforePatchTuesday {
		// Sunday/Monday windows land before Patch Tuesday in the same week.
		// The formula allows it; whether any collection should be configured
		// that way is a product question, so it is applied but logged loudly.
		s.logger.Warn("window realigned before patch tuesday",
			zap.String("collection", col.Name),
			zap.Int("offset_days", realigned.OffsetDays))
	}

	if err := s.platform.ApplyServiceWindow(ctx, col.ID, window.Name, models.ServiceWindow{Start: realigned.Start, End: realigned.End}); err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Detail = err.Error()
		return rec
	}

	rec.Outcome = models.OutcomeUpdated
	rec.NewStart = &realigned.Start
	rec.NewEnd = &realigned.End
	return rec
}

// GetRun returns a run with its ordered results.
func (s *RealignService) GetRun(ctx context.Context, id string) (*models.RealignRun, []models.RealignResult, error) {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	results, err := s.runs.ListResults(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run results")
	}
	return run, results, nil
}

// ListRuns returns run history.
func (s *RealignService) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RealignRun, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	runs, total, err := s.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}
	return runs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *RealignService) observeRun(run *models.RealignRun) {
	duration := s.clock().Sub(run.StartedAt)
	s.metrics.ObserveRun(string(run.Status), duration)
}

// publishReport writes the text report to the log, caches it, and queues the
// email. Report delivery problems never fail the run itself.
func (s *RealignService) publishReport(ctx context.Context, run *models.RealignRun, rep report.Report) {
	text := report.RenderText(rep)
	s.logger.Info("realignment report",
		zap.String("run_id", run.ID),
		zap.String("site_id", run.SiteID),
		zap.String("report", text))

	if s.reports != nil {
		if err := s.reports.SetLatestReport(ctx, run.SiteID, text); err != nil {
			s.logger.Warn("failed to cache report", zap.Error(err))
		}
	}

	if s.dispatch == nil || run.Recipient == "" {
		return
	}
	subject := "Maintenance window realignment " + run.PatchTuesday.Format("2006-01")
	job := jobs.Job{
		ID:   run.ID,
		Type: MailJobType,
		Payload: MailPayload{
			Recipient: run.Recipient,
			Subject:   subject,
			HTMLBody:  report.RenderHTML(rep),
		},
	}
	if err := s.dispatch.Enqueue(job); err != nil {
		s.logger.Error("failed to queue report email", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// exclusionReason returns a non-empty reason when the collection name is on
// the built-in exclusion list: lab/test collections ("Fake") and windows
// managed as native recurrences ("reoccurring").
func exclusionReason(name string) string {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "fake") {
		return "excluded by name (fake collection)"
	}
	if strings.HasSuffix(lower, "reoccurring") {
		return "excluded by name (recurring window)"
	}
	return ""
}
