package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrid/patchwin-api/internal/models"
	"github.com/opsgrid/patchwin-api/internal/report"
	"github.com/opsgrid/patchwin-api/pkg/config"
	"github.com/opsgrid/patchwin-api/pkg/jobs"
)

type appliedWindow struct {
	CollectionID string
	WindowName   string
	Window       models.ServiceWindow
}

type platformStub struct {
	collections []models.Collection
	listErr     error
	windows     map[string]*models.MaintenanceWindow
	windowErrs  map[string]error
	applyErrs   map[string]error
	applied     []appliedWindow
	windowReads []string
}

func (p *platformStub) ListCollections(ctx context.Context, siteID, pattern string) ([]models.Collection, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.collections, nil
}

func (p *platformStub) GetMaintenanceWindow(ctx context.Context, collectionID string) (*models.MaintenanceWindow, error) {
	p.windowReads = append(p.windowReads, collectionID)
	if err := p.windowErrs[collectionID]; err != nil {
		return nil, err
	}
	win, ok := p.windows[collectionID]
	if !ok {
		return nil, fmt.Errorf("no window for %s", collectionID)
	}
	return win, nil
}

func (p *platformStub) ApplyServiceWindow(ctx context.Context, collectionID, windowName string, window models.ServiceWindow) error {
	if err := p.applyErrs[collectionID]; err != nil {
		return err
	}
	p.applied = append(p.applied, appliedWindow{CollectionID: collectionID, WindowName: windowName, Window: window})
	return nil
}

type runRepoStub struct {
	created    *models.RealignRun
	finished   *models.RealignRun
	results    []models.RealignResult
	hasRun     bool
	hasRunErr  error
	createErr  error
	monthAsked time.Time
}

func (r *runRepoStub) CreateRun(ctx context.Context, run *models.RealignRun) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = run
	return nil
}

func (r *runRepoStub) FinishRun(ctx context.Context, run *models.RealignRun) error {
	r.finished = run
	return nil
}

func (r *runRepoStub) InsertResults(ctx context.Context, results []models.RealignResult) error {
	r.results = results
	return nil
}

func (r *runRepoStub) GetRun(ctx context.Context, id string) (*models.RealignRun, error) {
	if r.created != nil && r.created.ID == id {
		return r.created, nil
	}
	return nil, errors.New("not found")
}

func (r *runRepoStub) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RealignRun, int, error) {
	if r.created == nil {
		return nil, 0, nil
	}
	return []models.RealignRun{*r.created}, 1, nil
}

func (r *runRepoStub) ListResults(ctx context.Context, runID string) ([]models.RealignResult, error) {
	return r.results, nil
}

func (r *runRepoStub) HasRunInMonth(ctx context.Context, siteID string, day time.Time) (bool, error) {
	r.monthAsked = day
	return r.hasRun, r.hasRunErr
}

type dispatchStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatchStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type reportStoreStub struct {
	siteID string
	body   string
}

func (r *reportStoreStub) SetLatestReport(ctx context.Context, siteID, body string) error {
	r.siteID = siteID
	r.body = body
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(platform *platformStub, runs *runRepoStub, dispatch *dispatchStub, store *reportStoreStub, today time.Time) *RealignService {
	var dispatcher reportDispatcher
	if dispatch != nil {
		dispatcher = dispatch
	}
	var reports latestReportStore
	if store != nil {
		reports = store
	}
	svc := NewRealignService(platform, runs, dispatcher, reports, nil, nil, nil)
	return svc.WithClock(fixedClock(today))
}

func baseRequest() RunRequest {
	return RunRequest{SiteID: "PR1", Pattern: "Patch - *", Recipient: "ops@example.com"}
}

func TestRunRealignsCollectionsInOrder(t *testing.T) {
	platform := &platformStub{
		collections: []models.Collection{
			{ID: "c-1", SiteID: "PR1", Name: "Patch - Web Servers"},
			{ID: "c-2", SiteID: "PR1", Name: "Patch - DB Servers"},
		},
		windows: map[string]*models.MaintenanceWindow{
			"c-1": {Name: "Monthly Patching", StartDay: time.Wednesday, StartHour: 19, DurationMinutes: 60, Recurring: true},
			"c-2": {Name: "Monthly Patching", StartDay: time.Thursday, StartHour: 2, DurationMinutes: 120, Recurring: true},
		},
	}
	runs := &runRepoStub{}
	dispatch := &dispatchStub{}
	store := &reportStoreStub{}
	svc := newTestService(platform, runs, dispatch, store, time.Date(2020, time.January, 3, 8, 0, 0, 0, time.UTC))

	run, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2020, time.January, 14, 0, 0, 0, 0, time.UTC), run.PatchTuesday)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Updated)
	assert.Zero(t, run.Failed)

	require.Len(t, platform.applied, 2)
	assert.Equal(t, time.Date(2020, time.January, 15, 19, 0, 0, 0, time.UTC), platform.applied[0].Window.Start)
	assert.Equal(t, time.Date(2020, time.January, 15, 20, 0, 0, 0, time.UTC), platform.applied[0].Window.End)
	assert.Equal(t, time.Date(2020, time.January, 16, 2, 0, 0, 0, time.UTC), platform.applied[1].Window.Start)
	assert.Equal(t, time.Date(2020, time.January, 16, 4, 0, 0, 0, time.UTC), platform.applied[1].Window.End)

	require.Len(t, runs.results, 2)
	assert.Equal(t, 0, runs.results[0].Position)
	assert.Equal(t, "Patch - Web Servers", runs.results[0].CollectionName)
	assert.Equal(t, 1, runs.results[1].Position)

	require.Len(t, dispatch.jobs, 1)
	payload := dispatch.jobs[0].Payload.(MailPayload)
	assert.Equal(t, "ops@example.com", payload.Recipient)
	assert.Contains(t, payload.HTMLBody, "Patch - Web Servers")

	assert.Equal(t, "PR1", store.siteID)
	assert.Contains(t, store.body, "Patch Tuesday: 2020-01-14")
}

func TestRunContinuesPastFailingCollection(t *testing.T) {
	platform := &platformStub{
		collections: []models.Collection{
			{ID: "c-1", Name: "Patch - Web Servers"},
			{ID: "c-2", Name: "Patch - DB Servers"},
		},
		windows: map[string]*models.MaintenanceWindow{
			"c-1": {Name: "w", StartDay: time.Wednesday, StartHour: 19, DurationMinutes: 60},
			"c-2": {Name: "w", StartDay: time.Thursday, StartHour: 2, DurationMinutes: 60},
		},
		applyErrs: map[string]error{"c-1": errors.New("platform returned status 403: permission denied")},
	}
	runs := &runRepoStub{}
	svc := newTestService(platform, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC))

	run, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Updated)

	require.Len(t, runs.results, 2)
	assert.Equal(t, models.OutcomeFailed, runs.results[0].Outcome)
	assert.Contains(t, runs.results[0].Detail, "permission denied")
	assert.Equal(t, models.OutcomeUpdated, runs.results[1].Outcome)
	require.Len(t, platform.applied, 1)
	assert.Equal(t, "c-2", platform.applied[0].CollectionID)
}

func TestRunSkipsExcludedCollections(t *testing.T) {
	platform := &platformStub{
		collections: []models.Collection{
			{ID: "c-1", Name: "Patch - Fake Lab"},
			{ID: "c-2", Name: "Patch - Servers reoccurring"},
			{ID: "c-3", Name: "Patch - Web Servers"},
		},
		windows: map[string]*models.MaintenanceWindow{
			"c-3": {Name: "w", StartDay: time.Wednesday, StartHour: 19, DurationMinutes: 60},
		},
	}
	runs := &runRepoStub{}
	svc := newTestService(platform, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC))

	run, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, run.Skipped)
	assert.Equal(t, 1, run.Updated)
	// Excluded collections are never read from the platform.
	assert.Equal(t, []string{"c-3"}, platform.windowReads)
	assert.Equal(t, models.OutcomeSkipped, runs.results[0].Outcome)
	assert.Equal(t, models.OutcomeSkipped, runs.results[1].Outcome)
}

func TestRunEmptyDiscoveryUsesFallbackMessage(t *testing.T) {
	platform := &platformStub{}
	runs := &runRepoStub{}
	dispatch := &dispatchStub{}
	store := &reportStoreStub{}
	svc := newTestService(platform, runs, dispatch, store, time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC))

	run, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Zero(t, run.Updated+run.Failed+run.Skipped)
	assert.Contains(t, store.body, report.EmptyMessage)
	require.Len(t, dispatch.jobs, 1)
	payload := dispatch.jobs[0].Payload.(MailPayload)
	assert.Contains(t, payload.HTMLBody, report.EmptyMessage)
}

func TestRunAfterPatchTuesdayTargetsNextMonth(t *testing.T) {
	platform := &platformStub{}
	runs := &runRepoStub{}
	svc := newTestService(platform, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 20, 10, 0, 0, 0, time.UTC))

	run, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.February, 11, 0, 0, 0, 0, time.UTC), run.PatchTuesday)
}

func TestRunDiscoveryFailureFailsRun(t *testing.T) {
	platform := &platformStub{listErr: errors.New("connection refused")}
	runs := &runRepoStub{}
	svc := newTestService(platform, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC))

	_, err := svc.Run(context.Background(), baseRequest())
	require.Error(t, err)
	require.NotNil(t, runs.finished)
	assert.Equal(t, models.RunStatusFailed, runs.finished.Status)
}

func TestRunValidatesRequest(t *testing.T) {
	svc := newTestService(&platformStub{}, &runRepoStub{}, nil, nil, time.Now())

	_, err := svc.Run(context.Background(), RunRequest{Pattern: "Patch - *"})
	require.Error(t, err)

	_, err = svc.Run(context.Background(), RunRequest{SiteID: "PR1", Pattern: "Patch - *", Recipient: "not-an-email"})
	require.Error(t, err)
}

func TestMaybeAutoRun(t *testing.T) {
	cfg := config.RealignConfig{SiteID: "PR1", Pattern: "Patch - *", Recipient: "ops@example.com", AutoEnabled: true, RunDay: 3}

	t.Run("fires on run day", func(t *testing.T) {
		platform := &platformStub{}
		runs := &runRepoStub{}
		svc := newTestService(platform, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 3, 6, 0, 0, 0, time.UTC))
		svc.maybeAutoRun(context.Background(), cfg)
		assert.NotNil(t, runs.created)
	})

	t.Run("skips on other days", func(t *testing.T) {
		runs := &runRepoStub{}
		svc := newTestService(&platformStub{}, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 4, 6, 0, 0, 0, time.UTC))
		svc.maybeAutoRun(context.Background(), cfg)
		assert.Nil(t, runs.created)
	})

	t.Run("skips when month already ran", func(t *testing.T) {
		runs := &runRepoStub{hasRun: true}
		svc := newTestService(&platformStub{}, runs, &dispatchStub{}, nil, time.Date(2020, time.January, 3, 6, 0, 0, 0, time.UTC))
		svc.maybeAutoRun(context.Background(), cfg)
		assert.Nil(t, runs.created)
	})
}
