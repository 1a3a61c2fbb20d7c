package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/opsgrid/patchwin-api/internal/models"
	"github.com/opsgrid/patchwin-api/internal/patchtuesday"
	"github.com/opsgrid/patchwin-api/internal/report"
	"github.com/opsgrid/patchwin-api/internal/repository"
	"github.com/opsgrid/patchwin-api/internal/service"
	appErrors "github.com/opsgrid/patchwin-api/pkg/errors"
	"github.com/opsgrid/patchwin-api/pkg/export"
	"github.com/opsgrid/patchwin-api/pkg/response"
)

const exportTimeLayout = "2006-01-02 15:04"

// RealignHandler exposes realignment run endpoints.
type RealignHandler struct {
	service *service.RealignService
	reports *repository.ReportCache
}

// NewRealignHandler constructs a realign handler. reports may be nil when the
// deployment runs without Redis.
func NewRealignHandler(svc *service.RealignService, reports *repository.ReportCache) *RealignHandler {
	return &RealignHandler{service: svc, reports: reports}
}

// TriggerRun godoc
// @Summary Trigger a realignment run
// @Description Realigns maintenance windows of matching collections to the current patch cycle
// @Tags Realign
// @Accept json
// @Produce json
// @Param payload body service.RunRequest true "Run payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /realign/runs [post]
func (h *RealignHandler) TriggerRun(c *gin.Context) {
	var req service.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}

	run, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, run)
}

// ListRuns godoc
// @Summary List realignment runs
// @Tags Realign
// @Produce json
// @Param site_id query string false "Site ID"
// @Param status query string false "Run status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /realign/runs [get]
func (h *RealignHandler) ListRuns(c *gin.Context) {
	filter := models.RunFilter{SiteID: c.Query("site_id")}
	if raw := c.Query("status"); raw != "" {
		status := models.RunStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	runs, pagination, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Get one run with its results
// @Tags Realign
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /realign/runs/{id} [get]
func (h *RealignHandler) GetRun(c *gin.Context) {
	run, results, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"run": run, "results": results}, nil)
}

// GetReport godoc
// @Summary Render the report for a run
// @Tags Realign
// @Produce plain
// @Param id path string true "Run ID"
// @Param format query string false "text or html" default(text)
// @Success 200 {string} string
// @Failure 404 {object} response.Envelope
// @Router /realign/runs/{id}/report [get]
func (h *RealignHandler) GetReport(c *gin.Context) {
	run, results, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	rep := report.FromRun(run, results)
	switch c.DefaultQuery("format", "text") {
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(report.RenderHTML(rep)))
	case "text":
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report.RenderText(rep)))
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be text or html"))
	}
}

// LatestReport godoc
// @Summary Latest cached report for a site
// @Tags Realign
// @Produce plain
// @Param site_id query string true "Site ID"
// @Success 200 {string} string
// @Failure 404 {object} response.Envelope
// @Router /realign/report/latest [get]
func (h *RealignHandler) LatestReport(c *gin.Context) {
	siteID := c.Query("site_id")
	if siteID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "site_id required"))
		return
	}
	if h.reports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "report cache not configured"))
		return
	}

	body, err := h.reports.GetLatestReport(c.Request.Context(), siteID)
	if err != nil {
		if err == redis.Nil {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no report cached for site"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read cached report"))
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

// Export godoc
// @Summary Export run results as CSV or PDF
// @Tags Realign
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /realign/runs/{id}/export [get]
func (h *RealignHandler) Export(c *gin.Context) {
	run, results, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	table := resultsTable(run, results)
	format := c.DefaultQuery("format", "csv")

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		body, err = export.RenderCSV(table)
		contentType = "text/csv"
	case "pdf":
		body, err = export.RenderPDF(table)
		contentType = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}

	filename := fmt.Sprintf("realign-%s.%s", run.ID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

// Preview godoc
// @Summary Preview the patch cycle for a date
// @Description Computes Patch Tuesday for the cycle a given date falls in, without touching any collection
// @Tags Realign
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /realign/preview [get]
func (h *RealignHandler) Preview(c *gin.Context) {
	today := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		today = parsed
	}

	patchTuesday := patchtuesday.ResolveCycle(today)
	response.JSON(c, http.StatusOK, gin.H{
		"date":          today.Format("2006-01-02"),
		"patch_tuesday": patchTuesday.Format("2006-01-02"),
	}, nil)
}

func resultsTable(run *models.RealignRun, results []models.RealignResult) export.Table {
	rows := make([][]string, 0, len(results))
	for _, rec := range results {
		rows = append(rows, []string{
			strconv.Itoa(rec.Position),
			rec.CollectionName,
			rec.WindowName,
			string(rec.Outcome),
			formatOptionalTime(rec.OldStart),
			formatOptionalTime(rec.NewStart),
			formatOptionalTime(rec.NewEnd),
			rec.Detail,
		})
	}
	return export.Table{
		Title:   fmt.Sprintf("Realignment %s (%s)", run.PatchTuesday.Format("2006-01"), run.SiteID),
		Headers: []string{"#", "Collection", "Window", "Outcome", "Old Start", "New Start", "New End", "Detail"},
		Rows:    rows,
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}
