package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opsgrid/patchwin-api/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func sampleReport() Report {
	oldStart := time.Date(2020, time.January, 8, 19, 0, 0, 0, time.UTC)
	newStart := time.Date(2020, time.January, 15, 19, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(time.Hour)
	return Report{
		SiteID:       "PR1",
		PatchTuesday: time.Date(2020, time.January, 14, 0, 0, 0, 0, time.UTC),
		Records: []models.RealignResult{
			{Position: 0, CollectionName: "Patch - Web Servers", WindowName: "Monthly Patching",
				Outcome: models.OutcomeUpdated, OldStart: timePtr(oldStart), NewStart: timePtr(newStart), NewEnd: timePtr(newEnd)},
			{Position: 1, CollectionName: "Patch - DB Servers", Outcome: models.OutcomeFailed, Detail: "update rejected: permission denied"},
			{Position: 2, CollectionName: "Patch - Fake Lab", Outcome: models.OutcomeSkipped, Detail: "excluded by name"},
		},
	}
}

func TestRenderTextOrderAndContent(t *testing.T) {
	text := RenderText(sampleReport())

	assert.Contains(t, text, "site PR1")
	assert.Contains(t, text, "Patch Tuesday: 2020-01-14")
	assert.Contains(t, text, "moved from Wed 2020-01-08 19:00 to Wed 2020-01-15 19:00")
	assert.Contains(t, text, "FAILED - update rejected: permission denied")
	assert.Contains(t, text, "skipped (excluded by name)")

	// Lines appear in discovery order.
	web := strings.Index(text, "Web Servers")
	db := strings.Index(text, "DB Servers")
	fake := strings.Index(text, "Fake Lab")
	assert.Less(t, web, db)
	assert.Less(t, db, fake)
}

func TestRenderTextEmptyFallback(t *testing.T) {
	r := Report{SiteID: "PR1", PatchTuesday: time.Date(2020, time.February, 11, 0, 0, 0, 0, time.UTC)}
	text := RenderText(r)
	assert.Contains(t, text, EmptyMessage)
	assert.NotContains(t, text, "FAILED")
}

func TestRenderHTML(t *testing.T) {
	body := RenderHTML(sampleReport())
	assert.Contains(t, body, "<table")
	assert.Contains(t, body, "Patch - Web Servers")
	assert.Contains(t, body, "UPDATED")
	assert.Contains(t, body, "permission denied")
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	r := Report{
		SiteID:       "PR1",
		PatchTuesday: time.Date(2020, time.January, 14, 0, 0, 0, 0, time.UTC),
		Records: []models.RealignResult{
			{CollectionName: "Servers <critical>", Outcome: models.OutcomeFailed, Detail: "bad & worse"},
		},
	}
	body := RenderHTML(r)
	assert.Contains(t, body, "Servers &lt;critical&gt;")
	assert.Contains(t, body, "bad &amp; worse")
	assert.NotContains(t, body, "<critical>")
}

func TestRenderHTMLEmptyFallback(t *testing.T) {
	r := Report{SiteID: "PR1", PatchTuesday: time.Date(2020, time.February, 11, 0, 0, 0, 0, time.UTC)}
	body := RenderHTML(r)
	assert.Contains(t, body, EmptyMessage)
	assert.NotContains(t, body, "<table")
}
