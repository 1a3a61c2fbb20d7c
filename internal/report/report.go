package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/opsgrid/patchwin-api/internal/models"
)

// EmptyMessage is the canned body used when a run touched nothing.
const EmptyMessage = "No maintenance windows were modified."

const timeLayout = "Mon 2006-01-02 15:04"

// Report is an ordered sequence of per-collection results for one run.
// Records keep the order collections were discovered in, so the rendered
// output reads as an audit trail.
type Report struct {
	SiteID       string
	PatchTuesday time.Time
	Records      []models.RealignResult
}

// FromRun builds a report from a persisted run and its ordered results.
func FromRun(run *models.RealignRun, results []models.RealignResult) Report {
	return Report{SiteID: run.SiteID, PatchTuesday: run.PatchTuesday, Records: results}
}

// Lines returns one human-readable line per record. Both renderers format
// the same lines so log and email never disagree on content.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		lines = append(lines, formatRecord(rec))
	}
	return lines
}

func formatRecord(rec models.RealignResult) string {
	switch rec.Outcome {
	case models.OutcomeUpdated:
		old := "none"
		if rec.OldStart != nil {
			old = rec.OldStart.Format(timeLayout)
		}
		return fmt.Sprintf("%s / %s: moved from %s to %s - %s",
			rec.CollectionName, rec.WindowName, old,
			rec.NewStart.Format(timeLayout), rec.NewEnd.Format(timeLayout))
	case models.OutcomeSkipped:
		return fmt.Sprintf("%s: skipped (%s)", rec.CollectionName, rec.Detail)
	default:
		return fmt.Sprintf("%s: FAILED - %s", rec.CollectionName, rec.Detail)
	}
}

// RenderText produces the plain-text body used for the log sink and the
// text email alternative.
func RenderText(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Maintenance window realignment for site %s\n", r.SiteID)
	fmt.Fprintf(&b, "Patch Tuesday: %s\n\n", r.PatchTuesday.Format("2006-01-02"))
	if len(r.Records) == 0 {
		b.WriteString(EmptyMessage)
		b.WriteString("\n")
		return b.String()
	}
	for _, line := range r.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHTML produces the HTML email body.
func RenderHTML(r Report) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h3>Maintenance window realignment for site %s</h3>", html.EscapeString(r.SiteID))
	fmt.Fprintf(&b, "<p>Patch Tuesday: %s</p>", r.PatchTuesday.Format("2006-01-02"))
	if len(r.Records) == 0 {
		fmt.Fprintf(&b, "<p>%s</p>", EmptyMessage)
		b.WriteString("</body></html>")
		return b.String()
	}
	b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Collection</th><th>Window</th><th>Outcome</th><th>Detail</th></tr>")
	for _, rec := range r.Records {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(rec.CollectionName),
			html.EscapeString(rec.WindowName),
			rec.Outcome,
			html.EscapeString(recordDetail(rec)))
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func recordDetail(rec models.RealignResult) string {
	if rec.Outcome == models.OutcomeUpdated {
		return fmt.Sprintf("%s - %s", rec.NewStart.Format(timeLayout), rec.NewEnd.Format(timeLayout))
	}
	return rec.Detail
}
