// Package report renders a finalized run report for human and machine
// consumers. Values inside the run report stay exact; the documented
// two-decimal rounding of headline statistics happens here, at
// presentation time, and nowhere else.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/severity"
)

// Renderer turns a run report into an output document.
type Renderer interface {
	// Name identifies the output format (json, sarif, text).
	Name() string

	// ContentType is the MIME type of the rendered document.
	ContentType() string

	// Render produces the document. The report is read-only.
	Render(report *model.RunReport) ([]byte, error)
}

// Round2 applies the documented presentation precision of two decimal
// places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// =============================================================================
// Presentation document
// =============================================================================

// Headline is the rounded presentation form of the metrics summary.
type Headline struct {
	FindingsProcessed    int     `json:"findings_processed"`
	Deployed             int     `json:"deployed"`
	Failed               int     `json:"failed"`
	TimeSavedHours       float64 `json:"time_saved_hours"`
	CostSavedUSD         float64 `json:"cost_saved_usd"`
	RiskReductionPercent float64 `json:"risk_reduction_percent"`
	ElapsedSeconds       float64 `json:"elapsed_seconds"`
	CompliancePercent    float64 `json:"compliance_percent"`
}

// ChainSummary is the per-finding presentation row.
type ChainSummary struct {
	FindingID     string  `json:"finding_id"`
	Category      string  `json:"category"`
	Severity      float64 `json:"severity"`
	AdjustedScore float64 `json:"adjusted_score"`
	State         string  `json:"state"`
	Location      string  `json:"location"`
	PatchID       string  `json:"patch_id,omitempty"`
	BackupRef     string  `json:"backup_ref,omitempty"`
	RolledBack    bool    `json:"rolled_back,omitempty"`
	FailedStage   string  `json:"failed_stage,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	TimesSeen     int     `json:"times_seen,omitempty"`
}

// Document is the presentation form of a run report.
type Document struct {
	RunID      string         `json:"run_id"`
	Repository string         `json:"repository,omitempty"`
	Branch     string         `json:"branch,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Headline   Headline       `json:"headline"`
	Chains     []ChainSummary `json:"chains"`
	Incidents  int            `json:"incidents"`
	Contained  int            `json:"incidents_contained"`
}

// BuildDocument derives the presentation document, applying the
// two-decimal rounding to every headline figure.
func BuildDocument(r *model.RunReport) *Document {
	doc := &Document{
		RunID:      r.RunID,
		Repository: r.Artifact.Repository,
		Branch:     r.Artifact.Branch,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Headline: Headline{
			FindingsProcessed:    r.Metrics.FindingsProcessed,
			Deployed:             r.Deployed(),
			Failed:               len(r.FailedChains()),
			TimeSavedHours:       Round2(r.Metrics.TimeSavedSeconds / 3600),
			CostSavedUSD:         Round2(r.Metrics.CostSavedUSD),
			RiskReductionPercent: Round2(r.Metrics.RiskReductionPercent * 100),
			ElapsedSeconds:       Round2(r.Metrics.TotalElapsedSeconds),
			CompliancePercent:    Round2(r.Compliance.Percentage * 100),
		},
		Incidents: len(r.Incidents),
	}
	for _, inc := range r.Incidents {
		if inc.Contained {
			doc.Contained++
		}
	}

	for _, c := range r.Chains {
		row := ChainSummary{
			FindingID: c.Finding.ID,
			Category:  c.Finding.Category.String(),
			Severity:  c.Finding.Severity,
			State:     c.State.String(),
			Location:  formatLocation(c.Finding.Location),
		}
		if c.Assessment != nil {
			row.AdjustedScore = Round2(c.Assessment.SeverityAdjustedScore)
		}
		if c.Patch != nil {
			row.PatchID = c.Patch.ID
		}
		if c.Deployment != nil {
			row.BackupRef = c.Deployment.BackupRef
			row.RolledBack = c.Deployment.RollbackRef != ""
		}
		if c.Failed() {
			row.FailedStage = c.FailedStage
			row.FailureReason = c.FailureReason
		}
		if c.Learning != nil {
			row.TimesSeen = c.Learning.TimesSeen
		}
		doc.Chains = append(doc.Chains, row)
	}
	return doc
}

func formatLocation(loc model.Location) string {
	if loc.FilePath == "" {
		return ""
	}
	if loc.StartLine > 0 {
		return fmt.Sprintf("%s:%d", loc.FilePath, loc.StartLine)
	}
	return loc.FilePath
}

// =============================================================================
// JSON renderer
// =============================================================================

// JSONRenderer renders the presentation document as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Name() string        { return "json" }
func (r *JSONRenderer) ContentType() string { return "application/json" }

func (r *JSONRenderer) Render(report *model.RunReport) ([]byte, error) {
	if report == nil {
		return nil, errors.E(errors.KindInvalidInput, "report.JSONRenderer.Render", "nil report")
	}
	data, err := json.MarshalIndent(BuildDocument(report), "", "  ")
	if err != nil {
		return nil, errors.E(errors.KindInternal, "report.JSONRenderer.Render", "marshal document", err)
	}
	return data, nil
}

// =============================================================================
// Text renderer
// =============================================================================

// TextRenderer renders a compact human-readable summary.
type TextRenderer struct{}

func (r *TextRenderer) Name() string        { return "text" }
func (r *TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (r *TextRenderer) Render(report *model.RunReport) ([]byte, error) {
	if report == nil {
		return nil, errors.E(errors.KindInvalidInput, "report.TextRenderer.Render", "nil report")
	}
	doc := BuildDocument(report)

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s", doc.RunID)
	if doc.Repository != "" {
		fmt.Fprintf(&b, " on %s", doc.Repository)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Findings: %d  Deployed: %d  Failed: %d\n",
		doc.Headline.FindingsProcessed, doc.Headline.Deployed, doc.Headline.Failed)
	fmt.Fprintf(&b, "Time saved: %.2fh  Cost saved: $%.2f  Risk reduction: %.2f%%\n",
		doc.Headline.TimeSavedHours, doc.Headline.CostSavedUSD, doc.Headline.RiskReductionPercent)
	fmt.Fprintf(&b, "Compliance: %.2f%%  Incidents: %d (%d contained)\n",
		doc.Headline.CompliancePercent, doc.Incidents, doc.Contained)

	if len(doc.Chains) > 0 {
		b.WriteString("\n")
		for _, c := range doc.Chains {
			fmt.Fprintf(&b, "  [%5.2f] %-22s %-10s %s", c.AdjustedScore, c.Category, c.State, c.Location)
			if c.FailedStage != "" {
				fmt.Fprintf(&b, " (%s: %s)", c.FailedStage, c.FailureReason)
			}
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

// levelFor maps a severity score to the level label used in output.
func levelFor(score float64) severity.Level {
	return severity.FromScore(score)
}

var (
	_ Renderer = (*JSONRenderer)(nil)
	_ Renderer = (*TextRenderer)(nil)
)
