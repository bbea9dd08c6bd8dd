package report

import (
	"encoding/json"
	"fmt"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/severity"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"

	toolName = "vulnflow"
)

// SARIFRenderer renders the run report as a SARIF 2.1.0 document so
// findings land in code-scanning dashboards alongside other tools.
// Remediated findings carry kind "pass"; everything else is "fail".
type SARIFRenderer struct {
	// ToolVersion is stamped into the tool driver block.
	ToolVersion string
}

func (r *SARIFRenderer) Name() string        { return "sarif" }
func (r *SARIFRenderer) ContentType() string { return "application/sarif+json" }

func (r *SARIFRenderer) Render(report *model.RunReport) ([]byte, error) {
	if report == nil {
		return nil, errors.E(errors.KindInvalidInput, "report.SARIFRenderer.Render", "nil report")
	}

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:    toolName,
				Version: r.ToolVersion,
			},
		},
	}

	ruleSeen := make(map[string]bool)
	for _, chain := range report.Chains {
		f := chain.Finding

		ruleID := f.RuleID
		if ruleID == "" {
			ruleID = "vulnflow." + f.Category.String()
		}
		if !ruleSeen[ruleID] {
			ruleSeen[ruleID] = true
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               ruleID,
				Name:             f.Category.String(),
				ShortDescription: sarifMessage{Text: f.Category.String()},
				Properties: sarifRuleProps{
					Tags: []string{"security", f.Category.CWE()},
				},
			})
		}

		run.Results = append(run.Results, r.convertChain(chain, ruleID))
	}

	doc := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs:    []sarifRun{run},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.E(errors.KindInternal, "report.SARIFRenderer.Render", "marshal sarif", err)
	}
	return data, nil
}

func (r *SARIFRenderer) convertChain(chain model.FindingChain, ruleID string) sarifResult {
	f := chain.Finding

	result := sarifResult{
		RuleID:  ruleID,
		Level:   sarifLevel(f.Severity),
		Kind:    "fail",
		Message: sarifMessage{Text: resultMessage(chain)},
		Rank:    Round2(f.Severity * 10),
		PartialFingerprints: map[string]string{
			"patternSignature": f.PatternSignature,
		},
	}
	if chain.State == model.StateReported {
		result.Kind = "pass"
	}

	if f.Location.FilePath != "" {
		result.Locations = []sarifLocation{{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: f.Location.FilePath},
				Region: sarifRegion{
					StartLine: f.Location.StartLine,
					EndLine:   f.Location.EndLine,
					Snippet:   sarifSnippet{Text: f.Location.Snippet},
				},
			},
		}}
	}
	return result
}

func resultMessage(chain model.FindingChain) string {
	f := chain.Finding
	desc := f.Description
	if desc == "" {
		desc = f.Category.String()
	}
	switch {
	case chain.State == model.StateReported:
		return fmt.Sprintf("%s (remediated, patch %s)", desc, chain.Patch.ID)
	case chain.Failed():
		return fmt.Sprintf("%s (remediation failed at %s: %s)", desc, chain.FailedStage, chain.FailureReason)
	default:
		return desc
	}
}

// sarifLevel maps a severity score to a SARIF level.
func sarifLevel(score float64) string {
	switch levelFor(score) {
	case severity.Critical, severity.High:
		return "error"
	case severity.Medium:
		return "warning"
	case severity.Low:
		return "note"
	default:
		return "none"
	}
}

var _ Renderer = (*SARIFRenderer)(nil)

// =============================================================================
// SARIF document types
// =============================================================================

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string         `json:"id"`
	Name             string         `json:"name,omitempty"`
	ShortDescription sarifMessage   `json:"shortDescription,omitempty"`
	Properties       sarifRuleProps `json:"properties,omitempty"`
}

type sarifRuleProps struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Kind                string            `json:"kind,omitempty"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	Rank                float64           `json:"rank,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int          `json:"startLine,omitempty"`
	EndLine   int          `json:"endLine,omitempty"`
	Snippet   sarifSnippet `json:"snippet,omitempty"`
}

type sarifSnippet struct {
	Text string `json:"text,omitempty"`
}
