// Package sarif converts SARIF 2.1.0 documents produced by external
// scanners (semgrep, CodeQL, trivy) into pipeline findings, so their
// results flow through the same remediation chains as the built-in
// scanner's.
package sarif

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/signature"
)

// Adapter converts SARIF input into findings.
type Adapter struct {
	// DefaultSeverity is used when a result carries neither a
	// security-severity property nor a level. Default 5.0.
	DefaultSeverity float64
}

// CanConvert reports whether the input looks like a SARIF document.
func (a *Adapter) CanConvert(input []byte) bool {
	trimmed := strings.TrimSpace(string(input))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return strings.Contains(trimmed, `"version"`) && strings.Contains(trimmed, `"runs"`)
}

// Convert parses a SARIF document and returns the findings it
// describes. Results without a recognizable vulnerability category are
// skipped; SARIF carries many non-security result types.
func (a *Adapter) Convert(input []byte) ([]model.Finding, error) {
	const op = "adapters.sarif.Convert"

	var doc document
	if err := json.Unmarshal(input, &doc); err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "parse sarif", err)
	}
	if len(doc.Runs) == 0 {
		return nil, errors.E(errors.KindInvalidInput, op, "sarif document has no runs")
	}

	var findings []model.Finding
	for _, run := range doc.Runs {
		rules := indexRules(run)
		for _, result := range run.Results {
			f, ok := a.convertResult(result, rules[result.RuleID])
			if !ok {
				continue
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func (a *Adapter) convertResult(result resultNode, rule *ruleNode) (model.Finding, bool) {
	category, ok := categoryFor(result, rule)
	if !ok {
		return model.Finding{}, false
	}

	f := model.Finding{
		ID:          uuid.NewString(),
		Category:    category,
		Severity:    a.severityFor(result, rule),
		Description: result.Message.Text,
		RuleID:      result.RuleID,
	}

	if len(result.Locations) > 0 {
		loc := result.Locations[0].PhysicalLocation
		f.Location = model.Location{
			FilePath:  loc.ArtifactLocation.URI,
			StartLine: loc.Region.StartLine,
			EndLine:   loc.Region.EndLine,
			Snippet:   loc.Region.Snippet.Text,
		}
	}

	f.PatternSignature = signature.GeneratePattern(category.String(), f.RuleID, f.Location.Snippet)
	return f, true
}

// severityFor prefers the tool's security-severity property, falling
// back to the SARIF level bands.
func (a *Adapter) severityFor(result resultNode, rule *ruleNode) float64 {
	if rule != nil {
		if raw, ok := rule.Properties.Extra["security-severity"]; ok {
			if score, err := parseScore(raw); err == nil {
				return score
			}
		}
	}

	level := result.Level
	if level == "" && rule != nil {
		level = rule.DefaultConfiguration.Level
	}
	switch level {
	case "error":
		return 8.0
	case "warning":
		return 5.0
	case "note":
		return 2.0
	}
	if a.DefaultSeverity > 0 {
		return a.DefaultSeverity
	}
	return 5.0
}

// parseScore accepts both JSON numbers and the string-encoded numbers
// GitHub emits.
func parseScore(raw json.RawMessage) (float64, error) {
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(asString, 64)
}

// categoryFor maps a result onto a pipeline category via the CWE tags
// on its rule, falling back to keywords in the rule ID.
func categoryFor(result resultNode, rule *ruleNode) (model.Category, bool) {
	if rule != nil {
		for _, tag := range rule.Properties.Tags {
			if c, ok := categoryFromCWE(tag); ok {
				return c, true
			}
		}
	}
	return categoryFromRuleID(result.RuleID)
}

func categoryFromCWE(tag string) (model.Category, bool) {
	// Tags come as "CWE-89" or "external/cwe/cwe-089".
	tag = strings.ToUpper(tag)
	if i := strings.LastIndex(tag, "CWE-"); i >= 0 {
		tag = tag[i:]
	}
	tag = strings.TrimLeft(strings.TrimPrefix(tag, "CWE-"), "0")

	switch tag {
	case "89":
		return model.CategorySQLInjection, true
	case "79":
		return model.CategoryXSS, true
	case "22":
		return model.CategoryPathTraversal, true
	case "798", "259":
		return model.CategoryHardcodedCredential, true
	case "306", "284", "862":
		return model.CategoryMissingAuth, true
	}
	return "", false
}

func categoryFromRuleID(ruleID string) (model.Category, bool) {
	id := strings.ToLower(ruleID)
	switch {
	case strings.Contains(id, "sql"):
		return model.CategorySQLInjection, true
	case strings.Contains(id, "xss"):
		return model.CategoryXSS, true
	case strings.Contains(id, "path-traversal"), strings.Contains(id, "traversal"):
		return model.CategoryPathTraversal, true
	case strings.Contains(id, "secret"), strings.Contains(id, "credential"), strings.Contains(id, "hardcoded"):
		return model.CategoryHardcodedCredential, true
	case strings.Contains(id, "auth"):
		return model.CategoryMissingAuth, true
	}
	return "", false
}

func indexRules(run runNode) map[string]*ruleNode {
	rules := make(map[string]*ruleNode, len(run.Tool.Driver.Rules))
	for i := range run.Tool.Driver.Rules {
		rule := &run.Tool.Driver.Rules[i]
		rules[rule.ID] = rule
	}
	return rules
}

// =============================================================================
// SARIF document types (input subset)
// =============================================================================

type document struct {
	Version string    `json:"version"`
	Runs    []runNode `json:"runs"`
}

type runNode struct {
	Tool    toolNode     `json:"tool"`
	Results []resultNode `json:"results"`
}

type toolNode struct {
	Driver driverNode `json:"driver"`
}

type driverNode struct {
	Name  string     `json:"name"`
	Rules []ruleNode `json:"rules"`
}

type ruleNode struct {
	ID                   string     `json:"id"`
	Properties           ruleProps  `json:"properties"`
	DefaultConfiguration configNode `json:"defaultConfiguration"`
}

type ruleProps struct {
	Tags  []string                   `json:"tags"`
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the unknown property bag so security-severity
// and friends survive.
func (p *ruleProps) UnmarshalJSON(data []byte) error {
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	if raw, ok := extra["tags"]; ok {
		if err := json.Unmarshal(raw, &p.Tags); err != nil {
			return err
		}
		delete(extra, "tags")
	}
	p.Extra = extra
	return nil
}

type configNode struct {
	Level string `json:"level"`
}

type resultNode struct {
	RuleID    string         `json:"ruleId"`
	Level     string         `json:"level"`
	Message   messageNode    `json:"message"`
	Locations []locationNode `json:"locations"`
}

type messageNode struct {
	Text string `json:"text"`
}

type locationNode struct {
	PhysicalLocation physicalLocationNode `json:"physicalLocation"`
}

type physicalLocationNode struct {
	ArtifactLocation artifactLocationNode `json:"artifactLocation"`
	Region           regionNode           `json:"region"`
}

type artifactLocationNode struct {
	URI string `json:"uri"`
}

type regionNode struct {
	StartLine int         `json:"startLine"`
	EndLine   int         `json:"endLine"`
	Snippet   snippetNode `json:"snippet"`
}

type snippetNode struct {
	Text string `json:"text"`
}
