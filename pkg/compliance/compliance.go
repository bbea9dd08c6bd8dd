// Package compliance maps a (Finding, Patch) pair to a verdict per
// supported regulatory standard. Validation is a pure function of its
// inputs: no hidden state, identical inputs give identical verdicts
// before and after deployment.
package compliance

import (
	"time"

	"github.com/vulnflow/vulnflow/pkg/model"
)

// Standard identifies a supported compliance standard.
type Standard string

const (
	OWASP    Standard = "OWASP"
	GDPR     Standard = "GDPR"
	PCIDSS   Standard = "PCI_DSS"
	SOC2     Standard = "SOC2"
	ISO27001 Standard = "ISO27001"
)

// AllStandards returns the supported standards in canonical order.
func AllStandards() []Standard {
	return []Standard{OWASP, GDPR, PCIDSS, SOC2, ISO27001}
}

// String returns the string representation.
func (s Standard) String() string {
	return string(s)
}

// auditInterval is how far ahead the next compliance audit is scheduled.
const auditInterval = 90 * 24 * time.Hour

// Verdict is the outcome of checking one finding against one standard.
type Verdict struct {
	// Standard that was checked
	Standard Standard `json:"standard"`

	// Whether the check passed
	Passed bool `json:"passed"`

	// Why the check passed or failed
	Reason string `json:"reason"`
}

// Validate checks a finding and its patch against every supported
// standard and returns one verdict per standard, in AllStandards order.
// A nil patch or an empty diff means no fix has been applied.
func Validate(finding model.Finding, patch *model.Patch) []Verdict {
	fixed := patch != nil && patch.Diff != ""

	verdicts := make([]Verdict, 0, len(AllStandards()))
	for _, std := range AllStandards() {
		verdicts = append(verdicts, check(std, finding, patch, fixed))
	}
	return verdicts
}

func check(std Standard, finding model.Finding, patch *model.Patch, fixed bool) Verdict {
	switch std {
	case OWASP:
		// Every supported category maps to an OWASP Top 10 class,
		// so the verdict hinges on remediation alone.
		if fixed {
			return Verdict{Standard: std, Passed: true, Reason: "vulnerability remediated per OWASP secure coding guidance"}
		}
		return Verdict{Standard: std, Passed: false, Reason: "unremediated " + finding.Category.String() + " violates OWASP Top 10 controls"}

	case GDPR:
		if !touchesPersonalData(finding.Category) {
			return Verdict{Standard: std, Passed: true, Reason: "no direct personal data access path"}
		}
		if fixed {
			return Verdict{Standard: std, Passed: true, Reason: "personal data exposure path closed"}
		}
		return Verdict{Standard: std, Passed: false, Reason: "open personal data exposure (Art. 32 security of processing)"}

	case PCIDSS:
		// Low-severity findings outside the cardholder data path are
		// tolerated; everything else must be fixed.
		if fixed {
			return Verdict{Standard: std, Passed: true, Reason: "secure development requirement 6 satisfied"}
		}
		if finding.Severity < 4.0 {
			return Verdict{Standard: std, Passed: true, Reason: "below actionable severity threshold for requirement 6"}
		}
		return Verdict{Standard: std, Passed: false, Reason: "unpatched vulnerability in scope of requirement 6.2"}

	case SOC2:
		// SOC2 wants evidence, not just a fix: the patch must carry
		// a test plan showing the control was exercised.
		if fixed && patch.TestPlan != "" {
			return Verdict{Standard: std, Passed: true, Reason: "remediation with documented test evidence"}
		}
		if fixed {
			return Verdict{Standard: std, Passed: false, Reason: "remediation lacks test evidence for the security principle"}
		}
		return Verdict{Standard: std, Passed: false, Reason: "open vulnerability violates the security trust principle"}

	case ISO27001:
		// A documented change procedure is required alongside the fix.
		if fixed && len(patch.ImplementationSteps) > 0 {
			return Verdict{Standard: std, Passed: true, Reason: "remediation follows documented change procedure (A.12.1.2)"}
		}
		if fixed {
			return Verdict{Standard: std, Passed: false, Reason: "remediation lacks documented implementation steps (A.12.1.2)"}
		}
		return Verdict{Standard: std, Passed: false, Reason: "open technical vulnerability (A.12.6.1)"}

	default:
		return Verdict{Standard: std, Passed: false, Reason: "unsupported standard"}
	}
}

// touchesPersonalData reports whether the category opens a path to
// stored personal data.
func touchesPersonalData(c model.Category) bool {
	switch c {
	case model.CategorySQLInjection, model.CategoryPathTraversal,
		model.CategoryHardcodedCredential, model.CategoryMissingAuth:
		return true
	}
	return false
}

// Aggregate folds per-finding verdicts into the run-level summary.
// Percentage = standards passing / standards checked across all
// findings; zero checks give a zero percentage.
func Aggregate(verdictSets ...[]Verdict) model.ComplianceSummary {
	summary := model.ComplianceSummary{
		ByStandard: make(map[string]int),
	}
	for _, verdicts := range verdictSets {
		for _, v := range verdicts {
			summary.Checked++
			if v.Passed {
				summary.Passed++
				summary.ByStandard[v.Standard.String()]++
			}
		}
	}
	if summary.Checked > 0 {
		summary.Percentage = float64(summary.Passed) / float64(summary.Checked)
	}
	next := NextAuditDate(time.Now())
	summary.NextAuditAt = &next
	return summary
}

// NextAuditDate returns when the next compliance audit is due,
// 90 days after the given time.
func NextAuditDate(from time.Time) time.Time {
	return from.Add(auditInterval)
}
