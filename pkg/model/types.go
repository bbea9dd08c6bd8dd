// Package model defines the immutable data records passed between
// pipeline stages. Records are created by exactly one stage and shared
// read-only with later stages by reference via finding/patch IDs.
package model

import (
	"slices"
	"time"
)

// =============================================================================
// Artifact
// =============================================================================

// Artifact is the code artifact a run operates on.
type Artifact struct {
	// Unique identifier for this artifact
	ID string `json:"id,omitempty"`

	// Local filesystem path to the code
	Path string `json:"path"`

	// Source repository (e.g., "github.com/org/repo")
	Repository string `json:"repository,omitempty"`

	// Branch name
	Branch string `json:"branch,omitempty"`

	// Commit SHA being examined
	CommitSHA string `json:"commit_sha,omitempty"`

	// Source platform: local, github, gitlab
	Source string `json:"source,omitempty"`
}

// =============================================================================
// Finding
// =============================================================================

// Category classifies a detected vulnerability.
type Category string

const (
	CategorySQLInjection        Category = "SQL_INJECTION"
	CategoryXSS                 Category = "XSS"
	CategoryPathTraversal       Category = "PATH_TRAVERSAL"
	CategoryHardcodedCredential Category = "HARDCODED_CREDENTIAL"
	CategoryMissingAuth         Category = "MISSING_AUTH"
)

// AllCategories returns all valid vulnerability categories.
func AllCategories() []Category {
	return []Category{
		CategorySQLInjection,
		CategoryXSS,
		CategoryPathTraversal,
		CategoryHardcodedCredential,
		CategoryMissingAuth,
	}
}

// IsValid checks if the category is valid.
func (c Category) IsValid() bool {
	return slices.Contains(AllCategories(), c)
}

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// CWE returns the primary CWE identifier for the category.
func (c Category) CWE() string {
	switch c {
	case CategorySQLInjection:
		return "CWE-89"
	case CategoryXSS:
		return "CWE-79"
	case CategoryPathTraversal:
		return "CWE-22"
	case CategoryHardcodedCredential:
		return "CWE-798"
	case CategoryMissingAuth:
		return "CWE-306"
	default:
		return ""
	}
}

// Location describes where in the artifact a finding was detected.
type Location struct {
	// File path relative to the artifact root
	FilePath string `json:"file_path"`

	// Start line number (1-indexed)
	StartLine int `json:"start_line,omitempty"`

	// End line number
	EndLine int `json:"end_line,omitempty"`

	// Offending code snippet
	Snippet string `json:"snippet,omitempty"`
}

// Finding represents a single detected vulnerability instance.
// Created by the scanner; immutable thereafter. Downstream records
// reference it by FindingID, never by copy.
type Finding struct {
	// Unique identifier for this finding within the run
	ID string `json:"id"`

	// Vulnerability category (required)
	Category Category `json:"category"`

	// Severity score 0.0-10.0 (CVSS-like)
	Severity float64 `json:"severity"`

	// Where the vulnerability was detected
	Location Location `json:"location"`

	// Human-readable description
	Description string `json:"description,omitempty"`

	// Rule that detected this finding
	RuleID string `json:"rule_id,omitempty"`

	// Normalized fingerprint of the vulnerability's shape,
	// used to match recurring issues in the learning store
	PatternSignature string `json:"pattern_signature"`

	// When the finding was discovered
	DiscoveredAt time.Time `json:"discovered_at"`
}

// =============================================================================
// Stage Records
// =============================================================================

// ThreatAssessment is produced by the analyzer from exactly one Finding.
type ThreatAssessment struct {
	// Finding this assessment belongs to
	FindingID string `json:"finding_id"`

	// Exploitation likelihood 0-1
	Likelihood float64 `json:"likelihood"`

	// Estimated financial impact in USD if exploited
	EstimatedFinancialImpact float64 `json:"estimated_financial_impact,omitempty"`

	// Deterministic function of severity and likelihood,
	// used for presentation ordering in the run report
	SeverityAdjustedScore float64 `json:"severity_adjusted_score"`

	// Attack vectors considered during analysis
	AttackVectors []string `json:"attack_vectors,omitempty"`

	// When the analysis completed
	AnalyzedAt time.Time `json:"analyzed_at,omitempty"`
}

// Patch is produced by the fix generator. A Finding has at most one
// active Patch at a time; a new Patch supersedes (never mutates) the
// prior one.
type Patch struct {
	// Unique identifier for this patch
	ID string `json:"id"`

	// Finding this patch remediates
	FindingID string `json:"finding_id"`

	// Unified diff or replacement snippet
	Diff string `json:"diff"`

	// Ordered implementation steps
	ImplementationSteps []string `json:"implementation_steps,omitempty"`

	// How to exercise the fix
	TestPlan string `json:"test_plan,omitempty"`

	// Template the patch was adapted from, if generation hit the
	// learning store cache
	TemplateRef string `json:"template_ref,omitempty"`

	// ID of the patch this one supersedes, if any
	Supersedes string `json:"supersedes,omitempty"`

	// When the patch was generated
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}

// VerificationResult is produced by running the patch through the
// verification suite. A Patch is deployable iff all three flags are true.
type VerificationResult struct {
	// Patch that was verified
	PatchID string `json:"patch_id"`

	// Security regression checks passed
	SecurityPass bool `json:"security_pass"`

	// Functional tests passed
	FunctionalPass bool `json:"functional_pass"`

	// Performance budget respected
	PerformancePass bool `json:"performance_pass"`

	// Verification attempt number (1-indexed)
	Attempt int `json:"attempt,omitempty"`

	// Details for failing checks
	Details string `json:"details,omitempty"`

	// When verification completed
	VerifiedAt time.Time `json:"verified_at,omitempty"`
}

// Deployable reports whether the patch passed all three checks.
// This is the sole gate before deployment.
func (v VerificationResult) Deployable() bool {
	return v.SecurityPass && v.FunctionalPass && v.PerformancePass
}

// DeploymentRecord is created only from a deployable Patch.
type DeploymentRecord struct {
	// Patch that was deployed
	PatchID string `json:"patch_id"`

	// Backup created immediately before the deploy attempt
	BackupRef string `json:"backup_ref"`

	// When the deployment completed
	DeployedAt time.Time `json:"deployed_at"`

	// Observed downtime; must be 0 for a successful deployment
	DowntimeSeconds float64 `json:"downtime_seconds"`

	// Backup the target was restored from, set only when a failed
	// deploy was rolled back; equals BackupRef in that case
	RollbackRef string `json:"rollback_ref,omitempty"`
}

// =============================================================================
// Learning
// =============================================================================

// LearningEntry is the stored outcome history for one
// (category, pattern signature) pair. Updated, never duplicated,
// when a matching signature recurs.
type LearningEntry struct {
	// Vulnerability category
	Category Category `json:"category"`

	// Normalized pattern signature (store key)
	PatternSignature string `json:"pattern_signature"`

	// Running mean of resolution time across occurrences
	ResolutionTimeSeconds float64 `json:"resolution_time_seconds"`

	// Reference to the patch template that worked
	PatchTemplateRef string `json:"patch_template_ref,omitempty"`

	// How many times this signature has been resolved
	TimesSeen int `json:"times_seen"`

	// When the signature was first recorded
	FirstSeenAt time.Time `json:"first_seen_at,omitempty"`

	// When the entry was last updated
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// =============================================================================
// Run Report
// =============================================================================

// FindingChain is the full sequence of records produced for one
// Finding across all stages, plus its terminal state.
type FindingChain struct {
	// Terminal (or current) state of the chain
	State ChainState `json:"state"`

	// The finding this chain processed
	Finding Finding `json:"finding"`

	// Analyzer output, if the chain got that far
	Assessment *ThreatAssessment `json:"assessment,omitempty"`

	// Active patch, if generated
	Patch *Patch `json:"patch,omitempty"`

	// Last verification result
	Verification *VerificationResult `json:"verification,omitempty"`

	// Deployment record, if deployed
	Deployment *DeploymentRecord `json:"deployment,omitempty"`

	// Learning entry state after the chain's upsert
	Learning *LearningEntry `json:"learning,omitempty"`

	// Stage that failed, for FAILED chains (scan, analyze, patch,
	// verify, deploy, learn, report)
	FailedStage string `json:"failed_stage,omitempty"`

	// Failure reason, for FAILED chains
	FailureReason string `json:"failure_reason,omitempty"`

	// Residual severity after remediation; 0 for deployed fixes
	ResidualSeverity float64 `json:"residual_severity"`
}

// Failed reports whether the chain ended in the absorbing failure state.
func (c FindingChain) Failed() bool {
	return c.State == StateFailed
}

// MetricsSummary holds the headline statistics derived from one run.
// Values are exact; rounding happens only at presentation time.
type MetricsSummary struct {
	// Number of findings processed
	FindingsProcessed int `json:"findings_processed"`

	// Manual-baseline time minus sum of actual elapsed times
	TimeSavedSeconds float64 `json:"time_saved_seconds"`

	// Estimated cost avoided, derived from time saved
	CostSavedUSD float64 `json:"cost_saved_usd"`

	// (sum pre-fix severities - sum residual severities) / sum pre-fix,
	// clamped to [0,1]
	RiskReductionPercent float64 `json:"risk_reduction_percent"`

	// Sum of actual elapsed stage times
	TotalElapsedSeconds float64 `json:"total_elapsed_seconds"`
}

// ComplianceSummary aggregates compliance verdicts for the whole run.
type ComplianceSummary struct {
	// Standards passing across all findings
	Passed int `json:"passed"`

	// Standards checked across all findings
	Checked int `json:"checked"`

	// Passed / Checked; 0 when nothing was checked
	Percentage float64 `json:"percentage"`

	// Per-standard pass counts
	ByStandard map[string]int `json:"by_standard,omitempty"`

	// Next scheduled compliance audit
	NextAuditAt *time.Time `json:"next_audit_at,omitempty"`
}

// RunReport aggregates every finding chain of one run plus the
// metrics and compliance summaries derived from it. Owned exclusively
// by the orchestrator; finalized (immutable) when the reporter
// completes or the run aborts.
type RunReport struct {
	// Unique run identifier
	RunID string `json:"run_id"`

	// Artifact the run operated on
	Artifact Artifact `json:"artifact"`

	// Chains sorted by severity-adjusted score, descending
	Chains []FindingChain `json:"chains"`

	// Headline statistics for the run
	Metrics MetricsSummary `json:"metrics"`

	// Compliance verdict aggregation
	Compliance ComplianceSummary `json:"compliance"`

	// Incidents handled during the run
	Incidents []IncidentRecord `json:"incidents,omitempty"`

	// When the run started
	StartedAt time.Time `json:"started_at"`

	// When the run finished
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Deployed returns the number of chains that reached deployment.
// Rolled-back deployment attempts do not count.
func (r *RunReport) Deployed() int {
	n := 0
	for _, c := range r.Chains {
		if c.Deployment != nil && c.Deployment.RollbackRef == "" {
			n++
		}
	}
	return n
}

// FailedChains returns the chains that ended in the failure state.
func (r *RunReport) FailedChains() []FindingChain {
	var failed []FindingChain
	for _, c := range r.Chains {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// IncidentRecord captures one incident handled by the asynchronous
// incident responder during a run.
type IncidentRecord struct {
	// Finding the incident relates to, if any
	FindingID string `json:"finding_id,omitempty"`

	// Incident description
	Description string `json:"description"`

	// Whether containment completed within its bound
	Contained bool `json:"contained"`

	// Containment action taken
	Action string `json:"action,omitempty"`

	// When the incident was raised
	RaisedAt time.Time `json:"raised_at"`
}

// =============================================================================
// Factory Functions
// =============================================================================

// NewRunReport creates an empty run report for the given artifact.
func NewRunReport(runID string, artifact Artifact) *RunReport {
	return &RunReport{
		RunID:     runID,
		Artifact:  artifact,
		Chains:    make([]FindingChain, 0),
		StartedAt: time.Now(),
	}
}
