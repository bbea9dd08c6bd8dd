package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vulnflow/vulnflow/pkg/backup"
	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/severity"
)

// =============================================================================
// Stage Interfaces
// =============================================================================

// Analyzer turns a finding into a threat assessment.
type Analyzer interface {
	Analyze(ctx context.Context, finding model.Finding) (*model.ThreatAssessment, error)
}

// FixGenerator synthesizes a patch for a finding. When a prior
// resolution of the same pattern exists, the learning entry is passed
// as a hint so generation can adapt the known template instead of
// synthesizing from scratch.
type FixGenerator interface {
	Generate(ctx context.Context, finding model.Finding, assessment *model.ThreatAssessment, hint *model.LearningEntry) (*model.Patch, error)
}

// Verifier runs a patch through the verification suite. A negative
// result is returned as a VerificationResult with failing flags, not
// as an error; errors indicate the suite itself could not run.
type Verifier interface {
	Verify(ctx context.Context, patch *model.Patch) (*model.VerificationResult, error)
}

// Deployer applies a verified patch to the target and can restore the
// target from a backup when a deployment goes wrong.
type Deployer interface {
	Deploy(ctx context.Context, patch *model.Patch, backupRef string) (*model.DeploymentRecord, error)
	Rollback(ctx context.Context, backupRef string) error
}

// =============================================================================
// HeuristicAnalyzer
// =============================================================================

// HeuristicAnalyzer scores findings with a fixed per-category
// likelihood table. Deterministic: the same finding always yields the
// same assessment.
type HeuristicAnalyzer struct {
	// USD of estimated exposure per severity point, weighted by
	// likelihood. Zero means DefaultImpactPerPoint.
	ImpactPerPoint float64
}

// DefaultImpactPerPoint is the default financial exposure assumed per
// weighted severity point.
const DefaultImpactPerPoint = 25000

var categoryLikelihood = map[model.Category]float64{
	model.CategorySQLInjection:        0.90,
	model.CategoryXSS:                 0.70,
	model.CategoryPathTraversal:       0.60,
	model.CategoryHardcodedCredential: 0.80,
	model.CategoryMissingAuth:         0.85,
}

var categoryAttackVectors = map[model.Category][]string{
	model.CategorySQLInjection:        {"network", "authenticated-user", "data-exfiltration"},
	model.CategoryXSS:                 {"network", "stored-payload", "session-hijack"},
	model.CategoryPathTraversal:       {"network", "file-disclosure"},
	model.CategoryHardcodedCredential: {"source-access", "lateral-movement"},
	model.CategoryMissingAuth:         {"network", "direct-access"},
}

func (a *HeuristicAnalyzer) Analyze(ctx context.Context, finding model.Finding) (*model.ThreatAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.E(errors.KindAnalysis, "pipeline.HeuristicAnalyzer.Analyze", "analysis cancelled", err)
	}
	if !finding.Category.IsValid() {
		return nil, errors.E(errors.KindAnalysis, "pipeline.HeuristicAnalyzer.Analyze",
			fmt.Sprintf("unknown category %q", finding.Category))
	}

	likelihood := categoryLikelihood[finding.Category]
	impactPerPoint := a.ImpactPerPoint
	if impactPerPoint <= 0 {
		impactPerPoint = DefaultImpactPerPoint
	}

	return &model.ThreatAssessment{
		FindingID:                finding.ID,
		Likelihood:               likelihood,
		EstimatedFinancialImpact: finding.Severity * likelihood * impactPerPoint,
		SeverityAdjustedScore:    severity.AdjustedScore(finding.Severity, likelihood),
		AttackVectors:            categoryAttackVectors[finding.Category],
		AnalyzedAt:               time.Now().UTC(),
	}, nil
}

// =============================================================================
// TemplateGenerator
// =============================================================================

// TemplateGenerator produces patches from per-category remediation
// templates. A learning hint with a known template reference short
// circuits synthesis and adapts that template instead, carrying the
// reference forward in the patch.
type TemplateGenerator struct{}

type remediation struct {
	summary  string
	fix      string
	steps    []string
	testPlan string
}

var remediations = map[model.Category]remediation{
	model.CategorySQLInjection: {
		summary: "replace string-built SQL with a parameterized query",
		fix:     "db.Query(\"... WHERE id = ?\", id)",
		steps: []string{
			"Identify every call site building SQL from user input",
			"Rewrite the statement with placeholder parameters",
			"Pass user input as query arguments, never concatenated",
		},
		testPlan: "Inject ' OR '1'='1 through the public surface and assert the query treats it as data",
	},
	model.CategoryXSS: {
		summary: "escape untrusted data before rendering",
		fix:     "template.HTMLEscapeString(userInput)",
		steps: []string{
			"Route the tainted value through contextual output encoding",
			"Replace innerHTML-style sinks with text assignment",
		},
		testPlan: "Submit <script>alert(1)</script> and assert it renders inert",
	},
	model.CategoryPathTraversal: {
		summary: "canonicalize and contain the requested path",
		fix:     "filepath.Join(root, filepath.Clean(\"/\"+name))",
		steps: []string{
			"Resolve the requested path against the serving root",
			"Reject any result escaping the root prefix",
		},
		testPlan: "Request ../../etc/passwd and assert a rejection, not file content",
	},
	model.CategoryHardcodedCredential: {
		summary: "move the secret out of source into the credential store",
		fix:     "os.Getenv(\"SERVICE_TOKEN\")",
		steps: []string{
			"Remove the literal secret from source",
			"Load the value from the environment or credential store",
			"Rotate the exposed credential",
		},
		testPlan: "Grep the tree for the removed literal and assert zero matches, then exercise the login path",
	},
	model.CategoryMissingAuth: {
		summary: "guard the route with the authentication middleware",
		fix:     "router.Use(requireAuth)",
		steps: []string{
			"Wrap the unprotected handler with the auth middleware",
			"Return 401 for unauthenticated requests",
		},
		testPlan: "Call the route without credentials and assert 401",
	},
}

func (g *TemplateGenerator) Generate(ctx context.Context, finding model.Finding, assessment *model.ThreatAssessment, hint *model.LearningEntry) (*model.Patch, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.E(errors.KindGeneration, "pipeline.TemplateGenerator.Generate", "generation cancelled", err)
	}

	tmpl, ok := remediations[finding.Category]
	if !ok {
		return nil, errors.E(errors.KindGeneration, "pipeline.TemplateGenerator.Generate",
			fmt.Sprintf("no remediation template for category %q", finding.Category))
	}

	patch := &model.Patch{
		ID:                  uuid.NewString(),
		FindingID:           finding.ID,
		ImplementationSteps: tmpl.steps,
		TestPlan:            tmpl.testPlan,
		GeneratedAt:         time.Now().UTC(),
	}

	// A seen pattern skips novel synthesis and adapts the template
	// that already worked.
	if hint != nil && hint.TimesSeen >= 1 && hint.PatchTemplateRef != "" {
		patch.TemplateRef = hint.PatchTemplateRef
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", finding.Location.FilePath, finding.Location.FilePath)
	if finding.Location.Snippet != "" {
		fmt.Fprintf(&b, "@@ -%d,1 +%d,1 @@\n", finding.Location.StartLine, finding.Location.StartLine)
		fmt.Fprintf(&b, "-%s\n", finding.Location.Snippet)
	}
	fmt.Fprintf(&b, "+%s\n", tmpl.fix)
	patch.Diff = b.String()

	return patch, nil
}

// =============================================================================
// ChecklistVerifier
// =============================================================================

// ChecklistVerifier checks a patch against the three-part verification
// checklist. Each part passes when the patch carries the material the
// check needs; an incomplete patch produces a negative result, never
// an error.
type ChecklistVerifier struct{}

func (v *ChecklistVerifier) Verify(ctx context.Context, patch *model.Patch) (*model.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.E(errors.KindInternal, "pipeline.ChecklistVerifier.Verify", "verification cancelled", err)
	}
	if patch == nil {
		return nil, errors.E(errors.KindInternal, "pipeline.ChecklistVerifier.Verify", "nil patch")
	}

	result := &model.VerificationResult{
		PatchID:         patch.ID,
		SecurityPass:    patch.Diff != "",
		FunctionalPass:  patch.TestPlan != "",
		PerformancePass: len(patch.ImplementationSteps) > 0,
		VerifiedAt:      time.Now().UTC(),
	}
	if !result.Deployable() {
		var missing []string
		if !result.SecurityPass {
			missing = append(missing, "security: empty diff")
		}
		if !result.FunctionalPass {
			missing = append(missing, "functional: no test plan")
		}
		if !result.PerformancePass {
			missing = append(missing, "performance: no implementation steps")
		}
		result.Details = strings.Join(missing, "; ")
	}
	return result, nil
}

// =============================================================================
// SimulatedDeployer
// =============================================================================

// SimulatedDeployer records deployments without touching a live
// target. Rollback restores from the snapshot store when one is
// attached, so the compensating path is still exercised end to end.
type SimulatedDeployer struct {
	Backups *backup.Store
}

func (d *SimulatedDeployer) Deploy(ctx context.Context, patch *model.Patch, backupRef string) (*model.DeploymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.E(errors.KindDeployment, "pipeline.SimulatedDeployer.Deploy", "deployment cancelled", err)
	}
	return &model.DeploymentRecord{
		PatchID:         patch.ID,
		BackupRef:       backupRef,
		DeployedAt:      time.Now().UTC(),
		DowntimeSeconds: 0,
	}, nil
}

func (d *SimulatedDeployer) Rollback(ctx context.Context, backupRef string) error {
	if d.Backups == nil {
		return nil
	}
	_, err := d.Backups.Restore(ctx, backupRef)
	return err
}

// =============================================================================
// Interface compliance
// =============================================================================

var (
	_ Analyzer     = (*HeuristicAnalyzer)(nil)
	_ FixGenerator = (*TemplateGenerator)(nil)
	_ Verifier     = (*ChecklistVerifier)(nil)
	_ Deployer     = (*SimulatedDeployer)(nil)
)
