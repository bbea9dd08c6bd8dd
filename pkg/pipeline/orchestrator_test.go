package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vulnflow/vulnflow/pkg/backup"
	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/learning"
	"github.com/vulnflow/vulnflow/pkg/metrics"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/retry"
	"github.com/vulnflow/vulnflow/pkg/signature"
)

// =============================================================================
// Test doubles
// =============================================================================

type stubScanner struct {
	findings []model.Finding
	err      error

	// onScan runs before returning, with the scan context.
	onScan func(ctx context.Context)
}

func (s *stubScanner) Name() string { return "stub" }

func (s *stubScanner) Scan(ctx context.Context, artifact model.Artifact) ([]model.Finding, error) {
	if s.onScan != nil {
		s.onScan(ctx)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Finding, len(s.findings))
	copy(out, s.findings)
	return out, nil
}

// selectiveAnalyzer fails for specific finding IDs and otherwise
// delegates to the heuristic analyzer.
type selectiveAnalyzer struct {
	failIDs map[string]bool
	real    HeuristicAnalyzer
}

func (a *selectiveAnalyzer) Analyze(ctx context.Context, f model.Finding) (*model.ThreatAssessment, error) {
	if a.failIDs[f.ID] {
		return nil, errors.E(errors.KindAnalysis, "test.analyzer", "injected analysis failure")
	}
	return a.real.Analyze(ctx, f)
}

// countingVerifier fails the first failUntil attempts per patch
// lineage, then passes. With failUntil beyond the retry limit it never
// passes.
type countingVerifier struct {
	mu        sync.Mutex
	calls     int
	failUntil int
}

func (v *countingVerifier) Verify(ctx context.Context, patch *model.Patch) (*model.VerificationResult, error) {
	v.mu.Lock()
	v.calls++
	pass := v.calls > v.failUntil
	v.mu.Unlock()

	return &model.VerificationResult{
		PatchID:         patch.ID,
		SecurityPass:    pass,
		FunctionalPass:  pass,
		PerformancePass: true,
		Details:         "injected verification outcome",
	}, nil
}

func (v *countingVerifier) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// failingDeployer rejects every deployment and records rollbacks.
type failingDeployer struct {
	mu        sync.Mutex
	rollbacks []string
}

func (d *failingDeployer) Deploy(ctx context.Context, patch *model.Patch, backupRef string) (*model.DeploymentRecord, error) {
	return nil, errors.E(errors.KindDeployment, "test.deployer", "target rejected the patch")
}

func (d *failingDeployer) Rollback(ctx context.Context, backupRef string) error {
	d.mu.Lock()
	d.rollbacks = append(d.rollbacks, backupRef)
	d.mu.Unlock()
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func fastConfig() Config {
	return Config{
		WorkerCount:       4,
		MaxVerifyAttempts: 3,
		StageTimeout:      5 * time.Second,
		VerifyBackoff: &retry.BackoffConfig{
			Strategy:     retry.BackoffConstant,
			BaseInterval: time.Millisecond,
		},
	}
}

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()

	backups, err := backup.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("backup store: %v", err)
	}

	base := []Option{
		WithConfig(fastConfig()),
		WithBackupStore(backups),
		WithCollector(metrics.NewInMemoryCollector()),
	}
	o, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func testFinding(id string, cat model.Category, sev float64) model.Finding {
	return model.Finding{
		ID:               id,
		Category:         cat,
		Severity:         sev,
		Location:         model.Location{FilePath: "app/" + id + ".go", StartLine: 10, Snippet: "query := \"SELECT\" + input"},
		Description:      "test finding " + id,
		PatternSignature: signature.GeneratePattern(cat.String(), "rule."+id, "query := \"SELECT\" + input"),
		DiscoveredAt:     time.Now().UTC(),
	}
}

func fiveFindings() []model.Finding {
	sevs := []float64{9.8, 7.2, 6.5, 5.0, 3.1}
	cats := []model.Category{
		model.CategorySQLInjection,
		model.CategoryXSS,
		model.CategoryPathTraversal,
		model.CategoryHardcodedCredential,
		model.CategoryMissingAuth,
	}
	findings := make([]model.Finding, len(sevs))
	for i := range sevs {
		findings[i] = testFinding(fmt.Sprintf("f-%d", i+1), cats[i], sevs[i])
	}
	return findings
}

// =============================================================================
// Tests
// =============================================================================

func TestRun_EndToEnd(t *testing.T) {
	o := newTestOrchestrator(t, WithScanner(&stubScanner{findings: fiveFindings()}))

	report, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir(), Repository: "org/app"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Chains) != 5 {
		t.Fatalf("chains = %d, want 5", len(report.Chains))
	}
	for _, c := range report.Chains {
		if c.State != model.StateReported {
			t.Errorf("chain %s state = %s, want REPORTED", c.Finding.ID, c.State)
		}
		if c.Deployment == nil || c.Deployment.RollbackRef != "" {
			t.Errorf("chain %s should have a clean deployment record", c.Finding.ID)
		}
		if c.Deployment != nil && c.Deployment.DowntimeSeconds != 0 {
			t.Errorf("chain %s downtime = %v, want 0", c.Finding.ID, c.Deployment.DowntimeSeconds)
		}
		if c.Verification == nil || !c.Verification.Deployable() {
			t.Errorf("chain %s deployed without a passing verification", c.Finding.ID)
		}
		if c.Learning == nil || c.Learning.TimesSeen != 1 {
			t.Errorf("chain %s learning entry = %+v", c.Finding.ID, c.Learning)
		}
		if c.ResidualSeverity != 0 {
			t.Errorf("chain %s residual = %v, want 0", c.Finding.ID, c.ResidualSeverity)
		}
	}

	if report.Deployed() != 5 {
		t.Errorf("Deployed() = %d, want 5", report.Deployed())
	}
	if report.Metrics.RiskReductionPercent != 1.0 {
		t.Errorf("risk reduction = %v, want 1.0", report.Metrics.RiskReductionPercent)
	}
	if report.Metrics.FindingsProcessed != 5 {
		t.Errorf("findings processed = %d", report.Metrics.FindingsProcessed)
	}
	if report.Compliance.Percentage != 1.0 {
		t.Errorf("compliance = %v, want 1.0 (checked=%d passed=%d)",
			report.Compliance.Percentage, report.Compliance.Checked, report.Compliance.Passed)
	}

	// The 9.8 finding crosses the incident threshold.
	if len(report.Incidents) != 1 {
		t.Fatalf("incidents = %d, want 1", len(report.Incidents))
	}
	if !report.Incidents[0].Contained {
		t.Error("incident should have been contained")
	}

	// Severity ordering is a presentation guarantee.
	for i := 1; i < len(report.Chains); i++ {
		if chainScore(report.Chains[i-1]) < chainScore(report.Chains[i]) {
			t.Errorf("chains not sorted by adjusted score at index %d", i)
		}
	}
	if report.FinishedAt.IsZero() {
		t.Error("report not finalized")
	}
}

func TestRun_ScanFailureIsFatal(t *testing.T) {
	o := newTestOrchestrator(t, WithScanner(&stubScanner{
		err: errors.E(errors.KindScan, "test.scanner", "artifact unreadable"),
	}))

	report, err := o.Run(context.Background(), model.Artifact{Path: "/nonexistent"})
	if err == nil {
		t.Fatal("scan failure must be fatal")
	}
	if report != nil {
		t.Error("no report should be produced for a failed scan")
	}
	if !errors.IsScanError(err) {
		t.Errorf("error kind = %v, want scan", errors.GetKind(err))
	}
}

func TestRun_PerFindingIsolation(t *testing.T) {
	findings := fiveFindings()
	o := newTestOrchestrator(t,
		WithScanner(&stubScanner{findings: findings}),
		WithAnalyzer(&selectiveAnalyzer{failIDs: map[string]bool{"f-2": true}}),
	)

	report, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("one failing chain must not fail the run: %v", err)
	}

	var failed, reported int
	for _, c := range report.Chains {
		switch {
		case c.Failed():
			failed++
			if c.Finding.ID != "f-2" {
				t.Errorf("unexpected failed chain %s", c.Finding.ID)
			}
			if c.FailedStage != "analyze" {
				t.Errorf("failed stage = %q, want analyze", c.FailedStage)
			}
			if c.ResidualSeverity != c.Finding.Severity {
				t.Errorf("failed chain residual = %v, want pre-fix severity", c.ResidualSeverity)
			}
		case c.State == model.StateReported:
			reported++
		}
	}
	if failed != 1 || reported != 4 {
		t.Errorf("failed = %d reported = %d, want 1 and 4", failed, reported)
	}
	if report.Deployed() != 4 {
		t.Errorf("Deployed() = %d, want 4", report.Deployed())
	}
}

func TestRun_VerifyRetryLimit(t *testing.T) {
	verifier := &countingVerifier{failUntil: 100}
	o := newTestOrchestrator(t,
		WithScanner(&stubScanner{findings: []model.Finding{testFinding("f-1", model.CategoryXSS, 6.1)}}),
		WithVerifier(verifier),
	)

	report, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	chain := report.Chains[0]
	if !chain.Failed() {
		t.Fatalf("chain state = %s, want FAILED", chain.State)
	}
	if chain.FailedStage != "verify" {
		t.Errorf("failed stage = %q, want verify", chain.FailedStage)
	}
	if chain.FailureReason != "max_retries_exceeded" {
		t.Errorf("failure reason = %q, want max_retries_exceeded", chain.FailureReason)
	}
	if got := verifier.count(); got != 3 {
		t.Errorf("verification attempts = %d, want exactly 3", got)
	}
	if chain.Deployment != nil {
		t.Error("an unverified patch must never be deployed")
	}
	// Each retry generated a fresh patch superseding the prior one.
	if chain.Patch == nil || chain.Patch.Supersedes == "" {
		t.Error("retries should supersede the prior patch")
	}
}

func TestRun_VerifyRetryThenSuccess(t *testing.T) {
	verifier := &countingVerifier{failUntil: 1}
	o := newTestOrchestrator(t,
		WithScanner(&stubScanner{findings: []model.Finding{testFinding("f-1", model.CategorySQLInjection, 9.1)}}),
		WithVerifier(verifier),
	)

	report, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	chain := report.Chains[0]
	if chain.State != model.StateReported {
		t.Fatalf("chain state = %s, want REPORTED (reason %q)", chain.State, chain.FailureReason)
	}
	if chain.Verification.Attempt != 2 {
		t.Errorf("verification attempt = %d, want 2", chain.Verification.Attempt)
	}
	if got := verifier.count(); got != 2 {
		t.Errorf("verifier calls = %d, want 2", got)
	}
}

func TestRun_RollbackOnDeploymentFailure(t *testing.T) {
	deployer := &failingDeployer{}
	o := newTestOrchestrator(t,
		WithScanner(&stubScanner{findings: []model.Finding{testFinding("f-1", model.CategoryPathTraversal, 7.5)}}),
		WithDeployer(deployer),
	)

	report, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	chain := report.Chains[0]
	if !chain.Failed() || chain.FailedStage != "deploy" {
		t.Fatalf("chain = %s at %q, want FAILED at deploy", chain.State, chain.FailedStage)
	}
	if chain.Deployment == nil {
		t.Fatal("rollback must leave a deployment record")
	}
	if chain.Deployment.BackupRef == "" {
		t.Fatal("backup must be taken before the deploy attempt")
	}
	if chain.Deployment.RollbackRef != chain.Deployment.BackupRef {
		t.Errorf("rollback ref %q != backup ref %q",
			chain.Deployment.RollbackRef, chain.Deployment.BackupRef)
	}
	if len(deployer.rollbacks) != 1 || deployer.rollbacks[0] != chain.Deployment.BackupRef {
		t.Errorf("rollbacks = %v, want exactly the backup ref", deployer.rollbacks)
	}
	if report.Deployed() != 0 {
		t.Errorf("Deployed() = %d, want 0 after rollback", report.Deployed())
	}
}

func TestRun_LearningAcceleratesRepeatPatterns(t *testing.T) {
	store := learning.NewMemoryStore()
	finding := testFinding("f-1", model.CategorySQLInjection, 9.8)
	o := newTestOrchestrator(t,
		WithScanner(&stubScanner{findings: []model.Finding{finding}}),
		WithLearningStore(store),
	)

	first, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Chains[0].Patch.TemplateRef != "" {
		t.Error("first resolution of a pattern should not hit the cache")
	}
	if first.Chains[0].Learning.TimesSeen != 1 {
		t.Errorf("times seen after first run = %d", first.Chains[0].Learning.TimesSeen)
	}

	second, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	chain := second.Chains[0]
	if chain.Patch.TemplateRef == "" {
		t.Error("second resolution should reuse the learned template")
	}
	if chain.Patch.TemplateRef != first.Chains[0].Learning.PatchTemplateRef {
		t.Errorf("template ref = %q, want %q",
			chain.Patch.TemplateRef, first.Chains[0].Learning.PatchTemplateRef)
	}
	if chain.Learning.TimesSeen != 2 {
		t.Errorf("times seen after second run = %d, want 2", chain.Learning.TimesSeen)
	}
}

func TestRun_ConcurrentChainsDeterministicReport(t *testing.T) {
	findings := fiveFindings()

	runOnce := func(workers int) *model.RunReport {
		o := newTestOrchestrator(t,
			WithConfig(Config{
				WorkerCount:       workers,
				MaxVerifyAttempts: 3,
				StageTimeout:      5 * time.Second,
				VerifyBackoff:     fastConfig().VerifyBackoff,
			}),
			WithScanner(&stubScanner{findings: findings}),
		)
		report, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return report
	}

	serial := runOnce(1)
	parallel := runOnce(4)

	if len(serial.Chains) != len(parallel.Chains) {
		t.Fatalf("chain counts differ: %d vs %d", len(serial.Chains), len(parallel.Chains))
	}
	for i := range serial.Chains {
		a, b := serial.Chains[i], parallel.Chains[i]
		if a.Finding.ID != b.Finding.ID {
			t.Errorf("ordering differs at %d: %s vs %s", i, a.Finding.ID, b.Finding.ID)
		}
		if a.State != b.State {
			t.Errorf("state differs for %s: %s vs %s", a.Finding.ID, a.State, b.State)
		}
	}
	if serial.Metrics.RiskReductionPercent != parallel.Metrics.RiskReductionPercent {
		t.Error("risk reduction must be order-independent")
	}
	if serial.Compliance.Percentage != parallel.Compliance.Percentage {
		t.Error("compliance must be order-independent")
	}
}

func TestRun_CancellationStopsChains(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scanner := &stubScanner{
		findings: fiveFindings(),
		// Cancel the run as soon as the scan stage completes.
		onScan: func(context.Context) { cancel() },
	}
	o := newTestOrchestrator(t, WithScanner(scanner))

	report, err := o.Run(ctx, model.Artifact{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("cancellation is not a run failure: %v", err)
	}

	for _, c := range report.Chains {
		if c.Failed() {
			t.Errorf("chain %s marked failed by cancellation: %s", c.Finding.ID, c.FailureReason)
		}
		if c.State == model.StateReported {
			t.Errorf("chain %s completed after cancellation", c.Finding.ID)
		}
	}
	if report.Deployed() != 0 {
		t.Errorf("Deployed() = %d, want 0", report.Deployed())
	}
}

func TestRun_MetricsRecorded(t *testing.T) {
	collector := metrics.NewInMemoryCollector()
	o := newTestOrchestrator(t,
		WithScanner(&stubScanner{findings: fiveFindings()}),
		WithCollector(collector),
	)

	if _, err := o.Run(context.Background(), model.Artifact{Path: t.TempDir()}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := collector.GetCounter(metrics.RunsTotal.Name, "status", "completed"); got != 1 {
		t.Errorf("runs completed = %v", got)
	}
	if got := collector.GetCounter(metrics.ChainsTotal.Name, "state", "REPORTED"); got != 5 {
		t.Errorf("reported chains counter = %v", got)
	}
	if got := collector.GetCounter(metrics.DeploysTotal.Name, "status", "deployed"); got != 5 {
		t.Errorf("deploys counter = %v", got)
	}
	if got := collector.GetGauge(metrics.ActiveChains.Name); got != 0 {
		t.Errorf("active chains gauge = %v, want 0 after run", got)
	}
}
