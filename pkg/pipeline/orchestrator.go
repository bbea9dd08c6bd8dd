// Package pipeline drives findings through the remediation state
// machine, from discovery to the finalized run report. The
// orchestrator is the only component with visibility into a whole run:
// it sequences the stages, enforces the verification gate before
// deployment, and folds every chain into one report.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vulnflow/vulnflow/pkg/audit"
	"github.com/vulnflow/vulnflow/pkg/backup"
	"github.com/vulnflow/vulnflow/pkg/compliance"
	"github.com/vulnflow/vulnflow/pkg/core"
	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/learning"
	"github.com/vulnflow/vulnflow/pkg/lock"
	"github.com/vulnflow/vulnflow/pkg/metrics"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/retry"
	"github.com/vulnflow/vulnflow/pkg/scanners"
	"github.com/vulnflow/vulnflow/pkg/severity"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator settings.
type Config struct {
	// WorkerCount bounds the number of finding chains in flight.
	WorkerCount int

	// MaxVerifyAttempts caps the patch/verify loop per finding.
	// After this many failing verifications the chain fails with
	// reason "max_retries_exceeded".
	MaxVerifyAttempts int

	// StageTimeout bounds each external-collaborator call (scan,
	// analysis, generation, verification, deployment, learning).
	StageTimeout time.Duration

	// VerifyBackoff controls the sleep between verification retries.
	VerifyBackoff *retry.BackoffConfig

	// IncidentSeverityThreshold is the severity at or above which a
	// finding is treated as an active incident and handed to the
	// responder.
	IncidentSeverityThreshold float64

	// Responder configures the asynchronous incident responder.
	Responder ResponderConfig
}

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		WorkerCount:       4,
		MaxVerifyAttempts: 3,
		StageTimeout:      60 * time.Second,
		VerifyBackoff: &retry.BackoffConfig{
			Strategy:     retry.BackoffConstant,
			BaseInterval: 100 * time.Millisecond,
		},
		IncidentSeverityThreshold: 9.0,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.MaxVerifyAttempts <= 0 {
		c.MaxVerifyAttempts = def.MaxVerifyAttempts
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = def.StageTimeout
	}
	if c.VerifyBackoff == nil {
		c.VerifyBackoff = def.VerifyBackoff
	}
	if c.IncidentSeverityThreshold <= 0 {
		c.IncidentSeverityThreshold = def.IncidentSeverityThreshold
	}
	return c
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs the remediation pipeline over one artifact at a
// time. Findings are processed concurrently and in isolation: a
// failing chain never aborts the run. Only a failing scan is fatal.
type Orchestrator struct {
	cfg        Config
	trackerCfg metrics.TrackerConfig

	scanner   scanners.Scanner
	analyzer  Analyzer
	generator FixGenerator
	verifier  Verifier
	deployer  Deployer

	store   learning.Store
	backups *backup.Store

	collector metrics.Collector
	audit     *audit.Logger
	logger    core.Logger

	// Deployments to the same target must never interleave their
	// backups, so deploy+rollback is one cluster-wide critical section.
	deployLock lock.DeployLock
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the orchestrator configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithScanner sets the vulnerability scanner.
func WithScanner(s scanners.Scanner) Option {
	return func(o *Orchestrator) { o.scanner = s }
}

// WithAnalyzer sets the threat analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

// WithFixGenerator sets the patch generator.
func WithFixGenerator(g FixGenerator) Option {
	return func(o *Orchestrator) { o.generator = g }
}

// WithVerifier sets the patch verifier.
func WithVerifier(v Verifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// WithDeployer sets the deployer.
func WithDeployer(d Deployer) Option {
	return func(o *Orchestrator) { o.deployer = d }
}

// WithLearningStore sets the learning store.
func WithLearningStore(s learning.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithBackupStore sets the snapshot store used before deployments.
func WithBackupStore(s *backup.Store) Option {
	return func(o *Orchestrator) { o.backups = s }
}

// WithCollector sets the metrics collector.
func WithCollector(c metrics.Collector) Option {
	return func(o *Orchestrator) { o.collector = c }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l *audit.Logger) Option {
	return func(o *Orchestrator) { o.audit = l }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l core.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithDeployLock sets the deployment critical section. The default
// serializes deployments within the process; agents sharing a target
// pass a lease-backed lock instead.
func WithDeployLock(l lock.DeployLock) Option {
	return func(o *Orchestrator) { o.deployLock = l }
}

// WithTrackerConfig sets the baseline assumptions behind the run's
// headline statistics.
func WithTrackerConfig(cfg metrics.TrackerConfig) Option {
	return func(o *Orchestrator) { o.trackerCfg = cfg }
}

// New creates an orchestrator. Every collaborator has a working
// default: the static scanner, heuristic stages, an in-memory learning
// store, and a snapshot store under the system temp directory.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:        DefaultConfig(),
		trackerCfg: metrics.DefaultTrackerConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cfg = o.cfg.withDefaults()

	if o.scanner == nil {
		o.scanner = scanners.Static()
	}
	if o.analyzer == nil {
		o.analyzer = &HeuristicAnalyzer{}
	}
	if o.generator == nil {
		o.generator = &TemplateGenerator{}
	}
	if o.verifier == nil {
		o.verifier = &ChecklistVerifier{}
	}
	if o.store == nil {
		o.store = learning.NewMemoryStore()
	}
	if o.backups == nil {
		store, err := backup.NewStore(filepath.Join(os.TempDir(), "vulnflow-backups"))
		if err != nil {
			return nil, errors.E(errors.KindInternal, "pipeline.New", "create backup store", err)
		}
		o.backups = store
	}
	if o.deployLock == nil {
		o.deployLock = lock.NewMutexLock()
	}
	if o.deployer == nil {
		o.deployer = &SimulatedDeployer{Backups: o.backups}
	}
	if o.collector == nil {
		o.collector = metrics.GetDefaultCollector()
	}
	if o.logger == nil {
		o.logger = &core.NopLogger{}
	}
	return o, nil
}

// run bundles the state owned by one Run invocation so an orchestrator
// can be reused across runs.
type run struct {
	report    *model.RunReport
	tracker   *metrics.Tracker
	responder *Responder
}

// Run executes the full pipeline over the artifact and returns the
// finalized report. Only a scan failure is fatal; every downstream
// error is isolated to its finding chain and recorded in the report.
// Cancelling the context lets in-flight chains finish their current
// stage, then stops them; deployed findings are never rolled back by a
// cancellation.
func (o *Orchestrator) Run(ctx context.Context, artifact model.Artifact) (*model.RunReport, error) {
	const op = "pipeline.Orchestrator.Run"

	runID := uuid.NewString()
	r := &run{
		report:    model.NewRunReport(runID, artifact),
		tracker:   metrics.NewTracker(o.trackerCfg, o.collector),
		responder: NewResponder(o.cfg.Responder, o.audit, o.collector),
	}

	o.logger.Info("run %s started on %s", runID, artifact.Path)
	o.auditInfo(audit.EventRunStarted, "run started", map[string]interface{}{
		"artifact": artifact.Path,
		"scanner":  o.scanner.Name(),
	})
	timer := metrics.NewTimer(o.collector, metrics.RunDuration.Name)

	findings, err := o.scan(ctx, r, artifact)
	if err != nil {
		r.responder.Close()
		o.collector.CounterInc(metrics.RunsTotal.Name, "status", "failed")
		o.auditError(audit.EventRunFailed, "scan failed", err, nil)
		return nil, errors.E(errors.KindScan, op, "scan failed", err)
	}

	for _, f := range findings {
		r.tracker.RecordFinding(f.ID, f.Severity)
		o.collector.CounterInc(metrics.FindingsTotal.Name,
			"category", f.Category.String(),
			"severity", severity.FromScore(f.Severity).String())

		if f.Severity >= o.cfg.IncidentSeverityThreshold {
			r.responder.Raise(Incident{
				FindingID:   f.ID,
				Description: fmt.Sprintf("active %s at %s", f.Category, f.Location.FilePath),
			})
		}
	}

	sem := make(chan struct{}, o.cfg.WorkerCount)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, f := range findings {
		wg.Add(1)
		sem <- struct{}{}
		go func(f model.Finding) {
			defer wg.Done()
			defer func() { <-sem }()

			o.collector.GaugeInc(metrics.ActiveChains.Name)
			chain := o.runChain(ctx, r, artifact, f)
			o.collector.GaugeDec(metrics.ActiveChains.Name)
			o.collector.CounterInc(metrics.ChainsTotal.Name, "state", chain.State.String())

			mu.Lock()
			r.report.Chains = append(r.report.Chains, chain)
			mu.Unlock()
		}(f)
	}
	wg.Wait()

	r.report.Incidents = r.responder.Close()
	o.finalize(r)
	r.report.FinishedAt = time.Now()
	timer.ObserveDuration()

	status := "completed"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	o.collector.CounterInc(metrics.RunsTotal.Name, "status", status)
	o.auditInfo(audit.EventRunFinished, "run "+status, map[string]interface{}{
		"findings": len(findings),
		"deployed": r.report.Deployed(),
		"failed":   len(r.report.FailedChains()),
	})
	o.logger.Info("run %s %s: %d findings, %d deployed", runID, status, len(findings), r.report.Deployed())

	return r.report, nil
}

// =============================================================================
// Per-finding chain
// =============================================================================

// runChain drives one finding through the state machine. A cancelled
// run lets the chain finish its current stage and stop at whatever
// state it reached.
func (o *Orchestrator) runChain(ctx context.Context, r *run, artifact model.Artifact, finding model.Finding) model.FindingChain {
	chain := model.FindingChain{
		State:            model.StateDiscovered,
		Finding:          finding,
		ResidualSeverity: finding.Severity,
	}
	chainStart := time.Now()

	assessment, err := o.analyze(ctx, r, finding)
	if err != nil {
		if ctx.Err() == nil {
			o.failChain(&chain, "analyze", err)
		}
		return chain
	}
	chain.Assessment = assessment
	o.transition(&chain, model.StateAnalyzed)

	if !o.patchAndVerify(ctx, r, &chain) {
		return chain
	}

	if ctx.Err() != nil {
		return chain
	}

	if err := o.deployChain(ctx, r, artifact, &chain); err != nil {
		// A cancellation while waiting for the deploy lock means no
		// deployment was attempted; the chain just stops.
		if ctx.Err() != nil && chain.Deployment == nil {
			return chain
		}
		o.failChain(&chain, "deploy", err)
		return chain
	}
	chain.ResidualSeverity = 0
	r.tracker.RecordResidual(finding.ID, 0)
	o.transition(&chain, model.StateDeployed)

	if ctx.Err() != nil {
		return chain
	}

	if err := o.learnChain(ctx, r, &chain, chainStart); err != nil {
		if ctx.Err() == nil {
			o.failChain(&chain, "learn", err)
		}
		return chain
	}
	o.transition(&chain, model.StateLearned)

	// The fold into the run report happens in Run; the chain seals here.
	o.transition(&chain, model.StateReported)
	return chain
}

// patchAndVerify runs the bounded patch/verify loop. A failing
// verification loops the chain back to ANALYZED for a fresh patch; the
// loop gives up after MaxVerifyAttempts with reason
// "max_retries_exceeded". Returns true when the chain reached VERIFIED.
func (o *Orchestrator) patchAndVerify(ctx context.Context, r *run, chain *model.FindingChain) bool {
	finding := chain.Finding

	policy := retry.Policy{
		MaxAttempts: o.cfg.MaxVerifyAttempts,
		Backoff:     o.cfg.VerifyBackoff,
		RetryIf:     errors.IsVerificationFailure,
		OnRetry: func(a retry.Attempt) {
			o.collector.CounterInc(metrics.VerifyRetriesTotal.Name)
			o.auditInfo(audit.EventVerifyRetry,
				fmt.Sprintf("verification attempt %d failed, requesting new patch", a.Number),
				map[string]interface{}{"finding_id": finding.ID, "attempt": a.Number})
			o.transition(chain, model.StateAnalyzed)
		},
	}

	_, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		hint := o.lookupHint(ctx, finding)

		patch, err := o.generate(ctx, r, finding, chain.Assessment, hint)
		if err != nil {
			return err
		}
		if chain.Patch != nil {
			patch.Supersedes = chain.Patch.ID
		}
		chain.Patch = patch
		o.transition(chain, model.StatePatched)

		result, err := o.verify(ctx, r, patch)
		if err != nil {
			return err
		}
		result.Attempt = attempt
		chain.Verification = result
		if !result.Deployable() {
			return errors.E(errors.KindVerification, "pipeline.Orchestrator.verify",
				"patch failed verification: "+result.Details)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.IsVerificationFailure(err):
			o.failChainReason(chain, "verify", "max_retries_exceeded", err)
		case errors.IsGenerationError(err):
			o.failChain(chain, "patch", err)
		case ctx.Err() != nil:
			// Run cancelled; the chain stops where it is.
		default:
			o.failChain(chain, "verify", err)
		}
		return false
	}

	o.transition(chain, model.StateVerified)
	return true
}

// deployChain takes a backup, deploys the patch, and rolls back on any
// failure. The recorded rollback ref always matches the backup taken
// immediately before the attempt.
func (o *Orchestrator) deployChain(ctx context.Context, r *run, artifact model.Artifact, chain *model.FindingChain) error {
	const op = "pipeline.Orchestrator.deploy"

	release, err := o.deployLock.Acquire(ctx)
	if err != nil {
		return errors.E(errors.KindDeployment, op, "acquire deploy lock", err)
	}
	defer release()

	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		r.tracker.RecordEvent("deploy", chain.Finding.ID, time.Since(start).Seconds())
	}()

	backupRef, err := o.backups.Take(sctx, chain.Patch.ID, o.snapshotFiles(artifact, chain.Finding))
	if err != nil {
		return errors.E(errors.KindDeployment, op, "backup failed", err)
	}
	o.auditInfo(audit.EventBackupTaken, "backup taken before deploy", map[string]interface{}{
		"backup_ref": backupRef,
		"patch_id":   chain.Patch.ID,
	})

	rec, err := o.deployer.Deploy(sctx, chain.Patch, backupRef)
	if err == nil && rec == nil {
		err = errors.E(errors.KindDeployment, op, "deployer returned no record")
	}
	if err == nil && rec.DowntimeSeconds != 0 {
		err = errors.E(errors.KindDeployment, op,
			fmt.Sprintf("deployment reported %.1fs downtime", rec.DowntimeSeconds))
	}
	if err != nil {
		o.collector.CounterInc(metrics.DeploysTotal.Name, "status", "failed")

		rbErr := o.deployer.Rollback(sctx, backupRef)
		o.collector.CounterInc(metrics.RollbacksTotal.Name)
		if o.audit != nil {
			o.audit.RollbackPerformed(chain.Finding.ID, chain.Patch.ID, backupRef, rbErr)
		}
		chain.Deployment = &model.DeploymentRecord{
			PatchID:     chain.Patch.ID,
			BackupRef:   backupRef,
			RollbackRef: backupRef,
		}
		return errors.E(errors.KindDeployment, op, "deployment failed", err)
	}

	rec.BackupRef = backupRef
	chain.Deployment = rec
	o.collector.CounterInc(metrics.DeploysTotal.Name, "status", "deployed")
	if o.audit != nil {
		o.audit.DeployCompleted(chain.Finding.ID, chain.Patch.ID, backupRef, time.Since(start))
	}
	return nil
}

// learnChain upserts the learning entry for the finding's pattern.
// Conflicting writers are retried with the default policy.
func (o *Orchestrator) learnChain(ctx context.Context, r *run, chain *model.FindingChain, chainStart time.Time) error {
	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		r.tracker.RecordEvent("learn", chain.Finding.ID, time.Since(start).Seconds())
	}()

	templateRef := chain.Patch.TemplateRef
	if templateRef == "" {
		templateRef = "patch:" + chain.Patch.ID
	}
	resolution := time.Since(chainStart).Seconds()

	var entry *model.LearningEntry
	_, err := retry.Do(sctx, retry.Policy{Backoff: o.cfg.VerifyBackoff}, func(ctx context.Context, attempt int) error {
		var recordErr error
		entry, recordErr = o.store.Record(ctx, chain.Finding.Category, chain.Finding.PatternSignature, resolution, templateRef)
		return recordErr
	})
	if err != nil {
		return err
	}
	chain.Learning = entry
	return nil
}

// =============================================================================
// Stage helpers
// =============================================================================

func (o *Orchestrator) scan(ctx context.Context, r *run, artifact model.Artifact) ([]model.Finding, error) {
	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	findings, err := o.scanner.Scan(sctx, artifact)
	r.tracker.RecordEvent("scan", "", time.Since(start).Seconds())
	if err != nil {
		return nil, o.stageErr(sctx, err)
	}

	o.auditInfo(audit.EventScanCompleted, fmt.Sprintf("scan found %d findings", len(findings)),
		map[string]interface{}{"scanner": o.scanner.Name(), "count": len(findings)})
	return findings, nil
}

func (o *Orchestrator) analyze(ctx context.Context, r *run, f model.Finding) (*model.ThreatAssessment, error) {
	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	assessment, err := o.analyzer.Analyze(sctx, f)
	r.tracker.RecordEvent("analyze", f.ID, time.Since(start).Seconds())
	return assessment, o.stageErr(sctx, err)
}

func (o *Orchestrator) generate(ctx context.Context, r *run, f model.Finding, assessment *model.ThreatAssessment, hint *model.LearningEntry) (*model.Patch, error) {
	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	patch, err := o.generator.Generate(sctx, f, assessment, hint)
	r.tracker.RecordEvent("patch", f.ID, time.Since(start).Seconds())
	return patch, o.stageErr(sctx, err)
}

func (o *Orchestrator) verify(ctx context.Context, r *run, patch *model.Patch) (*model.VerificationResult, error) {
	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	result, err := o.verifier.Verify(sctx, patch)
	r.tracker.RecordEvent("verify", patch.FindingID, time.Since(start).Seconds())
	return result, o.stageErr(sctx, err)
}

// lookupHint queries the learning store for a known resolution of the
// finding's pattern. Lookup failures degrade to a miss: generation
// proceeds without a hint.
func (o *Orchestrator) lookupHint(ctx context.Context, f model.Finding) *model.LearningEntry {
	sctx, cancel := o.stageContext(ctx)
	defer cancel()

	entry, err := o.store.Lookup(sctx, f.PatternSignature)
	if err != nil {
		o.logger.Warn("learning lookup for finding %s: %v", f.ID, err)
		return nil
	}
	if entry == nil || entry.TimesSeen < 1 {
		o.collector.CounterInc(metrics.LearningMissesTotal.Name, "category", f.Category.String())
		return nil
	}
	o.collector.CounterInc(metrics.LearningHitsTotal.Name, "category", f.Category.String())
	return entry
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.cfg.StageTimeout)
}

// stageErr maps a stage-timeout expiry to a timeout error so the
// failure reason names the real cause.
func (o *Orchestrator) stageErr(stageCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if stageCtx.Err() == context.DeadlineExceeded {
		return errors.E(errors.KindTimeout, "pipeline.stage", "stage timed out", err)
	}
	return err
}

// snapshotFiles gathers the file content backed up before a deploy.
// When the file cannot be read the snippet itself is preserved, so a
// rollback target always exists.
func (o *Orchestrator) snapshotFiles(artifact model.Artifact, finding model.Finding) map[string][]byte {
	name := finding.Location.FilePath
	if name == "" {
		name = "snippet"
	}

	full := name
	if artifact.Path != "" {
		if fi, err := os.Stat(artifact.Path); err == nil && !fi.IsDir() {
			full = artifact.Path
		} else {
			full = filepath.Join(artifact.Path, name)
		}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		data = []byte(finding.Location.Snippet)
	}
	return map[string][]byte{name: data}
}

// =============================================================================
// State transitions and report finalization
// =============================================================================

func (o *Orchestrator) transition(chain *model.FindingChain, next model.ChainState) {
	from := chain.State
	if !from.CanTransition(next) {
		return
	}
	chain.State = next
	if o.audit != nil {
		o.audit.ChainTransition(chain.Finding.ID, from.String(), next.String())
	}
}

func (o *Orchestrator) failChain(chain *model.FindingChain, stage string, err error) {
	o.failChainReason(chain, stage, err.Error(), err)
}

func (o *Orchestrator) failChainReason(chain *model.FindingChain, stage, reason string, err error) {
	chain.State = model.StateFailed
	chain.FailedStage = stage
	chain.FailureReason = reason

	o.collector.CounterInc(metrics.StageErrorsTotal.Name,
		"stage", stage, "kind", errors.GetKind(err).String())
	if o.audit != nil {
		o.audit.ChainFailed(chain.Finding.ID, stage, reason)
	}
	o.logger.Error("chain %s failed at %s: %s", chain.Finding.ID, stage, reason)
}

// finalize sorts chains by severity-adjusted score descending and
// derives the compliance and metrics summaries from the run's own
// records.
func (o *Orchestrator) finalize(r *run) {
	report := r.report

	sort.SliceStable(report.Chains, func(i, j int) bool {
		si, sj := chainScore(report.Chains[i]), chainScore(report.Chains[j])
		if si != sj {
			return si > sj
		}
		return report.Chains[i].Finding.ID < report.Chains[j].Finding.ID
	})

	verdictSets := make([][]compliance.Verdict, 0, len(report.Chains))
	for _, c := range report.Chains {
		var patch *model.Patch
		if c.Deployment != nil && c.Deployment.RollbackRef == "" {
			patch = c.Patch
		}
		verdictSets = append(verdictSets, compliance.Validate(c.Finding, patch))
	}
	report.Compliance = compliance.Aggregate(verdictSets...)
	report.Metrics = r.tracker.Summary()
}

// chainScore orders chains for presentation. Chains that never reached
// analysis fall back to the zero-likelihood adjusted score.
func chainScore(c model.FindingChain) float64 {
	if c.Assessment != nil {
		return c.Assessment.SeverityAdjustedScore
	}
	return severity.AdjustedScore(c.Finding.Severity, 0)
}

// =============================================================================
// Audit helpers (audit logger is optional)
// =============================================================================

func (o *Orchestrator) auditInfo(eventType audit.EventType, message string, details map[string]interface{}) {
	if o.audit != nil {
		o.audit.Info(eventType, message, details)
	}
}

func (o *Orchestrator) auditError(eventType audit.EventType, message string, err error, details map[string]interface{}) {
	if o.audit != nil {
		o.audit.Error(eventType, message, err, details)
	}
}
