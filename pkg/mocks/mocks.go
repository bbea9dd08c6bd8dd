// Package mocks provides mock implementations for testing.
// This follows AWS SDK, Google Cloud SDK patterns for testability.
package mocks

import (
	"context"

	"github.com/vulnflow/vulnflow/pkg/connectors"
	"github.com/vulnflow/vulnflow/pkg/learning"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/pipeline"
	"github.com/vulnflow/vulnflow/pkg/scanners"
)

// =============================================================================
// Mock Scanner
// =============================================================================

// MockScanner is a mock implementation of scanners.Scanner for testing.
type MockScanner struct {
	NameVal  string
	Findings []model.Finding

	// ScanFn is called when Scan is invoked
	ScanFn func(ctx context.Context, artifact model.Artifact) ([]model.Finding, error)

	// Call tracking
	ScanCalls []model.Artifact
}

func (m *MockScanner) Name() string {
	if m.NameVal == "" {
		return "mock"
	}
	return m.NameVal
}

func (m *MockScanner) Scan(ctx context.Context, artifact model.Artifact) ([]model.Finding, error) {
	m.ScanCalls = append(m.ScanCalls, artifact)
	if m.ScanFn != nil {
		return m.ScanFn(ctx, artifact)
	}
	return m.Findings, nil
}

// Ensure MockScanner implements scanners.Scanner
var _ scanners.Scanner = (*MockScanner)(nil)

// =============================================================================
// Mock Analyzer
// =============================================================================

// MockAnalyzer is a mock implementation of pipeline.Analyzer for testing.
type MockAnalyzer struct {
	// AnalyzeFn is called when Analyze is invoked
	AnalyzeFn func(ctx context.Context, finding model.Finding) (*model.ThreatAssessment, error)

	// Call tracking
	AnalyzeCalls []model.Finding
}

func (m *MockAnalyzer) Analyze(ctx context.Context, finding model.Finding) (*model.ThreatAssessment, error) {
	m.AnalyzeCalls = append(m.AnalyzeCalls, finding)
	if m.AnalyzeFn != nil {
		return m.AnalyzeFn(ctx, finding)
	}
	return &model.ThreatAssessment{
		FindingID:             finding.ID,
		Likelihood:            0.5,
		SeverityAdjustedScore: finding.Severity * 0.75,
	}, nil
}

// Ensure MockAnalyzer implements pipeline.Analyzer
var _ pipeline.Analyzer = (*MockAnalyzer)(nil)

// =============================================================================
// Mock FixGenerator
// =============================================================================

// MockFixGenerator is a mock implementation of pipeline.FixGenerator for testing.
type MockFixGenerator struct {
	// GenerateFn is called when Generate is invoked
	GenerateFn func(ctx context.Context, finding model.Finding, assessment *model.ThreatAssessment, hint *model.LearningEntry) (*model.Patch, error)

	// Call tracking
	GenerateCalls []GenerateCall
}

type GenerateCall struct {
	Finding model.Finding
	Hint    *model.LearningEntry
}

func (m *MockFixGenerator) Generate(ctx context.Context, finding model.Finding, assessment *model.ThreatAssessment, hint *model.LearningEntry) (*model.Patch, error) {
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{Finding: finding, Hint: hint})
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, finding, assessment, hint)
	}
	return &model.Patch{
		ID:        "mock-patch-" + finding.ID,
		FindingID: finding.ID,
		Diff:      "+fixed",
		TestPlan:  "run suite",
		ImplementationSteps: []string{"apply"},
	}, nil
}

// Ensure MockFixGenerator implements pipeline.FixGenerator
var _ pipeline.FixGenerator = (*MockFixGenerator)(nil)

// =============================================================================
// Mock Verifier
// =============================================================================

// MockVerifier is a mock implementation of pipeline.Verifier for testing.
type MockVerifier struct {
	// VerifyFn is called when Verify is invoked
	VerifyFn func(ctx context.Context, patch *model.Patch) (*model.VerificationResult, error)

	// Call tracking
	VerifyCalls []*model.Patch
}

func (m *MockVerifier) Verify(ctx context.Context, patch *model.Patch) (*model.VerificationResult, error) {
	m.VerifyCalls = append(m.VerifyCalls, patch)
	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, patch)
	}
	return &model.VerificationResult{
		PatchID:         patch.ID,
		SecurityPass:    true,
		FunctionalPass:  true,
		PerformancePass: true,
	}, nil
}

// Ensure MockVerifier implements pipeline.Verifier
var _ pipeline.Verifier = (*MockVerifier)(nil)

// =============================================================================
// Mock Deployer
// =============================================================================

// MockDeployer is a mock implementation of pipeline.Deployer for testing.
type MockDeployer struct {
	// DeployFn is called when Deploy is invoked
	DeployFn func(ctx context.Context, patch *model.Patch, backupRef string) (*model.DeploymentRecord, error)

	// RollbackFn is called when Rollback is invoked
	RollbackFn func(ctx context.Context, backupRef string) error

	// Call tracking
	DeployCalls   []DeployCall
	RollbackCalls []string
}

type DeployCall struct {
	Patch     *model.Patch
	BackupRef string
}

func (m *MockDeployer) Deploy(ctx context.Context, patch *model.Patch, backupRef string) (*model.DeploymentRecord, error) {
	m.DeployCalls = append(m.DeployCalls, DeployCall{Patch: patch, BackupRef: backupRef})
	if m.DeployFn != nil {
		return m.DeployFn(ctx, patch, backupRef)
	}
	return &model.DeploymentRecord{
		PatchID:   patch.ID,
		BackupRef: backupRef,
	}, nil
}

func (m *MockDeployer) Rollback(ctx context.Context, backupRef string) error {
	m.RollbackCalls = append(m.RollbackCalls, backupRef)
	if m.RollbackFn != nil {
		return m.RollbackFn(ctx, backupRef)
	}
	return nil
}

// Ensure MockDeployer implements pipeline.Deployer
var _ pipeline.Deployer = (*MockDeployer)(nil)

// =============================================================================
// Mock Learning Store
// =============================================================================

// MockLearningStore is a mock implementation of learning.Store for testing.
type MockLearningStore struct {
	// LookupFn is called when Lookup is invoked
	LookupFn func(ctx context.Context, signature string) (*model.LearningEntry, error)

	// RecordFn is called when Record is invoked
	RecordFn func(ctx context.Context, category model.Category, signature string, resolutionSeconds float64, templateRef string) (*model.LearningEntry, error)

	// Call tracking
	LookupCalls []string
	RecordCalls []RecordCall
	CloseCalls  int
}

type RecordCall struct {
	Category          model.Category
	Signature         string
	ResolutionSeconds float64
	TemplateRef       string
}

func (m *MockLearningStore) Lookup(ctx context.Context, signature string) (*model.LearningEntry, error) {
	m.LookupCalls = append(m.LookupCalls, signature)
	if m.LookupFn != nil {
		return m.LookupFn(ctx, signature)
	}
	return nil, nil
}

func (m *MockLearningStore) Record(ctx context.Context, category model.Category, signature string, resolutionSeconds float64, templateRef string) (*model.LearningEntry, error) {
	m.RecordCalls = append(m.RecordCalls, RecordCall{
		Category:          category,
		Signature:         signature,
		ResolutionSeconds: resolutionSeconds,
		TemplateRef:       templateRef,
	})
	if m.RecordFn != nil {
		return m.RecordFn(ctx, category, signature, resolutionSeconds, templateRef)
	}
	return &model.LearningEntry{
		PatternSignature: signature,
		Category:         category,
		TimesSeen:        1,
		PatchTemplateRef: templateRef,
	}, nil
}

func (m *MockLearningStore) Close() error {
	m.CloseCalls++
	return nil
}

// Ensure MockLearningStore implements learning.Store
var _ learning.Store = (*MockLearningStore)(nil)

// =============================================================================
// Mock Artifact Source
// =============================================================================

// MockSource is a mock implementation of connectors.ArtifactSource for testing.
type MockSource struct {
	NameVal  string
	Artifact model.Artifact

	// ResolveFn is called when Resolve is invoked
	ResolveFn func(ctx context.Context) (model.Artifact, error)

	// Call tracking
	ResolveCalls int
}

func (m *MockSource) Name() string {
	if m.NameVal == "" {
		return "mock"
	}
	return m.NameVal
}

func (m *MockSource) Resolve(ctx context.Context) (model.Artifact, error) {
	m.ResolveCalls++
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx)
	}
	return m.Artifact, nil
}

// Ensure MockSource implements connectors.ArtifactSource
var _ connectors.ArtifactSource = (*MockSource)(nil)
