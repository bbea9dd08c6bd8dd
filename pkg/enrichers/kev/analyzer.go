package kev

import (
	"context"

	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/pipeline"
	"github.com/vulnflow/vulnflow/pkg/severity"
)

// DefaultLikelihoodFloor is the minimum likelihood assigned to
// findings whose weakness class is under active exploitation.
const DefaultLikelihoodFloor = 0.9

// Analyzer wraps another analyzer and floors the likelihood of
// findings whose CWE appears in the KEV catalog. A catalog fetch
// failure degrades to the base assessment; enrichment never fails a
// chain.
type Analyzer struct {
	Base    pipeline.Analyzer
	Catalog *Catalog

	// LikelihoodFloor overrides DefaultLikelihoodFloor when > 0.
	LikelihoodFloor float64
}

// NewAnalyzer creates a KEV-enriched analyzer.
func NewAnalyzer(base pipeline.Analyzer, catalog *Catalog) *Analyzer {
	return &Analyzer{Base: base, Catalog: catalog}
}

func (a *Analyzer) Analyze(ctx context.Context, finding model.Finding) (*model.ThreatAssessment, error) {
	assessment, err := a.Base.Analyze(ctx, finding)
	if err != nil {
		return nil, err
	}

	exploited, _, kevErr := a.Catalog.ActivelyExploited(ctx, finding.Category.CWE())
	if kevErr != nil || !exploited {
		return assessment, nil
	}

	floor := a.LikelihoodFloor
	if floor == 0 {
		floor = DefaultLikelihoodFloor
	}
	if assessment.Likelihood < floor {
		assessment.Likelihood = floor
		assessment.SeverityAdjustedScore = severity.AdjustedScore(finding.Severity, assessment.Likelihood)
	}
	assessment.AttackVectors = append(assessment.AttackVectors, "known-exploited")
	return assessment, nil
}

var _ pipeline.Analyzer = (*Analyzer)(nil)
