package metrics

import (
	"sync"

	"github.com/vulnflow/vulnflow/pkg/model"
)

// TrackerConfig holds the baseline assumptions behind the headline
// statistics. These are configuration with defaults, never hard-coded
// invariants: headline numbers depend entirely on what the operator
// considers a fair manual baseline.
type TrackerConfig struct {
	// Manual remediation time per finding, in seconds
	BaselineSecondsPerFinding float64

	// Engineer cost per hour, used to derive cost saved from time saved
	HourlyCostUSD float64
}

// DefaultTrackerConfig returns the default baseline assumptions:
// a 40-hour manual turnaround per finding at $95/h.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		BaselineSecondsPerFinding: 40 * 3600,
		HourlyCostUSD:             95,
	}
}

// StageEvent is one recorded stage execution.
type StageEvent struct {
	Stage          string  `json:"stage"`
	FindingID      string  `json:"finding_id"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Tracker accumulates time/cost/risk deltas across one run. It
// depends on nothing but the run's own events; values stay exact
// until presentation, where rounding is applied by the renderer.
type Tracker struct {
	mu  sync.Mutex
	cfg TrackerConfig

	events   []StageEvent
	pre      map[string]float64 // finding ID -> pre-fix severity
	residual map[string]float64 // finding ID -> post-fix residual severity

	collector Collector
}

// NewTracker creates a tracker with the given baseline configuration.
func NewTracker(cfg TrackerConfig, collector Collector) *Tracker {
	if collector == nil {
		collector = &NopCollector{}
	}
	return &Tracker{
		cfg:       cfg,
		pre:       make(map[string]float64),
		residual:  make(map[string]float64),
		collector: collector,
	}
}

// RecordEvent records one stage execution for a finding.
func (t *Tracker) RecordEvent(stage, findingID string, elapsedSeconds float64) {
	t.mu.Lock()
	t.events = append(t.events, StageEvent{
		Stage:          stage,
		FindingID:      findingID,
		ElapsedSeconds: elapsedSeconds,
	})
	t.mu.Unlock()

	t.collector.HistogramObserve(StageDuration.Name, elapsedSeconds, "stage", stage)
}

// RecordFinding registers a finding's pre-fix severity. Until a
// residual is recorded the finding counts as unremediated, with
// residual equal to its pre-fix severity.
func (t *Tracker) RecordFinding(findingID string, severity float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pre[findingID] = severity
}

// RecordResidual registers the severity remaining after remediation;
// 0 for a deployed fix.
func (t *Tracker) RecordResidual(findingID string, residual float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.residual[findingID] = residual
}

// Events returns a copy of the recorded stage events.
func (t *Tracker) Events() []StageEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StageEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Summary derives the headline statistics from the recorded events.
//
// time_saved = baseline-per-finding * findings - sum(actual elapsed)
// cost_saved = time_saved / 3600 * hourly cost
// risk_reduction = (sum(pre) - sum(residual)) / sum(pre), clamped to [0,1]
//
// The formulas are exact; no rounding happens here.
func (t *Tracker) Summary() model.MetricsSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	var elapsed float64
	for _, e := range t.events {
		elapsed += e.ElapsedSeconds
	}

	n := len(t.pre)
	timeSaved := t.cfg.BaselineSecondsPerFinding*float64(n) - elapsed
	costSaved := timeSaved / 3600 * t.cfg.HourlyCostUSD

	var sumPre, sumResidual float64
	for id, pre := range t.pre {
		sumPre += pre
		if res, ok := t.residual[id]; ok {
			sumResidual += res
		} else {
			sumResidual += pre
		}
	}

	var riskReduction float64
	if sumPre > 0 {
		riskReduction = (sumPre - sumResidual) / sumPre
		if riskReduction < 0 {
			riskReduction = 0
		}
		if riskReduction > 1 {
			riskReduction = 1
		}
	}

	return model.MetricsSummary{
		FindingsProcessed:    n,
		TimeSavedSeconds:     timeSaved,
		CostSavedUSD:         costSaved,
		RiskReductionPercent: riskReduction,
		TotalElapsedSeconds:  elapsed,
	}
}
