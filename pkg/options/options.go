// Package options provides functional options for assembling agent
// runs. This follows AWS SDK, gRPC, and other industry-standard Go
// SDKs.
package options

import (
	"time"
)

// =============================================================================
// Run Options
// =============================================================================

// RunConfig holds the flat run settings the agent builds a pipeline
// from.
type RunConfig struct {
	WorkerCount       int
	MaxVerifyAttempts int
	StageTimeout      time.Duration
	IncidentThreshold float64
	IncidentQueueSize int
	DaemonInterval    time.Duration
	Verbose           bool
}

// RunOption is a function that configures a run.
type RunOption func(*RunConfig)

// DefaultRunConfig returns default run configuration.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		WorkerCount:       4,
		MaxVerifyAttempts: 3,
		StageTimeout:      60 * time.Second,
		IncidentThreshold: 9.0,
		IncidentQueueSize: 16,
		DaemonInterval:    1 * time.Hour,
	}
}

// ApplyRunOptions applies options to config.
func ApplyRunOptions(cfg *RunConfig, opts ...RunOption) {
	for _, opt := range opts {
		opt(cfg)
	}
}

// WithWorkerCount sets the number of concurrent remediation chains.
func WithWorkerCount(n int) RunOption {
	return func(c *RunConfig) {
		c.WorkerCount = n
	}
}

// WithMaxVerifyAttempts sets the verification retry budget.
func WithMaxVerifyAttempts(n int) RunOption {
	return func(c *RunConfig) {
		c.MaxVerifyAttempts = n
	}
}

// WithStageTimeout bounds each pipeline stage.
func WithStageTimeout(d time.Duration) RunOption {
	return func(c *RunConfig) {
		c.StageTimeout = d
	}
}

// WithIncidentThreshold sets the severity at which a finding raises an
// incident.
func WithIncidentThreshold(score float64) RunOption {
	return func(c *RunConfig) {
		c.IncidentThreshold = score
	}
}

// WithDaemonInterval sets the interval between runs in daemon mode.
func WithDaemonInterval(d time.Duration) RunOption {
	return func(c *RunConfig) {
		c.DaemonInterval = d
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(v bool) RunOption {
	return func(c *RunConfig) {
		c.Verbose = v
	}
}

// =============================================================================
// Source Options
// =============================================================================

// SourceConfig holds artifact source configuration.
type SourceConfig struct {
	Type       string // local, github, gitlab
	Path       string
	Repository string // owner/repo
	Branch     string
	Token      string
	BaseURL    string
	RateLimit  int
	BurstLimit int
	Timeout    time.Duration
}

// SourceOption is a function that configures an artifact source.
type SourceOption func(*SourceConfig)

// DefaultSourceConfig returns default source configuration.
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		Type:       "local",
		Path:       ".",
		Timeout:    30 * time.Second,
		BurstLimit: 10,
	}
}

// ApplySourceOptions applies options to config.
func ApplySourceOptions(cfg *SourceConfig, opts ...SourceOption) {
	for _, opt := range opts {
		opt(cfg)
	}
}

// WithSourceType sets the source type.
func WithSourceType(t string) SourceOption {
	return func(c *SourceConfig) {
		c.Type = t
	}
}

// WithSourcePath sets the local path to scan.
func WithSourcePath(path string) SourceOption {
	return func(c *SourceConfig) {
		c.Path = path
	}
}

// WithSourceRepository sets the remote repository and branch.
func WithSourceRepository(repo, branch string) SourceOption {
	return func(c *SourceConfig) {
		c.Repository = repo
		c.Branch = branch
	}
}

// WithSourceToken sets the provider auth token.
func WithSourceToken(token string) SourceOption {
	return func(c *SourceConfig) {
		c.Token = token
	}
}

// WithSourceBaseURL sets the provider base URL for self-hosted
// instances.
func WithSourceBaseURL(url string) SourceOption {
	return func(c *SourceConfig) {
		c.BaseURL = url
	}
}

// WithSourceRateLimit sets provider API rate limiting.
func WithSourceRateLimit(perHour, burst int) SourceOption {
	return func(c *SourceConfig) {
		c.RateLimit = perHour
		c.BurstLimit = burst
	}
}

// =============================================================================
// Output Options
// =============================================================================

// OutputConfig holds report output configuration.
type OutputConfig struct {
	Format      string // json, sarif, text
	File        string // empty writes to stdout
	ToolVersion string
}

// OutputOption is a function that configures report output.
type OutputOption func(*OutputConfig)

// DefaultOutputConfig returns default output configuration.
func DefaultOutputConfig() *OutputConfig {
	return &OutputConfig{
		Format: "text",
	}
}

// ApplyOutputOptions applies options to config.
func ApplyOutputOptions(cfg *OutputConfig, opts ...OutputOption) {
	for _, opt := range opts {
		opt(cfg)
	}
}

// WithOutputFormat sets the report format.
func WithOutputFormat(format string) OutputOption {
	return func(c *OutputConfig) {
		c.Format = format
	}
}

// WithOutputFile writes the report to a file instead of stdout.
func WithOutputFile(path string) OutputOption {
	return func(c *OutputConfig) {
		c.File = path
	}
}

// WithToolVersion stamps the tool version into machine-readable
// output.
func WithToolVersion(version string) OutputOption {
	return func(c *OutputConfig) {
		c.ToolVersion = version
	}
}
