// VulnFlow Agent - Autonomous Vulnerability Remediation Pipeline
//
// This agent supports two deployment modes:
//
//  1. ONE-SHOT MODE (CI/CD):
//     vulnflow-agent -target ./src -format sarif -output results.sarif
//
//  2. DAEMON MODE (Continuous):
//     vulnflow-agent -daemon -config agent.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vulnflow/vulnflow/pkg/audit"
	"github.com/vulnflow/vulnflow/pkg/backup"
	"github.com/vulnflow/vulnflow/pkg/connectors"
	"github.com/vulnflow/vulnflow/pkg/core"
	"github.com/vulnflow/vulnflow/pkg/credentials"
	"github.com/vulnflow/vulnflow/pkg/enrichers/kev"
	"github.com/vulnflow/vulnflow/pkg/health"
	"github.com/vulnflow/vulnflow/pkg/learning"
	"github.com/vulnflow/vulnflow/pkg/lock"
	"github.com/vulnflow/vulnflow/pkg/metrics"
	"github.com/vulnflow/vulnflow/pkg/model"
	"github.com/vulnflow/vulnflow/pkg/options"
	"github.com/vulnflow/vulnflow/pkg/pipeline"
	"github.com/vulnflow/vulnflow/pkg/report"
	"github.com/vulnflow/vulnflow/pkg/scanners"
	transportgrpc "github.com/vulnflow/vulnflow/pkg/transport/grpc"
)

const (
	appName    = "vulnflow-agent"
	appVersion = "1.0.0"
)

// Config represents the agent configuration.
type Config struct {
	// Agent settings
	Agent struct {
		Name              string        `yaml:"name"`
		RunInterval       time.Duration `yaml:"run_interval"`
		Workers           int           `yaml:"workers"`
		MaxVerifyAttempts int           `yaml:"max_verify_attempts"`
		StageTimeout      time.Duration `yaml:"stage_timeout"`
		IncidentThreshold float64       `yaml:"incident_threshold"`
		Scanner           string        `yaml:"scanner"` // static, sarif
		HealthAddr        string        `yaml:"health_addr"`
		Verbose           bool          `yaml:"verbose"`
	} `yaml:"agent"`

	// Artifact source
	Source struct {
		Type       string `yaml:"type"` // local, github, gitlab
		Path       string `yaml:"path"`
		Repository string `yaml:"repository"` // owner/repo or project ID
		Branch     string `yaml:"branch"`
		Token      string `yaml:"token"`
		TokenFile  string `yaml:"token_file"`
		BaseURL    string `yaml:"base_url"`
		RateLimit  int    `yaml:"rate_limit"`
	} `yaml:"source"`

	// Learning store
	Learning struct {
		Backend string               `yaml:"backend"` // memory, sqlite, remote
		Path    string               `yaml:"path"`    // sqlite database path
		Remote  transportgrpc.Config `yaml:"remote"`
	} `yaml:"learning"`

	// Snapshot storage
	Backup struct {
		Dir string `yaml:"dir"`
	} `yaml:"backup"`

	// Deployment serialization across agents sharing a target
	Deploy struct {
		LockFile string `yaml:"lock_file"`
	} `yaml:"deploy"`

	// Audit trail
	Audit struct {
		Enabled bool   `yaml:"enabled"`
		File    string `yaml:"file"`
	} `yaml:"audit"`

	// Report output
	Output struct {
		Format string `yaml:"format"` // json, sarif, text
		File   string `yaml:"file"`
	} `yaml:"output"`

	// Threat analysis enrichment
	Analysis struct {
		KEV        bool   `yaml:"kev"` // floor likelihood for actively exploited weakness classes
		KEVFeedURL string `yaml:"kev_feed_url"`
	} `yaml:"analysis"`

	// Savings baseline
	Baseline struct {
		SecondsPerFinding float64 `yaml:"seconds_per_finding"`
		HourlyCostUSD     float64 `yaml:"hourly_cost_usd"`
	} `yaml:"baseline"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config file")
	target := flag.String("target", ".", "Target directory to scan")
	sourceType := flag.String("source", "local", "Artifact source (local, github, gitlab)")
	scannerName := flag.String("scanner", "", "Scanner (static, sarif); sarif imports existing .sarif results from the target")
	repo := flag.String("repo", "", "Repository (owner/repo for GitHub, project ID for GitLab)")
	branch := flag.String("branch", "", "Branch to scan")
	token := flag.String("token", "", "Provider API token (or VULNFLOW_TOKEN env)")
	tokenFile := flag.String("token-file", "", "JSON token file mapping provider to token (must be mode 0600)")
	format := flag.String("format", "text", "Output format (json, sarif, text)")
	outputFile := flag.String("output", "", "Output file path (instead of stdout)")
	workers := flag.Int("workers", 0, "Concurrent remediation chains (0 = default)")
	verifyAttempts := flag.Int("verify-attempts", 0, "Verification retry budget (0 = default)")
	daemon := flag.Bool("daemon", false, "Run in daemon mode")
	interval := flag.Duration("interval", 0, "Run interval in daemon mode (0 = default)")
	healthAddr := flag.String("health-addr", "", "Health/metrics listen address for daemon mode, e.g. :8080")
	learningDB := flag.String("learning-db", "", "SQLite learning database path (empty = in-memory)")
	deployLockFile := flag.String("deploy-lock", "", "Lease file serializing deployments across agents (empty = in-process lock)")
	kevEnrich := flag.Bool("kev", false, "Enrich analysis with the CISA Known Exploited Vulnerabilities catalog")
	auditLog := flag.String("audit-log", "", "Audit log file path (empty = disabled)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	// Setup context with signal handling. The first signal starts a
	// graceful stop: running chains finish their current stage.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down, letting chains finish their current stage...")
		cancel()
	}()

	// Load config or build it from CLI flags
	var cfg Config
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	run := options.DefaultRunConfig()
	options.ApplyRunOptions(run,
		options.WithVerbose(*verbose || cfg.Agent.Verbose),
	)
	if cfg.Agent.Workers > 0 {
		options.ApplyRunOptions(run, options.WithWorkerCount(cfg.Agent.Workers))
	}
	if *workers > 0 {
		options.ApplyRunOptions(run, options.WithWorkerCount(*workers))
	}
	if cfg.Agent.MaxVerifyAttempts > 0 {
		options.ApplyRunOptions(run, options.WithMaxVerifyAttempts(cfg.Agent.MaxVerifyAttempts))
	}
	if *verifyAttempts > 0 {
		options.ApplyRunOptions(run, options.WithMaxVerifyAttempts(*verifyAttempts))
	}
	if cfg.Agent.StageTimeout > 0 {
		options.ApplyRunOptions(run, options.WithStageTimeout(cfg.Agent.StageTimeout))
	}
	if cfg.Agent.IncidentThreshold > 0 {
		options.ApplyRunOptions(run, options.WithIncidentThreshold(cfg.Agent.IncidentThreshold))
	}
	if cfg.Agent.RunInterval > 0 {
		options.ApplyRunOptions(run, options.WithDaemonInterval(cfg.Agent.RunInterval))
	}
	if *interval > 0 {
		options.ApplyRunOptions(run, options.WithDaemonInterval(*interval))
	}

	src := options.DefaultSourceConfig()
	if cfg.Source.Type != "" {
		options.ApplySourceOptions(src, options.WithSourceType(cfg.Source.Type))
	}
	if cfg.Source.Path != "" {
		options.ApplySourceOptions(src, options.WithSourcePath(cfg.Source.Path))
	}
	if cfg.Source.Repository != "" {
		options.ApplySourceOptions(src, options.WithSourceRepository(cfg.Source.Repository, cfg.Source.Branch))
	}
	if cfg.Source.RateLimit > 0 {
		options.ApplySourceOptions(src, options.WithSourceRateLimit(cfg.Source.RateLimit, 10))
	}
	options.ApplySourceOptions(src, options.WithSourceBaseURL(firstOf(cfg.Source.BaseURL, "")))
	if *configPath == "" || *sourceType != "local" {
		options.ApplySourceOptions(src, options.WithSourceType(*sourceType), options.WithSourcePath(*target))
		if *repo != "" {
			options.ApplySourceOptions(src, options.WithSourceRepository(*repo, *branch))
		}
	}
	if src.Type != "local" {
		resolved := resolveToken(
			firstOf(*token, cfg.Source.Token),
			firstOf(*tokenFile, cfg.Source.TokenFile),
			src.Type,
		)
		options.ApplySourceOptions(src, options.WithSourceToken(resolved))
	}

	out := options.DefaultOutputConfig()
	if cfg.Output.Format != "" {
		options.ApplyOutputOptions(out, options.WithOutputFormat(cfg.Output.Format))
	}
	if *format != "" {
		options.ApplyOutputOptions(out, options.WithOutputFormat(*format))
	}
	options.ApplyOutputOptions(out,
		options.WithOutputFile(firstOf(*outputFile, cfg.Output.File)),
		options.WithToolVersion(appVersion),
	)

	logger := core.LoggerFromVerbose(appName, run.Verbose)

	// Artifact source
	source, err := buildSource(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating artifact source: %v\n", err)
		os.Exit(1)
	}

	// Learning store
	store, err := buildStore(ctx, &cfg, *learningDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening learning store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Backup snapshots
	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir = defaultBackupDir()
	}
	backups, err := backup.NewStore(backupDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening backup store: %v\n", err)
		os.Exit(1)
	}

	// Audit trail
	var auditLogger *audit.Logger
	auditFile := firstOf(*auditLog, cfg.Audit.File)
	if auditFile != "" || cfg.Audit.Enabled {
		auditCfg := audit.DefaultLoggerConfig()
		if auditFile != "" {
			auditCfg.LogFile = auditFile
		}
		auditLogger, err = audit.NewLogger(auditCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit log: %v\n", err)
			os.Exit(1)
		}
		auditLogger.Start()
		defer auditLogger.Stop()
	}

	// Metrics collector: prometheus when probes are served, in-memory
	// otherwise.
	probeAddr := firstOf(*healthAddr, cfg.Agent.HealthAddr)
	var collector metrics.Collector
	var promCollector *metrics.PrometheusCollector
	if *daemon && probeAddr != "" {
		promCollector = metrics.NewPrometheusCollector(&metrics.PrometheusConfig{
			Namespace:              "vulnflow",
			RegisterDefaultMetrics: true,
		})
		collector = promCollector
	} else {
		collector = metrics.NewInMemoryCollector()
	}

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.WorkerCount = run.WorkerCount
	pipelineCfg.MaxVerifyAttempts = run.MaxVerifyAttempts
	pipelineCfg.StageTimeout = run.StageTimeout
	pipelineCfg.IncidentSeverityThreshold = run.IncidentThreshold

	orchOpts := []pipeline.Option{
		pipeline.WithConfig(pipelineCfg),
		pipeline.WithLearningStore(store),
		pipeline.WithBackupStore(backups),
		pipeline.WithCollector(collector),
		pipeline.WithLogger(logger),
	}
	if auditLogger != nil {
		orchOpts = append(orchOpts, pipeline.WithAuditLogger(auditLogger))
	}
	if lockFile := firstOf(*deployLockFile, cfg.Deploy.LockFile); lockFile != "" {
		orchOpts = append(orchOpts, pipeline.WithDeployLock(lock.NewFileLease(lockFile)))
	}
	if cfg.Analysis.KEV || *kevEnrich {
		catalog := kev.NewCatalog()
		if cfg.Analysis.KEVFeedURL != "" {
			catalog.URL = cfg.Analysis.KEVFeedURL
		}
		orchOpts = append(orchOpts, pipeline.WithAnalyzer(kev.NewAnalyzer(&pipeline.HeuristicAnalyzer{}, catalog)))
	}
	switch firstOf(*scannerName, cfg.Agent.Scanner) {
	case "", "static":
	case "sarif":
		orchOpts = append(orchOpts, pipeline.WithScanner(scanners.SARIFImport()))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown scanner: %s (static, sarif)\n", firstOf(*scannerName, cfg.Agent.Scanner))
		os.Exit(1)
	}
	if cfg.Baseline.SecondsPerFinding > 0 || cfg.Baseline.HourlyCostUSD > 0 {
		tracker := metrics.DefaultTrackerConfig()
		if cfg.Baseline.SecondsPerFinding > 0 {
			tracker.BaselineSecondsPerFinding = cfg.Baseline.SecondsPerFinding
		}
		if cfg.Baseline.HourlyCostUSD > 0 {
			tracker.HourlyCostUSD = cfg.Baseline.HourlyCostUSD
		}
		orchOpts = append(orchOpts, pipeline.WithTrackerConfig(tracker))
	}

	orch, err := pipeline.New(orchOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error assembling pipeline: %v\n", err)
		os.Exit(1)
	}

	renderer, err := buildRenderer(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *daemon {
		runDaemon(ctx, orch, source, renderer, run, out, store, backupDir, probeAddr, promCollector, logger)
	} else {
		code := runOnce(ctx, orch, source, renderer, out, logger)
		os.Exit(code)
	}
}

// resolveToken resolves the provider token: explicit value, then
// VULNFLOW_<PROVIDER>_TOKEN, then the token file, then the generic
// VULNFLOW_TOKEN variable.
func resolveToken(explicit, tokenFile, provider string) string {
	if explicit != "" {
		return explicit
	}

	resolvers := []credentials.Resolver{credentials.NewEnvResolver("VULNFLOW_")}
	if tokenFile != "" {
		resolvers = append(resolvers, credentials.NewFileResolver(tokenFile))
	}
	if token, err := credentials.NewChain(resolvers...).Token(provider); err == nil {
		return token
	}
	return os.Getenv("VULNFLOW_TOKEN")
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultBackupDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vulnflow/backups"
	}
	return home + "/.vulnflow/backups"
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return nil
}

func buildSource(cfg *options.SourceConfig) (connectors.ArtifactSource, error) {
	switch cfg.Type {
	case "", "local":
		return connectors.NewLocalSource(cfg.Path), nil

	case "github":
		owner, repo, ok := splitRepo(cfg.Repository)
		if !ok {
			return nil, fmt.Errorf("github source needs -repo owner/repo")
		}
		return connectors.NewGitHubSource(connectors.GitHubConfig{
			Owner:        owner,
			Repo:         repo,
			Branch:       cfg.Branch,
			CheckoutPath: cfg.Path,
			Connector: &connectors.ConnectorConfig{
				Token:      cfg.Token,
				Timeout:    cfg.Timeout,
				RateLimit:  cfg.RateLimit,
				BurstLimit: cfg.BurstLimit,
			},
		})

	case "gitlab":
		if cfg.Repository == "" {
			return nil, fmt.Errorf("gitlab source needs -repo project ID")
		}
		return connectors.NewGitLabSource(connectors.GitLabConfig{
			BaseURL:      cfg.BaseURL,
			ProjectID:    cfg.Repository,
			Branch:       cfg.Branch,
			CheckoutPath: cfg.Path,
			Connector: &connectors.ConnectorConfig{
				Token:      cfg.Token,
				Timeout:    cfg.Timeout,
				RateLimit:  cfg.RateLimit,
				BurstLimit: cfg.BurstLimit,
			},
		})

	default:
		return nil, fmt.Errorf("unknown source type: %s (local, github, gitlab)", cfg.Type)
	}
}

func splitRepo(full string) (owner, repo string, ok bool) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i], full[i+1:], full[:i] != "" && full[i+1:] != ""
		}
	}
	return "", "", false
}

func buildStore(ctx context.Context, cfg *Config, flagDB string) (learning.Store, error) {
	backend := cfg.Learning.Backend
	if flagDB != "" {
		backend = "sqlite"
	}

	switch backend {
	case "", "memory":
		return learning.NewMemoryStore(), nil

	case "sqlite":
		path := firstOf(flagDB, cfg.Learning.Path)
		if path == "" {
			path = "vulnflow-learning.db"
		}
		return learning.NewSQLiteStore(path)

	case "remote":
		return learning.NewRemoteStore(ctx, &cfg.Learning.Remote)

	default:
		return nil, fmt.Errorf("unknown learning backend: %s (memory, sqlite, remote)", backend)
	}
}

func buildRenderer(cfg *options.OutputConfig) (report.Renderer, error) {
	switch cfg.Format {
	case "", "text":
		return &report.TextRenderer{}, nil
	case "json":
		return &report.JSONRenderer{}, nil
	case "sarif":
		return &report.SARIFRenderer{ToolVersion: cfg.ToolVersion}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (json, sarif, text)", cfg.Format)
	}
}

func runOnce(ctx context.Context, orch *pipeline.Orchestrator, source connectors.ArtifactSource, renderer report.Renderer, out *options.OutputConfig, logger core.Logger) int {
	artifact, err := source.Resolve(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving artifact: %v\n", err)
		return 1
	}

	logger.Info("scanning %s", artifact.Path)

	result, err := orch.Run(ctx, artifact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}

	if err := writeReport(result, renderer, out.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		return 1
	}

	if len(result.FailedChains()) > 0 {
		return 2
	}
	return 0
}

func runDaemon(ctx context.Context, orch *pipeline.Orchestrator, source connectors.ArtifactSource, renderer report.Renderer, run *options.RunConfig, out *options.OutputConfig, store learning.Store, backupDir, probeAddr string, promCollector *metrics.PrometheusCollector, logger core.Logger) {
	// Probe endpoints
	var probes *health.Handler
	if probeAddr != "" {
		probes = health.NewHandler(health.WithVersion(appVersion))
		probes.Register("learning_store", &health.LearningStoreCheck{Store: store})
		probes.Register("snapshot_dir", &health.SnapshotDirCheck{Path: backupDir, MinFreePercent: 5})
		probes.Register("memory", &health.MemoryCheck{})
		probes.Register("system_memory", &health.SystemMemoryCheck{MaxUsagePercent: 95})

		mux := http.NewServeMux()
		health.RegisterRoutes(mux, probes)
		if promCollector != nil {
			mux.Handle("/metrics", promCollector.Handler())
		}

		server := &http.Server{Addr: probeAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "Probe server error: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		fmt.Printf("  Probes: http://%s/healthz\n", probeAddr)
	}

	fmt.Printf("\n%s started\n", appName)
	fmt.Printf("  Mode: daemon\n")
	fmt.Printf("  Source: %s\n", source.Name())
	fmt.Printf("  Run interval: %s\n", run.DaemonInterval)
	fmt.Println("\nPress Ctrl+C to stop.")

	ticker := time.NewTicker(run.DaemonInterval)
	defer ticker.Stop()

	for {
		runDaemonOnce(ctx, orch, source, renderer, out, probes, logger)

		select {
		case <-ctx.Done():
			fmt.Println("Agent stopped.")
			return
		case <-ticker.C:
		}
	}
}

func runDaemonOnce(ctx context.Context, orch *pipeline.Orchestrator, source connectors.ArtifactSource, renderer report.Renderer, out *options.OutputConfig, probes *health.Handler, logger core.Logger) {
	if ctx.Err() != nil {
		return
	}
	if probes != nil {
		probes.SetReady(false)
		defer probes.SetReady(true)
	}

	artifact, err := source.Resolve(ctx)
	if err != nil {
		logger.Error("resolve artifact: %v", err)
		return
	}

	result, err := orch.Run(ctx, artifact)
	if err != nil {
		logger.Error("run failed: %v", err)
		return
	}

	if err := writeReport(result, renderer, out.File); err != nil {
		logger.Error("write report: %v", err)
	}
}

func writeReport(result *model.RunReport, renderer report.Renderer, outputFile string) error {
	data, err := renderer.Render(result)
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", outputFile)
		return nil
	}

	fmt.Println(string(data))
	return nil
}
