// Package audit provides structured audit logging for pipeline operations.
//
// Every chain state transition, deployment, rollback, and incident should be
// logged via this package to enable:
// - Security monitoring and incident response
// - Debugging and troubleshooting
// - Compliance and audit trails
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Lifecycle events
	EventRunStarted  EventType = "run_started"
	EventRunFinished EventType = "run_finished"
	EventRunFailed   EventType = "run_failed"

	// Chain events
	EventChainTransition EventType = "chain_transition"
	EventChainFailed     EventType = "chain_failed"

	// Stage events
	EventScanCompleted EventType = "scan_completed"
	EventVerifyRetry   EventType = "verify_retry"

	// Deployment events
	EventBackupTaken        EventType = "backup_taken"
	EventDeployCompleted    EventType = "deploy_completed"
	EventDeployFailed       EventType = "deploy_failed"
	EventRollbackPerformed  EventType = "rollback_performed"

	// Incident events
	EventIncidentRaised    EventType = "incident_raised"
	EventIncidentContained EventType = "incident_contained"

	// Security events
	EventAuthFailed      EventType = "auth_failed"
	EventRateLimited     EventType = "rate_limited"
	EventValidationError EventType = "validation_error"
)

// Severity represents log severity level.
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event represents an audit event. Events are appended to the audit log
// as JSON lines, one event per line.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	Severity  Severity               `json:"severity"`
	RunID     string                 `json:"run_id,omitempty"`
	FindingID string                 `json:"finding_id,omitempty"`
	PatchID   string                 `json:"patch_id,omitempty"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration_ms,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// LoggerConfig configures the audit logger.
type LoggerConfig struct {
	// RunID is included in all events.
	RunID string

	// LogFile is the path to the audit log file.
	// Default: ~/.vulnflow/audit.log
	LogFile string

	// BufferSize is the number of events to buffer before flushing.
	// Default: 100
	BufferSize int

	// FlushInterval is how often to flush buffered events.
	// Default: 5 seconds
	FlushInterval time.Duration

	// Verbose enables console output of audit events.
	Verbose bool
}

// DefaultLoggerConfig returns sensible defaults.
func DefaultLoggerConfig() *LoggerConfig {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}

	return &LoggerConfig{
		LogFile:       filepath.Join(home, ".vulnflow", "audit.log"),
		BufferSize:    100,
		FlushInterval: 5 * time.Second,
	}
}

// Logger is the audit logger.
type Logger struct {
	config *LoggerConfig
	file   *os.File
	mu     sync.Mutex

	buffer   []Event
	bufferMu sync.Mutex

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewLogger creates a new audit logger.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	// Apply defaults for zero values
	if config.LogFile == "" {
		config.LogFile = DefaultLoggerConfig().LogFile
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	dir := filepath.Dir(config.LogFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	// Open log file for append (0640 = owner read/write, group read)
	file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		config: config,
		file:   file,
		buffer: make([]Event, 0, config.BufferSize),
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins background flushing.
func (l *Logger) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	l.wg.Add(1)
	go l.flushLoop()
}

// Stop stops the logger and flushes remaining events.
func (l *Logger) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		l.Flush()
		return l.file.Close()
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()

	l.Flush()
	return l.file.Close()
}

// Log records an audit event.
func (l *Logger) Log(event Event) {
	event.Timestamp = time.Now()
	if event.RunID == "" {
		event.RunID = l.config.RunID
	}

	l.bufferMu.Lock()
	l.buffer = append(l.buffer, event)
	shouldFlush := len(l.buffer) >= l.config.BufferSize
	l.bufferMu.Unlock()

	if l.config.Verbose {
		l.printEvent(event)
	}

	if shouldFlush {
		go l.Flush()
	}
}

// Convenience methods for common event types

// Info logs an informational event.
func (l *Logger) Info(eventType EventType, message string, details map[string]interface{}) {
	l.Log(Event{
		Type:     eventType,
		Severity: SeverityInfo,
		Message:  message,
		Details:  details,
	})
}

// Error logs an error event.
func (l *Logger) Error(eventType EventType, message string, err error, details map[string]interface{}) {
	event := Event{
		Type:     eventType,
		Severity: SeverityError,
		Message:  message,
		Details:  details,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// ChainTransition logs a finding chain moving to a new state.
func (l *Logger) ChainTransition(findingID, from, to string) {
	l.Log(Event{
		Type:      EventChainTransition,
		Severity:  SeverityInfo,
		FindingID: findingID,
		Message:   fmt.Sprintf("chain %s -> %s", from, to),
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// ChainFailed logs a finding chain entering the failed state.
func (l *Logger) ChainFailed(findingID, stage, reason string) {
	l.Log(Event{
		Type:      EventChainFailed,
		Severity:  SeverityError,
		FindingID: findingID,
		Message:   fmt.Sprintf("chain failed at %s: %s", stage, reason),
		Details: map[string]interface{}{
			"stage":  stage,
			"reason": reason,
		},
	})
}

// DeployCompleted logs a successful deployment.
func (l *Logger) DeployCompleted(findingID, patchID, backupRef string, duration time.Duration) {
	l.Log(Event{
		Type:      EventDeployCompleted,
		Severity:  SeverityInfo,
		FindingID: findingID,
		PatchID:   patchID,
		Message:   "patch deployed",
		Duration:  duration,
		Details: map[string]interface{}{
			"backup_ref": backupRef,
		},
	})
}

// RollbackPerformed logs a rollback after a failed deployment.
func (l *Logger) RollbackPerformed(findingID, patchID, rollbackRef string, err error) {
	event := Event{
		Type:      EventRollbackPerformed,
		Severity:  SeverityWarning,
		FindingID: findingID,
		PatchID:   patchID,
		Message:   "deployment rolled back",
		Details: map[string]interface{}{
			"rollback_ref": rollbackRef,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// IncidentRaised logs a new incident.
func (l *Logger) IncidentRaised(findingID, description string) {
	l.Log(Event{
		Type:      EventIncidentRaised,
		Severity:  SeverityCritical,
		FindingID: findingID,
		Message:   "incident raised: " + description,
	})
}

// Flush writes buffered events to disk.
func (l *Logger) Flush() {
	l.bufferMu.Lock()
	if len(l.buffer) == 0 {
		l.bufferMu.Unlock()
		return
	}
	events := l.buffer
	l.buffer = make([]Event, 0, l.config.BufferSize)
	l.bufferMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = l.file.Write(data)
		_, _ = l.file.Write([]byte("\n"))
	}

	_ = l.file.Sync()
}

// flushLoop periodically flushes buffered events.
func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}

// printEvent prints an event to console in human-readable format.
func (l *Logger) printEvent(event Event) {
	timestamp := event.Timestamp.Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] [%s] %s: %s\n", timestamp, event.Severity, event.Type, event.Message)
	if event.Error != "" {
		fmt.Printf("  Error: %s\n", event.Error)
	}
}
