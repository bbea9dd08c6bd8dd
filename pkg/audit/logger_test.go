package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(&LoggerConfig{
		RunID:         "run-1",
		LogFile:       path,
		BufferSize:    100,
		FlushInterval: time.Hour, // flush manually in tests
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return logger, path
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("malformed audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestLogger_WritesJSONLines(t *testing.T) {
	logger, path := newTestLogger(t)

	logger.Info(EventRunStarted, "run started", map[string]interface{}{"workers": 4})
	logger.Error(EventRunFailed, "scan blew up", errors.New("boom"), nil)
	logger.Flush()

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	if events[0].Type != EventRunStarted || events[0].Severity != SeverityInfo {
		t.Errorf("first event = %+v", events[0])
	}
	if events[0].RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1 (from config)", events[0].RunID)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	if events[1].Error != "boom" {
		t.Errorf("error field = %q, want boom", events[1].Error)
	}
}

func TestLogger_ChainTransition(t *testing.T) {
	logger, path := newTestLogger(t)

	logger.ChainTransition("f-1", "DISCOVERED", "ANALYZED")
	logger.ChainFailed("f-2", "verify", "max_retries_exceeded")
	logger.Flush()

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].FindingID != "f-1" || events[0].Details["to"] != "ANALYZED" {
		t.Errorf("transition event = %+v", events[0])
	}
	if events[1].Severity != SeverityError || events[1].Details["reason"] != "max_retries_exceeded" {
		t.Errorf("failure event = %+v", events[1])
	}
}

func TestLogger_DeploymentEvents(t *testing.T) {
	logger, path := newTestLogger(t)

	logger.DeployCompleted("f-1", "p-1", "ref-abc", 120*time.Millisecond)
	logger.RollbackPerformed("f-1", "p-1", "ref-abc", errors.New("post-deploy check failed"))
	logger.IncidentRaised("f-1", "active exploitation detected")
	logger.Flush()

	events := readEvents(t, path)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Details["backup_ref"] != "ref-abc" {
		t.Errorf("deploy event = %+v", events[0])
	}
	if events[1].Details["rollback_ref"] != "ref-abc" || events[1].Error == "" {
		t.Errorf("rollback event = %+v", events[1])
	}
	if events[2].Severity != SeverityCritical {
		t.Errorf("incident event severity = %s, want CRITICAL", events[2].Severity)
	}
}

func TestLogger_StopFlushes(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.Start()

	logger.Info(EventRunFinished, "done", nil)
	if err := logger.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("got %d events after stop, want 1 (stop must flush)", len(events))
	}
}

func TestLogger_AppendsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	for i := 0; i < 2; i++ {
		logger, err := NewLogger(&LoggerConfig{LogFile: path, FlushInterval: time.Hour})
		if err != nil {
			t.Fatalf("NewLogger: %v", err)
		}
		logger.Info(EventRunStarted, "run", nil)
		if err := logger.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Errorf("got %d events, want 2 (log must append, not truncate)", len(events))
	}
}
