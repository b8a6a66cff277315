// Package healthsrv provides the small ambient HTTP surface every decs
// service exposes alongside its broker/KV traffic: a liveness probe and an
// introspection view of recently handled operations, adapted from the
// teacher's statemanager package.
package healthsrv

import (
	"sync"
	"time"
)

// Status is the lifecycle state of one tracked operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Operation is one tracked unit of work: a resource-protocol call, a
// heartbeat round-trip, a tick dispatch. The set of Operation kinds used by
// each service is named where that service calls Track (e.g. "set", "new",
// "delete", "incr", "tick", "heartbeat").
type Operation struct {
	ID          string                 `json:"id"`
	Service     string                 `json:"service"`
	Kind        string                 `json:"kind"`
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Duration    string                 `json:"duration,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Stats is an aggregated view over the tracked operation window.
type Stats struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"by_status"`
	ByKind          map[string]int `json:"by_kind"`
	AverageDuration string         `json:"average_duration,omitempty"`
}

// Tracker records a bounded, in-memory window of a service's operations for
// the /state endpoints.
type Tracker struct {
	mu         sync.RWMutex
	service    string
	operations map[string]*Operation
	order      []string
	maxWindow  int
}

// NewTracker returns a Tracker for service that keeps at most maxWindow
// operations, evicting the oldest once full. maxWindow <= 0 defaults to 1000.
func NewTracker(service string, maxWindow int) *Tracker {
	if maxWindow <= 0 {
		maxWindow = 1000
	}
	return &Tracker{
		service:    service,
		operations: make(map[string]*Operation),
		maxWindow:  maxWindow,
	}
}

// Start records a new running operation under id.
func (t *Tracker) Start(id, kind string, metadata map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.order) >= t.maxWindow {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.operations, oldest)
	}

	t.operations[id] = &Operation{
		ID:        id,
		Service:   t.service,
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Metadata:  metadata,
	}
	t.order = append(t.order, id)
}

// Finish marks id completed (err == nil) or failed.
func (t *Tracker) Finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.operations[id]
	if !ok {
		return
	}
	now := time.Now()
	op.CompletedAt = &now
	op.Duration = now.Sub(op.StartedAt).String()
	if err != nil {
		op.Status = StatusFailed
		op.Error = err.Error()
	} else {
		op.Status = StatusCompleted
	}
}

// Track wraps fn with a Start/Finish pair, grounded on the teacher's
// LogOperation helper.
func (t *Tracker) Track(id, kind string, fn func() error) error {
	t.Start(id, kind, nil)
	err := fn()
	t.Finish(id, err)
	return err
}

// Get returns a copy of one tracked operation, or nil.
func (t *Tracker) Get(id string) *Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.operations[id]
	if !ok {
		return nil
	}
	cp := *op
	return &cp
}

// List returns copies of every tracked operation.
func (t *Tracker) List() []*Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Operation, 0, len(t.operations))
	for _, id := range t.order {
		if op, ok := t.operations[id]; ok {
			cp := *op
			out = append(out, &cp)
		}
	}
	return out
}

// StatsSnapshot aggregates the current window.
func (t *Tracker) StatsSnapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		ByStatus: make(map[Status]int),
		ByKind:   make(map[string]int),
	}
	var totalDuration time.Duration
	var completed int

	for _, op := range t.operations {
		stats.Total++
		stats.ByStatus[op.Status]++
		stats.ByKind[op.Kind]++
		if op.CompletedAt != nil {
			totalDuration += op.CompletedAt.Sub(op.StartedAt)
			completed++
		}
	}
	if completed > 0 {
		stats.AverageDuration = (totalDuration / time.Duration(completed)).String()
	}
	return stats
}
