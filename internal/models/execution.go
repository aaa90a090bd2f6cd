package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Execution status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Execution represents one asynchronous batch run of the WordPress node.
type Execution struct {
	ID           string     `json:"id"`
	CredentialID string     `json:"credential_id"`
	Resource     string     `json:"resource"`
	Operation    string     `json:"operation"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	Output       []string   `json:"output"`
	Records      any        `json:"records,omitempty"`

	mu     sync.Mutex
	cancel context.CancelFunc
}

// AppendLog adds a log line to the execution output.
func (e *Execution) AppendLog(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Output = append(e.Output, line)
}

// LogsSince returns log lines starting from the given index.
func (e *Execution) LogsSince(offset int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if offset >= len(e.Output) {
		return nil
	}
	lines := make([]string, len(e.Output)-offset)
	copy(lines, e.Output[offset:])
	return lines
}

// CurrentStatus returns the status under the execution lock.
func (e *Execution) CurrentStatus() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Status
}

// Done reports whether the execution reached a terminal status.
func (e *Execution) Done() bool {
	return e.CurrentStatus() != StatusRunning
}

// Snapshot returns a copy that can be serialised while the execution runs.
func (e *Execution) Snapshot() *Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Output))
	copy(out, e.Output)
	return &Execution{
		ID:           e.ID,
		CredentialID: e.CredentialID,
		Resource:     e.Resource,
		Operation:    e.Operation,
		Status:       e.Status,
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
		Error:        e.Error,
		Output:       out,
		Records:      e.Records,
	}
}

// Bind attaches the cancel function of the context the execution runs under.
func (e *Execution) Bind(cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancel = cancel
}

// Complete marks the execution as completed and stores its records.
func (e *Execution) Complete(records any) {
	e.finish(StatusCompleted, "", records)
}

// Fail marks the execution as failed with an error message.
func (e *Execution) Fail(err string) {
	e.finish(StatusFailed, err, nil)
}

// Cancel stops a running execution before its next item.
func (e *Execution) Cancel() bool {
	e.mu.Lock()
	cancel := e.cancel
	running := e.Status == StatusRunning
	e.mu.Unlock()
	if !running {
		return false
	}
	if cancel != nil {
		cancel()
	}
	e.finish(StatusCancelled, "cancelled by user", nil)
	return true
}

// finish moves a running execution to its final state. Status and records
// change together, so readers never see a completed run without its records.
func (e *Execution) finish(status, errMsg string, records any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusRunning {
		return
	}
	e.Status = status
	e.Error = errMsg
	e.Records = records
	now := time.Now()
	e.FinishedAt = &now
}

// ExecutionStore is an in-memory thread-safe store for executions.
type ExecutionStore struct {
	mu    sync.RWMutex
	execs map[string]*Execution
}

// NewExecutionStore creates an empty execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{execs: make(map[string]*Execution)}
}

// Create adds a new running execution, assigning it a UUID.
func (s *ExecutionStore) Create(credentialID, resource, operation string) *Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Execution{
		ID:           uuid.New().String(),
		CredentialID: credentialID,
		Resource:     resource,
		Operation:    operation,
		Status:       StatusRunning,
		StartedAt:    time.Now(),
		Output:       []string{},
	}
	s.execs[e.ID] = e
	return e
}

// Get returns an execution by ID.
func (s *ExecutionStore) Get(id string) *Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.execs[id]
}

// List returns all executions, most recent first.
func (s *ExecutionStore) List() []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Execution, 0, len(s.execs))
	for _, e := range s.execs {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}
