// Package wideevent implements the request event recorder: one mutable,
// request-scoped event accumulated across a request's lifetime and emitted
// as a single structured record when the request completes.
package wideevent

import (
	"sync"
	"time"
)

// Outcome classifies how a request ended.
type Outcome string

// Outcome tags
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// ErrorDescriptor captures the failure that terminated a request.
type ErrorDescriptor struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

// Identity holds the service fields stamped onto every event.
type Identity struct {
	Service      string
	Version      string
	DeploymentID string
	Region       string
}

type eventState int

const (
	stateOpen eventState = iota
	stateSealed
	stateEmitted
)

// Event is the per-request record. It is created before any handler runs,
// enriched through Set/SetAll while the request is in flight, sealed once at
// request exit, and emitted exactly once. An Event is owned by a single
// request; the mutex only guards against handlers that fan out goroutines of
// their own.
type Event struct {
	mu    sync.Mutex
	state eventState

	id       string
	start    time.Time
	method   string
	path     string
	endpoint string
	identity Identity

	status   int
	outcome  Outcome
	errDesc  *ErrorDescriptor
	duration time.Duration

	fields map[string]any
}

func newEvent(id, method, path string, identity Identity, now time.Time) *Event {
	return &Event{
		id:       id,
		start:    now,
		method:   method,
		path:     path,
		identity: identity,
		fields:   map[string]any{},
	}
}

// ID returns the request id bound to this event.
func (e *Event) ID() string { return e.id }

// Set inserts or overwrites one extension-bag entry. Writes after the event
// is sealed are ignored.
func (e *Event) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen {
		return
	}
	e.fields[key] = value
}

// SetAll applies all entries key by key; the last key wins on duplicates.
// Writes after the event is sealed are ignored.
func (e *Event) SetAll(entries map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen {
		return
	}
	for k, v := range entries {
		e.fields[k] = v
	}
}

// RecordError attaches an error descriptor to the event. The first recorded
// descriptor forces outcome=error at seal time; later calls overwrite the
// descriptor while the event is still open.
func (e *Event) RecordError(kind, message string, retriable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen {
		return
	}
	e.errDesc = &ErrorDescriptor{Kind: kind, Message: message, Retriable: retriable}
}

// setEndpoint records the logical route pattern once known (after routing).
func (e *Event) setEndpoint(endpoint string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen || endpoint == "" {
		return
	}
	e.endpoint = endpoint
}

// seal fixes status, outcome, and duration. The first call wins; any later
// call is a no-op and returns false.
func (e *Event) seal(status int, dur time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen {
		return false
	}
	e.state = stateSealed
	e.status = status
	if dur < 0 {
		dur = 0
	}
	e.duration = dur
	switch {
	case e.errDesc != nil:
		e.outcome = OutcomeError
	case status >= 400:
		e.outcome = OutcomeFailure
	default:
		e.outcome = OutcomeSuccess
	}
	return true
}

// markEmitted transitions sealed → emitted. Returns false when the event was
// already emitted or never sealed.
func (e *Event) markEmitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateSealed {
		return false
	}
	e.state = stateEmitted
	return true
}

// Outcome returns the sealed outcome tag (empty while the event is open).
func (e *Event) Outcome() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Record returns the full serializable representation of the event: base
// request fields first, then the extension bag merged over them.
func (e *Event) Record() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := map[string]any{
		"request_id":  e.id,
		"timestamp":   e.start.UTC().Format(time.RFC3339Nano),
		"method":      e.method,
		"path":        e.path,
		"service":     e.identity.Service,
		"version":     e.identity.Version,
		"status_code": e.status,
		"outcome":     string(e.outcome),
		"duration_ms": float64(e.duration) / float64(time.Millisecond),
	}
	if e.endpoint != "" {
		m["endpoint"] = e.endpoint
	}
	if e.identity.DeploymentID != "" {
		m["deployment_id"] = e.identity.DeploymentID
	}
	if e.identity.Region != "" {
		m["region"] = e.identity.Region
	}
	if e.errDesc != nil {
		m["error"] = map[string]any{
			"kind":      e.errDesc.Kind,
			"message":   e.errDesc.Message,
			"retriable": e.errDesc.Retriable,
		}
	}
	for k, v := range e.fields {
		m[k] = v
	}
	return m
}
