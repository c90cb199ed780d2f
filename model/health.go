package model

import (
	"sync"
	"time"
)

// CircuitState is the state of one endpoint's circuit breaker.
type CircuitState string

const (
	// CircuitClosed lets every request through.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen rejects requests until the recovery timeout passes.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen lets probes through; one failure reopens the circuit.
	CircuitHalfOpen CircuitState = "half_open"
)

// EndpointHealth is a snapshot of one endpoint's breaker.
type EndpointHealth struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastSuccess         time.Time    `json:"last_success,omitempty"`
	LastFailure         time.Time    `json:"last_failure,omitempty"`
	OpenedAt            time.Time    `json:"opened_at,omitempty"`
}

// Available reports whether the snapshot admits requests.
func (h EndpointHealth) Available() bool {
	return h.State != CircuitOpen
}

// HealthConfig tunes the circuit breakers.
type HealthConfig struct {
	// FailureThreshold consecutive failures open a closed circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects requests.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig opens after 3 failures and probes after 30s.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{FailureThreshold: 3, RecoveryTimeout: 30 * time.Second}
}

type breakerSet struct {
	mu     sync.Mutex
	cfg    HealthConfig
	byName map[string]*EndpointHealth
	now    func() time.Time
}

func newBreakerSet(cfg HealthConfig) *breakerSet {
	return &breakerSet{cfg: cfg, byName: make(map[string]*EndpointHealth), now: time.Now}
}

// get returns the breaker for name with an elapsed open circuit moved to
// half-open. Callers hold mu.
func (b *breakerSet) get(name string) *EndpointHealth {
	h, ok := b.byName[name]
	if !ok {
		h = &EndpointHealth{State: CircuitClosed}
		b.byName[name] = h
	}
	if h.State == CircuitOpen && b.now().Sub(h.OpenedAt) >= b.cfg.RecoveryTimeout {
		h.State = CircuitHalfOpen
	}
	return h
}

func (b *breakerSet) success(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.get(name)
	h.State = CircuitClosed
	h.ConsecutiveFailures = 0
	h.LastSuccess = b.now()
}

func (b *breakerSet) failure(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.get(name)
	h.ConsecutiveFailures++
	h.LastFailure = b.now()
	if h.State == CircuitHalfOpen || h.ConsecutiveFailures >= b.cfg.FailureThreshold {
		h.State = CircuitOpen
		h.OpenedAt = h.LastFailure
	}
}

func (b *breakerSet) available(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byName[name]; !ok {
		return true
	}
	return b.get(name).Available()
}

func (b *breakerSet) snapshot(name string) (EndpointHealth, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byName[name]; !ok {
		return EndpointHealth{}, false
	}
	return *b.get(name), true
}

// MarkEndpointSuccess closes the circuit of the named endpoint.
func (r *Registry) MarkEndpointSuccess(name string) { r.breakers.success(name) }

// MarkEndpointFailure counts a failed call. The circuit opens at the
// threshold, or at once when a half-open probe fails.
func (r *Registry) MarkEndpointFailure(name string) { r.breakers.failure(name) }

// IsEndpointAvailable reports whether requests may be sent to name.
func (r *Registry) IsEndpointAvailable(name string) bool { return r.breakers.available(name) }

// Health returns the breaker state of name. ok is false when no call to
// name has been recorded.
func (r *Registry) Health(name string) (EndpointHealth, bool) { return r.breakers.snapshot(name) }

// SetHealthConfig replaces the breaker tuning. Recorded state is kept.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()
	r.breakers.cfg = cfg
}

// ResetEndpointHealth forgets everything recorded for name.
func (r *Registry) ResetEndpointHealth(name string) {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()
	delete(r.breakers.byName, name)
}

// FilterAvailable drops models whose circuit is open. When every model is
// open the chain is returned unchanged so the call still gets a chance.
func (r *Registry) FilterAvailable(chain []string) []string {
	var usable []string
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			usable = append(usable, name)
		}
	}
	if len(usable) == 0 {
		return chain
	}
	return usable
}

// AvailableChain is Chain without endpoints whose circuit is open.
func (r *Registry) AvailableChain(c Capability) []string {
	return r.FilterAvailable(r.Chain(c))
}
