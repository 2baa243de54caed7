package entitlement

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around a Source.
type BreakerConfig struct {
	// Name identifies the breaker in state-change callbacks.
	// Default: "entitlement-source"
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	// Default: 5
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before allowing a
	// probe request through.
	// Default: 30s
	OpenTimeout time.Duration

	// OnStateChange is invoked when the breaker changes state (optional).
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig provides reasonable defaults.
var DefaultBreakerConfig = BreakerConfig{
	Name:             "entitlement-source",
	FailureThreshold: 5,
	OpenTimeout:      30 * time.Second,
}

// CircuitSource wraps a Source with a circuit breaker so a failing
// entitlement backend fails fast instead of stalling every publish while
// it flaps. While the circuit is open, lookups fail immediately with
// gobreaker.ErrOpenState; the bus treats that like any other source error.
type CircuitSource struct {
	src Source
	cb  *gobreaker.CircuitBreaker
}

// Compile-time interface check.
var _ Source = (*CircuitSource)(nil)

// NewCircuitSource wraps src with a circuit breaker.
func NewCircuitSource(src Source, cfg BreakerConfig) *CircuitSource {
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig.Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig.OpenTimeout
	}

	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}

	return &CircuitSource{
		src: src,
		cb:  gobreaker.NewCircuitBreaker(settings),
	}
}

// ActiveModules implements Source.
func (s *CircuitSource) ActiveModules(ctx context.Context, tenantID string) (ModuleSet, error) {
	v, err := s.cb.Execute(func() (any, error) {
		return s.src.ActiveModules(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(ModuleSet), nil
}

// State returns the breaker's current state, for health reporting.
func (s *CircuitSource) State() gobreaker.State {
	return s.cb.State()
}
