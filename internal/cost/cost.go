// Package cost tracks model token consumption and estimated spend for a
// session, and enforces an optional session budget.
package cost

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status represents the current budget state.
type Status int

const (
	// StatusHealthy indicates normal operation, under budget limits.
	StatusHealthy Status = iota
	// StatusWarning indicates approaching budget limits (>80% by default).
	StatusWarning
	// StatusExceeded indicates the session budget has been exceeded.
	StatusExceeded
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "HEALTHY"
	case StatusWarning:
		return "WARNING"
	case StatusExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// ErrBudgetExceeded is returned when a call would run past the session budget.
var ErrBudgetExceeded = fmt.Errorf("session budget exceeded")

// Pricing is the per-million-token price of a model in USD.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Published Anthropic API prices. Unknown models fall back to the most
// expensive known tier so the estimate errs high.
var modelPricing = map[string]Pricing{
	"claude-sonnet":    {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku": {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"claude-opus":      {InputPerMTok: 15.00, OutputPerMTok: 75.00},
}

// PricingFor resolves a model identifier to its price tier by prefix.
func PricingFor(model string) Pricing {
	for prefix, p := range modelPricing {
		if strings.HasPrefix(model, prefix) {
			return p
		}
	}
	return modelPricing["claude-opus"]
}

// Config holds budget settings.
type Config struct {
	// SessionBudgetUSD caps estimated spend for the session. 0 disables
	// enforcement; tracking still happens.
	SessionBudgetUSD float64
	// WarnFraction of the budget at which Status turns WARNING.
	WarnFraction float64
}

// DefaultConfig returns budget settings with enforcement disabled.
func DefaultConfig() *Config {
	return &Config{
		SessionBudgetUSD: 0,
		WarnFraction:     0.8,
	}
}

// Summary is a point-in-time snapshot of session consumption.
type Summary struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
	SpendUSD     float64
	BudgetUSD    float64
	Status       Status
	Since        time.Time
}

// Tracker accumulates token usage and estimated spend across model calls.
type Tracker struct {
	mu      sync.Mutex
	cfg     Config
	started time.Time

	calls        int
	inputTokens  int64
	outputTokens int64
	spend        float64
	byOperation  map[string]float64
}

// NewTracker creates a session cost tracker.
func NewTracker(cfg *Config) *Tracker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.WarnFraction <= 0 || c.WarnFraction >= 1 {
		c.WarnFraction = 0.8
	}
	return &Tracker{
		cfg:         c,
		started:     time.Now(),
		byOperation: make(map[string]float64),
	}
}

// Allow reports whether another model call fits the budget. It returns
// ErrBudgetExceeded once estimated spend has passed the cap.
func (t *Tracker) Allow() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cfg.SessionBudgetUSD > 0 && t.spend >= t.cfg.SessionBudgetUSD {
		return fmt.Errorf("%w: $%.4f of $%.2f", ErrBudgetExceeded, t.spend, t.cfg.SessionBudgetUSD)
	}
	return nil
}

// Record accumulates one completed call's usage.
func (t *Tracker) Record(model, operation string, inputTokens, outputTokens int64) {
	p := PricingFor(model)
	callCost := float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.inputTokens += inputTokens
	t.outputTokens += outputTokens
	t.spend += callCost
	t.byOperation[operation] += callCost
}

// Snapshot returns the current totals.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		Calls:        t.calls,
		InputTokens:  t.inputTokens,
		OutputTokens: t.outputTokens,
		SpendUSD:     t.spend,
		BudgetUSD:    t.cfg.SessionBudgetUSD,
		Status:       t.statusLocked(),
		Since:        t.started,
	}
}

// ByOperation returns estimated spend grouped by operation name.
func (t *Tracker) ByOperation() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.byOperation))
	for op, v := range t.byOperation {
		out[op] = v
	}
	return out
}

func (t *Tracker) statusLocked() Status {
	if t.cfg.SessionBudgetUSD <= 0 {
		return StatusHealthy
	}
	switch {
	case t.spend >= t.cfg.SessionBudgetUSD:
		return StatusExceeded
	case t.spend >= t.cfg.SessionBudgetUSD*t.cfg.WarnFraction:
		return StatusWarning
	default:
		return StatusHealthy
	}
}
