// Package duty implements the sliding-window airtime cap each node's
// transmit path is metered against (spec §3, §5 — "a sliding-window
// counter, mutated only by the transmit path").
package duty

// sample is one recorded transmission's airtime, timestamped by the
// limiter's own step counter (not wall-clock, to keep runs reproducible).
type sample struct {
	step   int
	millis float64
}

// Limiter caps the fraction of a rolling window that may be spent
// transmitting. windowSteps is the number of engine steps the window
// spans; limit is the duty-cycle fraction (e.g. 0.01 for 1%).
type Limiter struct {
	windowSteps int
	stepMillis  float64
	limit       float64
	history     []sample
	step        int
}

// New creates a Limiter over a window of windowSteps engine steps, each
// stepMillis long, capped at the given duty-cycle fraction.
func New(windowSteps int, stepMillis, limit float64) *Limiter {
	return &Limiter{windowSteps: windowSteps, stepMillis: stepMillis, limit: limit}
}

// Advance moves the limiter's step counter forward and evicts samples that
// have aged out of the window.
func (l *Limiter) Advance() {
	l.step++
	cutoff := l.step - l.windowSteps
	i := 0
	for ; i < len(l.history); i++ {
		if l.history[i].step > cutoff {
			break
		}
	}
	l.history = l.history[i:]
}

func (l *Limiter) windowBudgetMillis() float64 {
	return float64(l.windowSteps) * l.stepMillis * l.limit
}

func (l *Limiter) spentMillis() float64 {
	var total float64
	for _, s := range l.history {
		total += s.millis
	}
	return total
}

// DutyLeft returns the fraction of this window's airtime budget not yet
// spent, in [0,1].
func (l *Limiter) DutyLeft() float64 {
	budget := l.windowBudgetMillis()
	if budget <= 0 {
		return 0
	}
	left := (budget - l.spentMillis()) / budget
	if left < 0 {
		return 0
	}
	if left > 1 {
		return 1
	}
	return left
}

// TrySpend records airtimeMillis of transmission if the window has
// sufficient remaining budget. Returns false (no-op) if it does not —
// the transmit path must treat that as spec §7's "duty-cycle exhausted"
// disposition.
func (l *Limiter) TrySpend(airtimeMillis float64) bool {
	budget := l.windowBudgetMillis()
	if l.spentMillis()+airtimeMillis > budget {
		return false
	}
	l.history = append(l.history, sample{step: l.step, millis: airtimeMillis})
	return true
}
