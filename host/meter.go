package host

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded aborts an instruction whose compute cost overruns the
// budget. It is fatal: the whole instruction rolls back and no record is
// written.
var ErrBudgetExceeded = errors.New("compute budget exceeded")

// Deterministic compute costs, in the host's own units. The numbers follow
// the alt_bn128 precompile gas schedule so that metered behavior tracks a
// real pairing host.
const (
	CostInstructionBase = 2_000
	CostPointCheck      = 300    // decode + on-curve validation of one point
	CostG1Add           = 150    // prepared-input accumulation step
	CostG1ScalarMul     = 6_000  // prepared-input scalar multiplication
	CostPairingBase     = 45_000 // fixed pairing-check overhead
	CostPerPairingPair  = 34_000 // per (G1, G2) pair

	// DefaultComputeBudget covers a four-pair check plus input
	// accumulation for small circuits.
	DefaultComputeBudget = 250_000
)

// Meter charges deterministic compute units against a fixed budget. It has
// no clock and no randomness: the same instruction always consumes the same
// amount.
type Meter struct {
	budget uint64
	used   uint64
}

// NewMeter returns a meter with the given budget.
func NewMeter(budget uint64) *Meter {
	return &Meter{budget: budget}
}

// Consume charges units for the named operation, failing with
// ErrBudgetExceeded once the budget is exhausted.
func (m *Meter) Consume(units uint64, op string) error {
	if m.used+units > m.budget {
		return fmt.Errorf("%w: %s needs %d units, %d of %d left", ErrBudgetExceeded, op, units, m.Remaining(), m.budget)
	}
	m.used += units
	return nil
}

// Used returns the units consumed so far.
func (m *Meter) Used() uint64 {
	return m.used
}

// Remaining returns the units left in the budget.
func (m *Meter) Remaining() uint64 {
	return m.budget - m.used
}
