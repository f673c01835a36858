package duty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDutyLeftStartsFull(t *testing.T) {
	l := New(10, 100, 0.1)
	assert.Equal(t, 1.0, l.DutyLeft())
}

func TestSpendReducesDutyLeftAndRejectsOverBudget(t *testing.T) {
	l := New(10, 100, 0.1) // window budget = 10*100*0.1 = 100ms
	ok := l.TrySpend(60)
	assert.True(t, ok)
	assert.InDelta(t, 0.4, l.DutyLeft(), 1e-9)

	ok2 := l.TrySpend(60)
	assert.False(t, ok2)
	assert.InDelta(t, 0.4, l.DutyLeft(), 1e-9)
}

func TestAdvanceEvictsAgedSamples(t *testing.T) {
	l := New(3, 100, 0.5) // window budget = 150ms
	require := assert.New(t)
	require.True(l.TrySpend(100))
	for i := 0; i < 3; i++ {
		l.Advance()
	}
	require.Equal(1.0, l.DutyLeft())
}

func TestDutyLeftNeverNegative(t *testing.T) {
	l := New(1, 10, 0.01)
	l.TrySpend(0.1)
	assert.GreaterOrEqual(t, l.DutyLeft(), 0.0)
	assert.LessOrEqual(t, l.DutyLeft(), 1.0)
}
