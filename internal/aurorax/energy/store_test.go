package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartsFullByDefault(t *testing.T) {
	s := New(100, 1.0)
	assert.Equal(t, 1.0, s.SOC())
}

func TestSpendInsufficientIsNoOp(t *testing.T) {
	s := New(100, 0.05)
	ok := s.Spend(50)
	assert.False(t, ok)
	assert.InDelta(t, 0.05, s.SOC(), 1e-9)
}

func TestHarvestClampsToCapacity(t *testing.T) {
	s := New(100, 0.9)
	s.Harvest(50)
	assert.Equal(t, 1.0, s.SOC())
}

func TestSOCBounded(t *testing.T) {
	s := New(100, 0.5)
	s.Spend(40)
	assert.GreaterOrEqual(t, s.SOC(), 0.0)
	assert.LessOrEqual(t, s.SOC(), 1.0)
}
