package kraken_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/latencybot/internal/adapters/kraken"
	"github.com/stretchr/testify/assert"
)

func TestBackoff_Sequence(t *testing.T) {
	b := kraken.NewBackoff(time.Second, 8*time.Second)

	want := []time.Duration{1, 2, 4, 8, 8, 8}
	for i, w := range want {
		assert.Equal(t, w*time.Second, b.Next(), "step %d", i)
	}

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_MonotonicAndCapped(t *testing.T) {
	b := kraken.NewBackoff(150*time.Millisecond, 5*time.Second)

	prev := time.Duration(0)
	for i := 0; i < 100; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, prev, "never decreases across failures")
		assert.LessOrEqual(t, d, 5*time.Second, "never exceeds max")
		prev = d
	}
	assert.Equal(t, 5*time.Second, b.Current())

	b.Reset()
	assert.Equal(t, 150*time.Millisecond, b.Current())
}

func TestBackoff_MaxBelowInitial(t *testing.T) {
	b := kraken.NewBackoff(2*time.Second, time.Second)
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
}
