package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstThenBlocks(t *testing.T) {
	l := NewLimiter(10, 3)

	// Burst tokens are immediately available.
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "burst token %d", i)
	}
	// The bucket is drained; the next token needs ~100ms.
	assert.False(t, l.Allow())
}

func TestLimiterWaitRespectsContext(t *testing.T) {
	l := NewLimiter(0.1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.True(t, l.Allow())
}

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(100) // 10ms interval

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	elapsed := time.Since(start)
	// First call is free; the next three are spaced 10ms apart.
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestPacerNilSafe(t *testing.T) {
	var p *Pacer
	assert.NoError(t, p.Wait(context.Background()))
}
