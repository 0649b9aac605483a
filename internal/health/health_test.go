package health

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChecker_AllOK(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("github", func(ctx context.Context) Status { return StatusOK })
	c.Register("sessions", func(ctx context.Context) Status { return StatusOK })

	results := c.RunAll(context.Background())
	assert.Len(t, results, 2)
	assert.Equal(t, StatusOK, results["github"])
	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("github", func(ctx context.Context) Status { return StatusDown })
	c.Register("sessions", func(ctx context.Context) Status { return StatusOK })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_DegradedStillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("completion", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
	assert.Empty(t, c.RunAll(context.Background()))
}
