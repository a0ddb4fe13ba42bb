package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleProvidesSystemClock(t *testing.T) {
	var got Clock
	app := fx.New(
		fx.NopLogger,
		Module,
		fx.Populate(&got),
	)
	require.NoError(t, app.Err())
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.Now().Location())
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	clk.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), clk.Now())
}
