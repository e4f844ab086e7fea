package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/calendar"
)

func TestNewsBlockActive(t *testing.T) {
	event := time.Date(2026, 9, 4, 12, 30, 0, 0, time.UTC)
	cal, err := calendar.New(
		[]calendar.NewsEvent{{Time: event, Title: "NFP"}},
		15*time.Minute, 10*time.Minute, "21:55")
	require.NoError(t, err)

	ctx := context.Background()

	active, err := cal.NewsBlockActive(ctx, event.Add(-14*time.Minute))
	require.NoError(t, err)
	assert.True(t, active)

	active, err = cal.NewsBlockActive(ctx, event.Add(14*time.Minute))
	require.NoError(t, err)
	assert.True(t, active)

	active, err = cal.NewsBlockActive(ctx, event.Add(-16*time.Minute))
	require.NoError(t, err)
	assert.False(t, active)

	active, err = cal.NewsBlockActive(ctx, event.Add(16*time.Minute))
	require.NoError(t, err)
	assert.False(t, active)
}

func TestMarketClosingSoon(t *testing.T) {
	cal, err := calendar.New(nil, 15*time.Minute, 10*time.Minute, "21:55")
	require.NoError(t, err)

	ctx := context.Background()

	// 2026-09-04 is a Friday.
	friday := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	closing, err := cal.MarketClosingSoon(ctx, "XAUUSD", friday.Add(21*time.Hour+50*time.Minute))
	require.NoError(t, err)
	assert.True(t, closing)

	closing, err = cal.MarketClosingSoon(ctx, "XAUUSD", friday.Add(21*time.Hour+40*time.Minute))
	require.NoError(t, err)
	assert.False(t, closing)

	// Mid-session.
	closing, err = cal.MarketClosingSoon(ctx, "XAUUSD", friday.Add(12*time.Hour))
	require.NoError(t, err)
	assert.False(t, closing)

	// Weekend counts as closed.
	saturday := friday.Add(24 * time.Hour)
	closing, err = cal.MarketClosingSoon(ctx, "XAUUSD", saturday.Add(12*time.Hour))
	require.NoError(t, err)
	assert.True(t, closing)
}

func TestNew_InvalidCloseTime(t *testing.T) {
	_, err := calendar.New(nil, time.Minute, time.Minute, "25:00")
	assert.Error(t, err)

	_, err = calendar.New(nil, time.Minute, time.Minute, "bogus")
	assert.Error(t, err)
}
