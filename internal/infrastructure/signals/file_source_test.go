package signals_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/signals"
	"go.uber.org/zap"
)

func writeDecision(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNextBatch_ParsesAndConsumes(t *testing.T) {
	dir := t.TempDir()
	source, err := signals.NewFileSource(dir, zap.NewNop())
	require.NoError(t, err)

	writeDecision(t, dir, "001-entry.yaml", `
type: entry
symbol: XAUUSD
strategy: breakout_v2
magic: 42
direction: long
signal: buy_limit
price: 3001.0
size: 1.0
stop_loss:
  kind: fixed_price
  level: 2996.0
take_profit:
  targets:
    - level: 3020.0
      size_fraction: 0.5
    - level: 3060.0
      size_fraction: 0.5
`)
	writeDecision(t, dir, "002-exit.yaml", `
type: exit
symbol: XAUUSD
magic: 7
direction: short
`)

	batch, err := source.NextBatch(context.Background(), time.Now())
	require.NoError(t, err)

	require.Len(t, batch.Entries, 1)
	entry := batch.Entries[0]
	assert.Equal(t, "XAUUSD", entry.Symbol)
	assert.Equal(t, int64(42), entry.Magic)
	assert.Equal(t, domain.SideLong, entry.Direction)
	assert.Equal(t, domain.SignalBuyLimit, entry.Signal)
	require.NotNil(t, entry.StopLoss)
	assert.Equal(t, domain.StopLossFixedPrice, entry.StopLoss.Kind)
	assert.InDelta(t, 2996.0, entry.StopLoss.Level, 1e-9)
	require.NotNil(t, entry.TakeProfit)
	assert.Len(t, entry.TakeProfit.Targets, 2)
	assert.InDelta(t, 3020.0, entry.TakeProfit.FirstLevel(), 1e-9)

	require.Len(t, batch.Exits, 1)
	assert.Equal(t, domain.SideShort, batch.Exits[0].Direction)

	// Consumed files are gone; the next batch is empty.
	batch, err = source.NextBatch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, batch.Entries)
	assert.Empty(t, batch.Exits)
}

func TestNextBatch_MovesBadFilesAside(t *testing.T) {
	dir := t.TempDir()
	source, err := signals.NewFileSource(dir, zap.NewNop())
	require.NoError(t, err)

	writeDecision(t, dir, "bad.yaml", "type: [unterminated")
	writeDecision(t, dir, "unknown.yaml", "type: hedge\nsymbol: XAUUSD\n")

	batch, err := source.NextBatch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, batch.Entries)
	assert.Empty(t, batch.Exits)

	_, err = os.Stat(filepath.Join(dir, "bad.yaml.rejected"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "unknown.yaml.rejected"))
	assert.NoError(t, err)
}
