package portfolio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "portfolio.json"))
	require.NoError(t, err)
	return m
}

func TestBuyAverageCost(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Buy("000001.SZ", 100, 10)
	require.NoError(t, err)

	pos, err := m.Buy("000001.SZ", 100, 20)
	require.NoError(t, err)

	assert.Equal(t, 200.0, pos.Shares)
	assert.InDelta(t, 15.0, pos.AvgCost, 1e-9)
	assert.InDelta(t, DefaultCash-3000, m.Snapshot().Cash, 1e-9)
}

func TestBuyInsufficientCash(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Buy("600519.SH", 10000, 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient cash")
	assert.Empty(t, m.Snapshot().Positions)
}

func TestSell(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Buy("000001.SZ", 200, 10)
	require.NoError(t, err)

	pos, err := m.Sell("000001.SZ", 50, 12)
	require.NoError(t, err)
	assert.Equal(t, 150.0, pos.Shares)
	assert.InDelta(t, 10.0, pos.AvgCost, 1e-9)

	snap := m.Snapshot()
	assert.InDelta(t, DefaultCash-2000+600, snap.Cash, 1e-9)
	require.Len(t, snap.History, 2)
	assert.Equal(t, "sell", snap.History[1].Action)
}

func TestSellFullPositionRemovesIt(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Buy("000001.SZ", 100, 10)
	require.NoError(t, err)

	_, err = m.Sell("000001.SZ", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, m.Snapshot().Positions)
}

func TestSellValidation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Sell("000001.SZ", 10, 10)
	assert.ErrorContains(t, err, "no position")

	_, err = m.Buy("000001.SZ", 10, 10)
	require.NoError(t, err)

	_, err = m.Sell("000001.SZ", 20, 10)
	assert.ErrorContains(t, err, "only 10")

	_, err = m.Sell("000001.SZ", -5, 10)
	assert.Error(t, err)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")

	m, err := NewManager(path)
	require.NoError(t, err)
	_, err = m.Buy("600519.SH", 10, 1500)
	require.NoError(t, err)

	reloaded, err := NewManager(path)
	require.NoError(t, err)

	snap := reloaded.Snapshot()
	assert.Equal(t, 10.0, snap.Positions["600519.SH"].Shares)
	assert.InDelta(t, DefaultCash-15000, snap.Cash, 1e-9)
	require.Len(t, snap.History, 1)
}

func TestValuation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Buy("000001.SZ", 100, 10)
	require.NoError(t, err)
	_, err = m.Buy("600519.SH", 10, 1500)
	require.NoError(t, err)

	v := m.Value(map[string]float64{"000001.SZ": 12})

	require.Len(t, v.Positions, 2)
	// Sorted by code.
	assert.Equal(t, "000001.SZ", v.Positions[0].Code)
	assert.InDelta(t, 1200, v.Positions[0].Value, 1e-9)
	assert.InDelta(t, 200, v.Positions[0].PnL, 1e-9)

	// Missing price falls back to average cost.
	assert.InDelta(t, 15000, v.Positions[1].Value, 1e-9)
	assert.InDelta(t, 0, v.Positions[1].PnL, 1e-9)

	assert.InDelta(t, v.Cash+v.MarketValue, v.Total, 1e-9)
}
