package fintools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudheer1135/fin-agent/config"
	"github.com/sudheer1135/fin-agent/market"
	"github.com/sudheer1135/fin-agent/portfolio"
	"github.com/sudheer1135/fin-agent/tool"
)

func TestTimeTool(t *testing.T) {
	out, err := TimeTool().Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestMarketToolNames(t *testing.T) {
	client := market.NewClient("tok")
	r := tool.NewRegistry(MarketTools(client)...)

	for _, name := range []string{
		"get_stock_basic", "get_daily_price", "get_realtime_price",
		"get_daily_basic", "get_income_statement",
	} {
		_, ok := r.Get(name)
		assert.True(t, ok, name)
	}
}

func TestMarketToolValidation(t *testing.T) {
	client := market.NewClient("tok")
	tools := MarketTools(client)

	// ts_code is required on every lookup tool that takes one.
	_, err := tools[0].Call(context.Background(), map[string]any{})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestPortfolioToolsTrade(t *testing.T) {
	mgr, err := portfolio.NewManager(filepath.Join(t.TempDir(), "p.json"))
	require.NoError(t, err)

	r := tool.NewRegistry(PortfolioTools(mgr, nil)...)

	_, err = r.Execute(context.Background(), "portfolio_buy", map[string]any{
		"ts_code": "000001.SZ", "shares": 100.0, "price": 10.0,
	})
	require.NoError(t, err)

	out, err := r.Execute(context.Background(), "portfolio_sell", map[string]any{
		"ts_code": "000001.SZ", "shares": 40.0, "price": 12.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, out.(portfolio.Position).Shares)

	_, err = r.Execute(context.Background(), "portfolio_sell", map[string]any{
		"ts_code": "000001.SZ", "shares": 500.0, "price": 12.0,
	})
	require.Error(t, err)
}

func TestPortfolioViewMarksToMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"fields":["trade_date","close"],"items":[["20260828",14.0]]}}`))
	}))
	t.Cleanup(srv.Close)

	client := market.NewClient("tok", func(o *market.Options) { o.BaseURL = srv.URL })

	mgr, err := portfolio.NewManager(filepath.Join(t.TempDir(), "p.json"))
	require.NoError(t, err)
	_, err = mgr.Buy("000001.SZ", 100, 10)
	require.NoError(t, err)

	r := tool.NewRegistry(PortfolioTools(mgr, client)...)
	out, err := r.Execute(context.Background(), "portfolio_view", nil)
	require.NoError(t, err)

	v := out.(portfolio.Valuation)
	require.Len(t, v.Positions, 1)
	assert.InDelta(t, 14.0, v.Positions[0].Price, 1e-9)
	assert.InDelta(t, 400.0, v.Positions[0].PnL, 1e-9)
}

func TestProfileTool(t *testing.T) {
	var got config.Profile
	tl := ProfileTool(func(p config.Profile) error {
		got = p
		return nil
	})

	_, err := tl.Call(context.Background(), map[string]any{
		"risk_tolerance": "high",
		"watchlist":      []any{"000001.SZ", "600519.SH"},
	})
	require.NoError(t, err)
	assert.Equal(t, "high", got.RiskTolerance)
	assert.Equal(t, []string{"000001.SZ", "600519.SH"}, got.Watchlist)
	assert.Empty(t, got.Horizon)
}

func TestConfigTool(t *testing.T) {
	var got ConfigUpdate
	tl := ConfigTool(func(u ConfigUpdate) error {
		got = u
		return nil
	})

	assert.Equal(t, ReconfigureToolName, tl.Name())

	_, err := tl.Call(context.Background(), map[string]any{
		"provider": "openai",
		"model":    "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Empty(t, got.APIKey)
}
