// Package fintools exposes the assistant's capabilities as model-callable
// tools: market data lookups, simulated portfolio trades, investor profile
// updates, and runtime reconfiguration.
package fintools

import (
	"context"
	"time"

	"github.com/sudheer1135/fin-agent/market"
	"github.com/sudheer1135/fin-agent/portfolio"
	"github.com/sudheer1135/fin-agent/tool"
)

func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func numArg(args map[string]any, key string) float64 {
	n, _ := args[key].(float64)
	return n
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func codeProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Stock code in Tushare format, e.g. 000001.SZ or 600519.SH",
	}
}

func dateRangeProperties() map[string]any {
	return map[string]any{
		"ts_code": codeProperty(),
		"start_date": map[string]any{
			"type":        "string",
			"description": "Start date in YYYYMMDD form, optional",
		},
		"end_date": map[string]any{
			"type":        "string",
			"description": "End date in YYYYMMDD form, optional",
		},
	}
}

// TimeTool reports the current date and time.
func TimeTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_current_time",
		"Get the current date and time",
		objectSchema(map[string]any{}),
		func(_ context.Context, _ map[string]any) (any, error) {
			return time.Now().Format("2006-01-02 15:04:05 Monday"), nil
		},
	)
}

// MarketTools returns the market data lookup tools backed by client.
func MarketTools(client *market.Client) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"get_stock_basic",
			"Get basic listing information for a stock: name, industry, area, market, list date",
			objectSchema(map[string]any{"ts_code": codeProperty()}, "ts_code"),
			func(ctx context.Context, args map[string]any) (any, error) {
				return client.StockBasic(ctx, strArg(args, "ts_code"))
			},
		),
		tool.NewFunctionTool(
			"get_daily_price",
			"Get daily OHLCV price bars for a stock, defaulting to the last 30 days",
			objectSchema(dateRangeProperties(), "ts_code"),
			func(ctx context.Context, args map[string]any) (any, error) {
				return client.DailyPrice(ctx, strArg(args, "ts_code"),
					strArg(args, "start_date"), strArg(args, "end_date"))
			},
		),
		tool.NewFunctionTool(
			"get_realtime_price",
			"Get the most recent price quote for a stock",
			objectSchema(map[string]any{"ts_code": codeProperty()}, "ts_code"),
			func(ctx context.Context, args map[string]any) (any, error) {
				return client.RealtimePrice(ctx, strArg(args, "ts_code"))
			},
		),
		tool.NewFunctionTool(
			"get_daily_basic",
			"Get valuation metrics for a stock: PE, PB, turnover rate, market cap",
			objectSchema(map[string]any{"ts_code": codeProperty()}, "ts_code"),
			func(ctx context.Context, args map[string]any) (any, error) {
				return client.DailyBasic(ctx, strArg(args, "ts_code"))
			},
		),
		tool.NewFunctionTool(
			"get_income_statement",
			"Get income statement reports for a stock, defaulting to the last two years",
			objectSchema(dateRangeProperties(), "ts_code"),
			func(ctx context.Context, args map[string]any) (any, error) {
				return client.IncomeStatement(ctx, strArg(args, "ts_code"),
					strArg(args, "start_date"), strArg(args, "end_date"))
			},
		),
	}
}

// PortfolioTools returns simulated trading tools backed by mgr. The view
// tool marks positions to market via client when available.
func PortfolioTools(mgr *portfolio.Manager, client *market.Client) []tool.Tool {
	tradeSchema := objectSchema(map[string]any{
		"ts_code": codeProperty(),
		"shares": map[string]any{
			"type":        "number",
			"description": "Number of shares",
		},
		"price": map[string]any{
			"type":        "number",
			"description": "Price per share",
		},
	}, "ts_code", "shares", "price")

	return []tool.Tool{
		tool.NewFunctionTool(
			"portfolio_buy",
			"Buy shares into the simulated portfolio at a given price",
			tradeSchema,
			func(_ context.Context, args map[string]any) (any, error) {
				return mgr.Buy(strArg(args, "ts_code"), numArg(args, "shares"), numArg(args, "price"))
			},
		),
		tool.NewFunctionTool(
			"portfolio_sell",
			"Sell shares from the simulated portfolio at a given price",
			tradeSchema,
			func(_ context.Context, args map[string]any) (any, error) {
				return mgr.Sell(strArg(args, "ts_code"), numArg(args, "shares"), numArg(args, "price"))
			},
		),
		tool.NewFunctionTool(
			"portfolio_view",
			"View the simulated portfolio: cash, positions marked to market, profit and loss",
			objectSchema(map[string]any{}),
			func(ctx context.Context, _ map[string]any) (any, error) {
				prices := map[string]float64{}
				if client != nil {
					for code := range mgr.Snapshot().Positions {
						rec, err := client.RealtimePrice(ctx, code)
						if err != nil {
							continue
						}

						if px, ok := rec["close"].(float64); ok {
							prices[code] = px
						}
					}
				}

				return mgr.Value(prices), nil
			},
		),
	}
}
