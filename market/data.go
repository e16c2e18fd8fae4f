package market

import (
	"context"
	"fmt"
	"time"
)

const dateLayout = "20060102"

// StockBasic returns listing information for a stock code, such as its
// name, industry, area, and listing date.
func (c *Client) StockBasic(ctx context.Context, tsCode string) ([]Record, error) {
	return c.Query(ctx, "stock_basic",
		map[string]string{"ts_code": tsCode},
		"ts_code,name,area,industry,market,list_date")
}

// DailyPrice returns daily OHLCV bars for a stock. Empty start and end
// dates default to the last 30 calendar days. Dates use the YYYYMMDD form.
func (c *Client) DailyPrice(ctx context.Context, tsCode, startDate, endDate string) ([]Record, error) {
	if endDate == "" {
		endDate = time.Now().Format(dateLayout)
	}

	if startDate == "" {
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("parse end_date %q: %w", endDate, err)
		}

		startDate = end.AddDate(0, 0, -30).Format(dateLayout)
	}

	return c.Query(ctx, "daily",
		map[string]string{"ts_code": tsCode, "start_date": startDate, "end_date": endDate},
		"ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount")
}

// RealtimePrice returns the most recent daily bar for a stock. The rows
// come back newest first, so the first record is the latest quote.
func (c *Client) RealtimePrice(ctx context.Context, tsCode string) (Record, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -10)

	records, err := c.Query(ctx, "daily",
		map[string]string{
			"ts_code":    tsCode,
			"start_date": start.Format(dateLayout),
			"end_date":   end.Format(dateLayout),
		},
		"ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no recent quotes for %s", tsCode)
	}

	return records[0], nil
}

// DailyBasic returns valuation metrics (PE, PB, turnover, market cap) for a
// stock on its most recent trading days.
func (c *Client) DailyBasic(ctx context.Context, tsCode string) ([]Record, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -10)

	return c.Query(ctx, "daily_basic",
		map[string]string{
			"ts_code":    tsCode,
			"start_date": start.Format(dateLayout),
			"end_date":   end.Format(dateLayout),
		},
		"ts_code,trade_date,close,turnover_rate,pe,pe_ttm,pb,ps,dv_ratio,total_mv,circ_mv")
}

// IncomeStatement returns income statement lines for a stock. Empty period
// bounds default to the last two years of reports.
func (c *Client) IncomeStatement(ctx context.Context, tsCode, startDate, endDate string) ([]Record, error) {
	if endDate == "" {
		endDate = time.Now().Format(dateLayout)
	}

	if startDate == "" {
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("parse end_date %q: %w", endDate, err)
		}

		startDate = end.AddDate(-2, 0, 0).Format(dateLayout)
	}

	return c.Query(ctx, "income",
		map[string]string{"ts_code": tsCode, "start_date": startDate, "end_date": endDate},
		"ts_code,end_date,ann_date,total_revenue,revenue,operate_profit,total_profit,n_income,basic_eps")
}
