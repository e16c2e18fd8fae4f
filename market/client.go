// Package market fetches Chinese A-share market data from a Tushare
// compatible HTTP API. The API exposes one POST endpoint taking an api_name
// plus parameters and returning columnar data (a field list and row items),
// which the client zips back into row records.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sudheer1135/fin-agent/logging"
)

// DefaultBaseURL is the public Tushare endpoint.
const DefaultBaseURL = "http://api.tushare.pro"

// Options configures a Client.
type Options struct {
	// BaseURL overrides the API endpoint.
	BaseURL string
	// HTTPClient overrides the HTTP client used for requests.
	HTTPClient *http.Client
	// Logger receives request diagnostics.
	Logger logging.Logger
}

// Client calls the market data API. Safe for concurrent use.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a market data client authenticated with token.
func NewClient(token string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logging.NewNoOpLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		token:      token,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// Record is one row of API output keyed by field name.
type Record map[string]any

type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields,omitempty"`
}

// Query performs a raw API call and returns the rows. Most callers should
// prefer the typed helpers.
func (c *Client) Query(ctx context.Context, apiName string, params map[string]string, fields string) ([]Record, error) {
	body, err := json.Marshal(apiRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("market api call", "api_name", apiName, "params", params)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", apiName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s: unexpected status %s", apiName, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", apiName, err)
	}

	return parseResponse(apiName, raw)
}

func parseResponse(apiName string, raw []byte) ([]Record, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("call %s: invalid JSON response", apiName)
	}

	doc := gjson.ParseBytes(raw)

	if code := doc.Get("code").Int(); code != 0 {
		return nil, fmt.Errorf("call %s: api error %d: %s", apiName, code, doc.Get("msg").String())
	}

	fields := doc.Get("data.fields").Array()
	items := doc.Get("data.items").Array()

	records := make([]Record, 0, len(items))
	for _, item := range items {
		cols := item.Array()
		rec := make(Record, len(fields))
		for i, f := range fields {
			if i >= len(cols) {
				break
			}

			rec[f.String()] = cols[i].Value()
		}

		records = append(records, rec)
	}

	return records, nil
}
