// Package portfolio tracks simulated stock holdings with average cost
// accounting and a cash balance, persisted as a JSON file.
package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultCash is the starting cash balance for a fresh portfolio.
const DefaultCash = 1_000_000

// Position is one holding: total shares and the average cost per share.
type Position struct {
	Shares  float64 `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
}

// Transaction records a single buy or sell.
type Transaction struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"` // buy or sell
	Code   string    `json:"code"`
	Shares float64   `json:"shares"`
	Price  float64   `json:"price"`
}

// Holdings is the on-disk shape of the portfolio.
type Holdings struct {
	Cash      float64             `json:"cash"`
	Positions map[string]Position `json:"positions"`
	History   []Transaction       `json:"history"`
}

// Manager owns a holdings file and serializes access to it.
type Manager struct {
	mu   sync.Mutex
	path string
	h    Holdings
}

// NewManager loads the portfolio from path, creating a fresh one with
// DefaultCash if no file exists yet.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &m.h); err != nil {
			return nil, fmt.Errorf("parse portfolio %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		m.h = Holdings{Cash: DefaultCash, Positions: map[string]Position{}}
	default:
		return nil, fmt.Errorf("read portfolio %s: %w", path, err)
	}

	if m.h.Positions == nil {
		m.h.Positions = map[string]Position{}
	}

	return m, nil
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal portfolio: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create portfolio dir: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write portfolio: %w", err)
	}

	return nil
}

// Buy purchases shares at the given price, debiting cash and folding the
// lot into the position at a new average cost.
func (m *Manager) Buy(code string, shares, price float64) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if shares <= 0 || price <= 0 {
		return Position{}, errors.New("shares and price must be positive")
	}

	cost := shares * price
	if cost > m.h.Cash {
		return Position{}, fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, m.h.Cash)
	}

	pos := m.h.Positions[code]
	total := pos.Shares + shares
	pos.AvgCost = (pos.AvgCost*pos.Shares + cost) / total
	pos.Shares = total

	m.h.Cash -= cost
	m.h.Positions[code] = pos
	m.h.History = append(m.h.History, Transaction{
		Time: time.Now(), Action: "buy", Code: code, Shares: shares, Price: price,
	})

	if err := m.save(); err != nil {
		return Position{}, err
	}

	return pos, nil
}

// Sell disposes of shares at the given price, crediting cash. The average
// cost of the remaining shares is unchanged; selling the full position
// removes it.
func (m *Manager) Sell(code string, shares, price float64) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if shares <= 0 || price <= 0 {
		return Position{}, errors.New("shares and price must be positive")
	}

	pos, ok := m.h.Positions[code]
	if !ok {
		return Position{}, fmt.Errorf("no position in %s", code)
	}

	if shares > pos.Shares {
		return Position{}, fmt.Errorf("cannot sell %.0f shares of %s, only %.0f held", shares, code, pos.Shares)
	}

	pos.Shares -= shares
	m.h.Cash += shares * price

	if pos.Shares == 0 {
		delete(m.h.Positions, code)
	} else {
		m.h.Positions[code] = pos
	}

	m.h.History = append(m.h.History, Transaction{
		Time: time.Now(), Action: "sell", Code: code, Shares: shares, Price: price,
	})

	if err := m.save(); err != nil {
		return Position{}, err
	}

	return pos, nil
}

// Snapshot returns a copy of the current holdings.
func (m *Manager) Snapshot() Holdings {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Holdings{
		Cash:      m.h.Cash,
		Positions: make(map[string]Position, len(m.h.Positions)),
		History:   append([]Transaction(nil), m.h.History...),
	}
	for k, v := range m.h.Positions {
		out.Positions[k] = v
	}

	return out
}

// Valuation summarizes the portfolio against current prices. Codes missing
// from prices are valued at their average cost.
type Valuation struct {
	Cash        float64         `json:"cash"`
	MarketValue float64         `json:"market_value"`
	Total       float64         `json:"total"`
	Positions   []PositionValue `json:"positions"`
}

// PositionValue is one holding marked to a price.
type PositionValue struct {
	Code    string  `json:"code"`
	Shares  float64 `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
	Price   float64 `json:"price"`
	Value   float64 `json:"value"`
	PnL     float64 `json:"pnl"`
}

// Value marks all positions to the supplied prices.
func (m *Manager) Value(prices map[string]float64) Valuation {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := Valuation{Cash: m.h.Cash}
	for code, pos := range m.h.Positions {
		price, ok := prices[code]
		if !ok {
			price = pos.AvgCost
		}

		pv := PositionValue{
			Code:    code,
			Shares:  pos.Shares,
			AvgCost: pos.AvgCost,
			Price:   price,
			Value:   pos.Shares * price,
			PnL:     pos.Shares * (price - pos.AvgCost),
		}
		v.Positions = append(v.Positions, pv)
		v.MarketValue += pv.Value
	}

	sort.Slice(v.Positions, func(i, j int) bool { return v.Positions[i].Code < v.Positions[j].Code })
	v.Total = v.Cash + v.MarketValue

	return v
}
