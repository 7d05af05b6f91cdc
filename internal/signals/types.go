package signals

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is how dates are written back out
const DateLayout = "2006-01-02"

// Action is the direction of a trade signal
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction accepts BUY or SELL in any case
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// TradeSignal is one row of the trade-signals table
type TradeSignal struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Action Action    `json:"action"`
	Reason string    `json:"reason,omitempty"`
	Score  *float64  `json:"score,omitempty"`
}

// PricePoint is one closing price
type PricePoint struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Close  float64   `json:"close"`
}

// AlignedMarker places a signal on the price series. DateUsed is never
// earlier than the signal date.
type AlignedMarker struct {
	Signal     TradeSignal `json:"signal"`
	DateUsed   time.Time   `json:"date_used"`
	PriceUsed  float64     `json:"price_used"`
	ExactMatch bool        `json:"exact_match"`
}

// RotationScore is one row of the rotation-score table
type RotationScore struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Score  float64   `json:"rotation_score"`
}

// SelectedFactor is one row of the selected-factors table
type SelectedFactor struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
}

// PeriodReturn is one rebalance period of the enhanced backtest
type PeriodReturn struct {
	PeriodNumber    int       `json:"period_number"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Return          float64   `json:"period_return"`
	CumulativeValue float64   `json:"cumulative_value"`
	Positions       string    `json:"positions"`
}

// Metric is a named backtest metric as written by the backtest stage
type Metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// day truncates t to its calendar date
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
