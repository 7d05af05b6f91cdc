package signals

import (
	"sort"
	"time"
)

// SignalStats summarizes the trade-signals table
type SignalStats struct {
	Total         int `json:"total"`
	Buy           int `json:"buy"`
	Sell          int `json:"sell"`
	UniqueSymbols int `json:"unique_symbols"`
}

// ComputeSignalStats counts signals by action and distinct symbol
func ComputeSignalStats(signals []TradeSignal) SignalStats {
	symbols := make(map[string]struct{})
	stats := SignalStats{Total: len(signals)}
	for _, s := range signals {
		switch s.Action {
		case ActionBuy:
			stats.Buy++
		case ActionSell:
			stats.Sell++
		}
		symbols[s.Symbol] = struct{}{}
	}
	stats.UniqueSymbols = len(symbols)
	return stats
}

// ReturnStats summarizes the backtest periods
type ReturnStats struct {
	Periods    int     `json:"periods"`
	MeanReturn float64 `json:"mean_return"`
	WinRate    float64 `json:"win_rate"`
	MaxReturn  float64 `json:"max_return"`
	MinReturn  float64 `json:"min_return"`
	FinalValue float64 `json:"final_value"`
}

// ComputeReturnStats computes mean, win rate and extremes of period
// returns. A period wins when its return is strictly positive.
func ComputeReturnStats(periods []PeriodReturn) ReturnStats {
	if len(periods) == 0 {
		return ReturnStats{}
	}
	stats := ReturnStats{
		Periods:   len(periods),
		MaxReturn: periods[0].Return,
		MinReturn: periods[0].Return,
	}
	var sum float64
	wins := 0
	for _, p := range periods {
		sum += p.Return
		if p.Return > 0 {
			wins++
		}
		stats.MaxReturn = max(stats.MaxReturn, p.Return)
		stats.MinReturn = min(stats.MinReturn, p.Return)
	}
	stats.MeanReturn = sum / float64(len(periods))
	stats.WinRate = float64(wins) / float64(len(periods))
	stats.FinalValue = periods[len(periods)-1].CumulativeValue
	return stats
}

// LatestScoreDate returns the most recent date in the score table
func LatestScoreDate(scores []RotationScore) (time.Time, bool) {
	var latest time.Time
	for _, s := range scores {
		if d := day(s.Date); d.After(latest) {
			latest = d
		}
	}
	return latest, !latest.IsZero()
}

// ScoreDates returns the distinct score dates, newest first
func ScoreDates(scores []RotationScore) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, s := range scores {
		d := day(s.Date)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates
}

// TopNAt returns the n highest scores on date, best first. Ties keep
// table order. n <= 0 returns every row for the date.
func TopNAt(scores []RotationScore, date time.Time, n int) []RotationScore {
	target := day(date)
	var daily []RotationScore
	for _, s := range scores {
		if day(s.Date).Equal(target) {
			daily = append(daily, s)
		}
	}
	sort.SliceStable(daily, func(i, j int) bool { return daily[i].Score > daily[j].Score })
	if n > 0 && len(daily) > n {
		daily = daily[:n]
	}
	return daily
}

// TopN returns the n highest scores on the latest score date
func TopN(scores []RotationScore, n int) []RotationScore {
	latest, ok := LatestScoreDate(scores)
	if !ok {
		return nil
	}
	return TopNAt(scores, latest, n)
}
