package signals

import (
	"sort"
)

// Align resolves each signal for symbol to a point on the symbol's price
// series. A price on the signal's own day wins; otherwise the earliest
// later trading day is used. Signals dated after the last price produce no
// marker. Output follows the input signal order.
func Align(signals []TradeSignal, prices []PricePoint, symbol string) []AlignedMarker {
	series := make([]PricePoint, 0, len(prices))
	for _, p := range prices {
		if p.Symbol == symbol {
			series = append(series, p)
		}
	}
	// stable keeps the first row when a day appears twice
	sort.SliceStable(series, func(i, j int) bool {
		return day(series[i].Date).Before(day(series[j].Date))
	})

	markers := make([]AlignedMarker, 0)
	for _, sig := range signals {
		if sig.Symbol != symbol {
			continue
		}
		target := day(sig.Date)
		i := sort.Search(len(series), func(i int) bool {
			return !day(series[i].Date).Before(target)
		})
		if i == len(series) {
			continue
		}
		used := day(series[i].Date)
		markers = append(markers, AlignedMarker{
			Signal:     sig,
			DateUsed:   used,
			PriceUsed:  series[i].Close,
			ExactMatch: used.Equal(target),
		})
	}
	return markers
}
