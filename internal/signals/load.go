package signals

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"rotationdash/internal/artifacts"
)

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"20060102",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// table is a CSV file addressed by header name
type table struct {
	name   string
	reader *csv.Reader
	cols   map[string]int
	row    []string
	line   int
}

func openTable(name string, r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	t := &table{name: name, reader: reader, cols: make(map[string]int, len(header)), line: 1}
	for i, col := range header {
		// pandas writes a UTF-8 BOM with utf-8-sig
		col = strings.TrimPrefix(col, "\ufeff")
		t.cols[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", name, col)
		}
	}
	return t, nil
}

// next advances to the next record, returning false at EOF
func (t *table) next() (bool, error) {
	row, err := t.reader.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	t.line++
	if err != nil {
		return false, fmt.Errorf("%s line %d: %w", t.name, t.line, err)
	}
	t.row = row
	return true, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) str(col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(t.row) {
		return ""
	}
	return strings.TrimSpace(t.row[i])
}

func (t *table) errorf(format string, args ...any) error {
	return fmt.Errorf("%s line %d: %s", t.name, t.line, fmt.Sprintf(format, args...))
}

func (t *table) date(col string) (time.Time, error) {
	d, err := parseDate(t.str(col))
	if err != nil {
		return time.Time{}, t.errorf("%s: %v", col, err)
	}
	return d, nil
}

func (t *table) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(col), 64)
	if err != nil {
		return 0, t.errorf("%s: invalid number %q", col, t.str(col))
	}
	return v, nil
}

// optFloat returns nil for an empty or NaN cell
func (t *table) optFloat(col string) (*float64, error) {
	s := t.str(col)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := t.float(col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadSignals parses a trade-signals table (date, symbol, action, reason, score)
func ReadSignals(r io.Reader) ([]TradeSignal, error) {
	t, err := openTable("trade signals", r, "date", "symbol", "action")
	if err != nil {
		return nil, err
	}
	var out []TradeSignal
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		date, err := t.date("date")
		if err != nil {
			return nil, err
		}
		action, err := ParseAction(t.str("action"))
		if err != nil {
			return nil, t.errorf("%v", err)
		}
		score, err := t.optFloat("score")
		if err != nil {
			return nil, err
		}
		out = append(out, TradeSignal{
			Date:   date,
			Symbol: t.str("symbol"),
			Action: action,
			Reason: t.str("reason"),
			Score:  score,
		})
	}
}

// ReadPrices parses a price table (date, symbol, close)
func ReadPrices(r io.Reader) ([]PricePoint, error) {
	t, err := openTable("prices", r, "date", "symbol", "close")
	if err != nil {
		return nil, err
	}
	var out []PricePoint
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		date, err := t.date("date")
		if err != nil {
			return nil, err
		}
		closePrice, err := t.float("close")
		if err != nil {
			return nil, err
		}
		out = append(out, PricePoint{Date: date, Symbol: t.str("symbol"), Close: closePrice})
	}
}

// ReadRotationScores parses a rotation-score table (date, symbol, rotation_score)
func ReadRotationScores(r io.Reader) ([]RotationScore, error) {
	t, err := openTable("rotation scores", r, "date", "symbol", "rotation_score")
	if err != nil {
		return nil, err
	}
	var out []RotationScore
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		date, err := t.date("date")
		if err != nil {
			return nil, err
		}
		score, err := t.float("rotation_score")
		if err != nil {
			return nil, err
		}
		out = append(out, RotationScore{Date: date, Symbol: t.str("symbol"), Score: score})
	}
}

// ReadSelectedFactors parses a selected-factors table. Extra columns are ignored.
func ReadSelectedFactors(r io.Reader) ([]SelectedFactor, error) {
	t, err := openTable("selected factors", r, "factor", "weight")
	if err != nil {
		return nil, err
	}
	var out []SelectedFactor
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		weight, err := t.float("weight")
		if err != nil {
			return nil, err
		}
		out = append(out, SelectedFactor{Factor: t.str("factor"), Weight: weight})
	}
}

// ReadPeriodReturns parses the enhanced backtest period table
func ReadPeriodReturns(r io.Reader) ([]PeriodReturn, error) {
	t, err := openTable("period returns", r, "period_number", "period_return")
	if err != nil {
		return nil, err
	}
	var out []PeriodReturn
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return out, err
		}
		n, err := strconv.Atoi(t.str("period_number"))
		if err != nil {
			return nil, t.errorf("period_number: invalid integer %q", t.str("period_number"))
		}
		ret, err := t.float("period_return")
		if err != nil {
			return nil, err
		}
		p := PeriodReturn{PeriodNumber: n, Return: ret, Positions: t.str("positions")}
		if t.has("start_date") && t.str("start_date") != "" {
			if p.StartDate, err = t.date("start_date"); err != nil {
				return nil, err
			}
		}
		if t.has("end_date") && t.str("end_date") != "" {
			if p.EndDate, err = t.date("end_date"); err != nil {
				return nil, err
			}
		}
		if t.has("cumulative_value") && t.str("cumulative_value") != "" {
			if p.CumulativeValue, err = t.float("cumulative_value"); err != nil {
				return nil, err
			}
		}
		out = append(out, p)
	}
}

// ReadMetrics parses a two-column metrics table written with an index
// column; the header row is skipped.
func ReadMetrics(r io.Reader) ([]Metric, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("metrics: empty file")
		}
		return nil, fmt.Errorf("metrics: read header: %w", err)
	}
	var out []Metric
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		out = append(out, Metric{Name: strings.TrimSpace(row[0]), Value: strings.TrimSpace(row[1])})
	}
}

// Loader reads the dashboard tables from an artifact source. Missing
// artifacts surface as artifacts.ErrArtifactMissing.
type Loader struct {
	source    artifacts.Source
	priceFile string
}

// NewLoader creates a loader; priceFile is the price table path relative
// to the project root.
func NewLoader(source artifacts.Source, priceFile string) *Loader {
	return &Loader{source: source, priceFile: priceFile}
}

func load[T any](ctx context.Context, src artifacts.Source, a artifacts.Artifact, read func(io.Reader) ([]T, error)) ([]T, error) {
	rc, err := src.Open(ctx, a)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	rows, err := read(rc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Location(a), err)
	}
	return rows, nil
}

func standard(key string) artifacts.Artifact {
	a, _ := artifacts.Lookup(key)
	return a
}

// Signals loads the trade-signals table
func (l *Loader) Signals(ctx context.Context) ([]TradeSignal, error) {
	return load(ctx, l.source, standard(artifacts.KeyTradeSignals), ReadSignals)
}

// Prices loads the price table
func (l *Loader) Prices(ctx context.Context) ([]PricePoint, error) {
	return load(ctx, l.source, artifacts.PriceArtifact(l.priceFile), ReadPrices)
}

// RotationScores loads the rotation-score table
func (l *Loader) RotationScores(ctx context.Context) ([]RotationScore, error) {
	return load(ctx, l.source, standard(artifacts.KeyRotationScores), ReadRotationScores)
}

// SelectedFactors loads the selected-factors table
func (l *Loader) SelectedFactors(ctx context.Context) ([]SelectedFactor, error) {
	return load(ctx, l.source, standard(artifacts.KeySelectedFactors), ReadSelectedFactors)
}

// PeriodReturns loads the enhanced backtest period table
func (l *Loader) PeriodReturns(ctx context.Context) ([]PeriodReturn, error) {
	return load(ctx, l.source, standard(artifacts.KeyPeriodReturns), ReadPeriodReturns)
}

// EnhancedMetrics loads the enhanced backtest metrics
func (l *Loader) EnhancedMetrics(ctx context.Context) ([]Metric, error) {
	return load(ctx, l.source, standard(artifacts.KeyEnhancedMetrics), ReadMetrics)
}
