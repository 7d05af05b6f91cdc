package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rotationdash/internal/artifacts"
	"rotationdash/internal/signals"
)

// DefaultTopN is the number of recommendations shown when none is requested
const DefaultTopN = 3

// TopScores is the ranked rotation scores for one date
type TopScores struct {
	Date   time.Time               `json:"date"`
	Scores []signals.RotationScore `json:"scores"`
}

// Overview bundles everything the home view shows. Tables that have not
// been produced yet are listed in Missing and left empty.
type Overview struct {
	SignalDate      *time.Time                 `json:"signal_date,omitempty"`
	Top             []signals.RotationScore    `json:"top,omitempty"`
	SelectedFactors []signals.SelectedFactor   `json:"selected_factors,omitempty"`
	SignalStats     *signals.SignalStats       `json:"signal_stats,omitempty"`
	ReturnStats     *signals.ReturnStats       `json:"return_stats,omitempty"`
	Metrics         []signals.Metric           `json:"metrics,omitempty"`
	Artifacts       []artifacts.ArtifactStatus `json:"artifacts"`
	StaleCount      int                        `json:"stale_count"`
	Missing         []string                   `json:"missing,omitempty"`
}

// MarkerSet is the aligned markers for one symbol
type MarkerSet struct {
	Symbol     string                  `json:"symbol"`
	Signals    int                     `json:"signals"`
	Markers    []signals.AlignedMarker `json:"markers"`
	Unresolved int                     `json:"unresolved"`
}

// DashboardService serves the read side: artifact status and the tables
// produced by the pipeline.
type DashboardService struct {
	loader  *signals.Loader
	status  artifacts.StatusReader
	catalog []artifacts.Artifact
	logger  *slog.Logger
}

// NewDashboardService creates a dashboard service
func NewDashboardService(loader *signals.Loader, status artifacts.StatusReader, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		loader:  loader,
		status:  status,
		catalog: artifacts.StandardArtifacts(),
		logger:  logger.With(slog.String("component", "dashboard_service")),
	}
}

// Artifacts reports every standard artifact the status reader can see
func (s *DashboardService) Artifacts(ctx context.Context) []artifacts.ArtifactStatus {
	return s.status.StatusAll(ctx, s.catalog)
}

// SignalStats summarizes the trade-signals table
func (s *DashboardService) SignalStats(ctx context.Context) (signals.SignalStats, error) {
	rows, err := s.loader.Signals(ctx)
	if err != nil {
		return signals.SignalStats{}, err
	}
	return signals.ComputeSignalStats(rows), nil
}

// ReturnStats summarizes the backtest period returns
func (s *DashboardService) ReturnStats(ctx context.Context) (signals.ReturnStats, error) {
	rows, err := s.loader.PeriodReturns(ctx)
	if err != nil {
		return signals.ReturnStats{}, err
	}
	return signals.ComputeReturnStats(rows), nil
}

// TopScores ranks the latest rotation scores. n <= 0 uses DefaultTopN.
func (s *DashboardService) TopScores(ctx context.Context, n int) (TopScores, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	rows, err := s.loader.RotationScores(ctx)
	if err != nil {
		return TopScores{}, err
	}
	latest, ok := signals.LatestScoreDate(rows)
	if !ok {
		return TopScores{Scores: []signals.RotationScore{}}, nil
	}
	return TopScores{Date: latest, Scores: signals.TopNAt(rows, latest, n)}, nil
}

// Symbols lists the symbols that have trade signals, sorted
func (s *DashboardService) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.loader.Signals(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.Symbol]; !ok {
			seen[r.Symbol] = struct{}{}
			out = append(out, r.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Markers loads signals and prices concurrently and aligns them for symbol
func (s *DashboardService) Markers(ctx context.Context, symbol string) (MarkerSet, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return MarkerSet{}, fmt.Errorf("symbol is required: %w", ErrInvalidInput)
	}

	var (
		sigs   []signals.TradeSignal
		prices []signals.PricePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sigs, err = s.loader.Signals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = s.loader.Prices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return MarkerSet{}, err
	}

	total := 0
	for _, sig := range sigs {
		if sig.Symbol == symbol {
			total++
		}
	}
	markers := signals.Align(sigs, prices, symbol)
	if unresolved := total - len(markers); unresolved > 0 {
		s.logger.DebugContext(ctx, "signals_unresolved",
			slog.String("symbol", symbol),
			slog.Int("count", unresolved))
	}
	return MarkerSet{
		Symbol:     symbol,
		Signals:    total,
		Markers:    markers,
		Unresolved: total - len(markers),
	}, nil
}

// Overview loads every dashboard table in parallel. A missing table is
// recorded and skipped; any other failure aborts the overview.
func (s *DashboardService) Overview(ctx context.Context) (Overview, error) {
	var (
		ov Overview
		mu sync.Mutex
	)
	tolerate := func(key string, err error) error {
		if errors.Is(err, artifacts.ErrArtifactMissing) {
			mu.Lock()
			ov.Missing = append(ov.Missing, key)
			mu.Unlock()
			return nil
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.loader.RotationScores(gctx)
		if err != nil {
			return tolerate(artifacts.KeyRotationScores, err)
		}
		if latest, ok := signals.LatestScoreDate(rows); ok {
			mu.Lock()
			ov.SignalDate = &latest
			ov.Top = signals.TopNAt(rows, latest, DefaultTopN)
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.loader.SelectedFactors(gctx)
		if err != nil {
			return tolerate(artifacts.KeySelectedFactors, err)
		}
		mu.Lock()
		ov.SelectedFactors = rows
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		stats, err := s.SignalStats(gctx)
		if err != nil {
			return tolerate(artifacts.KeyTradeSignals, err)
		}
		mu.Lock()
		ov.SignalStats = &stats
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		stats, err := s.ReturnStats(gctx)
		if err != nil {
			return tolerate(artifacts.KeyPeriodReturns, err)
		}
		mu.Lock()
		ov.ReturnStats = &stats
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		rows, err := s.loader.EnhancedMetrics(gctx)
		if err != nil {
			return tolerate(artifacts.KeyEnhancedMetrics, err)
		}
		mu.Lock()
		ov.Metrics = rows
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		statuses := s.Artifacts(gctx)
		mu.Lock()
		ov.Artifacts = statuses
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "overview_failed", slog.String("error", err.Error()))
		return Overview{}, err
	}

	for _, st := range ov.Artifacts {
		if st.Stale() {
			ov.StaleCount++
		}
	}
	sort.Strings(ov.Missing)
	return ov, nil
}
