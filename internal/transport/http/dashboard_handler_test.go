package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rotationdash/internal/artifacts"
	apierrors "rotationdash/internal/errors"
	"rotationdash/internal/services"
	"rotationdash/internal/signals"
)

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Artifacts(ctx context.Context) []artifacts.ArtifactStatus {
	return m.Called(ctx).Get(0).([]artifacts.ArtifactStatus)
}

func (m *MockDashboardService) Overview(ctx context.Context) (services.Overview, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.Overview), args.Error(1)
}

func (m *MockDashboardService) SignalStats(ctx context.Context) (signals.SignalStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(signals.SignalStats), args.Error(1)
}

func (m *MockDashboardService) ReturnStats(ctx context.Context) (signals.ReturnStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(signals.ReturnStats), args.Error(1)
}

func (m *MockDashboardService) TopScores(ctx context.Context, n int) (services.TopScores, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(services.TopScores), args.Error(1)
}

func (m *MockDashboardService) Symbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDashboardService) Markers(ctx context.Context, symbol string) (services.MarkerSet, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(services.MarkerSet), args.Error(1)
}

func newDashboardRouter(svc DashboardServiceInterface) http.Handler {
	logger := quietLogger()
	h := NewDashboardHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	return r
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDashboardHandler_Artifacts(t *testing.T) {
	modified := day("2024-03-01")
	svc := new(MockDashboardService)
	svc.On("Artifacts", mock.Anything).Return([]artifacts.ArtifactStatus{
		{Key: artifacts.KeyRotationScores, Path: "rotation_scores.csv", Exists: true,
			ModifiedAt: &modified, AgeDays: 3, Freshness: artifacts.FreshnessStale, Hint: artifacts.StaleHint},
		{Key: artifacts.KeyTradeSignals, Path: "trade_signals.csv", Freshness: artifacts.FreshnessMissing},
	})

	rec := httptest.NewRecorder()
	newDashboardRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "stale", statuses[0]["freshness"])
	assert.Equal(t, artifacts.StaleHint, statuses[0]["hint"])
	assert.Equal(t, false, statuses[1]["exists"])
}

func TestDashboardHandler_TopScores(t *testing.T) {
	top := services.TopScores{
		Date:   day("2024-03-04"),
		Scores: []signals.RotationScore{{Date: day("2024-03-04"), Symbol: "B", Score: 0.8}},
	}

	tests := []struct {
		name       string
		query      string
		wantN      int
		wantStatus int
	}{
		{"default", "", 0, http.StatusOK},
		{"explicit", "?n=5", 5, http.StatusOK},
		{"zero", "?n=0", -1, http.StatusBadRequest},
		{"too large", "?n=500", -1, http.StatusBadRequest},
		{"not a number", "?n=three", -1, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			if tt.wantN >= 0 {
				svc.On("TopScores", mock.Anything, tt.wantN).Return(top, nil)
			}

			rec, body := doJSON(t, newDashboardRouter(svc), http.MethodGet, "/api/scores/top"+tt.query, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				scores := body["scores"].([]interface{})
				assert.Equal(t, 0.8, scores[0].(map[string]interface{})["rotation_score"])
			} else {
				assert.Equal(t, apierrors.CodeInvalidParameter, body["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_MissingArtifact(t *testing.T) {
	missing := fmt.Errorf("trade signals (backtest_results/trade_signals_top3_5d.csv): %w", artifacts.ErrArtifactMissing)
	svc := new(MockDashboardService)
	svc.On("SignalStats", mock.Anything).Return(signals.SignalStats{}, missing)
	svc.On("ReturnStats", mock.Anything).Return(signals.ReturnStats{}, missing)
	svc.On("Symbols", mock.Anything).Return(nil, missing)

	h := newDashboardRouter(svc)
	for _, path := range []string{"/api/signals/stats", "/api/returns/stats", "/api/signals/symbols"} {
		rec, body := doJSON(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, apierrors.TypeArtifactMissing, body["type"], path)
	}
}

func TestDashboardHandler_Markers(t *testing.T) {
	set := services.MarkerSet{
		Symbol:  "X",
		Signals: 2,
		Markers: []signals.AlignedMarker{{
			Signal:     signals.TradeSignal{Date: day("2024-03-04"), Symbol: "X", Action: signals.ActionBuy},
			DateUsed:   day("2024-03-05"),
			PriceUsed:  11,
			ExactMatch: false,
		}},
		Unresolved: 1,
	}
	svc := new(MockDashboardService)
	svc.On("Markers", mock.Anything, "X").Return(set, nil)
	svc.On("Markers", mock.Anything, "").Return(services.MarkerSet{},
		fmt.Errorf("symbol is required: %w", services.ErrInvalidInput))

	h := newDashboardRouter(svc)

	rec, body := doJSON(t, h, http.MethodGet, "/api/signals/markers?symbol=X", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["unresolved"])
	markers := body["markers"].([]interface{})
	require.Len(t, markers, 1)
	assert.Equal(t, false, markers[0].(map[string]interface{})["exact_match"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/signals/markers", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
}

func TestDashboardHandler_DownloadMarkers(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Markers", mock.Anything, "600519.SH").Return(services.MarkerSet{
		Symbol: "600519.SH",
		Markers: []signals.AlignedMarker{{
			Signal:     signals.TradeSignal{Date: day("2024-03-04"), Symbol: "600519.SH", Action: signals.ActionSell},
			DateUsed:   day("2024-03-04"),
			PriceUsed:  1700.5,
			ExactMatch: true,
		}},
	}, nil)

	rec := httptest.NewRecorder()
	newDashboardRouter(svc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/signals/markers.xlsx?symbol=600519.SH", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "markers_600519.SH.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(signals.MarkerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "600519.SH", rows[1][1])
}

func TestDashboardHandler_Overview(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Overview", mock.Anything).Return(services.Overview{
		Missing:    []string{artifacts.KeyPeriodReturns},
		StaleCount: 2,
		Artifacts:  []artifacts.ArtifactStatus{},
	}, nil).Once()
	svc.On("Overview", mock.Anything).Return(services.Overview{}, fmt.Errorf("parse rotation scores: invalid date")).Once()

	h := newDashboardRouter(svc)
	rec, body := doJSON(t, h, http.MethodGet, "/api/overview", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["stale_count"])
	assert.Equal(t, []interface{}{artifacts.KeyPeriodReturns}, body["missing"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/overview", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierrors.TypeInternal, body["type"])
}
