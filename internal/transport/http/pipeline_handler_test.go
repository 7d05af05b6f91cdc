package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "rotationdash/internal/errors"
	"rotationdash/internal/operations"
	"rotationdash/internal/services"
)

// MockPipelineService is a mock implementation of PipelineServiceInterface
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Stages() []operations.Stage {
	return m.Called().Get(0).([]operations.Stage)
}

func (m *MockPipelineService) Sequences() []operations.Sequence {
	return m.Called().Get(0).([]operations.Sequence)
}

func (m *MockPipelineService) RunSequence(ctx context.Context, name string) (operations.PipelineRun, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(operations.PipelineRun), args.Error(1)
}

func (m *MockPipelineService) RunStage(ctx context.Context, position int) (operations.StageResult, error) {
	args := m.Called(ctx, position)
	return args.Get(0).(operations.StageResult), args.Error(1)
}

func (m *MockPipelineService) Status() services.PipelineStatus {
	return m.Called().Get(0).(services.PipelineStatus)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newPipelineRouter(svc PipelineServiceInterface) http.Handler {
	logger := quietLogger()
	h := NewPipelineHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	r := chi.NewRouter()
	r.Mount("/api/pipeline", h.Routes())
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestPipelineHandler_ListStages(t *testing.T) {
	svc := new(MockPipelineService)
	svc.On("Stages").Return([]operations.Stage{
		{Name: "download", ExecutablePath: "update.py", AllowFail: true},
		{Name: "preprocess", ExecutablePath: "data_preprocessing.py"},
	})

	rec, _ := doJSON(t, newPipelineRouter(svc), http.MethodGet, "/api/pipeline/stages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, float64(1), views[0]["position"])
	assert.Equal(t, "download", views[0]["name"])
	assert.Equal(t, true, views[0]["allow_fail"])
	assert.Equal(t, float64(2), views[1]["position"])
	svc.AssertExpectations(t)
}

func TestPipelineHandler_RunSequence(t *testing.T) {
	started := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	run := operations.PipelineRun{
		ID:           "run-1",
		Sequence:     operations.SequenceSignal,
		Succeeded:    true,
		FailureIndex: operations.NoFailure,
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
		Results:      []operations.StageResult{{StageName: "rotation_scores", Succeeded: true}},
	}

	tests := []struct {
		name       string
		body       string
		sequence   string
		err        error
		wantStatus int
		wantType   string
	}{
		{"named sequence", `{"sequence":"signal"}`, "signal", nil, http.StatusOK, ""},
		{"empty body runs full", "", "", nil, http.StatusOK, ""},
		{"busy", `{"sequence":"full"}`, "full", services.ErrPipelineBusy, http.StatusConflict, apierrors.TypePipelineBusy},
		{"read only", `{"sequence":"full"}`, "full", services.ErrReadOnly, http.StatusForbidden, apierrors.TypePipelineReadOnly},
		{"unknown sequence", `{"sequence":"nightly"}`, "nightly",
			fmt.Errorf("%w: nightly", operations.ErrUnknownSequence), http.StatusNotFound, apierrors.TypeSequenceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPipelineService)
			svc.On("RunSequence", mock.Anything, tt.sequence).Return(run, tt.err)

			rec, body := doJSON(t, newPipelineRouter(svc), http.MethodPost, "/api/pipeline/run", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, body["type"])
			} else {
				assert.Equal(t, "run-1", body["id"])
				assert.Equal(t, float64(operations.NoFailure), body["failure_index"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestPipelineHandler_RunSequenceRejectsBadBody(t *testing.T) {
	svc := new(MockPipelineService)
	h := newPipelineRouter(svc)

	rec, body := doJSON(t, h, http.MethodPost, "/api/pipeline/run", `{"sequence":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.TypeValidation, body["type"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/pipeline/run", `{"sequence":"../etc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body, "errors")

	svc.AssertNotCalled(t, "RunSequence", mock.Anything, mock.Anything)
}

func TestPipelineHandler_RunStage(t *testing.T) {
	svc := new(MockPipelineService)
	svc.On("RunStage", mock.Anything, 4).Return(operations.StageResult{
		StageName: "factor_analysis",
		Kind:      operations.ErrorKindTimeout,
		Message:   "factor_analysis timed out after 10m0s and was terminated",
	}, nil)
	svc.On("RunStage", mock.Anything, 9).Return(operations.StageResult{},
		fmt.Errorf("%w: position 9 outside 1..6", operations.ErrStageNotFound))

	h := newPipelineRouter(svc)

	rec, body := doJSON(t, h, http.MethodPost, "/api/pipeline/stages/4/run", "")
	assert.Equal(t, http.StatusOK, rec.Code, "a failed stage is still a completed request")
	assert.Equal(t, false, body["succeeded"])
	assert.Equal(t, string(operations.ErrorKindTimeout), body["error_kind"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/pipeline/stages/9/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.TypeStageNotFound, body["type"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/pipeline/stages/two/run", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.CodeInvalidParameter, body["error_code"])

	svc.AssertExpectations(t)
}

func TestPipelineHandler_Status(t *testing.T) {
	svc := new(MockPipelineService)
	svc.On("Status").Return(services.PipelineStatus{Running: true, Current: "preprocess"})
	svc.On("Sequences").Return([]operations.Sequence{{Name: operations.SequenceFull}})

	h := newPipelineRouter(svc)
	rec, body := doJSON(t, h, http.MethodGet, "/api/pipeline/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, "preprocess", body["current"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/pipeline/sequences", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"full"`)
}
