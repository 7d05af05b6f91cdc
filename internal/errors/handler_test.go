package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotationdash/internal/artifacts"
	"rotationdash/internal/infrastructure"
	"rotationdash/internal/operations"
	"rotationdash/internal/services"
)

func newHandler(buf *bytes.Buffer) *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewJSONHandler(buf, nil)), false)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{"busy", services.ErrPipelineBusy, http.StatusConflict, TypePipelineBusy, CodePipelineBusy},
		{"read only", services.ErrReadOnly, http.StatusForbidden, TypePipelineReadOnly, CodeReadOnly},
		{"unknown sequence", fmt.Errorf("%w: nightly", operations.ErrUnknownSequence), http.StatusNotFound, TypeSequenceNotFound, CodeSequenceNotFound},
		{"stage not found", fmt.Errorf("position 9: %w", operations.ErrStageNotFound), http.StatusNotFound, TypeStageNotFound, CodeStageNotFound},
		{"artifact missing", fmt.Errorf("trade signals: %w", artifacts.ErrArtifactMissing), http.StatusNotFound, TypeArtifactMissing, CodeArtifactMissing},
		{"invalid input", fmt.Errorf("symbol is required: %w", services.ErrInvalidInput), http.StatusBadRequest, TypeValidation, ""},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout, ""},
		{"api error", InvalidParameter("n", "must be a positive integer"), http.StatusBadRequest, TypeValidation, CodeInvalidParameter},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError, TypeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			req = req.WithContext(infrastructure.WithTraceID(req.Context(), "trace-123"))
			rec := httptest.NewRecorder()

			newHandler(&logs).HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/test", body["instance"])
			assert.Equal(t, "trace-123", body["trace_id"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			assert.Contains(t, logs.String(), "request_failed")
		})
	}
}

func TestErrorHandler_Nil(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&bytes.Buffer{}).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_ValidationErrors(t *testing.T) {
	type request struct {
		Sequence string `validate:"required,oneof=full factors"`
	}
	err := validator.New().Struct(request{Sequence: "nightly"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	newHandler(&bytes.Buffer{}).HandleError(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, TypeValidation, body["type"])
	fields, ok := body["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "Sequence", fields[0].(map[string]interface{})["field"])
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	var logs bytes.Buffer
	h := NewErrorHandler(slog.New(slog.NewJSONHandler(&logs, nil)), true)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	RecoveryMiddleware(h)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "boom", body["panic"])
	assert.Contains(t, logs.String(), "panic_recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := newHandler(&bytes.Buffer{})

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decode(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "DELETE")
}

func TestProblemDetailsMarshal(t *testing.T) {
	p := NewProblemDetails(http.StatusConflict, TypePipelineBusy, "Pipeline Busy", "", "/api/pipeline/run").
		WithExtension("running", "full").
		WithExtension("status", "overridden")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, float64(http.StatusConflict), body["status"], "standard fields win over extensions")
	assert.Equal(t, "full", body["running"])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}

func TestAPIErrorHelpers(t *testing.T) {
	err := NotFoundError("symbol X")
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "symbol X not found", err.Error())

	rec := httptest.NewRecorder()
	WriteError(rec, ErrPipelineBusy)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])

	v := NewValidationErrors([]ValidationError{{Field: "n", Message: "too big"}})
	assert.Equal(t, CodeValidationFailed, v.ErrorCode)
}
