package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/domain/access"
	"github.com/yanqian/trip-planner/internal/domain/guide"
	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/domain/planner"
	"github.com/yanqian/trip-planner/internal/infra/config"
	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

func TestRouter_Health(t *testing.T) {
	rec := perform(newRouterUnderTest(t, &stubPlanner{}, nil), http.MethodGet, "/api/v1/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_PlanSuccess(t *testing.T) {
	svc := &stubPlanner{
		planFn: func(_ context.Context, req planner.PlanRequest) (planner.PlanResponse, error) {
			require.Equal(t, "Jaipur", req.City)
			require.Equal(t, 2, req.Days)
			require.Equal(t, []string{"food"}, req.Interests)
			return planner.PlanResponse{SessionID: "s-1", AccessToken: "tok", Version: 1}, nil
		},
	}

	rec := perform(newRouterUnderTest(t, svc, nil), http.MethodPost, "/api/v1/plans", `{"city":"Jaipur","days":2,"interests":["food"]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var got planner.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "s-1", got.SessionID)
	require.Equal(t, "tok", got.AccessToken)
}

func TestRouter_PlanInvalidJSON(t *testing.T) {
	rec := perform(newRouterUnderTest(t, &stubPlanner{}, nil), http.MethodPost, "/api/v1/plans", `{"days":"two"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.Wrap(itinerary.CodeInvalidInput, "city is required", nil), http.StatusBadRequest, "invalid_input"},
		{apperrors.Wrap(itinerary.CodeSupplierFailure, "failed to find places to visit", nil), http.StatusBadGateway, "supplier_failure"},
		{apperrors.Wrap(planner.CodeStorage, "failed to save session", nil), http.StatusInternalServerError, "storage_error"},
		{context.Canceled, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		svc := &stubPlanner{planFn: func(context.Context, planner.PlanRequest) (planner.PlanResponse, error) {
			return planner.PlanResponse{}, tc.err
		}}
		rec := perform(newRouterUnderTest(t, svc, nil), http.MethodPost, "/api/v1/plans", `{"city":"x","days":1}`, "")
		require.Equal(t, tc.status, rec.Code, tc.code)
		require.Equal(t, tc.code, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
	}
}

func TestRouter_ConversationFlow(t *testing.T) {
	var seen []planner.ConverseRequest
	svc := &stubPlanner{converseFn: func(_ context.Context, req planner.ConverseRequest) (planner.ConverseResponse, error) {
		seen = append(seen, req)
		return planner.ConverseResponse{SessionID: "s-9", Action: planner.ActionAsk, Question: "How many days is your trip?"}, nil
	}}
	server := newRouterUnderTest(t, svc, nil)

	rec := perform(server, http.MethodPost, "/api/v1/conversations", `{"message":"Jaipur"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = perform(server, http.MethodPost, "/api/v1/conversations/s-9/messages", `{"message":"3 days"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []planner.ConverseRequest{{Message: "Jaipur"}, {SessionID: "s-9", Message: "3 days"}}, seen)
}

func TestRouter_SessionRoutesRequireMatchingToken(t *testing.T) {
	tokens := newTokens(t)
	svc := &stubPlanner{itineraryFn: func(_ context.Context, id string) (planner.ItineraryView, error) {
		return planner.ItineraryView{SessionID: id, Version: 3}, nil
	}}
	server := newRouterUnderTest(t, svc, tokens)

	rec := perform(server, http.MethodGet, "/api/v1/sessions/s-1/itinerary", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = perform(server, http.MethodGet, "/api/v1/sessions/s-1/itinerary", "", "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_token", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])

	other, err := tokens.Issue("s-2")
	require.NoError(t, err)
	rec = perform(server, http.MethodGet, "/api/v1/sessions/s-1/itinerary", "", other)
	require.Equal(t, http.StatusForbidden, rec.Code)

	mine, err := tokens.Issue("s-1")
	require.NoError(t, err)
	rec = perform(server, http.MethodGet, "/api/v1/sessions/s-1/itinerary", "", mine)
	require.Equal(t, http.StatusOK, rec.Code)
	var view planner.ItineraryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "s-1", view.SessionID)
	require.Equal(t, 3, view.Version)
}

func TestRouter_EditErrors(t *testing.T) {
	tokens := newTokens(t)
	token, err := tokens.Issue("s-1")
	require.NoError(t, err)

	cases := []struct {
		err    error
		status int
	}{
		{apperrors.Wrap(itinerary.CodeUnknownEditType, "Unknown edit type: teleport", nil), http.StatusUnprocessableEntity},
		{apperrors.Wrap(planner.CodeSessionNotFound, "session s-1 not found", nil), http.StatusNotFound},
		{apperrors.Wrap(planner.CodeItineraryNotReady, "session has no itinerary yet", nil), http.StatusConflict},
	}
	for _, tc := range cases {
		svc := &stubPlanner{editFn: func(_ context.Context, id string, cmd planner.EditCommand) (planner.EditResponse, error) {
			require.Equal(t, "s-1", id)
			require.Equal(t, "remove day 1", cmd.Text)
			return planner.EditResponse{}, tc.err
		}}
		rec := perform(newRouterUnderTest(t, svc, tokens), http.MethodPost, "/api/v1/sessions/s-1/edits", `{"text":"remove day 1"}`, token)
		require.Equal(t, tc.status, rec.Code)
	}
}

func TestRouter_ExplainPassesBody(t *testing.T) {
	tokens := newTokens(t)
	token, err := tokens.Issue("s-1")
	require.NoError(t, err)
	svc := &stubPlanner{explainFn: func(_ context.Context, id string, req planner.ExplainRequest) (guide.Explanation, error) {
		require.Equal(t, guide.KindPOI, req.Kind)
		require.Equal(t, "Hawa Mahal", req.POIName)
		return guide.Explanation{Explanation: "It is a palace.", Grounded: true}, nil
	}}

	rec := perform(newRouterUnderTest(t, svc, tokens), http.MethodPost, "/api/v1/sessions/s-1/explanations", `{"kind":"poi","poiName":"Hawa Mahal"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"grounded":true`)
}

func TestRouter_StatelessEvaluate(t *testing.T) {
	body := `{"constraints":{"pace":"relaxed"},"itinerary":{"days":[{"day":1,"date":"2025-03-01","blocks":[],"totalTravelTime":0}]}}`
	rec := perform(newRouterUnderTest(t, &stubPlanner{}, nil), http.MethodPost, "/api/v1/itineraries/evaluate", body, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view planner.FeasibilityView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotEmpty(t, view.Report.Checks)

	rec = perform(newRouterUnderTest(t, &stubPlanner{}, nil), http.MethodPost, "/api/v1/itineraries/evaluate", `{"itinerary":{"days":[]}}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_StatelessVerify(t *testing.T) {
	body := `{"original":{"days":[]},"edited":{"days":[]},"request":{"edit_type":"remove","scope":"full"},"changes":[]}`
	rec := perform(newRouterUnderTest(t, &stubPlanner{}, nil), http.MethodPost, "/api/v1/itineraries/verify", body, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report itinerary.ScopeReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.False(t, report.IntendedChangeFound)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	server := NewRouter(cfg, NewHandler(&stubPlanner{}, newTestLogger()), newTokens(t))

	require.Equal(t, http.StatusOK, perform(server, http.MethodGet, "/api/v1/healthz", "", "").Code)
	rec := perform(server, http.MethodGet, "/api/v1/healthz", "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_RetriesTransientPostFailures(t *testing.T) {
	calls := 0
	svc := &stubPlanner{converseFn: func(context.Context, planner.ConverseRequest) (planner.ConverseResponse, error) {
		calls++
		if calls == 1 {
			return planner.ConverseResponse{}, apperrors.Wrap(planner.CodeStorage, "failed to save session", nil)
		}
		return planner.ConverseResponse{SessionID: "s-1", Action: planner.ActionAsk}, nil
	}}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 2, BaseBackoff: time.Millisecond}
	server := NewRouter(cfg, NewHandler(svc, newTestLogger()), newTokens(t))

	rec := perform(server, http.MethodPost, "/api/v1/conversations/s-1/messages", `{"message":"hi"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, calls)
	require.Equal(t, "2", rec.Header().Get("X-Retry-Attempts"))
}

func TestRouter_DoesNotReplayExcludedPrefixes(t *testing.T) {
	calls := 0
	svc := &stubPlanner{converseFn: func(context.Context, planner.ConverseRequest) (planner.ConverseResponse, error) {
		calls++
		return planner.ConverseResponse{}, apperrors.Wrap(planner.CodeStorage, "failed to save session", nil)
	}}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Exclude: []string{"/api/v1/conversations/"}}
	server := NewRouter(cfg, NewHandler(svc, newTestLogger()), newTokens(t))

	rec := perform(server, http.MethodPost, "/api/v1/conversations/s-1/messages", `{"message":"hi"}`, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, calls)
	require.Empty(t, rec.Header().Get("X-Retry-Attempts"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, &stubPlanner{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plans", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func perform(server *http.Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:        ":0",
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
	}
}

func newTokens(t *testing.T) *access.Service {
	t.Helper()
	svc, err := access.NewService(access.Config{Secret: "test-secret", TokenTTL: time.Hour, Issuer: "trip-planner"})
	require.NoError(t, err)
	return svc
}

func newRouterUnderTest(t *testing.T, svc planner.Service, tokens TokenValidator) *http.Server {
	t.Helper()
	if tokens == nil {
		tokens = newTokens(t)
	}
	return NewRouter(testConfig(), NewHandler(svc, newTestLogger()), tokens)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

type stubPlanner struct {
	planFn      func(context.Context, planner.PlanRequest) (planner.PlanResponse, error)
	converseFn  func(context.Context, planner.ConverseRequest) (planner.ConverseResponse, error)
	editFn      func(context.Context, string, planner.EditCommand) (planner.EditResponse, error)
	itineraryFn func(context.Context, string) (planner.ItineraryView, error)
	explainFn   func(context.Context, string, planner.ExplainRequest) (guide.Explanation, error)
}

var _ planner.Service = (*stubPlanner)(nil)

func (s *stubPlanner) Plan(ctx context.Context, req planner.PlanRequest) (planner.PlanResponse, error) {
	if s.planFn != nil {
		return s.planFn(ctx, req)
	}
	return planner.PlanResponse{}, nil
}

func (s *stubPlanner) Converse(ctx context.Context, req planner.ConverseRequest) (planner.ConverseResponse, error) {
	if s.converseFn != nil {
		return s.converseFn(ctx, req)
	}
	return planner.ConverseResponse{}, nil
}

func (s *stubPlanner) Edit(ctx context.Context, id string, cmd planner.EditCommand) (planner.EditResponse, error) {
	if s.editFn != nil {
		return s.editFn(ctx, id, cmd)
	}
	return planner.EditResponse{}, nil
}

func (s *stubPlanner) Itinerary(ctx context.Context, id string) (planner.ItineraryView, error) {
	if s.itineraryFn != nil {
		return s.itineraryFn(ctx, id)
	}
	return planner.ItineraryView{}, nil
}

func (s *stubPlanner) History(context.Context, string) ([]planner.Version, error) {
	return nil, nil
}

func (s *stubPlanner) Feasibility(context.Context, string) (planner.FeasibilityView, error) {
	return planner.FeasibilityView{}, nil
}

func (s *stubPlanner) EditEvaluation(context.Context, string) (itinerary.ScopeReport, error) {
	return itinerary.ScopeReport{}, nil
}

func (s *stubPlanner) Explain(ctx context.Context, id string, req planner.ExplainRequest) (guide.Explanation, error) {
	if s.explainFn != nil {
		return s.explainFn(ctx, id, req)
	}
	return guide.Explanation{}, nil
}
