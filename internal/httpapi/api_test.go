package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/disputedesk/internal/adapters/identity"
	"github.com/example/disputedesk/internal/adapters/memory"
	"github.com/example/disputedesk/internal/adapters/notify"
	"github.com/example/disputedesk/internal/app"
	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ctxutil"
	"github.com/example/disputedesk/internal/obs"
)

type testServer struct {
	srv     *httptest.Server
	tokens  *identity.TokenService
	metrics *obs.Metrics
	ready   *stubReady
}

func newTestServer(t *testing.T, withTokens bool) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewIssueRepository()
	dir := identity.NewDirectory(map[string]identity.Entry{
		"CUST-001": {Role: "customer", DisplayName: "Ada"},
		"CUST-999": {Role: "customer", DisplayName: "Eve"},
		"SUPP-001": {Role: "supplier", DisplayName: "Acme"},
		"ADM-001":  {Role: "admin", DisplayName: "Grace"},
		"ADM-002":  {Role: "admin", DisplayName: "Linus"},
	})
	metrics := obs.NewMetrics()
	wf := app.NewWorkflow(repo, dir,
		app.NewEffectExecutor(notify.NewLogNotifier(logger), logger),
		app.WithObserver(metrics),
		app.WithLogger(logger),
	)

	ts := &testServer{metrics: metrics, ready: &stubReady{}}
	deps := Deps{
		Issues:        app.NewIssueService(wf),
		Messages:      app.NewMessageService(wf),
		Escalations:   app.NewEscalationService(wf),
		Ready:         ts.ready,
		Metrics:       metrics,
		Logger:        logger,
		Version:       "test",
		RateBurst:     1000,
		RatePerSecond: 1000,
		MaxBodyBytes:  4096,
	}
	if withTokens {
		tokens, err := identity.NewTokenService("test-secret")
		require.NoError(t, err)
		ts.tokens = tokens
		deps.Tokens = tokens
	}
	ts.srv = httptest.NewServer(New(deps).Handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

// do sends a request as actor; an empty actor sends no identity.
func (ts *testServer) do(t *testing.T, method, path, actor, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		if ts.tokens != nil {
			tok, _, err := ts.tokens.Issue(actor, "", time.Hour)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+tok)
		} else {
			req.Header.Set("X-Actor-ID", actor)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (ts *testServer) openIssue(t *testing.T) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/v1/issues", "CUST-001", `{
		"order_id": "ORD-100",
		"supplier_id": "SUPP-001",
		"issue_type": "damaged_item",
		"affected_items": ["LINE-1"],
		"description": "Mug arrived in pieces",
		"desired_resolution": "full_refund"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["issue_id"].(string)
}

func TestAPI_OfferAcceptFlow(t *testing.T) {
	ts := newTestServer(t, true)
	id := ts.openIssue(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/issues/"+id+"/offer", "SUPP-001",
		`{"resolution_type":"partial_refund","amount":{"currency":"USD","amount_minor":1500}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "awaiting_response", body["status"])

	resp, body = ts.do(t, http.MethodPost, "/v1/issues/"+id+"/accept", "CUST-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "resolved", body["status"])
	assert.Equal(t, true, body["resolution_accepted"])

	resp, body = ts.do(t, http.MethodPost, "/v1/issues/"+id+"/accept", "CUST-001", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["kind"])

	resp, body = ts.do(t, http.MethodPost, "/v1/issues/"+id+"/messages", "CUST-001", `{"text":"thanks"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "issue_closed", body["kind"])

	resp, body = ts.do(t, http.MethodGet, "/v1/issues/"+id, "SUPP-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["sender_type"])
}

func TestAPI_ErrorMapping(t *testing.T) {
	ts := newTestServer(t, true)
	id := ts.openIssue(t)

	tests := []struct {
		name   string
		method string
		path   string
		actor  string
		body   string
		want   int
	}{
		{"unknown issue", http.MethodGet, "/v1/issues/ISS-NOPE", "CUST-001", "", http.StatusNotFound},
		{"outsider view", http.MethodGet, "/v1/issues/" + id, "CUST-999", "", http.StatusForbidden},
		{"supplier cannot accept", http.MethodPost, "/v1/issues/" + id + "/accept", "SUPP-001", "", http.StatusForbidden},
		{"blank message", http.MethodPost, "/v1/issues/" + id + "/messages", "CUST-001", `{"text":"   "}`, http.StatusUnprocessableEntity},
		{"unknown resolution type", http.MethodPost, "/v1/issues/" + id + "/offer", "SUPP-001", `{"resolution_type":"store_credit"}`, http.StatusUnprocessableEntity},
		{"offer without currency", http.MethodPost, "/v1/issues/" + id + "/offer", "SUPP-001", `{"resolution_type":"partial_refund","amount":{"currency":"","amount_minor":5000}}`, http.StatusUnprocessableEntity},
		{"offer on unknown issue", http.MethodPost, "/v1/issues/ISS-NOPE/offer", "SUPP-001", `{"resolution_type":"store_credit"}`, http.StatusNotFound},
		{"malformed json", http.MethodPost, "/v1/issues/" + id + "/messages", "CUST-001", `{"text":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/issues/" + id + "/messages", "CUST-001", `{"txt":"hi"}`, http.StatusBadRequest},
		{"oversized body", http.MethodPost, "/v1/issues/" + id + "/messages", "CUST-001", `{"text":"` + strings.Repeat("a", 5000) + `"}`, http.StatusRequestEntityTooLarge},
		{"claim before escalation", http.MethodPost, "/v1/issues/" + id + "/claim", "ADM-001", "", http.StatusConflict},
		{"bad escalated filter", http.MethodGet, "/v1/issues?escalated=maybe", "ADM-001", "", http.StatusBadRequest},
		{"customer lists queue", http.MethodGet, "/v1/escalations", "CUST-001", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_EscalateAndClaim(t *testing.T) {
	ts := newTestServer(t, true)
	id := ts.openIssue(t)

	resp, _ := ts.do(t, http.MethodPost, "/v1/issues/"+id+"/escalate", "CUST-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/v1/escalations", "ADM-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["issues"].([]any), 1)

	resp, body = ts.do(t, http.MethodPost, "/v1/issues/"+id+"/claim", "ADM-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "ADM-001", body["assigned_admin_id"])

	resp, body = ts.do(t, http.MethodPost, "/v1/issues/"+id+"/claim", "ADM-002", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_claimed", body["kind"])

	resp, body = ts.do(t, http.MethodPost, "/v1/issues/"+id+"/close", "ADM-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "closed", body["status"])
}

func TestAPI_Authentication(t *testing.T) {
	ts := newTestServer(t, true)

	resp, body := ts.do(t, http.MethodGet, "/v1/issues", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing bearer token", body["error"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/v1/issues", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// Health endpoints stay public.
	resp, body = ts.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_HeaderIdentityWithoutTokens(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.openIssue(t)

	resp, body := ts.do(t, http.MethodGet, "/v1/issues", "CUST-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issues := body["issues"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, id, issues[0].(map[string]any)["issue_id"])

	resp, _ = ts.do(t, http.MethodGet, "/v1/issues", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t, true)
	ts.openIssue(t)

	resp, _ := ts.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.ready.fail(errors.New("connection refused"))
	resp, body := ts.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_ready", body["status"])

	res, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `disputedesk_transitions_total{op="open",outcome="ok"} 1`)
	assert.Contains(t, text, `http_requests_total{method="POST",path="POST /v1/issues",status="201"} 1`)
}

func TestRateLimitExceeded(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(base, 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req)
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req)
	assert.Equal(t, http.StatusTooManyRequests, rr2.Code)
	assert.Equal(t, "1", rr2.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/limited", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	assert.Equal(t, http.StatusOK, rr3.Code)
}

func TestRespondErr_ConcurrencyConflictIsRetryable(t *testing.T) {
	a := &API{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rr := httptest.NewRecorder()
	a.respondErr(rr, httptest.NewRequest(http.MethodPost, "/", nil),
		fmt.Errorf("failed to save issue: %w", &issue.ConcurrencyConflictError{IssueID: "ISS-1", ExpectedVersion: 3}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Retryable)
	assert.Equal(t, "concurrency_conflict", body.Kind)
}

func TestRespondErr_HidesInternalErrors(t *testing.T) {
	a := &API{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rr := httptest.NewRecorder()
	a.respondErr(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRequestID_EchoesIncomingHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxutil.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "trace-42", seen)
	assert.Equal(t, "trace-42", rr.Header().Get("X-Request-ID"))
}
