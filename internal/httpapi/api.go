// Package httpapi exposes the issue workflow over JSON/HTTP and serves the
// operational endpoints (/healthz, /readyz, /metrics).
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/disputedesk/internal/adapters/identity"
	"github.com/example/disputedesk/internal/obs"
	"github.com/example/disputedesk/internal/ports/primary"
)

const serviceName = "disputedesk"

// ReadyChecker reports whether the backing store is reachable.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Parse(token string) (*identity.Claims, error)
}

// Deps wires the API. Tokens may be nil, in which case the caller's identity
// is taken from the X-Actor-ID header (development only). Metrics may be nil.
type Deps struct {
	Issues      primary.IssueService
	Messages    primary.MessageService
	Escalations primary.EscalationService
	Ready       ReadyChecker
	Tokens      TokenVerifier
	Metrics     *obs.Metrics
	Logger      *slog.Logger
	Version     string

	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	deps Deps
	mux  *http.ServeMux
	log  *slog.Logger
}

// New builds the API and registers its routes.
func New(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RateBurst <= 0 {
		d.RateBurst = 20
	}
	if d.RatePerSecond <= 0 {
		d.RatePerSecond = 10
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	a := &API{deps: d, mux: http.NewServeMux(), log: d.Logger}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	if d.Metrics != nil {
		a.mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	a.mux.HandleFunc("POST /v1/issues", a.openIssue)
	a.mux.HandleFunc("GET /v1/issues", a.listIssues)
	a.mux.HandleFunc("GET /v1/issues/{id}", a.getIssue)
	a.mux.HandleFunc("GET /v1/issues/{id}/messages", a.listMessages)
	a.mux.HandleFunc("POST /v1/issues/{id}/messages", a.addMessage)
	a.mux.HandleFunc("POST /v1/issues/{id}/review", a.action(d.Issues.BeginReview))
	a.mux.HandleFunc("POST /v1/issues/{id}/offer", a.offerResolution)
	a.mux.HandleFunc("POST /v1/issues/{id}/accept", a.action(d.Issues.AcceptResolution))
	a.mux.HandleFunc("POST /v1/issues/{id}/decline", a.action(d.Issues.DeclineResolution))
	a.mux.HandleFunc("POST /v1/issues/{id}/escalate", a.action(d.Issues.Escalate))
	a.mux.HandleFunc("POST /v1/issues/{id}/close", a.action(d.Issues.ForceClose))
	a.mux.HandleFunc("POST /v1/issues/{id}/claim", a.action(d.Escalations.Claim))
	a.mux.HandleFunc("GET /v1/escalations", a.listEscalations)

	return a
}

// Handler returns the fully wrapped handler for the server.
// Instrument sits directly on the mux so it can read the matched route pattern.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.deps.Metrics != nil {
		h = a.deps.Metrics.Instrument(h)
	}
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.deps.MaxBodyBytes)
	h = RateLimit(h, a.deps.RateBurst, a.deps.RatePerSecond)
	h = Logging(a.log, h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Ready.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
