package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/example/disputedesk/internal/ctxutil"
	"github.com/example/disputedesk/internal/ports/primary"
)

func (a *API) openIssue(w http.ResponseWriter, r *http.Request) {
	var req primary.OpenIssueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ActorID = ctxutil.ActorFromContext(r.Context())
	opened, err := a.deps.Issues.OpenIssue(r.Context(), req)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, opened)
}

func (a *API) listIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := primary.IssueFilters{
		CustomerID: q.Get("customer_id"),
		SupplierID: q.Get("supplier_id"),
		Status:     q.Get("status"),
	}
	if v := q.Get("escalated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "escalated must be true or false")
			return
		}
		filters.Escalated = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filters.Limit = n
	}

	issues, err := a.deps.Issues.ListIssues(r.Context(), ctxutil.ActorFromContext(r.Context()), filters)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (a *API) getIssue(w http.ResponseWriter, r *http.Request) {
	detail, err := a.deps.Issues.GetIssue(r.Context(), r.PathValue("id"), ctxutil.ActorFromContext(r.Context()))
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.deps.Messages.ListMessages(r.Context(), r.PathValue("id"), ctxutil.ActorFromContext(r.Context()))
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (a *API) addMessage(w http.ResponseWriter, r *http.Request) {
	var req primary.AddMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.IssueID = r.PathValue("id")
	req.ActorID = ctxutil.ActorFromContext(r.Context())
	msg, err := a.deps.Messages.AddMessage(r.Context(), req)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) offerResolution(w http.ResponseWriter, r *http.Request) {
	var req primary.OfferResolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.IssueID = r.PathValue("id")
	req.ActorID = ctxutil.ActorFromContext(r.Context())
	updated, err := a.deps.Issues.OfferResolution(r.Context(), req)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) listEscalations(w http.ResponseWriter, r *http.Request) {
	queue, err := a.deps.Escalations.ListQueue(r.Context(), ctxutil.ActorFromContext(r.Context()))
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": queue})
}

type issueAction func(context.Context, primary.IssueActionRequest) (*primary.Issue, error)

// action adapts a body-less issue operation to a handler.
func (a *API) action(op issueAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := op(r.Context(), primary.IssueActionRequest{
			IssueID: r.PathValue("id"),
			ActorID: ctxutil.ActorFromContext(r.Context()),
		})
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// decodeBody reads a single JSON object, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, "request body is empty")
		default:
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		}
		return false
	}
	return true
}
