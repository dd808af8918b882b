package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/disputedesk/internal/ports/secondary"
)

const storageScopeName = "github.com/example/disputedesk/storage"

// InstrumentedRepository wraps secondary.IssueRepository with OTel tracing and metrics.
// Every method gets a span and is counted in disputedesk.storage.* metrics.
type InstrumentedRepository struct {
	inner  secondary.IssueRepository
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapRepository returns r decorated with OTel instrumentation.
// When telemetry is disabled, r is returned as-is.
func WrapRepository(r secondary.IssueRepository) secondary.IssueRepository {
	if !Enabled() {
		return r
	}
	return newInstrumentedRepository(r, Tracer(storageScopeName), Meter(storageScopeName))
}

func newInstrumentedRepository(r secondary.IssueRepository, tracer trace.Tracer, m metric.Meter) *InstrumentedRepository {
	ops, _ := m.Int64Counter("disputedesk.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("disputedesk.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("disputedesk.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	return &InstrumentedRepository{inner: r, tracer: tracer, ops: ops, dur: dur, errs: errs}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedRepository) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedRepository) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func issueAttr(id string) attribute.KeyValue { return attribute.String("disputedesk.issue.id", id) }

func (s *InstrumentedRepository) CreateIssue(ctx context.Context, rec *secondary.IssueRecord) error {
	attrs := []attribute.KeyValue{issueAttr(rec.ID), attribute.String("disputedesk.issue.type", rec.IssueType)}
	ctx, span, t := s.op(ctx, "CreateIssue", attrs...)
	err := s.inner.CreateIssue(ctx, rec)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRepository) GetIssue(ctx context.Context, id string) (*secondary.IssueRecord, error) {
	attrs := []attribute.KeyValue{issueAttr(id)}
	ctx, span, t := s.op(ctx, "GetIssue", attrs...)
	v, err := s.inner.GetIssue(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedRepository) ListIssues(ctx context.Context, filters secondary.IssueFilters) ([]*secondary.IssueRecord, error) {
	ctx, span, t := s.op(ctx, "ListIssues")
	v, err := s.inner.ListIssues(ctx, filters)
	span.SetAttributes(attribute.Int("disputedesk.issue.count", len(v)))
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedRepository) SaveIssue(ctx context.Context, rec *secondary.IssueRecord, expectedVersion int64, messages []*secondary.MessageRecord) error {
	attrs := []attribute.KeyValue{
		issueAttr(rec.ID),
		attribute.String("disputedesk.issue.status", rec.Status),
		attribute.Int64("disputedesk.issue.expected_version", expectedVersion),
	}
	ctx, span, t := s.op(ctx, "SaveIssue", attrs...)
	err := s.inner.SaveIssue(ctx, rec, expectedVersion, messages)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRepository) ClaimEscalation(ctx context.Context, issueID, adminID string, at time.Time, message *secondary.MessageRecord) error {
	attrs := []attribute.KeyValue{issueAttr(issueID), attribute.String("disputedesk.admin.id", adminID)}
	ctx, span, t := s.op(ctx, "ClaimEscalation", attrs...)
	err := s.inner.ClaimEscalation(ctx, issueID, adminID, at, message)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRepository) ListEscalationQueue(ctx context.Context, limit int) ([]*secondary.IssueRecord, error) {
	ctx, span, t := s.op(ctx, "ListEscalationQueue")
	v, err := s.inner.ListEscalationQueue(ctx, limit)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedRepository) AppendMessage(ctx context.Context, message *secondary.MessageRecord) error {
	attrs := []attribute.KeyValue{issueAttr(message.IssueID)}
	ctx, span, t := s.op(ctx, "AppendMessage", attrs...)
	err := s.inner.AppendMessage(ctx, message)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedRepository) ListMessages(ctx context.Context, issueID string) ([]*secondary.MessageRecord, error) {
	attrs := []attribute.KeyValue{issueAttr(issueID)}
	ctx, span, t := s.op(ctx, "ListMessages", attrs...)
	v, err := s.inner.ListMessages(ctx, issueID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedRepository) Ping(ctx context.Context) error {
	ctx, span, t := s.op(ctx, "Ping")
	err := s.inner.Ping(ctx)
	s.done(ctx, span, t, err)
	return err
}

// Ensure InstrumentedRepository implements the interface
var _ secondary.IssueRepository = (*InstrumentedRepository)(nil)
