// Package observability is a small sink for domain metrics. The lifecycle
// service only emits into it and never depends on its contents, so tests
// can swap in the no-op implementation.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Sink receives domain events worth counting.
type Sink interface {
	ExecutionStarted(ctx context.Context)
	ExecutionCompleted(ctx context.Context)
	ExecutionFailed(ctx context.Context)
	AttachmentUploaded(ctx context.Context, sizeBytes int64)
}

// Noop discards every event.
type Noop struct{}

func (Noop) ExecutionStarted(context.Context)          {}
func (Noop) ExecutionCompleted(context.Context)        {}
func (Noop) ExecutionFailed(context.Context)           {}
func (Noop) AttachmentUploaded(context.Context, int64) {}

// OtelSink reports counters through the global OpenTelemetry meter
// provider.
type OtelSink struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	uploads   metric.Int64Counter
	uploadB   metric.Int64Counter
}

// NewOtelSink registers the instruments on the global meter provider.
func NewOtelSink() (*OtelSink, error) {
	meter := otel.Meter("worktrail/backend")

	started, err := meter.Int64Counter("worktrail.executions.started")
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter("worktrail.executions.completed")
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("worktrail.executions.failed")
	if err != nil {
		return nil, err
	}
	uploads, err := meter.Int64Counter("worktrail.attachments.uploaded")
	if err != nil {
		return nil, err
	}
	uploadB, err := meter.Int64Counter("worktrail.attachments.uploaded_bytes")
	if err != nil {
		return nil, err
	}

	return &OtelSink{
		started:   started,
		completed: completed,
		failed:    failed,
		uploads:   uploads,
		uploadB:   uploadB,
	}, nil
}

func (s *OtelSink) ExecutionStarted(ctx context.Context)   { s.started.Add(ctx, 1) }
func (s *OtelSink) ExecutionCompleted(ctx context.Context) { s.completed.Add(ctx, 1) }
func (s *OtelSink) ExecutionFailed(ctx context.Context)    { s.failed.Add(ctx, 1) }

func (s *OtelSink) AttachmentUploaded(ctx context.Context, sizeBytes int64) {
	s.uploads.Add(ctx, 1)
	s.uploadB.Add(ctx, sizeBytes)
}
