package license

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records license manager outcomes through the otel metric API.
// No exporter is wired here; the host process installs an SDK if it wants
// the numbers. All methods are nil-receiver safe.
type Metrics struct {
	reads            metric.Int64Counter
	writes           metric.Int64Counter
	downgrades       metric.Int64Counter
	checksumFailures metric.Int64Counter
}

// NewMetrics registers the license counters on the global meter provider.
func NewMetrics() *Metrics {
	meter := otel.Meter("esmcsdk/internal/license")
	m := &Metrics{}

	var err error
	if m.reads, err = meter.Int64Counter("license.reads",
		metric.WithDescription("License file reads, by outcome")); err != nil {
		slog.Warn("failed to register license.reads counter", slog.String("error", err.Error()))
	}
	if m.writes, err = meter.Int64Counter("license.writes",
		metric.WithDescription("License file writes, by outcome")); err != nil {
		slog.Warn("failed to register license.writes counter", slog.String("error", err.Error()))
	}
	if m.downgrades, err = meter.Int64Counter("license.downgrades",
		metric.WithDescription("Read-path downgrades of expired subscriptions")); err != nil {
		slog.Warn("failed to register license.downgrades counter", slog.String("error", err.Error()))
	}
	if m.checksumFailures, err = meter.Int64Counter("license.checksum_failures",
		metric.WithDescription("Remote checksum validations that did not pass")); err != nil {
		slog.Warn("failed to register license.checksum_failures counter", slog.String("error", err.Error()))
	}
	return m
}

func (m *Metrics) recordRead(ctx context.Context, outcome string) {
	if m == nil || m.reads == nil {
		return
	}
	m.reads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordWrite(ctx context.Context, success bool) {
	if m == nil || m.writes == nil {
		return
	}
	m.writes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *Metrics) recordDowngrade(ctx context.Context) {
	if m == nil || m.downgrades == nil {
		return
	}
	m.downgrades.Add(ctx, 1)
}

func (m *Metrics) recordChecksumFailure(ctx context.Context, reason string) {
	if m == nil || m.checksumFailures == nil {
		return
	}
	m.checksumFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
