// Package metrics configures the OTel meter provider and the service's
// instruments.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	events   metric.Int64Counter
	commands metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "groupsync"
	}
	meter := provider.Meter(name)

	events, err := meter.Int64Counter("sync_events_total",
		metric.WithDescription("Commerce events processed, by type and outcome."),
	)
	if err != nil {
		return nil, err
	}

	commands, err := meter.Int64Counter("sync_commands_total",
		metric.WithDescription("Membership commands produced, by outcome."),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{events: events, commands: commands}, nil
}

// RecordEvent counts one processed event. Outcome is one of ok, duplicate,
// invalid, error.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}

// RecordCommands counts command outcomes for one event.
func (m *Metrics) RecordCommands(ctx context.Context, applied, skipped, failed int) {
	if m == nil || m.commands == nil {
		return
	}
	add := func(n int, outcome string) {
		if n == 0 {
			return
		}
		m.commands.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	add(applied, "applied")
	add(skipped, "skipped")
	add(failed, "failed")
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch protocol {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp metrics protocol %q", protocol)
	}
}
