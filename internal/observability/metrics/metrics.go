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
	checkoutSessions    metric.Int64Counter
	webhookEvents       metric.Int64Counter
	ordersMaterialized  metric.Int64Counter
	escrowTransfers     metric.Int64Counter
	featuredActivations metric.Int64Counter
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "despiezo"
	}
	meter := provider.Meter(name)

	checkoutSessions, err := meter.Int64Counter("despiezo_checkout_sessions_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("despiezo_webhook_events_total")
	if err != nil {
		return nil, err
	}
	ordersMaterialized, err := meter.Int64Counter("despiezo_orders_materialized_total")
	if err != nil {
		return nil, err
	}
	escrowTransfers, err := meter.Int64Counter("despiezo_escrow_transfers_total")
	if err != nil {
		return nil, err
	}
	featuredActivations, err := meter.Int64Counter("despiezo_featured_activations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkoutSessions:    checkoutSessions,
		webhookEvents:       webhookEvents,
		ordersMaterialized:  ordersMaterialized,
		escrowTransfers:     escrowTransfers,
		featuredActivations: featuredActivations,
	}, nil
}

// RecordCheckoutSession increments created checkout session counts.
func (m *Metrics) RecordCheckoutSession(ctx context.Context, purchaseType string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("purchase_type", strings.TrimSpace(purchaseType))}
	m.checkoutSessions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookEvent increments inbound webhook event counts.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("event_type", strings.TrimSpace(eventType))}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrderMaterialized increments materialized order counts.
func (m *Metrics) RecordOrderMaterialized(ctx context.Context, orderType string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("order_type", strings.TrimSpace(orderType))}
	m.ordersMaterialized.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEscrowTransfer increments released payout counts.
func (m *Metrics) RecordEscrowTransfer(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("reason", strings.TrimSpace(reason))}
	m.escrowTransfers.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFeaturedActivation increments featured listing activation counts.
func (m *Metrics) RecordFeaturedActivation(ctx context.Context) {
	if m == nil {
		return
	}
	m.featuredActivations.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
