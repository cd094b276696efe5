package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "competitor-prices/scraper"

// Config controls observability initialisation.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	MetricsAddress string
}

// Providers exposes configured telemetry providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce sync.Once

	scrapeTracer trace.Tracer

	itemDuration metric.Float64Histogram
	itemTotal    metric.Int64Counter
	runTotal     metric.Int64Counter
)

// Init configures tracing and metrics exporters. When cfg.Enabled is false the function is a no-op.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "competitor-prices"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{
			endpointOption(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			// Scraping still runs without traces
			fmt.Printf("WARN: Failed to create OTLP trace exporter (traces disabled): %v\n", err)
		} else {
			spanExporter = exp
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		scrapeTracer = tracerProvider.Tracer(instrumentationName)
		_ = initScrapeInstruments(meterProvider)
	})

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var allErr error
		if err := meterProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("trace provider shutdown: %w", err))
		}
		return allErr
	}

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Shutdown:       shutdown,
		Config:         cfg,
	}, nil
}

func endpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

// WrapTransport instruments outbound requests. The global tracer provider is used,
// so this is safe to call before Init or when observability is disabled.
func WrapTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Host)
		}),
	)
}

// WrapHandler applies OpenTelemetry instrumentation to an http.Handler when the providers are active.
func WrapHandler(handler http.Handler, prov *Providers) http.Handler {
	if prov == nil || prov.TracerProvider == nil {
		return handler
	}

	return otelhttp.NewHandler(handler, "http.server",
		otelhttp.WithTracerProvider(prov.TracerProvider),
		otelhttp.WithPropagators(prov.Propagator),
		otelhttp.WithMeterProvider(prov.MeterProvider),
	)
}

func initScrapeInstruments(meterProvider *sdkmetric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter(instrumentationName)

	var err error
	itemDuration, err = meter.Float64Histogram(
		"scraper.item.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to fetch and extract one product page"),
	)
	if err != nil {
		return err
	}

	itemTotal, err = meter.Int64Counter(
		"scraper.item.total",
		metric.WithDescription("Counts product page outcomes by competitor and failure kind"),
	)
	if err != nil {
		return err
	}

	runTotal, err = meter.Int64Counter(
		"scraper.run.total",
		metric.WithDescription("Counts completed competitor runs"),
	)
	return err
}

// ItemSpanInfo describes the attributes used when starting an item span.
type ItemSpanInfo struct {
	RunID      string
	Competitor string
	SKU        string
	URL        string
	Attempt    int
}

// ItemMetrics describes a processed item for metric recording.
type ItemMetrics struct {
	Competitor string
	Status     string
	Kind       string
	Duration   time.Duration
}

// StartItemSpan starts a span covering one fetch and extraction attempt.
func StartItemSpan(ctx context.Context, info ItemSpanInfo) (context.Context, trace.Span) {
	t := scrapeTracer
	if t == nil {
		t = otel.Tracer(instrumentationName)
	}

	return t.Start(ctx, "scraper.process_item", trace.WithAttributes(
		attribute.String("run.id", info.RunID),
		attribute.String("competitor", info.Competitor),
		attribute.String("item.sku", info.SKU),
		attribute.String("item.url", info.URL),
		attribute.Int("item.attempt", info.Attempt),
	))
}

// RecordItem emits item metrics when instrumentation is initialised.
func RecordItem(ctx context.Context, m ItemMetrics) {
	attrs := metric.WithAttributes(
		attribute.String("competitor", m.Competitor),
		attribute.String("item.status", m.Status),
		attribute.String("item.failure_kind", m.Kind),
	)

	if itemDuration != nil {
		itemDuration.Record(ctx, float64(m.Duration.Milliseconds()), attrs)
	}
	if itemTotal != nil {
		itemTotal.Add(ctx, 1, attrs)
	}
}

// RecordRun counts a finished competitor run.
func RecordRun(ctx context.Context, competitor string, failed bool) {
	if runTotal == nil {
		return
	}
	runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("competitor", competitor),
		attribute.Bool("run.failed", failed),
	))
}
