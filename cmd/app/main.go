package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"strings"
	"syscall"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/catalog"
	"github.com/Harvey-AU/competitor-prices/internal/competitor"
	"github.com/Harvey-AU/competitor-prices/internal/crawler"
	"github.com/Harvey-AU/competitor-prices/internal/db"
	"github.com/Harvey-AU/competitor-prices/internal/jobs"
	"github.com/Harvey-AU/competitor-prices/internal/notifications"
	"github.com/Harvey-AU/competitor-prices/internal/observability"
	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/Harvey-AU/competitor-prices/internal/storage"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the application configuration loaded from environment variables
type Config struct {
	Env                   string // Environment (development/production)
	SentryDSN             string // Sentry DSN for error tracking
	LogLevel              string // Log level (debug, info, warn, error)
	FlightRecorderEnabled bool   // Flight recorder for performance debugging
	ObservabilityEnabled  bool   // Toggle OpenTelemetry + Prometheus exporters
	MetricsAddr           string // Address for Prometheus metrics endpoint (":9464" style)
	OTLPEndpoint          string // OTLP HTTP endpoint for trace export
	OTLPHeaders           string // Comma separated headers for OTLP exporter
	OTLPInsecure          bool   // Disable TLS verification for OTLP exporter

	Competitors     string        // Comma separated competitor ids, empty for all
	WorkerLimit     int           // Concurrent product pages per competitor
	Cooldown        time.Duration // Pause after a non-200 response
	RetryAttempts   int           // Attempts per page for retryable failures
	RetryDelay      time.Duration // Wait between attempts
	RequestTimeout  time.Duration // Per-request timeout
	RateLimit       int           // Requests per second, 0 disables pacing
	CompetitorDelay time.Duration // Pause between competitors
	FailureAlert    float64       // Failure share that raises a Sentry warning

	CatalogSource string // "csv" or "db"
	CatalogPath   string // CSV catalogue export
	OutputDir     string // Local result directory, empty disables

	RedisAddr     string // Redis for the latest-price cache, empty disables
	RedisPassword string
	RedisDB       int

	SupabaseURL   string // Supabase project URL for result uploads
	SupabaseKey   string // Service role key
	ResultsBucket string // Storage bucket for result files

	SlackWebhookURL    string // Incoming webhook for run summaries
	SlackToken         string // Bot token, used with SlackChannel when no webhook is set
	SlackChannel       string
	SlackOnlyOnFailure bool
}

func loadConfig() *Config {
	return &Config{
		Env:                   getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:             os.Getenv("SENTRY_DSN"),
		LogLevel:              getEnvWithDefault("LOG_LEVEL", "info"),
		FlightRecorderEnabled: getEnvWithDefault("FLIGHT_RECORDER_ENABLED", "false") == "true",
		ObservabilityEnabled:  getEnvWithDefault("OBSERVABILITY_ENABLED", "true") == "true",
		MetricsAddr:           getEnvWithDefault("METRICS_ADDR", ":9464"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:           os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:          getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",

		Competitors:     os.Getenv("SCRAPE_COMPETITORS"),
		WorkerLimit:     getEnvInt("SCRAPE_WORKER_LIMIT", 5),
		Cooldown:        getEnvDuration("SCRAPE_COOLDOWN", 10*time.Second),
		RetryAttempts:   getEnvInt("SCRAPE_RETRY_ATTEMPTS", 1),
		RetryDelay:      getEnvDuration("SCRAPE_RETRY_DELAY", 30*time.Second),
		RequestTimeout:  getEnvDuration("SCRAPE_REQUEST_TIMEOUT", 30*time.Second),
		RateLimit:       getEnvInt("SCRAPE_RATE_LIMIT", 0),
		CompetitorDelay: getEnvDuration("SCRAPE_COMPETITOR_DELAY", 3*time.Second),
		FailureAlert:    getEnvFloat("SCRAPE_FAILURE_ALERT_RATIO", 0.5),

		CatalogSource: strings.ToLower(getEnvWithDefault("CATALOG_SOURCE", "csv")),
		CatalogPath:   getEnvWithDefault("CATALOG_PATH", "private_label_matches.csv"),
		OutputDir:     getEnvWithDefault("OUTPUT_DIR", "output"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SupabaseURL:   os.Getenv("SUPABASE_URL"),
		SupabaseKey:   os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		ResultsBucket: getEnvWithDefault("RESULTS_BUCKET", "competitor-prices"),

		SlackWebhookURL:    os.Getenv("SLACK_WEBHOOK_URL"),
		SlackToken:         os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:       os.Getenv("SLACK_CHANNEL"),
		SlackOnlyOnFailure: getEnvWithDefault("SLACK_ONLY_ON_FAILURE", "false") == "true",
	}
}

func main() {
	// Load .env files - .env.local takes priority for development
	godotenv.Load(".env.local", ".env")

	config := loadConfig()
	setupLogging(config)

	if err := run(config); err != nil {
		log.Error().Err(err).Msg("Scrape run finished with errors")
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(config *Config) error {
	if config.FlightRecorderEnabled {
		f, err := os.Create("trace.out")
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start flight recorder: %w", err)
		}
		log.Info().Msg("Flight recorder enabled, writing to trace.out")

		defer func() {
			trace.Stop()
			f.Close()
		}()
	}

	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.SentryDSN,
			Environment: config.Env,
			TracesSampleRate: func() float64 {
				if config.Env == "production" {
					return 0.1
				}
				return 1.0
			}(),
			AttachStacktrace: true,
			Debug:            config.Env == "development",
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			log.Info().Str("environment", config.Env).Msg("Sentry initialised successfully")
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Warn().Msg("Sentry DSN not configured, error tracking disabled")
	}

	if config.ObservabilityEnabled {
		shutdown := startObservability(config)
		defer shutdown()
	}

	competitorIDs, err := competitor.ParseIDs(config.Competitors)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pgDB *db.DB
	if config.CatalogSource == "db" || db.ConfigFromEnv() != nil {
		pgDB, err = db.InitFromEnvWithRetry(ctx)
		if err != nil {
			sentry.CaptureException(err)
			if config.CatalogSource == "db" {
				return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
			}
			log.Warn().Err(err).Msg("PostgreSQL unavailable, results will not be stored in the database")
			pgDB = nil
		} else {
			defer pgDB.Close()
		}
	}

	loader, err := buildLoader(config, pgDB)
	if err != nil {
		return err
	}

	crawlerConfig := crawler.DefaultConfig()
	crawlerConfig.DefaultTimeout = config.RequestTimeout
	crawlerConfig.RateLimit = config.RateLimit
	crawlerConfig.MaxConcurrency = config.WorkerLimit
	cr := crawler.New(crawlerConfig, "competitor-prices")

	extractorConfig := &competitor.ExtractorConfig{Cooldown: config.Cooldown}
	newExtractor := func(site competitor.Site) competitor.Extractor {
		return competitor.NewSiteExtractor(site, cr, extractorConfig)
	}

	pool, err := jobs.NewWorkerPool(config.WorkerLimit, jobs.RetryPolicy{
		MaxAttempts: config.RetryAttempts,
		Delay:       config.RetryDelay,
	})
	if err != nil {
		return err
	}

	managerConfig := jobs.DefaultManagerConfig()
	managerConfig.CompetitorDelay = config.CompetitorDelay
	managerConfig.FailureAlertRatio = config.FailureAlert

	var extra []jobs.ResultPublisher
	if config.RedisAddr != "" {
		rdb, err := storage.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			sentry.CaptureException(err)
			log.Warn().Err(err).Msg("Redis unavailable, latest prices will not be cached")
		} else {
			defer rdb.Close()
			extra = append(extra, storage.NewPriceCache(rdb))
		}
	}

	manager := jobs.NewManager(loader, pool, newExtractor, managerConfig, buildPublishers(config, pgDB, extra...)...)

	slackConfig := notifications.SlackConfig{
		WebhookURL:    config.SlackWebhookURL,
		Token:         config.SlackToken,
		Channel:       config.SlackChannel,
		OnlyOnFailure: config.SlackOnlyOnFailure,
	}
	if slackConfig.Enabled() {
		notifier, err := notifications.NewSlackNotifier(slackConfig)
		if err != nil {
			return err
		}
		manager.AddNotifier(notifier)
	}

	report, err := manager.RunAll(ctx, competitorIDs)
	logReport(report)
	return err
}

// buildLoader picks the catalogue source. Both are wrapped so the whole
// catalogue is read once and every competitor is served from that copy.
func buildLoader(config *Config, pgDB *db.DB) (catalog.Loader, error) {
	switch config.CatalogSource {
	case "db":
		if pgDB == nil {
			return nil, errors.New("CATALOG_SOURCE=db requires DATABASE_URL or POSTGRES_HOST")
		}
		return catalog.NewCachedLoader(pgDB), nil
	case "csv", "":
		return catalog.NewCachedLoader(catalog.NewCSVLoader(config.CatalogPath)), nil
	default:
		return nil, fmt.Errorf("unknown CATALOG_SOURCE %q (want csv or db)", config.CatalogSource)
	}
}

func buildPublishers(config *Config, pgDB *db.DB, extra ...jobs.ResultPublisher) []jobs.ResultPublisher {
	var publishers []jobs.ResultPublisher

	if config.OutputDir != "" {
		publishers = append(publishers, results.NewDirPublisher(config.OutputDir))
	}
	if pgDB != nil {
		publishers = append(publishers, pgDB)
	}
	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		client := storage.New(config.SupabaseURL, config.SupabaseKey)
		publishers = append(publishers, storage.NewResultUploader(client, config.ResultsBucket))
	}
	publishers = append(publishers, extra...)

	names := make([]string, 0, len(publishers))
	for _, p := range publishers {
		names = append(names, p.Name())
	}
	log.Info().Strs("publishers", names).Msg("Result publishers configured")

	return publishers
}

// startObservability initialises telemetry and the metrics server. The returned
// function flushes and stops both.
func startObservability(config *Config) func() {
	obsProviders, err := observability.Init(context.Background(), observability.Config{
		Enabled:        true,
		ServiceName:    "competitor-prices",
		Environment:    config.Env,
		OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
		OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
		OTLPInsecure:   config.OTLPInsecure,
		MetricsAddress: config.MetricsAddr,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise observability providers")
		return func() {}
	}

	var metricsSrv *http.Server
	if obsProviders.MetricsHandler != nil && config.MetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              config.MetricsAddr,
			Handler:           observability.WrapHandler(newMetricsMux(obsProviders.MetricsHandler), obsProviders),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info().Str("addr", config.MetricsAddr).Msg("Metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				sentry.CaptureException(err)
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn().Err(err).Msg("Graceful shutdown of metrics server failed")
			}
		}
		if err := obsProviders.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
		}
	}
}

func newMetricsMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func logReport(report *results.RunReport) {
	if report == nil {
		return
	}

	for _, s := range report.Summaries() {
		event := log.Info()
		if s.Failed > 0 {
			event = log.Warn()
		}
		event.
			Str("run_id", report.RunID).
			Str("competitor", s.Competitor).
			Int("total", s.Total).
			Int("succeeded", s.Succeeded).
			Int("failed", s.Failed).
			Msg("Competitor summary")
	}
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value if not set or invalid
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
		return defaultValue
	}

	return result
}

// getEnvFloat retrieves an environment variable as a float or returns a default value if not set or invalid
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result float64
	if _, err := fmt.Sscanf(value, "%g", &result); err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Float64("default", defaultValue).
			Msg("Invalid number in environment variable, using default")
		return defaultValue
	}

	return result
}

// getEnvDuration accepts Go durations ("10s", "1m30s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	log.Warn().
		Str("key", key).
		Str("value", value).
		Dur("default", defaultValue).
		Msg("Invalid duration in environment variable, using default")
	return defaultValue
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}

		headers[key] = strings.TrimSpace(parts[1])
	}

	return headers
}

// setupLogging configures the logging system
func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", "competitor-prices").
			Logger()
	}
}
