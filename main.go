package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nimdanitro/ubibot-scraper-go/pkg/telemetry"
	"github.com/nimdanitro/ubibot-scraper-go/pkg/ubibot"
)

const scope = "github.com/nimdanitro/ubibot-scraper-go"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	// Setup Otel
	shutdown, err := setupOTelSDK(ctx)
	defer shutdown(context.Background())
	if err != nil {
		panic(err)
	}

	// Initialize logger
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(os.Stdout), zapcore.DebugLevel),
		otelzap.NewCore(scope, otelzap.WithLoggerProvider(global.GetLoggerProvider())),
	)
	logger := zap.New(core)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("starting up", zap.String("version", version), zap.String("commit", commit), zap.String("buildDate", date))

	client, err := ubibot.NewClient(
		ubibot.WithLogger(logger),
		ubibot.WithAccountKey(cfg.AccountKey),
		ubibot.WithBaseURL(cfg.BaseURL),
		ubibot.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		logger.Fatal("cannot create ubibot client", zap.Error(err))
	}

	classifier := telemetry.NewClassifier(telemetry.DefaultRules()).WithAliases(cfg.Aliases)
	engine := telemetry.NewAggregator(client,
		telemetry.WithLogger(logger),
		telemetry.WithClassifier(classifier),
		telemetry.WithConcurrency(cfg.Concurrency),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	if cfg.PollInterval > 0 {
		go poll(ctx, engine, logger, cfg.PollInterval)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("cannot shut down http server", zap.Error(err))
	}
}

// poll records the latest readings as OTel gauges every interval.
func poll(ctx context.Context, engine *telemetry.Aggregator, logger *zap.Logger, interval time.Duration) {
	meter := otel.Meter(
		scope,
		metric.WithInstrumentationAttributes(semconv.OTelScopeName(scope)),
	)
	rec := newGaugeRecorder(meter, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	readSensors := func() {
		logger.Info("fetching latest readings from ubibot")
		snap, err := engine.Latest(ctx)
		if err != nil {
			logger.Error("Failed to fetch data", zap.Error(err))
			return
		}
		rec.record(ctx, snap)
	}

	readSensors()

	for {
		select {
		case <-ticker.C:
			readSensors()
		case <-ctx.Done():
			return
		}
	}
}

var units = map[string]string{
	"temperature":            "Cel",
	"humidity":               "%",
	"soil_temperature":       "Cel",
	"soil_humidity":          "%",
	"soil_ec":                "uS/cm",
	"socket_voltage":         "V",
	"socket_current":         "A",
	"socket_power":           "W",
	"cumulative_electricity": "kW.h",
	"carbon_dioxide":         "ppm",
}

type gaugeRecorder struct {
	meter  metric.Meter
	log    *zap.Logger
	gauges map[string]metric.Float64Gauge
}

func newGaugeRecorder(meter metric.Meter, logger *zap.Logger) *gaugeRecorder {
	return &gaugeRecorder{meter: meter, log: logger, gauges: map[string]metric.Float64Gauge{}}
}

func (g *gaugeRecorder) record(ctx context.Context, snap telemetry.Snapshot) {
	for _, kind := range telemetry.Kinds() {
		reading, ok := snap[kind]
		if !ok {
			continue
		}
		for _, q := range reading {
			if q.Value == nil {
				continue
			}
			gauge, err := g.gauge(q.Name)
			if err != nil {
				g.log.Error("cannot create gauge", zap.String("quantity", q.Name), zap.Error(err))
				continue
			}
			gauge.Record(ctx, *q.Value, metric.WithAttributes(
				attribute.String("device.kind", string(kind)),
			))
		}
	}
}

func (g *gaugeRecorder) gauge(name string) (metric.Float64Gauge, error) {
	if gauge, ok := g.gauges[name]; ok {
		return gauge, nil
	}
	opts := []metric.Float64GaugeOption{
		metric.WithDescription("Latest " + name + " reported by a UbiBot device"),
	}
	if unit, ok := units[name]; ok {
		opts = append(opts, metric.WithUnit(unit))
	}
	gauge, err := g.meter.Float64Gauge("ubibot."+name, opts...)
	if err != nil {
		return nil, err
	}
	g.gauges[name] = gauge
	return gauge, nil
}
