package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/constants"
	"github.com/akeren/waitlist-edge/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const (
	defaultOTLPEndpoint = "http://localhost:4318"
	otlpTracesPath      = "/v1/traces"
)

// TracingConfig describes where spans go and what resource they carry.
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	SignalSpecific bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	WaitlistTable  string
	SampleRatio    float64
}

func NewTracingConfig() *TracingConfig {
	cfg := &TracingConfig{
		Enabled:        utils.IsTracingEnabled(),
		Endpoint:       utils.GetEnvTrimmedOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
		ServiceName:    utils.OTelServiceName(),
		ServiceVersion: utils.GetEnvTrimmedOrDefault("OTEL_SERVICE_VERSION", constants.ServiceVersion),
		Environment:    GetAppEnv(),
		WaitlistTable:  utils.GetEnvTrimmedOrDefault("WAITLIST_TABLE", constants.DefaultWaitlistTable),
		SampleRatio:    1,
	}

	// The traces-specific variable wins and is used verbatim.
	if endpoint := utils.GetEnvTrimmed("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
		cfg.SignalSpecific = true
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if raw := utils.GetEnvTrimmed("OTEL_TRACES_SAMPLER_ARG"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}

	return cfg
}

// ResourceAttributes identify this deployment in the trace backend.
func (cfg *TracingConfig) ResourceAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
		attribute.String("waitlist.table", cfg.WaitlistTable),
	}
}

func SetupTracing(logger *log.Logger) (func(context.Context) error, error) {
	return SetupTracingWithConfig(logger, NewTracingConfig())
}

func SetupTracingWithConfig(logger *log.Logger, cfg *TracingConfig) (func(context.Context) error, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	hostport, urlPath, insecure, err := parseOTLPEndpoint(cfg.Endpoint, cfg.SignalSpecific)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(hostport),
		otlptracehttp.WithURLPath(urlPath),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("setup tracing exporter: %w", err)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(cfg.ResourceAttributes()...))
	if err != nil {
		return nil, fmt.Errorf("setup tracing resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("OpenTelemetry tracing enabled",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"endpoint", hostport+urlPath,
		"sample_ratio", cfg.SampleRatio,
	)

	return tp.Shutdown, nil
}

// parseOTLPEndpoint splits an endpoint into what otlptracehttp expects.
// A generic endpoint gets /v1/traces appended to its path; a signal-specific
// one keeps its path, falling back to /v1/traces only when it has none.
func parseOTLPEndpoint(raw string, signalSpecific bool) (hostport string, urlPath string, insecure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false, fmt.Errorf("empty OTLP endpoint")
	}

	if !strings.Contains(raw, "://") {
		// Bare host:port. otlptracehttp.WithEndpoint takes no path here.
		if strings.ContainsAny(raw, "/?#") {
			return "", "", false, fmt.Errorf("invalid OTLP endpoint %q: a path needs a scheme, e.g. \"http://host:port/path\"", raw)
		}
		return raw, otlpTracesPath, true, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false, fmt.Errorf("unsupported OTLP endpoint scheme %q in %q", u.Scheme, raw)
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	switch {
	case path == "":
		path = otlpTracesPath
	case !signalSpecific:
		path += otlpTracesPath
	}

	return u.Host, path, scheme == "http", nil
}
