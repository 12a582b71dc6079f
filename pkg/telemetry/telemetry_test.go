package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no service name", func(c *Config) { c.ServiceName = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }},
		{"sampling rate", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"textfile suffix", func(c *Config) { c.Metrics.TextfilePath = "/tmp/pvebulk.txt" }},
		{"no namespace", func(c *Config) { c.Metrics.Namespace = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvebulk.log")

	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	op := logger.WithOperation("power").Zerolog()
	op.Debug().Int("id", 100).Msg("dispatched")
	component := logger.NewComponentLogger("cluster")
	component.Trace().Msg("filtered")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"power"`)
	assert.Contains(t, string(data), `"id":100`)
	assert.NotContains(t, string(data), "filtered")
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFrom(zerolog.New(&buf))

	ctx := logger.WithContext(context.Background())
	zl := FromContext(ctx).Zerolog()
	zl.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	// Falls back to a no-op logger.
	nop := FromContext(context.Background()).Zerolog()
	nop.Info().Msg("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestMetricsRecorders(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)

	m.ObserveItem("power start", engine.ItemSucceeded, time.Second)
	m.ObserveItem("power start", engine.ItemSucceeded, time.Second)
	m.ObserveItem("power start", engine.ItemFailed, time.Second)
	m.ObserveItem("power start", engine.ItemSkipped, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.itemsProcessed.WithLabelValues("power start", string(engine.ItemSucceeded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsProcessed.WithLabelValues("power start", string(engine.ItemSkipped))))

	m.ObserveDispatch("local", 0, time.Second)
	m.ObserveDispatch("remote", 2, time.Second)
	m.ObserveDispatch("remote", -1, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("local", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("remote", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("remote", "error")))

	summary := &engine.Summary{
		Operation: "power start",
		Attempted: 3,
		Succeeded: 2,
		Failed:    1,
		FailedIDs: []int{101},
		StartedAt: time.Unix(1_700_000_000, 0),
		Duration:  3 * time.Second,
	}
	m.ObserveRun(summary)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastFailed.WithLabelValues("power start")))
	assert.Equal(t, 1_700_000_003.0, testutil.ToFloat64(m.lastRun.WithLabelValues("power start")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runsCompleted))
}

func TestMetricsTextfile(t *testing.T) {
	cfg := DefaultConfig().Metrics

	m, err := NewMetrics(cfg)
	require.NoError(t, err)
	require.NoError(t, m.WriteTextfile(), "no path configured")

	cfg.TextfilePath = filepath.Join(t.TempDir(), "pvebulk.prom")
	m, err = NewMetrics(cfg)
	require.NoError(t, err)

	m.ObserveDispatch("local", 0, time.Second)
	require.NoError(t, m.WriteTextfile())

	data, err := os.ReadFile(cfg.TextfilePath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `pvebulk_dispatches_total{result="success",target="local"} 1`))
}

func TestNewTelemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = filepath.Join(t.TempDir(), "pvebulk.log")
	cfg.Metrics.TextfilePath = filepath.Join(t.TempDir(), "pvebulk.prom")

	tel, err := NewTelemetry(cfg)
	require.NoError(t, err)

	ctx := tel.WithContext(context.Background())
	assert.Same(t, tel, FromTelemetryContext(ctx))
	assert.Nil(t, FromTelemetryContext(context.Background()))

	_, span := tel.Tracer.Tracer().Start(ctx, "noop")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	_, err = os.Stat(cfg.Metrics.TextfilePath)
	assert.NoError(t, err)
}

func TestNewTracerStdout(t *testing.T) {
	cfg := DefaultConfig().Tracing
	cfg.Exporter = "stdout"

	var spans bytes.Buffer
	tracer, err := NewTracer(cfg, "pvebulk", "test", WithSpanWriter(&spans))
	require.NoError(t, err)

	ctx, span := tracer.Tracer().Start(context.Background(), "bulk.power")
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	span.End()

	require.NoError(t, tracer.Shutdown(context.Background()))
	assert.Contains(t, spans.String(), `"Name": "bulk.power"`)
}

func TestNewTracerDisabled(t *testing.T) {
	tracer, err := NewTracer(DefaultConfig().Tracing, "pvebulk", "test")
	require.NoError(t, err)
	assert.NotNil(t, tracer.Tracer())
	assert.NoError(t, tracer.Shutdown(context.Background()))
}
