package tracing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Enabled, "tracing should be disabled by default")
	require.Equal(t, ExporterFile, cfg.Exporter)
	require.Equal(t, DefaultOTLPEndpoint, cfg.OTLPEndpoint)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, DefaultServiceName, cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false, Exporter: "carrier-pigeon"})
	require.NoError(t, err, "a disabled config is never validated")
	require.False(t, provider.Enabled())

	_, span := Start(context.Background(), provider.Tracer(), SpanPrefixCommit+"inc")
	require.False(t, span.SpanContext().IsValid(), "no-op spans carry no trace id")
	Finish(span, nil)

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterJournalsOperations(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	provider, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile, FilePath: tracePath})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := Start(context.Background(), provider.Tracer(), SpanPrefixCommit+"inc")
	require.True(t, span.SpanContext().IsValid())
	Finish(span, nil)

	require.NoError(t, provider.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 1)
	require.Equal(t, KindCommit, records[0].Kind)
	require.Equal(t, "inc", records[0].Operation)
}

func TestNewProvider_Errors(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile})
	require.ErrorIs(t, err, ErrFilePathRequired)
	require.Nil(t, provider)

	provider, err = NewProvider(Config{Enabled: true, Exporter: "carrier-pigeon"})
	require.ErrorContains(t, err, "unsupported exporter")
	require.Nil(t, provider)
}

func TestNewProvider_NoExporterStillSamples(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: true, Exporter: ExporterNone, SampleRate: 0})
	require.NoError(t, err)

	_, span := Start(context.Background(), provider.Tracer(), SpanPrefixDispatch+"load")
	require.True(t, span.IsRecording())
	Finish(span, nil)

	require.NoError(t, provider.Shutdown(context.Background()))
}
