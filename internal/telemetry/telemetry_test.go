package telemetry

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Disabled(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(context.Background(), hclog.NewNullLogger(), Config{})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "op")
	require.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_NilLogger(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(context.Background(), nil, Config{})
	require.Nil(t, p)
	require.EqualError(t, err, "logger cannot be nil")
}

func TestNewProvider_EnabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(context.Background(), hclog.NewNullLogger(), Config{Enabled: true})
	require.Nil(t, p)
	require.EqualError(t, err, "telemetry endpoint cannot be empty")
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		insecure bool
		wantLen  int
		wantErr  string
	}{
		{name: "host and port secure", raw: "collector:4318", wantLen: 2},
		{name: "host and port insecure", raw: "collector:4318", insecure: true, wantLen: 3},
		{name: "http url is insecure", raw: "http://collector:4318/v1/traces", wantLen: 3},
		{name: "https url", raw: "https://collector.example.com", wantLen: 2},
		{name: "blank", raw: "  ", wantErr: "telemetry endpoint cannot be empty"},
		{name: "url without host", raw: "http://", wantErr: "invalid telemetry endpoint 'http://'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts, err := exporterOptions(tc.raw, tc.insecure)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Len(t, opts, tc.wantLen)
		})
	}
}
