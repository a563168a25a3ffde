package daemon

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cvforge/payinit/internal/api"
	"github.com/cvforge/payinit/internal/config"
)

func TestNewAPIOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := NewAPIOptions()
	require.NoError(t, err)
	require.Equal(t, config.DefaultShutdownTimeout, opts.ShutdownTimeout)
	require.False(t, opts.CORS.Enabled)
	require.Empty(t, opts.CORS.AllowOrigins)
	require.NotContains(t, opts.CORS.AllowMethods, http.MethodPut)
	require.Equal(t, []string{api.HeaderDialogReason}, opts.CORS.ExposedHeaders)
	require.Equal(t, 5*time.Minute, opts.CORS.MaxAge)
	require.False(t, opts.CORS.AllowCredentials)
}

func TestNewAPIOptions_LaterOptionsWin(t *testing.T) {
	t.Parallel()

	opts, err := NewAPIOptions(
		WithShutdownTimeout(time.Second),
		nil,
		WithShutdownTimeout(3*time.Second),
	)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, opts.ShutdownTimeout)
}

func TestWithShutdownTimeout_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		timeout time.Duration
		wantErr string
	}{
		{0, "shutdown timeout must be positive, got 0s"},
		{-time.Second, "shutdown timeout must be positive, got -1s"},
	}

	for _, tc := range tests {
		t.Run(tc.timeout.String(), func(t *testing.T) {
			t.Parallel()

			_, err := NewAPIOptions(WithShutdownTimeout(tc.timeout))
			require.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestWithCORS(t *testing.T) {
	t.Parallel()

	defaults := DefaultCORSConfig()

	tests := []struct {
		name     string
		cors     CORSConfig
		expected CORSConfig
		wantErr  string
	}{
		{
			name: "defaults fill the gaps",
			cors: CORSConfig{AllowOrigins: []string{" https://shop.example.com ", ""}},
			expected: CORSConfig{
				Enabled:        true,
				AllowOrigins:   []string{"https://shop.example.com"},
				AllowMethods:   defaults.AllowMethods,
				AllowedHeaders: defaults.AllowedHeaders,
				ExposedHeaders: defaults.ExposedHeaders,
				MaxAge:         defaults.MaxAge,
			},
		},
		{
			name: "explicit settings win",
			cors: CORSConfig{
				AllowOrigins:     []string{"https://shop.example.com"},
				AllowMethods:     []string{http.MethodGet},
				AllowedHeaders:   []string{"Authorization"},
				ExposedHeaders:   []string{"X-Request-Id"},
				AllowCredentials: true,
				MaxAge:           time.Hour,
			},
			expected: CORSConfig{
				Enabled:          true,
				AllowOrigins:     []string{"https://shop.example.com"},
				AllowMethods:     []string{http.MethodGet},
				AllowedHeaders:   []string{"Authorization"},
				ExposedHeaders:   []string{"X-Request-Id"},
				AllowCredentials: true,
				MaxAge:           time.Hour,
			},
		},
		{
			name:    "no origins",
			cors:    CORSConfig{AllowOrigins: []string{"  "}},
			wantErr: "CORS requires at least one allowed origin",
		},
		{
			name:    "unknown method",
			cors:    CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"FETCH"}},
			wantErr: "invalid CORS method 'FETCH'",
		},
		{
			name:    "negative max age",
			cors:    CORSConfig{AllowOrigins: []string{"*"}, MaxAge: -time.Second},
			wantErr: "CORS max age cannot be negative, got -1s",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts, err := NewAPIOptions(WithCORS(tc.cors))
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, opts.CORS)
		})
	}
}

func TestAPIOptionsFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   config.APISection
		check func(t *testing.T, o APIOptions)
	}{
		{
			name: "empty section keeps defaults",
			check: func(t *testing.T, o APIOptions) {
				defaults, err := NewAPIOptions()
				require.NoError(t, err)
				require.Equal(t, defaults, o)
			},
		},
		{
			name: "disabled cors ignores origins",
			cfg: config.APISection{
				CORS: config.CORSSection{Origins: []string{"https://shop.example.com"}},
			},
			check: func(t *testing.T, o APIOptions) {
				require.False(t, o.CORS.Enabled)
				require.Empty(t, o.CORS.AllowOrigins)
			},
		},
		{
			name: "cors and shutdown",
			cfg: config.APISection{
				ShutdownTimeout: config.Duration(20 * time.Second),
				CORS: config.CORSSection{
					Enable:      true,
					Origins:     []string{"https://shop.example.com"},
					Methods:     []string{http.MethodGet, http.MethodPost},
					Credentials: true,
					MaxAge:      config.Duration(time.Hour),
				},
			},
			check: func(t *testing.T, o APIOptions) {
				require.Equal(t, 20*time.Second, o.ShutdownTimeout)
				require.Equal(t, CORSConfig{
					Enabled:          true,
					AllowOrigins:     []string{"https://shop.example.com"},
					AllowMethods:     []string{http.MethodGet, http.MethodPost},
					AllowedHeaders:   DefaultCORSConfig().AllowedHeaders,
					ExposedHeaders:   []string{api.HeaderDialogReason},
					AllowCredentials: true,
					MaxAge:           time.Hour,
				}, o.CORS)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts, err := NewAPIOptions(APIOptionsFromConfig(tc.cfg)...)
			require.NoError(t, err)
			tc.check(t, opts)
		})
	}
}

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "host and port", addr: "localhost:8090"},
		{name: "ip and port", addr: "127.0.0.1:8090"},
		{name: "all interfaces", addr: ":8090"},
		{name: "named port", addr: "localhost:http"},
		{name: "missing port", addr: "localhost", wantErr: true},
		{name: "empty port", addr: "localhost:", wantErr: true},
		{name: "unknown named port", addr: "localhost:not-a-port", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateAddr(tc.addr)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
