package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestNewDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		logger   hclog.Logger
		addr     string
		sessions SessionManager
		wantErr  string
	}{
		{
			name:     "valid",
			logger:   hclog.NewNullLogger(),
			addr:     "0.0.0.0:8090",
			sessions: newFakeSessions(),
		},
		{
			name:     "nil logger",
			addr:     "0.0.0.0:8090",
			sessions: newFakeSessions(),
			wantErr:  "logger cannot be nil",
		},
		{
			name:     "bad address",
			logger:   hclog.NewNullLogger(),
			addr:     "8090",
			sessions: newFakeSessions(),
			wantErr:  "invalid API address '8090'",
		},
		{
			name:    "nil sessions",
			logger:  hclog.NewNullLogger(),
			addr:    ":8090",
			wantErr: "session manager cannot be nil",
		},
		{
			name:     "typed nil sessions",
			logger:   hclog.NewNullLogger(),
			addr:     ":8090",
			sessions: (*fakeSessions)(nil),
			wantErr:  "session manager cannot be nil",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps, err := NewDependencies(tc.logger, tc.addr, tc.sessions)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.addr, deps.APIAddr)
		})
	}
}

func TestNewDaemon(t *testing.T) {
	t.Parallel()

	deps, err := NewDependencies(hclog.NewNullLogger(), ":8090", newFakeSessions())
	require.NoError(t, err)

	d, err := NewDaemon(deps, WithReapInterval(time.Second))
	require.NoError(t, err)
	require.Equal(t, time.Second, d.reapInterval)
	require.Equal(t, DefaultSessionShutdownTimeout(), d.sessionShutdownTimeout)

	_, err = NewDaemon(deps, WithReapInterval(-time.Second))
	require.EqualError(t, err, "invalid daemon options: reap interval must be positive, got -1s")

	_, err = NewDaemon(deps, WithAPIOptions(WithShutdownTimeout(0)))
	require.ErrorContains(t, err, "failed to create daemon API server")

	_, err = NewDaemon(Dependencies{})
	require.ErrorContains(t, err, "invalid daemon dependencies")
}

func TestDaemon_ReapLoop(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessions()
	deps, err := NewDependencies(hclog.NewNullLogger(), ":8090", sessions)
	require.NoError(t, err)

	d, err := NewDaemon(deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.reapLoop(ctx, time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		reaps, _ := sessions.counts()
		return reaps >= 3
	}, 5*time.Second, time.Millisecond)

	cancel()
	<-done
}

// TestDaemon_StartAndManage replaces the global huma error constructor and must not run in parallel.
func TestDaemon_StartAndManage(t *testing.T) {
	sessions := newFakeSessions()
	deps, err := NewDependencies(hclog.NewNullLogger(), "127.0.0.1:0", sessions)
	require.NoError(t, err)

	d, err := NewDaemon(deps, WithReapInterval(time.Millisecond), WithSessionShutdownTimeout(time.Second))
	require.NoError(t, err)

	_, err = sessions.Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.StartAndManage(ctx) }()

	require.Eventually(t, func() bool {
		reaps, _ := sessions.counts()
		return reaps > 0
	}, 5*time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	_, closeAll := sessions.counts()
	require.Equal(t, 1, closeAll)
	require.Empty(t, sessions.List())
}
