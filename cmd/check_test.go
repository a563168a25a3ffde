package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	cmdopts "github.com/cvforge/payinit/internal/cmd/options"
	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/printer"
)

func runCheck(t *testing.T, loader *mockConfigLoader, browser *fakeBrowser, args ...string) (string, error) {
	t.Helper()

	c, err := NewCheckCmd(
		testBaseCmd(),
		cmdopts.WithConfigLoader(loader),
		cmdopts.WithBrowserLauncher(browser.launch),
	)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetErr(&bytes.Buffer{})
	c.SetArgs(args)

	err = c.Execute()
	return out.String(), err
}

func TestCheckCmd_Ready(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{setup: loadingURL(testURLB)}
	out, err := runCheck(t, &mockConfigLoader{cfg: testConfig()}, browser)
	require.NoError(t, err)

	require.Contains(t, out, "Payment dialog transitions:")
	for _, state := range []domain.State{
		domain.StateLoadingScript,
		domain.StateFetchingConfig,
		domain.StateInitializingSDK,
		domain.StateReady,
	} {
		require.Contains(t, out, string(state))
	}
	require.Contains(t, out, "✅ Payment SDK ready after 4 transition(s)")

	launched, closed, pages := browser.state()
	require.True(t, launched)
	require.True(t, closed)
	require.Len(t, pages, 1)
	require.True(t, pages[0].Closed())
	require.Equal(t, []string{testURLA, testURLB}, pages[0].Injections())
}

func TestCheckCmd_OfflineJSON(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{setup: loadingURL(testURLA)}
	out, err := runCheck(t, &mockConfigLoader{cfg: testConfig()}, browser, "--offline", "--format", "json")
	require.EqualError(t, err, "payment dialog ended in error state: NoConnectivity")

	var payload struct {
		Results []printer.Transition `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.NotEmpty(t, payload.Results)

	last := payload.Results[len(payload.Results)-1]
	require.Equal(t, domain.StateError, last.State)
	require.Equal(t, domain.ReasonNoConnectivity, last.Reason)
	require.NotEmpty(t, last.Message)

	_, closed, pages := browser.state()
	require.True(t, closed)
	require.Len(t, pages, 1)
	require.Empty(t, pages[0].Injections())
}

func TestCheckCmd_AllSourcesFail(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{}
	out, err := runCheck(t, &mockConfigLoader{cfg: testConfig()}, browser, "--format", "yaml")
	require.EqualError(t, err, "payment dialog ended in error state: ServiceUnavailable")
	require.Contains(t, out, "reason: ServiceUnavailable")

	_, _, pages := browser.state()
	require.Len(t, pages, 1)
	require.Equal(t, []string{testURLA, testURLB}, pages[0].Injections())
}

func TestCheckCmd_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		loader  *mockConfigLoader
		browser *fakeBrowser
		args    []string
		wantErr string
	}{
		{
			name:    "config load fails",
			loader:  &mockConfigLoader{err: errors.New("config file cannot be found")},
			browser: &fakeBrowser{},
			wantErr: "config file cannot be found",
		},
		{
			name:    "browser launch fails",
			loader:  &mockConfigLoader{cfg: testConfig()},
			browser: &fakeBrowser{launchErr: errors.New("chromium not found")},
			wantErr: "error launching browser: chromium not found",
		},
		{
			name:    "invalid format",
			loader:  &mockConfigLoader{cfg: testConfig()},
			browser: &fakeBrowser{},
			args:    []string{"--format", "xml"},
			wantErr: "invalid format 'xml'",
		},
		{
			name:    "non positive timeout",
			loader:  &mockConfigLoader{cfg: testConfig()},
			browser: &fakeBrowser{},
			args:    []string{"--timeout", "0s"},
			wantErr: "timeout must be positive, got 0s",
		},
		{
			name:    "unexpected argument",
			loader:  &mockConfigLoader{cfg: testConfig()},
			browser: &fakeBrowser{},
			args:    []string{"now"},
			wantErr: `unknown command "now" for "check"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := runCheck(t, tc.loader, tc.browser, tc.args...)
			require.ErrorContains(t, err, tc.wantErr)

			_, _, pages := tc.browser.state()
			require.Empty(t, pages)
		})
	}
}
