package rodhost

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestNewBrowser_NilLogger(t *testing.T) {
	t.Parallel()

	_, err := NewBrowser(context.Background(), nil, Config{})
	require.EqualError(t, err, "logger cannot be nil")
}

// newLocalBrowser launches a headless browser, skipping the test when none is installed.
func newLocalBrowser(t *testing.T) *Browser {
	t.Helper()

	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no local Chromium found")
	}

	b, err := NewBrowser(context.Background(), hclog.NewNullLogger(), Config{
		Bin:               bin,
		Headless:          true,
		Flags:             []string{"--no-sandbox"},
		NavigationTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func browserContexts(t *testing.T, b *Browser) int {
	t.Helper()

	res, err := proto.TargetGetBrowserContexts{}.Call(b.browser)
	require.NoError(t, err)
	return len(res.BrowserContextIDs)
}

func TestPage_CloseDisposesBrowserContext(t *testing.T) {
	t.Parallel()

	b := newLocalBrowser(t)
	before := browserContexts(t, b)

	pages := make([]*Page, 0, 3)
	for range 3 {
		p, err := b.NewPage(context.Background())
		require.NoError(t, err)
		pages = append(pages, p)
	}
	require.Equal(t, before+3, browserContexts(t, b))

	for _, p := range pages {
		require.NoError(t, p.Close())
	}
	require.Equal(t, before, browserContexts(t, b))
}
