// Package host describes the browsing context a vendor payment SDK is loaded into.
// Implementations drive a real page (see rodhost) or an in-memory fake (see hosttest).
package host

import (
	"context"
	"errors"
)

// ErrScriptLoadFailed is returned by Page.InjectScript when the script element fired its error event.
var ErrScriptLoadFailed = errors.New("script element reported a load error")

// Script identifies a vendor script element.
type Script struct {
	// URL is the script source.
	URL string

	// Attr is the identifying attribute set on every vendor script element.
	Attr string

	// Value is the attribute value, it identifies the loader generation that injected the element.
	Value string
}

// Page is the subset of a browser page required to load and drive a vendor SDK.
// Implementations must be safe for concurrent use.
type Page interface {
	// Online reports the platform online status.
	Online(ctx context.Context) (bool, error)

	// InjectScript appends a script element and blocks until its load event (nil), its error event
	// (ErrScriptLoadFailed) or until ctx is done.
	InjectScript(ctx context.Context, s Script) error

	// RemoveScripts removes script elements carrying attr, restricted to value when value is not empty.
	// It returns the number of removed elements.
	RemoveScripts(ctx context.Context, attr string, value string) (int, error)

	// CountScripts returns the number of script elements carrying attr.
	CountScripts(ctx context.Context, attr string) (int, error)

	// GlobalDefined reports whether the named global object exists.
	GlobalDefined(ctx context.Context, name string) (bool, error)

	// ResetGlobal discards the named global object.
	ResetGlobal(ctx context.Context, name string) error

	// Callable reports whether global[method] exists and is a function.
	Callable(ctx context.Context, global string, method string) (bool, error)

	// Invoke calls global[method](args...) and waits for any returned promise.
	// An exception thrown by the call is returned as an error.
	Invoke(ctx context.Context, global string, method string, args ...any) error
}

// Prober performs a best-effort reachability check of a script URL.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// ProberFunc adapts an ordinary function to a Prober.
type ProberFunc func(ctx context.Context, url string) error

// Probe calls f(ctx, url).
func (f ProberFunc) Probe(ctx context.Context, url string) error {
	return f(ctx, url)
}
