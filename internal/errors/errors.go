// Package errors defines domain-level errors used throughout the application.
// These errors represent payment initialization failures and API misuse, they are converted to
// a dialog error reason inside the orchestrator and mapped to HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints
// and whether it represents a new dialog error reason.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
// 3. Update ReasonOf when the error is a dialog failure reason
package errors

import (
	"context"
	"errors"

	"github.com/cvforge/payinit/internal/domain"
)

var (
	// ErrNoConnectivity indicates that the host reported being offline before any network I/O was attempted.
	// It is never retried automatically, waiting for connectivity is the user's responsibility.
	ErrNoConnectivity = errors.New("no network connectivity")

	// ErrServiceUnavailable indicates that the probe or the script fetch failed for a vendor script URL.
	ErrServiceUnavailable = errors.New("payment service unavailable")

	// ErrSDKNotRegistered indicates that the vendor script loaded but its global object never appeared.
	// This is usually caused by content blockers or a CSP rejecting the script's self-registration.
	ErrSDKNotRegistered = errors.New("payment sdk did not register")

	// ErrRetriesExhausted wraps the last concrete loading failure once every retry cycle has been used.
	ErrRetriesExhausted = errors.New("script load retries exhausted")

	// ErrConfigServiceUnreachable indicates a transport-level failure talking to the configuration service.
	// It may be transient.
	ErrConfigServiceUnreachable = errors.New("configuration service unreachable")

	// ErrConfigMissing indicates that the configuration service answered but the merchant key was absent or empty.
	// This is a deployment defect and is not worth retrying blindly.
	ErrConfigMissing = errors.New("merchant configuration missing")

	// ErrIncompleteInitialization indicates that the vendor init call did not produce a usable SDK instance.
	ErrIncompleteInitialization = errors.New("payment sdk initialization incomplete")

	// ErrHandleInvalidated indicates use of an SDK handle after the dialog left the ready state.
	ErrHandleInvalidated = errors.New("payment sdk handle invalidated")

	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrSessionNotFound indicates that the requested payment dialog does not exist (or was already closed).
	// Recommended to map to HTTP 404 Not Found.
	ErrSessionNotFound = errors.New("payment dialog not found")

	// ErrInvalidTransition indicates an event that is not accepted in the dialog's current state,
	// for example retrying a dialog that is not in the error state.
	// Recommended to map to HTTP 409 Conflict.
	ErrInvalidTransition = errors.New("invalid dialog state transition")

	// ErrSessionLimitReached indicates that the maximum number of concurrently open payment dialogs was reached.
	// Recommended to map to HTTP 429 Too Many Requests.
	ErrSessionLimitReached = errors.New("payment dialog limit reached")

	// ErrNotReady indicates that a payment was requested before the SDK reached the ready state.
	// Recommended to map to HTTP 409 Conflict.
	ErrNotReady = errors.New("payment dialog not ready")

	// ErrPaymentStartFailed indicates that the vendor rejected the start payment call.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrPaymentStartFailed = errors.New("payment start failed")
)

// ReasonOf classifies err as a dialog error reason.
// The most specific reason wins, so a RetriesExhausted error wrapping SdkNotRegistered reports SdkNotRegistered.
// Errors without a reason of their own report ServiceUnavailable.
func ReasonOf(err error) domain.Reason {
	switch {
	case err == nil:
		return domain.ReasonNone
	case errors.Is(err, ErrNoConnectivity):
		return domain.ReasonNoConnectivity
	case errors.Is(err, ErrSDKNotRegistered):
		return domain.ReasonSDKNotRegistered
	case errors.Is(err, ErrServiceUnavailable):
		return domain.ReasonServiceUnavailable
	case errors.Is(err, ErrConfigMissing):
		return domain.ReasonConfigMissing
	case errors.Is(err, ErrConfigServiceUnreachable):
		return domain.ReasonConfigServiceUnreachable
	case errors.Is(err, ErrIncompleteInitialization):
		return domain.ReasonIncompleteInitialization
	case errors.Is(err, ErrRetriesExhausted):
		return domain.ReasonRetriesExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ReasonServiceUnavailable
	default:
		return domain.ReasonServiceUnavailable
	}
}
