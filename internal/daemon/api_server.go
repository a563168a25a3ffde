package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/api"
	"github.com/cvforge/payinit/internal/cmd"
	"github.com/cvforge/payinit/internal/contracts"
	"github.com/cvforge/payinit/internal/errors"
)

// APIServer manages the HTTP API for the daemon.
// NewAPIServer should be used to create instances of APIServer.
type APIServer struct {
	// Logger for API server operations.
	logger hclog.Logger

	// Manager holds the open payment dialogs.
	manager contracts.DialogManager

	// Addr specifies the network address to bind.
	addr string

	// CORS configuration for cross-origin requests.
	cors CORSConfig

	// ShutdownTimeout specifies how long to wait for graceful shutdown.
	shutdownTimeout time.Duration
}

// NewAPIServer creates a new API server with the provided dependencies and options.
// Applies default options first, then user-provided options to ensure all fields have valid values.
func NewAPIServer(deps APIDependencies, opt ...APIOption) (*APIServer, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for API server: %w", err)
	}

	// Ensure we always start with defaults and apply user options on top.
	apiOpts, err := NewAPIOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid API options: %w", err)
	}

	return &APIServer{
		logger:          deps.Logger.Named("api"),
		manager:         deps.DialogManager,
		addr:            deps.Addr,
		cors:            apiOpts.CORS,
		shutdownTimeout: apiOpts.ShutdownTimeout,
	}, nil
}

// Handler builds the HTTP handler serving the API, and returns it with the API path prefix.
func (a *APIServer) Handler() (http.Handler, string, error) {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	// Add CORS middleware if enabled.
	if a.cors.Enabled {
		a.applyCORS(mux)
	}

	config := huma.DefaultConfig("payinit docs", cmd.Version())
	router := humachi.New(mux, config)

	// Configure the error handling wrapping.
	huma.NewErrorWithContext = errorHandler(a.logger)

	apiPathPrefix, err := api.RegisterRoutes(router, a.manager)
	if err != nil {
		return nil, "", err
	}

	return mux, apiPathPrefix, nil
}

// Start starts the API server and blocks until the context is canceled or an error occurs.
func (a *APIServer) Start(ctx context.Context) error {
	handler, apiPathPrefix, err := a.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)

	// Start the API.
	go func() {
		a.logger.Info("Starting API server", "address", a.addr, "prefix", apiPathPrefix)
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle graceful shutdown.
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down API server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("API server shutdown incomplete", "error", err)
		}
		a.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (a *APIServer) applyCORS(mux *chi.Mux) {
	a.logger.Info("Enabling CORS", "origins", a.cors.AllowOrigins)
	mux.Use(cors.Handler(corsOptions(a.cors)))
}

// corsOptions converts the CORS configuration to go-chi/cors options.
// A wildcard origin replaces every other origin and disables credentials.
func corsOptions(c CORSConfig) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   slices.Clone(c.AllowOrigins),
		AllowedMethods:   c.AllowMethods,
		AllowedHeaders:   c.AllowedHeaders,
		ExposedHeaders:   c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           int(c.MaxAge.Seconds()),
	}

	for i, origin := range opts.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			opts.AllowedOrigins = []string{"*"}
			opts.AllowCredentials = false
			break
		}
		opts.AllowedOrigins[i] = origin
	}

	return opts
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// This function is the central place where domain errors from internal/errors are converted to HTTP responses.
// When adding new errors to internal/errors/errors.go, you MUST add them here to prevent them from falling
// through to the default case which returns HTTP 500.
//
// Mapping guidelines:
//   - 400: Client errors (bad input, invalid requests)
//   - 404: Unknown or already closed dialogs
//   - 409: Events the dialog does not accept in its current state
//   - 429: Dialog limit reached
//   - 502: Payment provider failures
//   - 504: Deadlines exceeded while serving the request
//   - 500: Unexpected internal errors (default case)
//
// Don't forget to:
// 1. Add test cases to TestMapError (internal/daemon/api_server_test.go)
// 2. Update the documentation in internal/errors/errors.go
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrBadRequest):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrSessionNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrInvalidTransition),
		stdErrors.Is(err, errors.ErrNotReady),
		stdErrors.Is(err, errors.ErrHandleInvalidated):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrSessionLimitReached):
		return huma.Error429TooManyRequests(err.Error())
	case stdErrors.Is(err, errors.ErrPaymentStartFailed):
		logger.Error("Payment start failed", "error", err)
		return huma.Error502BadGateway("Payment provider rejected the payment", err)
	case stdErrors.Is(err, context.DeadlineExceeded):
		logger.Warn("Request deadline exceeded", "error", err)
		return huma.Error504GatewayTimeout("Request timed out", err)
	default:
		logger.Error("Unexpected error serving payment dialog request", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}

// errorHandler wraps error handling for the application when converting to API friendly errors.
// Errors returned by handlers arrive with status 500 and are mapped through mapError,
// errors raised by huma itself (e.g. request validation) keep their status.
func errorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		switch {
		case len(errs) == 0:
			// No errors provided; return a generic error.
			return huma.NewError(status, msg)
		case status != http.StatusInternalServerError:
			return huma.NewError(status, msg, errs...)
		case len(errs) == 1:
			// Single error; map it directly.
			return mapError(logger, errs[0])
		default:
			// Multiple errors; join them and map.
			return mapError(logger, stdErrors.Join(errs...))
		}
	}
}
