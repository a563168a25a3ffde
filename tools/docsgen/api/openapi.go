//go:build docsgen_api
// +build docsgen_api

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/api"
	"github.com/cvforge/payinit/internal/cmd"
	"github.com/cvforge/payinit/internal/contracts"
	"github.com/cvforge/payinit/internal/perms"
	"github.com/cvforge/payinit/internal/session"
)

var _ contracts.DialogManager = (*stubDialogManager)(nil)

// stubDialogManager provides a stub implementation for documentation generation.
type stubDialogManager struct{}

func (stubDialogManager) Open(context.Context) (session.Info, error)          { return session.Info{}, nil }
func (stubDialogManager) Get(string) (session.Info, error)                    { return session.Info{}, nil }
func (stubDialogManager) List() []session.Info                                { return nil }
func (stubDialogManager) Retry(context.Context, string) (session.Info, error) { return session.Info{}, nil }
func (stubDialogManager) Pay(context.Context, string) error                   { return nil }
func (stubDialogManager) Close(context.Context, string) error                 { return nil }

// main generates the OpenAPI specification for the payinit API.
// It assumes it is run from the repository root.
func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "payinit.docsgen.api",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	// Output path for the OpenAPI document, relative to the repository root.
	outputPath := "./docs/api/openapi.yaml"

	// Create a chi router (same as the daemon).
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	// Create Huma config and router (same as the daemon).
	config := huma.DefaultConfig("payinit docs", cmd.Version())
	router := humachi.New(mux, config)

	// The OpenAPI document only needs the route definitions, not working handlers.
	apiPathPrefix, err := api.RegisterRoutes(router, &stubDialogManager{})
	if err != nil {
		logger.Error("failed to register API routes", "error", err)
		os.Exit(1)
	}

	logger.Info("Routes registered", "prefix", apiPathPrefix)

	yamlBytes, err := router.OpenAPI().YAML()
	if err != nil {
		logger.Error("failed to generate OpenAPI YAML", "error", err)
		os.Exit(1)
	}

	docsDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(docsDir, perms.RegularDir); err != nil {
		logger.Error("failed to create docs directory", "path", docsDir, "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, yamlBytes, perms.RegularFile); err != nil {
		logger.Error("failed to write OpenAPI document", "path", outputPath, "error", err)
		os.Exit(1)
	}

	logger.Info("OpenAPI document generated", "path", outputPath, "size", fmt.Sprintf("%d bytes", len(yamlBytes)))
}
