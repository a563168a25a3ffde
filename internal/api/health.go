package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cvforge/payinit/internal/contracts"
)

// HealthStatusOK is reported while the daemon is serving requests.
const HealthStatusOK HealthStatus = "ok"

// HealthStatus represents the status of the daemon.
type HealthStatus string

// Health summarizes the daemon and the dialogs it holds.
type Health struct {
	Status  HealthStatus        `json:"status"`
	Dialogs int                 `doc:"Number of open dialogs"  json:"dialogs"`
	States  map[DialogState]int `doc:"Open dialogs per state" json:"states"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Body Health
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(routerAPI huma.API, manager contracts.DialogManager, apiPathPrefix string) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getHealth",
			Method:      http.MethodGet,
			Summary:     "Get the health of the daemon and a count of open dialogs",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*HealthResponse, error) {
			return handleHealth(manager)
		},
	)
}

// handleHealth is the handler for retrieving the daemon health.
func handleHealth(manager contracts.DialogManager) (*HealthResponse, error) {
	infos := manager.List()

	states := make(map[DialogState]int)
	for _, info := range infos {
		state, err := parseDialogState(info.Snapshot.State)
		if err != nil {
			return nil, err
		}
		states[state]++
	}

	return &HealthResponse{
		Body: Health{
			Status:  HealthStatusOK,
			Dialogs: len(infos),
			States:  states,
		},
	}, nil
}
