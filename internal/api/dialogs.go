package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cvforge/payinit/internal/contracts"
	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/session"
)

const (
	DialogStateIdle            DialogState = "idle"
	DialogStateLoadingScript   DialogState = "loadingScript"
	DialogStateFetchingConfig  DialogState = "fetchingConfig"
	DialogStateInitializingSDK DialogState = "initializingSdk"
	DialogStateReady           DialogState = "ready"
	DialogStateError           DialogState = "error"
)

// DomainDialog is a wrapper that allows receivers to be declared in the API package that deal with domain types.
type DomainDialog session.Info

// DialogState is the payment initialization state of a dialog as exposed by the API.
type DialogState string

// Dialog is the API representation of an open payment dialog.
type Dialog struct {
	ID           string      `doc:"Dialog identifier"                                json:"id"`
	State        DialogState `doc:"Current initialization state"                     json:"state"`
	Reason       string      `doc:"Error reason, only set in the error state"        json:"reason,omitempty"`
	Message      string      `doc:"Remediation message, only set in the error state" json:"message,omitempty"`
	Detail       string      `doc:"Underlying failure"                               json:"detail,omitempty"`
	Attempts     int         `doc:"Initialization runs since the dialog was opened"  json:"attempts"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	LastActivity time.Time   `json:"lastActivity"`
}

// DialogRequest identifies a dialog by its path parameter.
type DialogRequest struct {
	ID string `doc:"Dialog identifier" path:"id"`
}

// DialogResponse is the response for a single dialog.
type DialogResponse struct {
	Reason string `header:"Payinit-Dialog-Reason"`
	Body   Dialog
}

// DialogsResponse is the response for GET /dialogs.
type DialogsResponse struct {
	Body struct {
		Dialogs []Dialog `doc:"Open payment dialogs, oldest first" json:"dialogs"`
	}
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainDialog) ToAPIType() (Dialog, error) {
	state, err := parseDialogState(d.Snapshot.State)
	if err != nil {
		return Dialog{}, err
	}

	return Dialog{
		ID:           d.ID,
		State:        state,
		Reason:       string(d.Snapshot.Reason),
		Message:      d.Snapshot.Message,
		Detail:       d.Snapshot.Detail,
		Attempts:     d.Snapshot.Attempts,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.Snapshot.UpdatedAt,
		LastActivity: d.LastActivity,
	}, nil
}

// RegisterDialogRoutes sets up dialog-related API endpoint routes.
func RegisterDialogRoutes(routerAPI huma.API, manager contracts.DialogManager, apiPathPrefix string) {
	dialogsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Dialogs"}

	// Add routes at the root of the group (no path specified).
	huma.Register(
		dialogsAPI,
		huma.Operation{
			OperationID:   "openDialog",
			Method:        http.MethodPost,
			Summary:       "Open a payment dialog and start its initialization",
			Tags:          tags,
			DefaultStatus: http.StatusCreated,
		},
		func(ctx context.Context, _ *struct{}) (*DialogResponse, error) {
			return handleOpenDialog(ctx, manager)
		},
	)

	huma.Register(
		dialogsAPI,
		huma.Operation{
			OperationID: "listDialogs",
			Method:      http.MethodGet,
			Summary:     "List open payment dialogs",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*DialogsResponse, error) {
			return handleListDialogs(manager)
		},
	)

	huma.Register(
		dialogsAPI,
		huma.Operation{
			OperationID: "getDialog",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get the state of a payment dialog",
			Tags:        tags,
		},
		func(ctx context.Context, input *DialogRequest) (*DialogResponse, error) {
			return handleGetDialog(manager, input.ID)
		},
	)

	huma.Register(
		dialogsAPI,
		huma.Operation{
			OperationID: "retryDialog",
			Method:      http.MethodPost,
			Path:        "/{id}/retry",
			Summary:     "Restart initialization of a failed payment dialog",
			Tags:        tags,
		},
		func(ctx context.Context, input *DialogRequest) (*DialogResponse, error) {
			return handleRetryDialog(ctx, manager, input.ID)
		},
	)

	huma.Register(
		dialogsAPI,
		huma.Operation{
			OperationID:   "startPayment",
			Method:        http.MethodPost,
			Path:          "/{id}/pay",
			Summary:       "Start the payment flow of a ready payment dialog",
			Tags:          tags,
			DefaultStatus: http.StatusAccepted,
		},
		func(ctx context.Context, input *DialogRequest) (*struct{}, error) {
			return nil, manager.Pay(ctx, input.ID)
		},
	)

	huma.Register(
		dialogsAPI,
		huma.Operation{
			OperationID:   "closeDialog",
			Method:        http.MethodDelete,
			Path:          "/{id}",
			Summary:       "Close a payment dialog and release its resources",
			Tags:          tags,
			DefaultStatus: http.StatusNoContent,
		},
		func(ctx context.Context, input *DialogRequest) (*struct{}, error) {
			return nil, manager.Close(ctx, input.ID)
		},
	)
}

// handleOpenDialog is the handler for opening a new payment dialog.
func handleOpenDialog(ctx context.Context, manager contracts.DialogManager) (*DialogResponse, error) {
	info, err := manager.Open(ctx)
	if err != nil {
		return nil, err
	}
	return dialogResponse(info)
}

// handleListDialogs is the handler for listing every open payment dialog.
func handleListDialogs(manager contracts.DialogManager) (*DialogsResponse, error) {
	infos := manager.List()

	dialogs := make([]Dialog, 0, len(infos))
	for _, info := range infos {
		data, err := DomainDialog(info).ToAPIType()
		if err != nil {
			return nil, err
		}
		dialogs = append(dialogs, data)
	}

	resp := &DialogsResponse{}
	resp.Body.Dialogs = dialogs

	return resp, nil
}

// handleGetDialog is the handler for retrieving a single payment dialog.
func handleGetDialog(manager contracts.DialogManager, id string) (*DialogResponse, error) {
	info, err := manager.Get(id)
	if err != nil {
		return nil, err
	}
	return dialogResponse(info)
}

// handleRetryDialog is the handler for retrying a payment dialog in the error state.
func handleRetryDialog(ctx context.Context, manager contracts.DialogManager, id string) (*DialogResponse, error) {
	info, err := manager.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	return dialogResponse(info)
}

func dialogResponse(info session.Info) (*DialogResponse, error) {
	data, err := DomainDialog(info).ToAPIType()
	if err != nil {
		return nil, err
	}

	return &DialogResponse{Reason: data.Reason, Body: data}, nil
}

func parseDialogState(state domain.State) (DialogState, error) {
	switch state {
	case domain.StateIdle:
		return DialogStateIdle, nil
	case domain.StateLoadingScript:
		return DialogStateLoadingScript, nil
	case domain.StateFetchingConfig:
		return DialogStateFetchingConfig, nil
	case domain.StateInitializingSDK:
		return DialogStateInitializingSDK, nil
	case domain.StateReady:
		return DialogStateReady, nil
	case domain.StateError:
		return DialogStateError, nil
	default:
		return "", fmt.Errorf("unknown dialog state: %s", state)
	}
}
