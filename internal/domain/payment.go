package domain

import "time"

const (
	StateIdle            State = "idle"
	StateLoadingScript   State = "loadingScript"
	StateFetchingConfig  State = "fetchingConfig"
	StateInitializingSDK State = "initializingSdk"
	StateReady           State = "ready"
	StateError           State = "error"
)

const (
	ReasonNone                     Reason = ""
	ReasonNoConnectivity           Reason = "NoConnectivity"
	ReasonServiceUnavailable       Reason = "ServiceUnavailable"
	ReasonSDKNotRegistered         Reason = "SdkNotRegistered"
	ReasonRetriesExhausted         Reason = "RetriesExhausted"
	ReasonConfigServiceUnreachable Reason = "ConfigServiceUnreachable"
	ReasonConfigMissing            Reason = "ConfigMissing"
	ReasonIncompleteInitialization Reason = "IncompleteInitialization"
)

// State is the payment initialization state of a dialog.
type State string

// Reason classifies why a dialog ended up in StateError.
type Reason string

// LoadAttempt tracks which candidate script URL is being tried and how many full retry cycles have elapsed.
type LoadAttempt struct {
	URLIndex   int
	RetryCount int
	StartedAt  time.Time
}

// MerchantConfig carries the merchant identifier required to initialize the vendor SDK.
type MerchantConfig struct {
	MerchantID string
}

// Snapshot is the externally observable state of a payment dialog.
// Hosting UIs must render strictly as a function of it.
type Snapshot struct {
	State  State
	Reason Reason

	// Message is the remediation message shown to the user in StateError.
	Message string

	// Detail is the underlying failure, meant for operators and logs rather than end users.
	Detail string

	// Attempts counts the initialization runs (open and retries) since the dialog was opened.
	Attempts int

	UpdatedAt time.Time
}

// Terminal reports whether the snapshot will not change without an explicit event (retry, close, open).
func (s Snapshot) Terminal() bool {
	return s.State == StateReady || s.State == StateError || s.State == StateIdle
}
