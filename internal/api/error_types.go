package api

// HeaderDialogReason is the HTTP header key used to convey the error reason of a dialog in the error state.
const HeaderDialogReason = "Payinit-Dialog-Reason"
