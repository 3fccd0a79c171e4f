package relay

import "fmt"

// Failure reasons.
const (
	ReasonExpired         = "expired"
	ReasonInvalid         = "invalid"
	ReasonIdentityUnknown = "identityUnknown"
	ReasonProvisionFailed = "provisionFailed"
	ReasonChannelNotFound = "channelNotFound"
	ReasonSendFailed      = "sendFailed"
)

// AuthFailure ends the connection.
type AuthFailure struct {
	Reason string
	Err    error
}

func (e *AuthFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed (%s): %v", e.Reason, e.Err)
	}
	return "auth failed (" + e.Reason + ")"
}

func (e *AuthFailure) Unwrap() error { return e.Err }

// BindFailure ends the connection for this attempt.
type BindFailure struct {
	Reason string
	Err    error
}

func (e *BindFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bind failed (%s): %v", e.Reason, e.Err)
	}
	return "bind failed (" + e.Reason + ")"
}

func (e *BindFailure) Unwrap() error { return e.Err }

// RelayFailure drops one message; the connection stays open.
type RelayFailure struct {
	Reason string
	Err    error
}

func (e *RelayFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay failed (%s): %v", e.Reason, e.Err)
	}
	return "relay failed (" + e.Reason + ")"
}

func (e *RelayFailure) Unwrap() error { return e.Err }
