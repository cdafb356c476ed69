package oauth

import "fmt"

// ProviderError is an OAuth error object reported by the provider
// (invalid_grant and friends). Safe to surface to the client: these are
// standard protocol codes, not secrets. Maps to 400.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error: %s (%s)", e.Code, e.Description)
	}
	return "provider error: " + e.Code
}

// TransportError is a failed outbound call to the provider: network/TLS
// failure, timeout, non-2xx status or malformed JSON. Unrecoverable for the
// current operation; the HTTP layer converts it to a 500 without touching
// session state. No retries anywhere, the user re-initiates login.
type TransportError struct {
	Op  string // "token", "userinfo", "revoke"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s call failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
