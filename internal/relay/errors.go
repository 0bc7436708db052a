package relay

import "fmt"

// ValidationError marks a payload or audit write missing a required field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("validation: missing required field: %s", e.Field)
}

// NewValidationError reports a missing required field.
func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// AuthenticationError marks a failed webhook signature or session check.
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string { return "authentication: " + e.Msg }

// ConfigurationError marks a tenant whose backend config is missing or
// incomplete. Terminal for the outbound relay: acknowledged, audited, never
// retried.
type ConfigurationError struct {
	Shop string
	Msg  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: shop %s: %s", e.Shop, e.Msg)
}

// TransportError marks a network failure or a non-2xx response from an
// external call. Status is zero when the request never got a response.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "transport: " + e.Err.Error()
	}
	return fmt.Sprintf("transport: unexpected status %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }
