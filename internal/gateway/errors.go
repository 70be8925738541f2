package gateway

import "fmt"

// TransportError covers network failures, timeouts, an open circuit breaker
// and responses that could not be read or parsed. Never retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError carries a service-reported application error verbatim, e.g. an
// unknown table or a malformed query. Never retried.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}
