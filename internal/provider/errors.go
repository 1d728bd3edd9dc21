// internal/provider/errors.go
package provider

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the provider cannot be reached: token
// acquisition failed, the transport errored, or the API answered with a
// server error. Callers must not treat it as a business rejection.
var ErrUnavailable = errors.New("cloud provider unavailable")

// APIError is a non-2xx answer from the provider that is not a transport
// problem (4xx with a message body).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}
