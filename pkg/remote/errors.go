package remote

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NetworkError covers transport failures, timeouts, and non-2xx responses.
// Status is zero when the request never reached the server. Body carries the
// raw failure payload when the server sent one, so callers can decode
// field-level rejection details.
type NetworkError struct {
	Status  int
	Message string
	Body    json.RawMessage
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return "remote: request timed out"
	case e.Status > 0:
		return fmt.Sprintf("remote: unexpected status %d: %s", e.Status, e.Message)
	case e.Err != nil:
		return "remote: " + e.Err.Error()
	default:
		return "remote: request failed"
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SchemaError reports a response payload whose shape does not match the
// expected contract. Path identifies the offending key using dotted notation.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "remote: schema: " + e.Message
	}
	return fmt.Sprintf("remote: schema: %s: %s", e.Path, e.Message)
}

// AsNetworkError unwraps err into the *NetworkError it carries, if any.
func AsNetworkError(err error) (*NetworkError, bool) {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// Rejected reports whether err is a non-timeout 4xx response, i.e. the server
// understood the request and refused it.
func Rejected(err error) bool {
	ne, ok := AsNetworkError(err)
	return ok && !ne.Timeout && ne.Status >= 400 && ne.Status < 500
}
