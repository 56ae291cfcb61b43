package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownQueryKind is returned when a caller passes a kind outside QueryKinds.
var ErrUnknownQueryKind = errors.New("unknown query kind")

// BackendError is a structured failure reported by the execution API.
type BackendError struct {
	Code            int    `json:"code"`
	Message         string `json:"error"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	// HTTPStatus is informational and not part of the payload.
	HTTPStatus int `json:"-"`
}

func (e *BackendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
	}
	return "backend error: " + e.Message
}

// Payload serializes the error as the backend sent it.
func (e *BackendError) Payload() string {
	raw, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return string(raw)
}

// AsBackendError unwraps err into a BackendError when possible.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// SaveError is returned when persisting a script fails. Detail is either the
// serialized backend payload or the generic "error" message.
type SaveError struct {
	Detail string
	cause  error
}

// NewSaveError classifies err the same way execution failures are classified.
func NewSaveError(err error) *SaveError {
	if be, ok := AsBackendError(err); ok {
		return &SaveError{Detail: be.Payload(), cause: err}
	}
	return &SaveError{Detail: TransportFailureMessage, cause: err}
}

func (e *SaveError) Error() string {
	return e.Detail
}

func (e *SaveError) Unwrap() error {
	return e.cause
}
