package authmodel

import (
	"encoding/json"
	"errors"
)

// ServerError is the single error shape surfaced by the transport and the
// dispatcher. Local validation failures, network failures and
// server-reported failures all use it.
type ServerError struct {
	ErrorMessage string `json:"errorMessage"`

	// Cause is the underlying error, if any. It is not part of the wire shape.
	Cause error `json:"-"`
}

// NewServerError builds a ServerError with the given message.
func NewServerError(message string) *ServerError {
	return &ServerError{ErrorMessage: message}
}

// WrapServerError builds a ServerError carrying cause's message.
func WrapServerError(cause error) *ServerError {
	if cause == nil {
		return nil
	}
	var se *ServerError
	if errors.As(cause, &se) {
		return se
	}
	return &ServerError{ErrorMessage: cause.Error(), Cause: cause}
}

func (e *ServerError) Error() string {
	return e.ErrorMessage
}

func (e *ServerError) Unwrap() error {
	return e.Cause
}

// Is matches another ServerError with the same message, or a sentinel whose
// text equals the message.
func (e *ServerError) Is(target error) bool {
	if t, ok := target.(*ServerError); ok {
		return t.ErrorMessage == e.ErrorMessage
	}
	return target != nil && target.Error() == e.ErrorMessage
}

// IsServerError reports whether value carries a defined errorMessage field,
// regardless of where it came from. Errors are matched through their chain;
// maps by key presence; byte slices and other values by their JSON form.
func IsServerError(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case *ServerError:
		return v != nil
	case ServerError:
		return true
	case error:
		var se *ServerError
		return errors.As(v, &se)
	case map[string]any:
		_, ok := v["errorMessage"]
		return ok
	case map[string]string:
		_, ok := v["errorMessage"]
		return ok
	case json.RawMessage:
		return hasErrorMessageKey(v)
	case []byte:
		return hasErrorMessageKey(v)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return hasErrorMessageKey(data)
}

func hasErrorMessageKey(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	_, ok := fields["errorMessage"]
	return ok
}
