package errors

import "fmt"

/*
RegistrationError represents a configuration problem detected while
attaching the GraphQL endpoint to the host application. These are
returned synchronously from Attach and are fatal to application boot;
nothing is registered when one is returned.
*/
type RegistrationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

/*
Error implements the error interface for RegistrationError.
*/
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("fibergraphql: %s: %s", e.Code, e.Message)
}

// Convenience errors for the registration surface.
var (
	ErrNilApp         = &RegistrationError{Code: "nil_app", Message: "application router is nil"}
	ErrNilSchema      = &RegistrationError{Code: "nil_schema", Message: "schema is nil"}
	ErrEmptyRoutePath = &RegistrationError{Code: "empty_route_path", Message: "route path is empty"}
	ErrToolAndTools   = &RegistrationError{Code: "tool_and_tools", Message: "supply either a single tool or a list of tools, not both"}
	ErrToolConflict   = &RegistrationError{Code: "tool_conflict", Message: "two tools resolve to the same sub-path"}
	ErrNilTool        = &RegistrationError{Code: "nil_tool", Message: "tool is nil"}
	ErrNoSubscriber   = &RegistrationError{Code: "no_subscriber", Message: "schema does not support subscriptions"}
)

// WithMessagef creates a *copy* of a RegistrationError with a formatted
// message. It does not modify the original error variable.
func (e *RegistrationError) WithMessagef(format string, args ...any) *RegistrationError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

/*
RequestError is a request-format problem (unparseable body, missing
query string). It renders as a standard GraphQL error payload with a
4xx status; execution-level errors never use this type, they travel in
the engine's own errors array with status 200.
*/
type RequestError struct {
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *RequestError) Error() string {
	return e.Message
}

// NewRequestError returns a RequestError carrying the given HTTP status.
func NewRequestError(status int, format string, args ...any) *RequestError {
	return &RequestError{Status: status, Message: fmt.Sprintf(format, args...)}
}
