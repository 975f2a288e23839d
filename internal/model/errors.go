package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the bridge failure taxonomy.
// Use errors.Is() to check against these.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrLaunch         = errors.New("browser launch failed")
	ErrNavigation     = errors.New("storefront navigation failed")
	ErrRejected       = errors.New("widget rejected the call")
	ErrExecution      = errors.New("script execution failed")
)

// Messages the widget dispatch rejects with. Clients see these verbatim.
const (
	MsgCartEmpty     = "Cart is empty"
	MsgInvalidAction = "Invalid action"
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
//
// Every APIError maps to HTTP 500 on the REST surface; Code is kept for logs
// and for the MCP transport, where callers benefit from the distinction.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewValidationError creates an error for request bodies that cannot form an action.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "INVALID_REQUEST",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: http.StatusInternalServerError,
		Err:        ErrInvalidRequest,
	}
}

// NewLaunchError reports that no browser could be started or connected.
// The cause is logged, not exposed.
func NewLaunchError(err error) *APIError {
	return &APIError{
		Code:       "LAUNCH_FAILED",
		Message:    "failed to start browser",
		StatusCode: http.StatusInternalServerError,
		Err:        fmt.Errorf("%w: %v", ErrLaunch, err),
	}
}

// NewNavigationError reports that the storefront did not load or the widget
// never became ready within the wait.
func NewNavigationError(err error) *APIError {
	return &APIError{
		Code:       "NAVIGATION_FAILED",
		Message:    "storefront widget did not become ready",
		StatusCode: http.StatusInternalServerError,
		Err:        fmt.Errorf("%w: %v", ErrNavigation, err),
	}
}

// NewRejectedError reports a business rejection from the widget dispatch.
func NewRejectedError(reason string) *APIError {
	return &APIError{
		Code:       "WIDGET_REJECTED",
		Message:    reason,
		StatusCode: http.StatusInternalServerError,
		Err:        ErrRejected,
	}
}

// NewExecutionError wraps any other fault raised while driving the page.
func NewExecutionError(err error) *APIError {
	return &APIError{
		Code:       "EXECUTION_FAILED",
		Message:    "failed to execute storefront script",
		StatusCode: http.StatusInternalServerError,
		Err:        fmt.Errorf("%w: %v", ErrExecution, err),
	}
}

// AsAPIError finds an APIError in err's chain, or classifies err as an
// execution fault.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewExecutionError(err)
}
