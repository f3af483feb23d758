package api

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a member of the task error taxonomy. It is the value
// of the "code" field in error envelopes.
type ErrorCode string

const (
	CodeInvalidRequest            ErrorCode = "invalid_request"
	CodeCredentialMissing         ErrorCode = "credential_missing"
	CodeProxyMisconfigured        ErrorCode = "proxy_misconfigured"
	CodeUnsupportedOperation      ErrorCode = "unsupported_operation"
	CodeUpstreamError             ErrorCode = "upstream_error"
	CodeMalformedUpstreamResponse ErrorCode = "malformed_upstream_response"
	CodeRehostFailure             ErrorCode = "rehost_failure"
	CodeNotFound                  ErrorCode = "not_found"
	CodeUnauthorized              ErrorCode = "unauthorized"
	CodeTooManyRequests           ErrorCode = "too_many_requests"
	CodeServerError               ErrorCode = "server_error"
	CodeCanceled                  ErrorCode = "canceled"
)

// APIError is a structured task error. Status holds the upstream HTTP status
// for vendor errors and is zero otherwise.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Vendor  string    `json:"vendor,omitempty"`
	Status  int       `json:"status,omitempty"`
	Details any       `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Vendor != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (vendor: %s, status: %d)", e.Code, e.Message, e.Vendor, e.Status)
	case e.Vendor != "":
		return fmt.Sprintf("%s: %s (vendor: %s)", e.Code, e.Message, e.Vendor)
	case e.Param != "":
		return fmt.Sprintf("%s: %s (param: %s)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON error envelope returned to HTTP clients.
type ErrorResponse struct {
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code"`
	Details any       `json:"details,omitempty"`
}

// Envelope converts the error into its wire form.
func (e *APIError) Envelope() ErrorResponse {
	resp := ErrorResponse{Error: e.Message, Code: e.Code, Details: e.Details}
	if resp.Details == nil && (e.Vendor != "" || e.Param != "") {
		d := map[string]any{}
		if e.Vendor != "" {
			d["vendor"] = e.Vendor
		}
		if e.Param != "" {
			d["param"] = e.Param
		}
		if e.Status != 0 {
			d["status"] = e.Status
		}
		resp.Details = d
	}
	return resp
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err is an *APIError with the given code.
func HasCode(err error, code ErrorCode) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Code:    CodeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewCredentialMissingError reports that no usable key or provider exists.
func NewCredentialMissingError(vendor, message string) *APIError {
	return &APIError{
		Code:    CodeCredentialMissing,
		Vendor:  vendor,
		Message: message,
	}
}

// NewProxyMisconfiguredError reports an enabled proxy config lacking a field.
func NewProxyMisconfiguredError(vendor, missing string) *APIError {
	return &APIError{
		Code:    CodeProxyMisconfigured,
		Vendor:  vendor,
		Param:   missing,
		Message: fmt.Sprintf("proxy config for %s is enabled but has no %s", vendor, missing),
	}
}

// NewUnsupportedOperationError reports a vendor lacking the capability for kind.
func NewUnsupportedOperationError(vendor string, kind TaskKind) *APIError {
	msg := fmt.Sprintf("vendor %q does not support %s", vendor, kind)
	if kind == "" {
		msg = fmt.Sprintf("unknown vendor %q", vendor)
	}
	return &APIError{
		Code:    CodeUnsupportedOperation,
		Vendor:  vendor,
		Message: msg,
		Details: map[string]any{"vendor": vendor, "kind": kind},
	}
}

// NewUpstreamError creates an APIError for a non-2xx vendor response. body is
// the vendor's error payload, kept for diagnostics.
func NewUpstreamError(vendor string, status int, message string, body any) *APIError {
	return &APIError{
		Code:    CodeUpstreamError,
		Vendor:  vendor,
		Status:  status,
		Message: message,
		Details: map[string]any{"vendor": vendor, "status": status, "body": body},
	}
}

// NewMalformedUpstreamError reports a successful vendor response that could
// not be parsed or held no extractable result.
func NewMalformedUpstreamError(vendor, message string) *APIError {
	return &APIError{
		Code:    CodeMalformedUpstreamResponse,
		Vendor:  vendor,
		Message: message,
	}
}

// NewRehostFailure describes a failed copy of url into owned storage. It is
// logged, never returned to callers.
func NewRehostFailure(url string, cause error) *APIError {
	return &APIError{
		Code:    CodeRehostFailure,
		Message: fmt.Sprintf("rehost %s: %v", url, cause),
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewUnauthorizedError creates an APIError for missing or bad credentials.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Code:    CodeServerError,
		Message: message,
	}
}

// NewCanceledError creates an APIError for a request abandoned by its caller.
func NewCanceledError(message string) *APIError {
	return &APIError{
		Code:    CodeCanceled,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Code:    CodeTooManyRequests,
		Message: message,
	}
}
