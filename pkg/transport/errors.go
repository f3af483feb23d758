package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// StatusClientClosedRequest is reported for requests whose caller went away
// before a response was written.
const StatusClientClosedRequest = 499

// HTTPStatusFromError maps an APIError code to the corresponding HTTP
// status. Credential, proxy and capability errors are request-class
// failures detected before any vendor call. Upstream errors keep the
// vendor's status when it is an error status, otherwise 502.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Code {
	case api.CodeInvalidRequest, api.CodeCredentialMissing, api.CodeProxyMisconfigured, api.CodeUnsupportedOperation:
		return http.StatusBadRequest
	case api.CodeUnauthorized:
		return http.StatusUnauthorized
	case api.CodeNotFound:
		return http.StatusNotFound
	case api.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case api.CodeUpstreamError:
		if err.Status >= 400 && err.Status <= 599 {
			return err.Status
		}
		return http.StatusBadGateway
	case api.CodeMalformedUpstreamResponse:
		return http.StatusBadGateway
	case api.CodeCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError converts any error into an APIError. Deadline errors become
// a 504 upstream error and caller cancellation a canceled error; anything
// untyped becomes a server error.
func ToAPIError(err error) *api.APIError {
	if apiErr, ok := api.AsAPIError(err); ok {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewUpstreamError("", http.StatusGatewayTimeout, "upstream request timed out", nil)
	}
	if errors.Is(err, context.Canceled) {
		return api.NewCanceledError("request canceled by client")
	}
	return api.NewServerError(err.Error())
}

// WriteErrorResponse writes the JSON error envelope with the given status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErr.Envelope())
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error code.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// IsCanceled reports whether err stems from the caller abandoning the request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || api.HasCode(err, api.CodeCanceled)
}

// WriteError writes any error as an envelope.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, ToAPIError(err))
}
