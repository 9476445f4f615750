package httpx

import "net/http"

// Status codes used by the flag service and its handlers.
const (
	StatusOK                 = http.StatusOK                  // Successful request
	StatusNoContent          = http.StatusNoContent           // Successful with no body
	StatusBadRequest         = http.StatusBadRequest          // Validation or malformed input
	StatusUnauthorized       = http.StatusUnauthorized        // Missing or invalid authentication
	StatusForbidden          = http.StatusForbidden           // Authenticated but lacks permission
	StatusNotFound           = http.StatusNotFound            // Resource not found
	StatusInternalError      = http.StatusInternalServerError // Unexpected server error
	StatusNotImplemented     = http.StatusNotImplemented      // Operation unsupported by the configured provider
	StatusServiceUnavailable = http.StatusServiceUnavailable  // Dependency failure or maintenance
	StatusGatewayTimeout     = http.StatusGatewayTimeout      // Upstream provider did not answer in time
)
