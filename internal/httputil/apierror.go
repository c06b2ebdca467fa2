package httputil

import (
	"net/http"
	"strings"

	"bubblestream/internal/apierror"
)

// RespondAPIError maps an apierror.HTTPError onto the RFC 7807 shape used
// throughout this service, falling back to 500 for anything that doesn't
// implement the interface.
func RespondAPIError(w http.ResponseWriter, err error) {
	if httpErr, ok := err.(apierror.HTTPError); ok {
		RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}
	RespondError(w, http.StatusInternalServerError, err.Error())
}

// NormalizeUserID trims the User-Id header and falls back to "anonymous"
// per spec.md §6.1 / §4.4.
func NormalizeUserID(r *http.Request) string {
	return NormalizeUserIDValue(r.Header.Get("User-Id"))
}

// NormalizeUserIDValue applies the same trim/fallback rule to a raw value.
// The conversation index applies the same rule through its own
// bubble.NormalizeUserID.
func NormalizeUserIDValue(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "anonymous"
	}
	return trimmed
}
