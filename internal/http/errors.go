package http

import (
	"errors"
	"net/http"

	"chronoly/internal/auth"
	"chronoly/internal/core"
	"chronoly/internal/log"
)

// genericErrorMessage is all a client learns about a server-side failure.
const genericErrorMessage = "Something went wrong. Please try again."

// apiError is the JSON error body.
type apiError struct {
	Error         string   `json:"error"`
	Kind          string   `json:"kind,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, auth.ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	switch core.KindOf(err) {
	case core.KindMissingField, core.KindInvalidValue, core.KindReferenceNotFound:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError builds the response body for err. Server-side failures get a
// generic message; the detail stays in the log.
func toAPIError(err error) apiError {
	if errors.Is(err, auth.ErrUnauthorized) {
		return apiError{Error: "Invalid password", Kind: "Unauthorized"}
	}
	if !core.IsClientError(err) {
		return apiError{Error: genericErrorMessage, Kind: string(core.KindStoreUnavailable)}
	}
	return apiError{
		Error:         err.Error(),
		Kind:          string(core.KindOf(err)),
		MissingFields: missingFields(err),
	}
}

func missingFields(err error) []string {
	if errors.Is(err, core.ErrMissingField) {
		return core.FieldsOf(err)
	}
	return nil
}

// writeAPIError logs server-side failures with full detail and writes the JSON error.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.metrics.serverErrors.Add(1)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, op, log.NewFields().WithRequestID(requestID(r)))
	}
	writeJSON(w, status, toAPIError(err))
}
