package api

import (
	"errors"
	"net/http"

	"burnin/internal/jobs"
	"burnin/internal/services"
)

// StatusClientClosedRequest is used when the caller went away mid-job.
const StatusClientClosedRequest = 499

// HTTPStatus maps a classified failure onto an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var maxBytes *http.MaxBytesError
	if errors.Is(err, jobs.ErrTooLarge) || errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	switch services.KindOf(err) {
	case services.KindInvalidInput, services.KindInvalidResolution:
		return http.StatusBadRequest
	case services.KindSubtitleUnavailable:
		return http.StatusBadGateway
	case services.KindTranscodeTimeout:
		return http.StatusGatewayTimeout
	case services.KindTranscodeFailed:
		return http.StatusInternalServerError
	case services.KindStorageWriteFailed, services.KindMetadataWriteFailed:
		return http.StatusBadGateway
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case services.KindCancelled:
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}

// NewErrorEnvelope builds the error body for err.
func NewErrorEnvelope(err error) ErrorEnvelope {
	kind := services.KindOf(err)
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		kind = services.KindInvalidInput
	case kind == services.KindNone:
		kind = services.KindInternal
	}
	message := "internal error"
	if err != nil {
		message = err.Error()
	}
	return ErrorEnvelope{Error: ErrorBody{Code: kind.String(), Message: message}}
}
