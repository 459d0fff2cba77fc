package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/tasklist/internal/taskerr"
)

// ErrInvalidJSON reports a request body that could not be decoded.
var ErrInvalidJSON = errors.New("invalid json")

// statusFor maps a failure to an HTTP status.
func statusFor(err error) int {
	switch taskerr.KindOf(err) {
	case taskerr.KindInvalidInput:
		return http.StatusBadRequest
	case taskerr.KindNotFound:
		return http.StatusNotFound
	case taskerr.KindIOFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
