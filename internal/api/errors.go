package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Type       string                  `json:"type"`
	Status     int                     `json:"status"`
	Message    string                  `json:"message"`
	Violations []domain.FieldViolation `json:"violations,omitempty"`
}

var statusByKind = map[domain.ErrorKind]int{
	domain.KindNotFound:             http.StatusNotFound,
	domain.KindEmailExists:          http.StatusConflict,
	domain.KindUsernameExists:       http.StatusConflict,
	domain.KindContactExists:        http.StatusConflict,
	domain.KindVersionOutdated:      http.StatusPreconditionFailed,
	domain.KindVersionAhead:         http.StatusPreconditionFailed,
	domain.KindAccessForbidden:      http.StatusForbidden,
	domain.KindPasswordInvalid:      http.StatusBadRequest,
	domain.KindInvalidArgument:      http.StatusBadRequest,
	domain.KindConstraintViolations: http.StatusUnprocessableEntity,
	domain.KindUnauthorized:         http.StatusUnauthorized,
	domain.KindRateLimited:          http.StatusTooManyRequests,
	domain.KindSignUpFailed:         http.StatusBadGateway,
	domain.KindInternal:             http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err by kind. Internal failures are logged and their
// details withheld from the client.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)

	body := errorResponse{Type: string(kind), Status: status, Message: err.Error()}

	var violations *domain.ConstraintViolationsError
	if errors.As(err, &violations) {
		body.Violations = violations.Violations
	}
	var limited *domain.RateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
	}

	if status >= http.StatusInternalServerError {
		log.WithFields(logrus.Fields{"kind": kind, "status": status}).WithError(err).Error("request failed")
		if kind == domain.KindInternal {
			body.Message = "Internal server error"
		}
	}
	writeJSON(w, status, body)
}
