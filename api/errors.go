package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-engine/core"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// errorMapping is checked in order; the first sentinel that matches wins.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{core.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{core.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{core.ErrInvalidTimeRange, http.StatusBadRequest, "INVALID_TIME_RANGE"},
	{core.ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
	{core.ErrPolicyViolation, http.StatusUnprocessableEntity, "POLICY_VIOLATION"},
	{core.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{core.ErrAlreadyClockedIn, http.StatusConflict, "ALREADY_CLOCKED_IN"},
	{core.ErrAlreadyClockedOut, http.StatusConflict, "ALREADY_CLOCKED_OUT"},
	{core.ErrAlreadyCompleted, http.StatusConflict, "ALREADY_COMPLETED"},
	{core.ErrNoClockInFound, http.StatusConflict, "NO_CLOCK_IN_FOUND"},
	{core.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
}

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// writeServiceError renders err with the status its kind maps to. Internal
// errors are logged and their message is not echoed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code, Retryable: core.IsRetryable(err)}

	var insufficient *core.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		resp.Details = map[string]string{
			"available": insufficient.Available.String(),
			"requested": insufficient.Requested.String(),
			"shortfall": insufficient.Shortfall().String(),
		}
	}

	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

// writeValidationError renders validator failures as field -> rule.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_INPUT"})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Code:    "INVALID_INPUT",
		Details: fields,
	})
}
