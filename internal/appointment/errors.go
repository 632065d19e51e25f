package appointment

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeConflict         Code = "conflict"
	CodeInvalidState     Code = "invalid_state"
	CodeDuplicateRequest Code = "duplicate_request"
	CodeNotFound         Code = "not_found"
	CodeUnauthorized     Code = "unauthorized"
	CodeValidation       Code = "validation"
)

// Error is the structured failure every command returns to its caller.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code so errors.Is(err, ErrConflict) works for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrConflict         = &Error{Code: CodeConflict, Message: "requested time is no longer available", Retryable: true}
	ErrInvalidState     = &Error{Code: CodeInvalidState, Message: "transition not allowed"}
	ErrDuplicateRequest = &Error{Code: CodeDuplicateRequest, Message: "a reschedule request is already pending for this appointment"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized     = &Error{Code: CodeUnauthorized, Message: "not allowed for this role"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "invalid input"}
)

// Repository level not-found sentinels; the service maps them to ErrNotFound.
var (
	ErrBusinessNotFound          = errors.New("business not found")
	ErrEmployeeNotFound          = errors.New("employee not found")
	ErrServiceNotFound           = errors.New("service not found")
	ErrAppointmentNotFound       = errors.New("appointment not found")
	ErrBusySlotNotFound          = errors.New("busy slot not found")
	ErrRescheduleRequestNotFound = errors.New("reschedule request not found")
	ErrPendingRequestExists      = errors.New("pending reschedule request exists")
)

func conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...), Retryable: true}
}

func invalidStatef(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedf(format string, args ...any) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func duplicateRequest() *Error {
	return &Error{Code: CodeDuplicateRequest, Message: ErrDuplicateRequest.Message}
}

// AsError extracts the structured error, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
