package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeBoundaryDenied         = "BOUNDARY_DENIED"
	CodeCooldownActive         = "COOLDOWN_ACTIVE"
	CodeRollbackNotAllowed     = "ROLLBACK_NOT_ALLOWED"
	CodeRollbackExpired        = "ROLLBACK_EXPIRED"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
)

type Error struct {
	Status int
	Code   string
	Err    error

	// Optional detail fields surfaced with specific codes.
	DaysRemaining int
	BoundaryType  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthenticated() *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, errors.New("no resolvable user context"))
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s not found", what))
}

func InvalidInput(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, err)
}

func BoundaryDenied(boundaryType, reason string) *Error {
	e := New(http.StatusForbidden, CodeBoundaryDenied, errors.New(reason))
	e.BoundaryType = boundaryType
	return e
}

func CooldownActive(daysRemaining int) *Error {
	e := New(http.StatusConflict, CodeCooldownActive, fmt.Errorf("an equivalent suggestion was shown recently, %d day(s) remaining", daysRemaining))
	e.DaysRemaining = daysRemaining
	return e
}

func RollbackNotAllowed(reason string) *Error {
	return New(http.StatusConflict, CodeRollbackNotAllowed, errors.New(reason))
}

func RollbackExpired() *Error {
	return New(http.StatusConflict, CodeRollbackExpired, errors.New("rollback window has passed"))
}

func InvalidStateTransition(entity, from, to string) *Error {
	return New(http.StatusConflict, CodeInvalidStateTransition, fmt.Errorf("%s cannot transition %s -> %s", entity, from, to))
}

// AsError returns the *Error inside err if there is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
