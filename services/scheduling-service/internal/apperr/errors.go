// Package apperr defines the coded errors returned by scheduling operations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	InvalidRange      Code = "INVALID_RANGE"
	DurationTooShort  Code = "DURATION_TOO_SHORT"
	InvalidTimeFormat Code = "INVALID_TIME_FORMAT"
	SlotTaken         Code = "SLOT_TAKEN"
	RangeConflict     Code = "RANGE_CONFLICT"
	Blocked           Code = "BLOCKED"
	OutsideHours      Code = "OUTSIDE_HOURS"
	BlockOverlap      Code = "BLOCK_OVERLAP"
	NotFound          Code = "NOT_FOUND"
	Validation        Code = "VALIDATION_ERROR"
)

// Error carries a machine readable code and a human readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or "" when err is not coded.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

func HTTPStatus(code Code) int {
	switch code {
	case InvalidRange, DurationTooShort, InvalidTimeFormat, Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case SlotTaken, RangeConflict, Blocked, OutsideHours, BlockOverlap:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
