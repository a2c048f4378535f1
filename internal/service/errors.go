package service

import (
	"errors"
	"fmt"
)

// ErrorType is the machine-readable kind of a failed operation. It doubles
// as an error value so callers can test for it with errors.Is.
type ErrorType string

const (
	ValidationError     ErrorType = "VALIDATION_ERROR"
	MovieNotFound       ErrorType = "MOVIE_NOT_FOUND"
	ShowtimeNotFound    ErrorType = "SHOWTIME_NOT_FOUND"
	DuplicateMovieTitle ErrorType = "DUPLICATE_MOVIE_TITLE"
	OverlappingShowtime ErrorType = "OVERLAPPING_SHOWTIME"
	SeatAlreadyBooked   ErrorType = "SEAT_ALREADY_BOOKED"
	InvalidShowtime     ErrorType = "INVALID_SHOWTIME"
	InternalError       ErrorType = "INTERNAL_SERVER_ERROR"
)

func (t ErrorType) Error() string { return string(t) }

// Error is returned by every service operation that fails. Message is meant
// for the caller; Details is optional extra context.
type Error struct {
	Type    ErrorType
	Message string
	Details string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Type, e.Err}
	}
	return []error{e.Type}
}

func newError(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

func newErrorDetails(t ErrorType, msg, details string) *Error {
	return &Error{Type: t, Message: msg, Details: details}
}

// internal wraps a storage failure that is not attributable to caller input.
func internal(err error) *Error {
	return &Error{
		Type:    InternalError,
		Message: "Internal Data base error",
		Details: "Error: " + err.Error(),
		Err:     err,
	}
}

// TypeOf returns the kind carried by err, or InternalError when err is not a
// service error.
func TypeOf(err error) ErrorType {
	var se *Error
	if errors.As(err, &se) {
		return se.Type
	}
	return InternalError
}
