package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/popcorn-palace/internal/service"
)

var statusOf = map[service.ErrorType]int{
	service.ValidationError:     http.StatusBadRequest,
	service.InvalidShowtime:     http.StatusBadRequest,
	service.MovieNotFound:       http.StatusNotFound,
	service.ShowtimeNotFound:    http.StatusNotFound,
	service.DuplicateMovieTitle: http.StatusConflict,
	service.OverlappingShowtime: http.StatusConflict,
	service.SeatAlreadyBooked:   http.StatusConflict,
	service.InternalError:       http.StatusInternalServerError,
}

// errorBody is the JSON shape of every failed domain operation.
type errorBody struct {
	Status    int    `json:"status"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

type validationBody struct {
	Status           int         `json:"status"`
	Error            string      `json:"error"`
	ValidationErrors FieldErrors `json:"validationErrors"`
}

// badRequest reports a request that could not be decoded at all.
func badRequest(msg string, err error) *service.Error {
	se := &service.Error{Type: service.ValidationError, Message: msg, Err: err}
	if err != nil {
		se.Details = err.Error()
	}
	return se
}

// ErrorHandler renders errors returned by handlers. It is installed as
// echo's HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		fe     FieldErrors
		se     *service.Error
		he     *echo.HTTPError
		status int
		body   any
	)
	switch {
	case errors.As(err, &fe):
		status = http.StatusBadRequest
		body = validationBody{Status: status, Error: "Validation Error", ValidationErrors: fe}
	case errors.As(err, &se):
		status = statusOf[se.Type]
		if status == 0 {
			status = http.StatusInternalServerError
		}
		body = errorBody{Status: status, ErrorType: string(se.Type), Message: se.Message, Details: se.Details}
		if status >= http.StatusInternalServerError {
			slog.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		}
	case errors.As(err, &he):
		status = he.Code
		msg := http.StatusText(status)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		kind := service.InternalError
		if status < http.StatusInternalServerError {
			kind = "HTTP_ERROR"
		}
		body = errorBody{Status: status, ErrorType: string(kind), Message: msg}
	default:
		status = http.StatusInternalServerError
		slog.Error("unhandled error", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		body = errorBody{Status: status, ErrorType: string(service.InternalError), Message: "Unexpected error occurred"}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Warn("write error response failed", "error", err)
	}
}
