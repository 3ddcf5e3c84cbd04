// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

const serverErrorMessage = "Server error"

// ErrorHandler renders errors returned by handlers and middleware as JSON.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"kind", apperr.KindOf(err).String(),
			"error", err,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		slog.Error("error_response_failed", "error", writeErr)
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var (
		fieldErrs validator.ValidationErrors
		appErr    *apperr.Error
		httpErr   *echo.HTTPError
	)

	switch {
	case errors.As(err, &fieldErrs):
		fields := make([]FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return http.StatusBadRequest, ErrorResponse{Message: fields[0].Message, Errors: fields}

	case errors.As(err, &appErr):
		if appErr.Kind == apperr.KindInternal {
			return http.StatusInternalServerError, ErrorResponse{Message: serverErrorMessage}
		}
		return appErr.Kind.Status(), ErrorResponse{Message: appErr.Message}

	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok || msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		if httpErr.Code >= http.StatusInternalServerError {
			msg = serverErrorMessage
		}
		return httpErr.Code, ErrorResponse{Message: msg}
	}

	return http.StatusInternalServerError, ErrorResponse{Message: serverErrorMessage}
}
