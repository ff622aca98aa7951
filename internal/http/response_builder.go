// Package http serves the bankroll JSON API.
//
// This file holds the fluent builder used for every JSON response and the
// mapping from domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bankroll/internal/auth"
	"bankroll/internal/core"
	"bankroll/internal/services"
	"bankroll/internal/storage"
)

// Response is the envelope of every error body.
type Response struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body sends no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(Response{Status: statusCode, Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="bankroll"`)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// ErrorFor maps an error returned by the services to its response.
// Unknown errors become a 500 without leaking internals.
func ErrorFor(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, auth.ErrUserAlreadyRegistered):
		return ErrorResponse(http.StatusConflict, auth.UserMessage(err))
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrInvalidEmail):
		return UnprocessableEntityError(auth.UserMessage(err))
	case errors.Is(err, auth.ErrSignupDisabled):
		return ErrorResponse(http.StatusForbidden, auth.UserMessage(err))
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrEmailNotConfirmed),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNoSession):
		return UnauthorizedError(auth.UserMessage(err))

	case errors.Is(err, services.ErrDuplicateSubmission):
		return ErrorResponse(http.StatusConflict, "This record was already submitted")
	case errors.Is(err, storage.ErrDuplicate):
		return ErrorResponse(http.StatusConflict, "Already exists")
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError("Record not found")

	case errors.Is(err, core.ErrInvalidAmount):
		return UnprocessableEntityError("Invalid amount")
	case errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear):
		return UnprocessableEntityError("Invalid date")
	case errors.Is(err, core.ErrInvalidStatus):
		return UnprocessableEntityError("Status must be green or red")
	case errors.Is(err, core.ErrDescriptionTooLong):
		return UnprocessableEntityError("Description is too long (max 200 characters)")
	case errors.Is(err, core.ErrEmptyUser):
		return UnauthorizedError(auth.UserMessage(auth.ErrNoSession))

	default:
		return InternalServerError("Something went wrong, please try again")
	}
}
