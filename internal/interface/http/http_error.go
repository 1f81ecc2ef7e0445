package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/domain/planner"
	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

var codeStatus = map[string]int{
	itinerary.CodeInvalidInput:      http.StatusBadRequest,
	itinerary.CodeInvalidCoordinate: http.StatusBadRequest,
	itinerary.CodeInvalidWindow:     http.StatusBadRequest,
	itinerary.CodeUnknownEditType:   http.StatusUnprocessableEntity,
	itinerary.CodeSupplierFailure:   http.StatusBadGateway,
	"llm_error":                     http.StatusBadGateway,
	planner.CodeSessionNotFound:     http.StatusNotFound,
	planner.CodeEditNotFound:        http.StatusNotFound,
	planner.CodeItineraryNotReady:   http.StatusConflict,
	planner.CodeStorage:             http.StatusInternalServerError,
	codeInvalidToken:                http.StatusUnauthorized,
}

// fromDomainError maps an AppError code onto a status. Unknown codes become 500s and server-side
// failures never echo their cause to the client.
func fromDomainError(err error) *HTTPError {
	code := apperrors.Code(err)
	status, ok := codeStatus[code]
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
	}
	message := apperrors.Message(err)
	if status >= http.StatusInternalServerError {
		message = "something went wrong"
	}
	return NewHTTPError(status, code, message, err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
