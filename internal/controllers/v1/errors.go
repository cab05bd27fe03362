package v1

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/auth"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/ordering"
	"github.com/rs/zerolog/log"
)

// badRequest lists the errors that are caused by the request.
var badRequest = []error{
	bulk.ErrValidation,
	models.ErrIntegrity,
	models.ErrOrderNotUnique,
	models.ErrFringeNameNotUnique,
	ordering.ErrInconsistentOrdering,
	httputil.ErrInvalidBody,
	httputil.ErrRequestBodyEmpty,
	httputil.ErrInvalidUUID,
	httputil.ErrInvalidQueryString,
}

// status returns the HTTP status for an error.
func status(err error) int {
	switch {
	case errors.Is(err, bulk.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, bulk.ErrNotFound), errors.Is(err, models.ErrResourceNotFound):
		return http.StatusNotFound
	}

	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	return http.StatusInternalServerError
}

// ErrorDetail points to the invalid field of a payload.
type ErrorDetail struct {
	Index *int   `json:"index,omitempty" example:"2"` // Position of the payload in the batch
	Field string `json:"field" example:"name"`
	Code  string `json:"code" example:"required"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string       `json:"error" example:"the specified resource ID is not a valid UUID"`
	Details *ErrorDetail `json:"details,omitempty"`
}

// fail aborts the request with the error.
//
// Server errors are logged and replaced with a generic message.
func fail(c *gin.Context, err error) {
	code := status(err)

	response := ErrorResponse{Error: err.Error()}
	if code == http.StatusInternalServerError {
		log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
		response.Error = models.ErrGeneral.Error()
	}

	var validation bulk.ValidationError
	if errors.As(err, &validation) {
		response.Details = &ErrorDetail{Field: validation.Field, Code: validation.Code}
		if validation.Index >= 0 {
			index := validation.Index
			response.Details.Index = &index
		}
	}

	c.AbortWithStatusJSON(code, response)
}
