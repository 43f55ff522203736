package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eventpass/backend/internal/service"
	"github.com/eventpass/backend/pkg/logger"
	"github.com/eventpass/backend/pkg/regflow"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func errorResponse(c *gin.Context, status int, code ErrorCode) {
	c.AbortWithStatusJSON(status, getErrorStruct(code))
}

func missingFieldsResponse(c *gin.Context, missing []string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, MissingFieldsStruct{
		ErrorCode:    ValidationFailedCode,
		ErrorMessage: ValidationFailedMessage,
		Missing:      missing,
	})
}

// serviceErrorResponse переводит ошибки сервисного слоя в статус и числовой
// код ответа. Всё, что не входит в таксономию, отвечает 500 без деталей.
func serviceErrorResponse(c *gin.Context, err error) {
	var validationErr *regflow.ValidationError
	if errors.As(err, &validationErr) {
		missingFieldsResponse(c, validationErr.Missing)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		errorResponse(c, http.StatusBadRequest, InvalidEmailCode)
	case errors.Is(err, service.ErrRateLimited):
		errorResponse(c, http.StatusTooManyRequests, RateLimitedCode)
	case errors.Is(err, service.ErrInvalidCode):
		errorResponse(c, http.StatusBadRequest, InvalidCodeCode)
	case errors.Is(err, service.ErrSessionExpired):
		errorResponse(c, http.StatusGone, SessionExpiredCode)
	case errors.Is(err, service.ErrQualificationDenied):
		errorResponse(c, http.StatusForbidden, QualificationDeniedCode)
	case errors.Is(err, service.ErrVerificationRequired):
		errorResponse(c, http.StatusConflict, VerificationRequiredCode)
	case errors.Is(err, service.ErrTokenInvalid):
		errorResponse(c, http.StatusForbidden, TokenInvalidCode)
	case errors.Is(err, service.ErrEventNotFound):
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
	case errors.Is(err, service.ErrRegistrationNotFound):
		errorResponse(c, http.StatusNotFound, RegistrationNotFoundCode)
	case errors.Is(err, service.ErrTicketCount):
		errorResponse(c, http.StatusBadRequest, TicketCountCode)
	default:
		logger.Error("internal error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, getErrorStruct(UnknownErrorCode))
	}
}

func validationErrorResponse(c *gin.Context, err error) {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		out := make([]ValidationError, len(verr))
		for i, ferr := range verr {
			out[i] = ValidationError{ferr.Field(), msgForTag(ferr.Tag(), ferr.Param())}
		}
		response := ValidationErrorStruct{
			ErrorCode:    6000,
			ErrorMessage: "Validation error",
		}
		response.Errors = out
		c.AbortWithStatusJSON(http.StatusBadRequest, response)
		return
	}

	errorResponse(c, http.StatusBadRequest, UnknownErrorCode)
}

func msgForTag(tag string, value string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "number":
		return "this field must be numeric"
	case "min":
		return fmt.Sprintf("minimum length is %v", value)
	case "max":
		return fmt.Sprintf("maximum length is %v", value)
	case "phonenumber":
		return "phone number must be in international format"
	}
	return tag
}
