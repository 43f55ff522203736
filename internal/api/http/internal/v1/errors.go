package v1

// Errors
const (
	UnknownErrorCode    = 0
	UnknownErrorMessage = "unknown error"

	InvalidEmailCode    = 2001
	InvalidEmailMessage = "invalid email"

	RateLimitedCode    = 2002
	RateLimitedMessage = "too many code requests"

	InvalidCodeCode    = 2003
	InvalidCodeMessage = "invalid verification code"

	SessionExpiredCode    = 2004
	SessionExpiredMessage = "verification session expired"

	QualificationDeniedCode    = 2005
	QualificationDeniedMessage = "email is not qualified for this event"

	TokenInvalidCode    = 2006
	TokenInvalidMessage = "attendee token invalid"

	VerificationRequiredCode    = 2007
	VerificationRequiredMessage = "verification required"

	EventNotFoundCode    = 2008
	EventNotFoundMessage = "event not found"

	RegistrationNotFoundCode    = 2009
	RegistrationNotFoundMessage = "registration not found"

	TicketCountCode    = 2010
	TicketCountMessage = "invalid ticket count"

	ValidationFailedCode    = 2012
	ValidationFailedMessage = "missing required fields"
)

type ErrorCode int
type ErrorMessage string

type ErrorStruct struct {
	ErrorCode    `json:"error_code"`
	ErrorMessage `json:"error_message"`
} // @name ErrorStruct

type ValidationErrorStruct struct {
	ErrorCode    int               `json:"error_code"`
	ErrorMessage string            `json:"error_message"`
	Errors       []ValidationError `json:"validation_errors"`
}

type ValidationError struct {
	FieldKey     string `json:"field_key"`
	ErrorMessage string `json:"error_message"`
}

// MissingFieldsStruct is the envelope for failed form validation. Missing
// carries every unmet required field, not just the first one.
type MissingFieldsStruct struct {
	ErrorCode    int      `json:"error_code"`
	ErrorMessage string   `json:"error_message"`
	Missing      []string `json:"missing"`
} // @name MissingFieldsStruct

func getErrorStruct(code ErrorCode) *ErrorStruct {
	errorStruct := &ErrorStruct{
		ErrorCode:    UnknownErrorCode,
		ErrorMessage: UnknownErrorMessage,
	}

	switch code {
	case InvalidEmailCode:
		errorStruct.ErrorCode = InvalidEmailCode
		errorStruct.ErrorMessage = InvalidEmailMessage
	case RateLimitedCode:
		errorStruct.ErrorCode = RateLimitedCode
		errorStruct.ErrorMessage = RateLimitedMessage
	case InvalidCodeCode:
		errorStruct.ErrorCode = InvalidCodeCode
		errorStruct.ErrorMessage = InvalidCodeMessage
	case SessionExpiredCode:
		errorStruct.ErrorCode = SessionExpiredCode
		errorStruct.ErrorMessage = SessionExpiredMessage
	case QualificationDeniedCode:
		errorStruct.ErrorCode = QualificationDeniedCode
		errorStruct.ErrorMessage = QualificationDeniedMessage
	case TokenInvalidCode:
		errorStruct.ErrorCode = TokenInvalidCode
		errorStruct.ErrorMessage = TokenInvalidMessage
	case VerificationRequiredCode:
		errorStruct.ErrorCode = VerificationRequiredCode
		errorStruct.ErrorMessage = VerificationRequiredMessage
	case EventNotFoundCode:
		errorStruct.ErrorCode = EventNotFoundCode
		errorStruct.ErrorMessage = EventNotFoundMessage
	case RegistrationNotFoundCode:
		errorStruct.ErrorCode = RegistrationNotFoundCode
		errorStruct.ErrorMessage = RegistrationNotFoundMessage
	case TicketCountCode:
		errorStruct.ErrorCode = TicketCountCode
		errorStruct.ErrorMessage = TicketCountMessage
	case ValidationFailedCode:
		errorStruct.ErrorCode = ValidationFailedCode
		errorStruct.ErrorMessage = ValidationFailedMessage
	}

	return errorStruct
}
