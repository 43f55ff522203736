package v1

import (
	"net/http"

	"github.com/eventpass/backend/internal/domain"
	"github.com/eventpass/backend/internal/service"
	"github.com/eventpass/backend/pkg/regflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) initVerificationRoutes(api *gin.RouterGroup) {
	register := api.Group("/register")
	register.GET("/session-status", h.sessionStatus)

	otp := register.Group("/otp")
	otp.POST("/generate", h.generateOTP)
	otp.POST("/validate", h.validateOTP)

	session := otp.Group("/session")
	session.POST("/consume", h.consumeSessionToken)
	session.POST("/token", h.issueSessionToken)
}

type generateOTPRequest struct {
	Email         string `json:"email" binding:"required"`
	EventID       string `json:"eventId" binding:"required"`
	DistributorID string `json:"distributorId"`
}

type generateOTPResponse struct {
	Accepted bool   `json:"accepted"`
	DevCode  string `json:"devCode,omitempty"`
}

// @Summary Request verification code
// @Tags Verification
// @Description Sends a one-time code to the email. A repeated request invalidates the previously issued code.
// @ModuleID generateOTP
// @Accept  json
// @Produce  json
// @Param input body generateOTPRequest true "code request"
// @Success 200 {object} generateOTPResponse
// @Failure 400 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Failure 429 {object} ErrorStruct
// @Router /register/otp/generate [post]
func (h *Handler) generateOTP(c *gin.Context) {
	var req generateOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	result, err := h.services.Verification.GenerateCode(c.Request.Context(), service.GenerateCodeInput{
		EventID:       eventID,
		Email:         req.Email,
		DistributorID: req.DistributorID,
	})
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, generateOTPResponse{Accepted: true, DevCode: result.DevCode})
}

type validateOTPRequest struct {
	Email   string `json:"email" binding:"required"`
	Code    string `json:"code" binding:"required"`
	EventID string `json:"eventId" binding:"required"`
}

type validateOTPResponse struct {
	Verified                   bool                    `json:"verified"`
	Profile                    *domain.VerifiedProfile `json:"profile,omitempty"`
	VerifiedByExternalRegistry bool                    `json:"verifiedByExternalRegistry"`
	IsQualified                *bool                   `json:"isQualified,omitempty"`
	QualificationMessage       string                  `json:"qualificationMessage,omitempty"`
}

// @Summary Validate verification code
// @Tags Verification
// @Description Checks the one-time code. The code is single use; for events with a qualifier list the response carries the qualification verdict.
// @ModuleID validateOTP
// @Accept  json
// @Produce  json
// @Param input body validateOTPRequest true "code validation"
// @Success 200 {object} validateOTPResponse
// @Failure 400 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Failure 410 {object} ErrorStruct
// @Router /register/otp/validate [post]
func (h *Handler) validateOTP(c *gin.Context) {
	var req validateOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	result, err := h.services.Verification.ValidateCode(c.Request.Context(), service.ValidateCodeInput{
		EventID: eventID,
		Email:   req.Email,
		Code:    req.Code,
	})
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	response := validateOTPResponse{
		Verified:                   true,
		Profile:                    result.Profile,
		VerifiedByExternalRegistry: result.VerifiedByRegistry,
		QualificationMessage:       result.QualificationMessage,
	}
	if result.QualificationChecked {
		response.IsQualified = &result.IsQualified
	}

	c.JSON(http.StatusOK, response)
}

type sessionStatusResponse struct {
	Verified bool   `json:"verified"`
	Email    string `json:"email"`
}

// @Summary Session status
// @Tags Verification
// @Description Reports whether the (event, email) pair currently holds a verified marker. Stored emails must be re-validated here before being trusted.
// @ModuleID sessionStatus
// @Accept  json
// @Produce  json
// @Param email query string true "email"
// @Param eventId query string true "event id"
// @Success 200 {object} sessionStatusResponse
// @Failure 404 {object} ErrorStruct
// @Router /register/session-status [get]
func (h *Handler) sessionStatus(c *gin.Context) {
	email := c.Query("email")

	eventID, err := uuid.Parse(c.Query("eventId"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	verified, err := h.services.Verification.SessionStatus(c.Request.Context(), eventID, email)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionStatusResponse{Verified: verified, Email: regflow.NormalizeEmail(email)})
}

type consumeTokenRequest struct {
	Token string `json:"token" binding:"required"`
	// Email is advisory; the grant behind the token is authoritative.
	Email   string `json:"email"`
	EventID string `json:"eventId" binding:"required"`
}

type consumeTokenResponse struct {
	Success  bool                    `json:"success"`
	Verified bool                    `json:"verified"`
	Email    string                  `json:"email"`
	Profile  *domain.VerifiedProfile `json:"profile,omitempty"`
}

// @Summary Consume redirect token
// @Tags Verification
// @Description Redeems a one-time cross-device token and establishes the verified session here. The second redemption of the same token fails.
// @ModuleID consumeSessionToken
// @Accept  json
// @Produce  json
// @Param input body consumeTokenRequest true "token"
// @Success 200 {object} consumeTokenResponse
// @Failure 400 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Failure 410 {object} ErrorStruct
// @Router /register/otp/session/consume [post]
func (h *Handler) consumeSessionToken(c *gin.Context) {
	var req consumeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	result, err := h.services.Verification.ConsumeRedirectToken(c.Request.Context(), req.Token, eventID)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, consumeTokenResponse{
		Success:  true,
		Verified: true,
		Email:    result.Email,
		Profile:  result.Profile,
	})
}

type issueTokenRequest struct {
	Email   string `json:"email" binding:"required"`
	EventID string `json:"eventId" binding:"required"`
}

type issueTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// @Summary Issue redirect token
// @Tags Verification
// @Description Mints a one-time token carrying the current verified session to another device or origin. Requires a live verified marker.
// @ModuleID issueSessionToken
// @Accept  json
// @Produce  json
// @Param input body issueTokenRequest true "identity"
// @Success 200 {object} issueTokenResponse
// @Failure 400 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Failure 409 {object} ErrorStruct
// @Router /register/otp/session/token [post]
func (h *Handler) issueSessionToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	token, err := h.services.Verification.IssueRedirectToken(c.Request.Context(), eventID, req.Email)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, issueTokenResponse{Success: true, Token: token})
}
