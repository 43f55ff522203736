package v1

import (
	"errors"
	"net/http"

	"github.com/eventpass/backend/internal/domain"
	"github.com/eventpass/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) initRegistrationRoutes(api *gin.RouterGroup) {
	events := api.Group("/events")
	events.POST("/:eventId/register", h.submitRegistration)
	events.PUT("/:eventId/register/:registrationId", h.attendeeIdentityMiddleware, h.updateRegistration)

	register := api.Group("/register")
	register.POST("/existing", h.existingRegistration)

	attendee := api.Group("/attendee")
	attendee.GET("/registration/:eventId", h.attendeeIdentityMiddleware, h.attendeeRegistration)
}

type registrationView struct {
	ID            string            `json:"id"`
	EventID       string            `json:"eventId"`
	Email         string            `json:"email"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	Phone         string            `json:"phone"`
	DistributorID string            `json:"distributorId"`
	FormData      map[string]string `json:"formData"`
	AttendeeCount int               `json:"attendeeCount"`
}

type attendeeView struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

func newRegistrationView(registration *domain.Registration) *registrationView {
	return &registrationView{
		ID:            registration.ID.String(),
		EventID:       registration.EventID.String(),
		Email:         registration.Email,
		FirstName:     registration.FirstName,
		LastName:      registration.LastName,
		Phone:         registration.Phone,
		DistributorID: registration.DistributorID,
		FormData:      registration.FormData,
		AttendeeCount: registration.AttendeeCount,
	}
}

func newAttendeeViews(attendees []domain.Attendee) []attendeeView {
	views := make([]attendeeView, 0, len(attendees))
	for _, attendee := range attendees {
		views = append(views, attendeeView{
			FirstName: attendee.FirstName,
			LastName:  attendee.LastName,
			Email:     attendee.Email,
			Phone:     attendee.Phone,
		})
	}
	return views
}

type attendeeRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type submitRequest struct {
	Email         string            `json:"email"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	Phone         string            `json:"phone"`
	DistributorID string            `json:"distributorId"`
	FormData      map[string]string `json:"formData"`
	// ExistingRegistrationID is advisory: create is an upsert on
	// (eventId, email), so the id the client remembers does not steer the write.
	ExistingRegistrationID string            `json:"existingRegistrationId"`
	TicketCount            int               `json:"ticketCount"`
	Attendees              []attendeeRequest `json:"attendees"`
}

type submitResponse struct {
	Success        bool   `json:"success"`
	RegistrationID string `json:"registrationId"`
	AttendeeToken  string `json:"attendeeToken,omitempty"`
}

type existingRegistrationRequest struct {
	Email   string `json:"email" binding:"required"`
	EventID string `json:"eventId" binding:"required"`
}

type existingRegistrationResponse struct {
	Success      bool              `json:"success"`
	Exists       bool              `json:"exists"`
	Registration *registrationView `json:"registration,omitempty"`
	Attendees    []attendeeView    `json:"attendees,omitempty"`
}

// @Summary Submit registration
// @Tags Registration
// @Description Creates the registration for the event. Verified modes require a live verified marker or a confirmed invitation link; a missing marker answers 409 and the client re-enters the code step.
// @ModuleID submitRegistration
// @Accept  json
// @Produce  json
// @Param eventId path string true "event id"
// @Param input body submitRequest true "registration"
// @Success 200 {object} submitResponse
// @Failure 400 {object} MissingFieldsStruct
// @Failure 403 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Failure 409 {object} ErrorStruct
// @Router /events/{eventId}/register [post]
func (h *Handler) submitRegistration(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	result, err := h.services.Registrations.Submit(c.Request.Context(), service.SubmitInput{
		EventID:       eventID,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		DistributorID: req.DistributorID,
		FormData:      req.FormData,
		TicketCount:   req.TicketCount,
		Attendees:     attendeeInputs(req.Attendees),
	})
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, submitResponse{
		Success:        true,
		RegistrationID: result.Registration.ID.String(),
		AttendeeToken:  result.AttendeeToken,
	})
}

// @Summary Update registration
// @Tags Registration
// @Description Rewrites a prior submission. The attendee token names the record; the stored email is immutable.
// @ModuleID updateRegistration
// @Accept  json
// @Produce  json
// @Param eventId path string true "event id"
// @Param registrationId path string true "registration id"
// @Param input body submitRequest true "registration"
// @Success 200 {object} submitResponse
// @Failure 400 {object} MissingFieldsStruct
// @Failure 401 {object} ErrorStruct
// @Failure 403 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Security AttendeeAuth
// @Router /events/{eventId}/register/{registrationId} [put]
func (h *Handler) updateRegistration(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	registrationID, err := uuid.Parse(c.Param("registrationId"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, RegistrationNotFoundCode)
		return
	}

	claims, err := h.getAttendeeClaims(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, TokenInvalidCode)
		return
	}

	if claims.RegistrationID != registrationID || claims.EventID != eventID {
		errorResponse(c, http.StatusForbidden, TokenInvalidCode)
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	result, err := h.services.Registrations.Update(c.Request.Context(), service.UpdateInput{
		Claims:         claims,
		RegistrationID: registrationID,
		EventID:        eventID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		FormData:       req.FormData,
		TicketCount:    req.TicketCount,
		Attendees:      attendeeInputs(req.Attendees),
	})
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, submitResponse{
		Success:        true,
		RegistrationID: result.Registration.ID.String(),
		AttendeeToken:  result.AttendeeToken,
	})
}

// @Summary Existing registration by verified session
// @Tags Registration
// @Description Looks up the prior submission for an OTP-verified identity. A lapsed session answers 403; the client returns to email entry.
// @ModuleID existingRegistration
// @Accept  json
// @Produce  json
// @Param input body existingRegistrationRequest true "identity"
// @Success 200 {object} existingRegistrationResponse
// @Failure 403 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Router /register/existing [post]
func (h *Handler) existingRegistration(c *gin.Context) {
	var req existingRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationErrorResponse(c, err)
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	registration, attendees, err := h.services.Registrations.GetExistingBySession(c.Request.Context(), eventID, req.Email)
	if errors.Is(err, service.ErrRegistrationNotFound) {
		c.JSON(http.StatusOK, existingRegistrationResponse{Success: true, Exists: false})
		return
	}
	if errors.Is(err, service.ErrSessionExpired) {
		// Протухшая сессия на этом эндпоинте отвечает 403: клиент обязан
		// вернуть пользователя на ввод почты.
		errorResponse(c, http.StatusForbidden, SessionExpiredCode)
		return
	}
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, existingRegistrationResponse{
		Success:      true,
		Exists:       true,
		Registration: newRegistrationView(registration),
		Attendees:    newAttendeeViews(attendees),
	})
}

// @Summary Registration by attendee token
// @Tags Registration
// @Description Looks up the prior submission named by the long-lived attendee token.
// @ModuleID attendeeRegistration
// @Accept  json
// @Produce  json
// @Param eventId path string true "event id"
// @Success 200 {object} existingRegistrationResponse
// @Failure 401 {object} ErrorStruct
// @Failure 403 {object} ErrorStruct
// @Failure 404 {object} ErrorStruct
// @Security AttendeeAuth
// @Router /attendee/registration/{eventId} [get]
func (h *Handler) attendeeRegistration(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, EventNotFoundCode)
		return
	}

	claims, err := h.getAttendeeClaims(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, TokenInvalidCode)
		return
	}

	if claims.EventID != eventID {
		errorResponse(c, http.StatusForbidden, TokenInvalidCode)
		return
	}

	registration, attendees, err := h.services.Registrations.GetForAttendee(c.Request.Context(), claims)
	if errors.Is(err, service.ErrRegistrationNotFound) {
		c.JSON(http.StatusOK, existingRegistrationResponse{Success: true, Exists: false})
		return
	}
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, existingRegistrationResponse{
		Success:      true,
		Exists:       true,
		Registration: newRegistrationView(registration),
		Attendees:    newAttendeeViews(attendees),
	})
}

func attendeeInputs(attendees []attendeeRequest) []service.AttendeeInput {
	inputs := make([]service.AttendeeInput, 0, len(attendees))
	for _, attendee := range attendees {
		inputs = append(inputs, service.AttendeeInput{
			FirstName: attendee.FirstName,
			LastName:  attendee.LastName,
			Email:     attendee.Email,
			Phone:     attendee.Phone,
		})
	}
	return inputs
}
