package v1

import (
	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/service"
	"github.com/eventpass/backend/pkg/auth"

	"github.com/gin-gonic/gin"
)

// @title Event Registration API
// @version 1.0
// @description Identity verification and submission coordinator for event registration

// @BasePath /

// @securityDefinitions.apikey AttendeeAuth
// @in header
// @name Authorization

type Handler struct {
	services     *service.Services
	tokenManager auth.TokenManager
	config       *config.Config
}

func NewHandler(
	services *service.Services,
	tokenManager auth.TokenManager,
	config *config.Config,
) *Handler {
	return &Handler{
		services:     services,
		tokenManager: tokenManager,
		config:       config,
	}
}

func (h *Handler) Init(api *gin.RouterGroup) {
	h.initEventsRoutes(api)
	h.initVerificationRoutes(api)
	h.initRegistrationRoutes(api)
}
