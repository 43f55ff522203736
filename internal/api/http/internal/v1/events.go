package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) initEventsRoutes(api *gin.RouterGroup) {
	events := api.Group("/events")
	events.GET("/:eventId", h.getEventConfig)
}

// @Summary Get event configuration
// @Tags Events
// @Description Returns the registration-related configuration of an event: resolved mode inputs, ticket limit and the ordered field template list. Accepts the event id or its slug.
// @ModuleID getEventConfig
// @Accept  json
// @Produce  json
// @Param eventId path string true "event id or slug"
// @Success 200 {object} regflow.EventConfig
// @Failure 404 {object} ErrorStruct
// @Router /events/{eventId} [get]
func (h *Handler) getEventConfig(c *gin.Context) {
	config, err := h.services.Events.GetConfig(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, config)
}
