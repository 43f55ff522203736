package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/eventpass/backend/pkg/auth"
	"github.com/eventpass/backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	authorizationHeader = "Authorization"
	attendeeCtx         = "attendeeClaims"
)

func (h *Handler) attendeeIdentityMiddleware(c *gin.Context) {
	claims, err := h.parseAuthHeader(c)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			logger.Error("parse auth header failed", zap.Error(err))
		}
		errorResponse(c, http.StatusUnauthorized, TokenInvalidCode)
		return
	}

	c.Set(attendeeCtx, claims)
}

func (h *Handler) parseAuthHeader(c *gin.Context) (*auth.AttendeeClaims, error) {
	header := c.GetHeader(authorizationHeader)
	if header == "" {
		return nil, errors.New("empty auth header")
	}

	headerParts := strings.Split(header, " ")
	if len(headerParts) != 2 || headerParts[0] != "Bearer" {
		return nil, errors.New("invalid auth header")
	}

	if len(headerParts[1]) == 0 {
		return nil, errors.New("token is empty")
	}

	return h.tokenManager.ParseAttendeeToken(headerParts[1])
}

func (h *Handler) getAttendeeClaims(c *gin.Context) (*auth.AttendeeClaims, error) {
	value, ok := c.Get(attendeeCtx)
	if !ok {
		return nil, errors.New("attendee claims not found")
	}

	claims, ok := value.(*auth.AttendeeClaims)
	if !ok {
		return nil, errors.New("attendee claims have wrong type")
	}

	return claims, nil
}
