package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventpass/backend/internal/domain"
	"github.com/eventpass/backend/internal/repository"
	"github.com/eventpass/backend/pkg/regflow"

	"github.com/google/uuid"
)

type eventService struct {
	eventRepo repository.Events
}

func newEventService(eventRepo repository.Events) *eventService {
	return &eventService{eventRepo: eventRepo}
}

// GetConfig отдает публичную конфигурацию события. Принимает и канонический
// uuid, и человекочитаемый slug из адреса страницы регистрации.
func (s *eventService) GetConfig(ctx context.Context, idOrSlug string) (*regflow.EventConfig, error) {
	var (
		event *domain.Event
		err   error
	)

	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		event, err = s.eventRepo.GetOneByID(ctx, id)
	} else {
		event, err = s.eventRepo.GetBySlug(ctx, idOrSlug)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event failed: %w", err)
	}

	cfg := event.Config()
	return &cfg, nil
}
