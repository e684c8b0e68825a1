package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "seatkeeper/internal/errors"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/models"
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	List(ctx context.Context, query string, page, pageSize int) ([]models.Event, error)
}

type EventService struct {
	repo EventRepository
	now  func() time.Time
}

func NewEventService(repo EventRepository) *EventService {
	return &EventService{repo: repo, now: time.Now}
}

// Create registers an event with a fixed seat capacity.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Malformed(err)
	}

	event := &models.Event{
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		EventDate:   req.EventDate,
		TotalSeats:  req.TotalSeats,
	}
	if event.EventDate.IsZero() {
		event.EventDate = s.now().UTC()
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	logger.WithContext(ctx).Info("Event created",
		"event_id", event.ID, "name", event.Name, "total_seats", event.TotalSeats)
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (s *EventService) List(ctx context.Context, query string, page, pageSize int) (*models.ListEventsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	events, err := s.repo.List(ctx, query, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return &models.ListEventsResponse{Items: events, Page: page, PageSize: pageSize}, nil
}
