package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const eventLayout = "2006-01-02T15:04"

// EventInput is the editable part of an event
type EventInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
	EndTime     string `json:"endTime" validate:"required"`
}

// EventService manages events
type EventService struct {
	events   *repository.EventRepository
	students *repository.StudentRepository
	nowFunc  func() time.Time
}

// NewEventService creates a new event service
func NewEventService(events *repository.EventRepository, students *repository.StudentRepository) *EventService {
	return &EventService{events: events, students: students, nowFunc: time.Now}
}

// ComputeStatus places now relative to the event window. Times are read
// in now's location.
func ComputeStatus(date, start, end string, now time.Time) (models.EventStatus, error) {
	startAt, err := time.ParseInLocation(eventLayout, date+"T"+start, now.Location())
	if err != nil {
		return "", invalid("Invalid event date or start time.")
	}
	endAt, err := time.ParseInLocation(eventLayout, date+"T"+end, now.Location())
	if err != nil {
		return "", invalid("Invalid event end time.")
	}
	if endAt.Before(startAt) {
		return "", invalid("End time must be after start time.")
	}

	switch {
	case now.Before(startAt):
		return models.EventUpcoming, nil
	case !now.After(endAt):
		return models.EventOngoing, nil
	default:
		return models.EventCompleted, nil
	}
}

// Create adds an event, computing its status and roster size now
func (s *EventService) Create(ctx context.Context, in EventInput) (*models.Event, error) {
	event, err := s.build(ctx, uuid.New().String(), in)
	if err != nil {
		return nil, err
	}
	if err := s.events.Save(ctx, event); err != nil {
		return nil, &StorageError{Op: "save event", Err: err}
	}
	log.Info().Str("event_id", event.ID).Str("status", string(event.Status)).Msg("Event created")
	return event, nil
}

// Update replaces an event, recomputing its status and roster size
func (s *EventService) Update(ctx context.Context, id string, in EventInput) (*models.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	event, err := s.build(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if err := s.events.Save(ctx, event); err != nil {
		return nil, &StorageError{Op: "save event", Err: err}
	}
	return event, nil
}

// Get returns one event
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, &StorageError{Op: "load event", Err: err}
	}
	return event, nil
}

// List returns every event
func (s *EventService) List(ctx context.Context) ([]*models.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list events", Err: err}
	}
	return events, nil
}

// Delete removes an event. Its partnerings are kept.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return &StorageError{Op: "delete event", Err: err}
	}
	log.Info().Str("event_id", id).Msg("Event deleted")
	return nil
}

func (s *EventService) build(ctx context.Context, id string, in EventInput) (*models.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.Date == "" || in.StartTime == "" || in.EndTime == "" {
		return nil, invalid("Please fill in all fields.")
	}
	status, err := ComputeStatus(in.Date, in.StartTime, in.EndTime, s.nowFunc())
	if err != nil {
		return nil, err
	}
	roster, err := s.students.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "count students", Err: err}
	}
	return &models.Event{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Status:      status,
		Students:    len(roster),
	}, nil
}
