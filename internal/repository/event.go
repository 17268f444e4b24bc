package repository

import (
	"context"
	"errors"
	"fmt"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
)

// EventRepository handles store operations for events
type EventRepository struct {
	db docstore.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db docstore.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Save creates or replaces an event
func (r *EventRepository) Save(ctx context.Context, event *models.Event) error {
	if err := r.db.Set(ctx, EventsCollection, event.ID, event); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	d, err := r.db.Get(ctx, EventsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	event, err := decode[models.Event](d)
	if err != nil {
		return nil, err
	}
	event.ID = d.Key
	return event, nil
}

// List retrieves all events
func (r *EventRepository) List(ctx context.Context) ([]*models.Event, error) {
	docs, err := r.db.List(ctx, EventsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]*models.Event, 0, len(docs))
	for _, d := range docs {
		e, err := decode[models.Event](d)
		if err != nil {
			return nil, err
		}
		e.ID = d.Key
		events = append(events, e)
	}
	return events, nil
}

// Delete deletes an event by ID
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.Delete(ctx, EventsCollection, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
