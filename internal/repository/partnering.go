package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"

	"github.com/google/uuid"
)

// PartneringRepository handles store operations for partnerings
type PartneringRepository struct {
	db  docstore.DB
	now func() time.Time
}

// NewPartneringRepository creates a new partnering repository
func NewPartneringRepository(db docstore.DB) *PartneringRepository {
	return &PartneringRepository{db: db, now: time.Now}
}

// WithTx returns a repository bound to a transaction
func (r *PartneringRepository) WithTx(tx docstore.DB) *PartneringRepository {
	return &PartneringRepository{db: tx, now: r.now}
}

// Create creates a new partnering, assigning its ID and creation time
func (r *PartneringRepository) Create(ctx context.Context, p *models.Partnering) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	if err := r.db.Set(ctx, PartnersCollection, p.ID, p); err != nil {
		return fmt.Errorf("failed to create partnering: %w", err)
	}
	return nil
}

// GetByID retrieves a partnering by ID
func (r *PartneringRepository) GetByID(ctx context.Context, id string) (*models.Partnering, error) {
	d, err := r.db.Get(ctx, PartnersCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get partnering: %w", err)
	}
	return decodePartnering(d)
}

// List retrieves every partnering, oldest first
func (r *PartneringRepository) List(ctx context.Context) ([]*models.Partnering, error) {
	docs, err := r.db.List(ctx, PartnersCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerings: %w", err)
	}
	return decodePartnerings(docs)
}

// ListByEvent retrieves the partnerings of one event, oldest first
func (r *PartneringRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.Partnering, error) {
	docs, err := r.db.Query(ctx, PartnersCollection, "eventId", eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query partnerings: %w", err)
	}
	return decodePartnerings(docs)
}

// ListIDs returns the key of every partnering without decoding bodies
func (r *PartneringRepository) ListIDs(ctx context.Context) ([]string, error) {
	docs, err := r.db.List(ctx, PartnersCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerings: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.Key)
	}
	return ids, nil
}

// UpdateSecondaries overwrites only the secondaries field
func (r *PartneringRepository) UpdateSecondaries(ctx context.Context, id string, secondaries []models.StudentSnapshot) error {
	err := r.db.Update(ctx, PartnersCollection, id, map[string]any{"secondaries": secondaries})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update partnering: %w", err)
	}
	return nil
}

// Delete deletes a partnering by ID
func (r *PartneringRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.Delete(ctx, PartnersCollection, id); err != nil {
		return fmt.Errorf("failed to delete partnering: %w", err)
	}
	return nil
}

func decodePartnering(d *docstore.Document) (*models.Partnering, error) {
	p, err := decode[models.Partnering](d)
	if err != nil {
		return nil, err
	}
	p.ID = d.Key
	return p, nil
}

func decodePartnerings(docs []*docstore.Document) ([]*models.Partnering, error) {
	out := make([]*models.Partnering, 0, len(docs))
	for _, d := range docs {
		p, err := decodePartnering(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
