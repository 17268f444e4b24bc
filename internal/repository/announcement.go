package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"

	"github.com/google/uuid"
)

// AnnouncementRepository handles store operations for announcements
type AnnouncementRepository struct {
	db  docstore.DB
	now func() time.Time
}

// NewAnnouncementRepository creates a new announcement repository
func NewAnnouncementRepository(db docstore.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db, now: time.Now}
}

// Create stores one announcement record
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	if err := r.db.Set(ctx, AnnouncementsCollection, a.ID, a); err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

// List retrieves announcements, newest first
func (r *AnnouncementRepository) List(ctx context.Context) ([]*models.Announcement, error) {
	docs, err := r.db.List(ctx, AnnouncementsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	out := make([]*models.Announcement, 0, len(docs))
	for _, d := range docs {
		a, err := decode[models.Announcement](d)
		if err != nil {
			return nil, err
		}
		a.ID = d.Key
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
