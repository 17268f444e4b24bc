package repository

import (
	"context"
	"errors"
	"fmt"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
)

// IdentityRepository stores the login credential of each student, keyed
// by student ID.
type IdentityRepository struct {
	db docstore.DB
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db docstore.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// WithTx returns a repository bound to a transaction
func (r *IdentityRepository) WithTx(tx docstore.DB) *IdentityRepository {
	return &IdentityRepository{db: tx}
}

// Save creates or replaces the identity of a student
func (r *IdentityRepository) Save(ctx context.Context, identity *models.Identity) error {
	if err := r.db.Set(ctx, IdentitiesCollection, identity.StudentID, identity); err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}

// GetByStudentID retrieves the identity of a student
func (r *IdentityRepository) GetByStudentID(ctx context.Context, studentID string) (*models.Identity, error) {
	d, err := r.db.Get(ctx, IdentitiesCollection, studentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return decode[models.Identity](d)
}

// Delete revokes the identity of a student
func (r *IdentityRepository) Delete(ctx context.Context, studentID string) error {
	if err := r.db.Delete(ctx, IdentitiesCollection, studentID); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}
