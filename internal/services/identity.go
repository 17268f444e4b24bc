package services

import (
	"context"
	"errors"
	"time"

	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// IdentityService tracks which students may hold a session
type IdentityService struct {
	identities *repository.IdentityRepository
	students   *repository.StudentRepository
	nowFunc    func() time.Time
}

// NewIdentityService creates a new identity service
func NewIdentityService(identities *repository.IdentityRepository, students *repository.StudentRepository) *IdentityService {
	return &IdentityService{identities: identities, students: students, nowFunc: time.Now}
}

// Ensure returns the identity of an existing student, creating it for
// students added before identities were recorded.
func (s *IdentityService) Ensure(ctx context.Context, studentID string) (*models.Identity, error) {
	identity, err := s.identities.GetByStudentID(ctx, studentID)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, &StorageError{Op: "load identity", Err: err}
	}

	exists, err := s.students.Exists(ctx, studentID)
	if err != nil {
		return nil, &StorageError{Op: "check student", Err: err}
	}
	if !exists {
		return nil, ErrStudentNotFound
	}
	identity = &models.Identity{
		UID:       uuid.New().String(),
		StudentID: studentID,
		CreatedAt: s.nowFunc().UTC(),
	}
	if err := s.identities.Save(ctx, identity); err != nil {
		return nil, &StorageError{Op: "save identity", Err: err}
	}
	log.Info().Str("student_id", studentID).Msg("Identity created")
	return identity, nil
}

// Active reports whether the student still has an identity
func (s *IdentityService) Active(ctx context.Context, studentID string) (bool, error) {
	_, err := s.identities.GetByStudentID(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "load identity", Err: err}
	}
	return true, nil
}
