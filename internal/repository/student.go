package repository

import (
	"context"
	"errors"
	"fmt"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
)

// StudentRepository handles store operations for students
type StudentRepository struct {
	db docstore.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db docstore.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// WithTx returns a repository bound to a transaction
func (r *StudentRepository) WithTx(tx docstore.DB) *StudentRepository {
	return &StudentRepository{db: tx}
}

// Save creates or replaces a student
func (r *StudentRepository) Save(ctx context.Context, student *models.Student) error {
	if err := r.db.Set(ctx, StudentsCollection, student.ID, student); err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

// GetByID retrieves a student by ID number
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	d, err := r.db.Get(ctx, StudentsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return decode[models.Student](d)
}

// Exists reports whether a student with the ID number exists
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.db.Get(ctx, StudentsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check student: %w", err)
	}
	return true, nil
}

// List retrieves all students ordered by ID number
func (r *StudentRepository) List(ctx context.Context) ([]*models.Student, error) {
	docs, err := r.db.List(ctx, StudentsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return decodeStudents(docs)
}

// ListByGender retrieves the students of one gender
func (r *StudentRepository) ListByGender(ctx context.Context, gender models.Gender) ([]*models.Student, error) {
	docs, err := r.db.Query(ctx, StudentsCollection, "gender", gender)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	return decodeStudents(docs)
}

// UpdateFields merges fields into an existing student
func (r *StudentRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if err := r.db.Update(ctx, StudentsCollection, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update student: %w", err)
	}
	return nil
}

// Delete deletes a student by ID number
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.Delete(ctx, StudentsCollection, id); err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	return nil
}

func decodeStudents(docs []*docstore.Document) ([]*models.Student, error) {
	students := make([]*models.Student, 0, len(docs))
	for _, d := range docs {
		s, err := decode[models.Student](d)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, nil
}
