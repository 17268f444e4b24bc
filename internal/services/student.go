package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var csvHeader = []string{"idNumber", "name", "phone", "gender", "hall", "room"}

// StudentInput is the editable part of a student
type StudentInput struct {
	ID     string `json:"idNumber"`
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone" validate:"required"`
	Gender string `json:"gender" validate:"required"`
	Hall   string `json:"hall" validate:"required"`
	Room   string `json:"room" validate:"required"`
}

// ImportFailure is one CSV row that was not imported
type ImportFailure struct {
	Row    int    `json:"row"`
	ID     string `json:"idNumber,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult summarises a CSV import
type ImportResult struct {
	Created int             `json:"created"`
	Failed  []ImportFailure `json:"failed"`
}

// StudentService manages the roster
type StudentService struct {
	store      docstore.Store
	students   *repository.StudentRepository
	identities *repository.IdentityRepository
	nowFunc    func() time.Time
}

// NewStudentService creates a new student service
func NewStudentService(store docstore.Store, students *repository.StudentRepository, identities *repository.IdentityRepository) *StudentService {
	return &StudentService{
		store:      store,
		students:   students,
		identities: identities,
		nowFunc:    time.Now,
	}
}

// NormalizeID prepends the leading zero index numbers are written with.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id != "" && !strings.HasPrefix(id, "0") {
		id = "0" + id
	}
	return id
}

// NormalizePhone prepends the trunk zero to local numbers. Numbers in
// international format are kept.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone != "" && !strings.HasPrefix(phone, "0") && !strings.HasPrefix(phone, "+") {
		phone = "0" + phone
	}
	return phone
}

func (in StudentInput) toModel() (*models.Student, error) {
	student := &models.Student{
		ID:    NormalizeID(in.ID),
		Name:  strings.TrimSpace(in.Name),
		Phone: NormalizePhone(in.Phone),
		Hall:  strings.TrimSpace(in.Hall),
		Room:  strings.TrimSpace(in.Room),
	}
	if student.ID == "" || student.Name == "" || student.Phone == "" ||
		student.Hall == "" || student.Room == "" || strings.TrimSpace(in.Gender) == "" {
		return nil, invalid("Please fill in all fields.")
	}
	gender, err := models.ParseGender(in.Gender)
	if err != nil {
		return nil, invalid("Gender must be MALE or FEMALE.")
	}
	student.Gender = gender
	return student, nil
}

// Create adds a student and its login identity
func (s *StudentService) Create(ctx context.Context, in StudentInput) (*models.Student, error) {
	student, err := in.toModel()
	if err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
		students := s.students.WithTx(tx)
		exists, err := students.Exists(ctx, student.ID)
		if err != nil {
			return &StorageError{Op: "check student", Err: err}
		}
		if exists {
			return &ConflictError{Message: "Student with this ID Number already exists!"}
		}
		if err := students.Save(ctx, student); err != nil {
			return &StorageError{Op: "save student", Err: err}
		}
		identity := &models.Identity{
			UID:       uuid.New().String(),
			StudentID: student.ID,
			CreatedAt: s.nowFunc().UTC(),
		}
		if err := s.identities.WithTx(tx).Save(ctx, identity); err != nil {
			return &StorageError{Op: "save identity", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("create student", err)
	}

	log.Info().Str("student_id", student.ID).Str("gender", string(student.Gender)).Msg("Student created")
	return student, nil
}

// Update replaces the editable fields of a student. The ID number is the
// key and cannot change; the profile picture is kept.
func (s *StudentService) Update(ctx context.Context, id string, in StudentInput) (*models.Student, error) {
	in.ID = id
	student, err := in.toModel()
	if err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
		students := s.students.WithTx(tx)
		current, err := students.GetByID(ctx, student.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrStudentNotFound
			}
			return &StorageError{Op: "load student", Err: err}
		}
		student.ProfilePicURL = current.ProfilePicURL
		if err := students.Save(ctx, student); err != nil {
			return &StorageError{Op: "save student", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("update student", err)
	}
	return student, nil
}

// UpdateProfile is the student's own profile edit. Empty values are left
// unchanged.
func (s *StudentService) UpdateProfile(ctx context.Context, id, name, profilePicURL string) (*models.Student, error) {
	fields := map[string]any{}
	if name = strings.TrimSpace(name); name != "" {
		fields["name"] = name
	}
	if profilePicURL != "" {
		fields["profilePicUrl"] = profilePicURL
	}
	if len(fields) == 0 {
		return nil, invalid("Nothing to update.")
	}
	if err := s.students.UpdateFields(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, &StorageError{Op: "update profile", Err: err}
	}
	return s.Get(ctx, id)
}

// Get returns one student
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}
	return student, nil
}

// List returns the whole roster
func (s *StudentService) List(ctx context.Context) ([]*models.Student, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list students", Err: err}
	}
	return students, nil
}

// Delete removes a student and then revokes its identity. A failed
// revocation is logged and does not fail the delete.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	exists, err := s.students.Exists(ctx, id)
	if err != nil {
		return &StorageError{Op: "check student", Err: err}
	}
	if !exists {
		return ErrStudentNotFound
	}
	if err := s.students.Delete(ctx, id); err != nil {
		return &StorageError{Op: "delete student", Err: err}
	}
	if err := s.identities.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("student_id", id).Msg("Student deleted but identity revocation failed")
	}
	log.Info().Str("student_id", id).Msg("Student deleted")
	return nil
}

// DeleteMany deletes each student in turn and reports the ones that failed.
func (s *StudentService) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, invalid("Please select at least one student.")
	}
	var failed []string
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			log.Error().Err(err).Str("student_id", id).Msg("Bulk delete failed for student")
			failed = append(failed, id)
		}
	}
	deleted := len(ids) - len(failed)
	if len(failed) > 0 {
		return deleted, &PartialFailureError{Op: "delete students", IDs: failed}
	}
	return deleted, nil
}

// ImportCSV creates one student per row after the header row. Rows that
// cannot be created are collected, not fatal.
func (s *StudentService) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, invalid("Could not read CSV file: %v", err)
	}
	if len(rows) < 2 {
		return nil, invalid("The CSV file has no students.")
	}

	result := &ImportResult{Failed: []ImportFailure{}}
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) < len(csvHeader) {
			result.Failed = append(result.Failed, ImportFailure{Row: line, Reason: "expected 6 columns"})
			continue
		}
		in := StudentInput{ID: row[0], Name: row[1], Phone: row[2], Gender: row[3], Hall: row[4], Room: row[5]}
		if _, err := s.Create(ctx, in); err != nil {
			var se *StorageError
			if errors.As(err, &se) {
				log.Error().Err(err).Int("row", line).Msg("CSV import row failed")
			}
			result.Failed = append(result.Failed, ImportFailure{Row: line, ID: NormalizeID(in.ID), Reason: err.Error()})
			continue
		}
		result.Created++
	}

	log.Info().Int("created", result.Created).Int("failed", len(result.Failed)).Msg("CSV import finished")
	return result, nil
}

// ExportCSV writes the roster in the import format
func (s *StudentService) ExportCSV(ctx context.Context, w io.Writer) error {
	students, err := s.List(ctx)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	for _, st := range students {
		record := []string{st.ID, st.Name, st.Phone, string(st.Gender), st.Hall, st.Room}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
