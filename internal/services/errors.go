package services

import (
	"errors"
	"fmt"
	"strings"

	"blinddate-backend/internal/models"
)

// Messages in this file are shown to users as they are.

var (
	ErrOTPNotFound        = errors.New("No OTP found. Please request a new OTP.")
	ErrOTPExpired         = errors.New("OTP has expired. Please request a new OTP.")
	ErrInvalidCode        = errors.New("The code you entered is incorrect.")
	ErrStudentNotFound    = errors.New("Student not found!")
	ErrEventNotFound      = errors.New("Event not found.")
	ErrPartneringNotFound = errors.New("Pairing not found.")
	ErrNothingToClear     = errors.New("No partners to clear.")
	ErrInvalidCredentials = errors.New("Invalid email or password.")
)

// ValidationError is a missing or malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// RateLimitError is returned when an OTP is requested again too soon.
type RateLimitError struct {
	WaitSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Please wait %d seconds before requesting a new OTP.", e.WaitSeconds)
}

// EmptyGroupError means one side of the roster has nobody in it.
type EmptyGroupError struct {
	Gender models.Gender
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("No %s students found.", strings.TrimSuffix(e.Gender.Noun(), "s"))
}

// InsufficientCapacityError means there are fewer secondaries than
// primaries, so someone would be left without a date.
type InsufficientCapacityError struct {
	Primaries   int
	Secondaries int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("Not enough %s to pair with all %s.", models.GenderFemale.Noun(), models.GenderMale.Noun())
}

// ConflictError is a uniqueness violation. Names lists the offending
// students when there are any.
type ConflictError struct {
	Message string
	Names   []string
}

func (e *ConflictError) Error() string { return e.Message }

// PartialFailureError reports the items a best-effort batch could not
// process; the others were processed.
type PartialFailureError struct {
	Op  string
	IDs []string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("Failed to %s: %s", e.Op, strings.Join(e.IDs, ", "))
}

// StorageError wraps a document store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// DispatchError wraps an SMS gateway failure.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return fmt.Sprintf("failed to send sms: %v", e.Err) }

func (e *DispatchError) Unwrap() error { return e.Err }

// storageErr wraps err unless it already carries a domain meaning.
func storageErr(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	var (
		ve *ValidationError
		re *RateLimitError
		ee *EmptyGroupError
		ie *InsufficientCapacityError
		ce *ConflictError
		pe *PartialFailureError
		se *StorageError
		de *DispatchError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &re), errors.As(err, &ee),
		errors.As(err, &ie), errors.As(err, &ce), errors.As(err, &pe),
		errors.As(err, &se), errors.As(err, &de):
		return true
	}
	for _, sentinel := range []error{
		ErrOTPNotFound, ErrOTPExpired, ErrInvalidCode, ErrStudentNotFound,
		ErrEventNotFound, ErrPartneringNotFound, ErrNothingToClear, ErrInvalidCredentials,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
