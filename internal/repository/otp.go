package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
)

// OTPRepository stores one passcode per student. The issue time is the
// store's write timestamp.
type OTPRepository struct {
	db docstore.DB
}

// NewOTPRepository creates a new OTP repository
func NewOTPRepository(db docstore.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// WithTx returns a repository bound to a transaction
func (r *OTPRepository) WithTx(tx docstore.DB) *OTPRepository {
	return &OTPRepository{db: tx}
}

// Get retrieves the live record for a student
func (r *OTPRepository) Get(ctx context.Context, subjectID string) (*models.OTPRecord, error) {
	d, err := r.db.Get(ctx, OTPCollection, subjectID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	rec, err := decode[models.OTPRecord](d)
	if err != nil {
		return nil, err
	}
	rec.SubjectID = d.Key
	rec.IssuedAt = d.CreateTime
	return rec, nil
}

// Put creates or replaces the record, restarting its issue time
func (r *OTPRepository) Put(ctx context.Context, subjectID, code string) error {
	rec := models.OTPRecord{Code: code}
	if err := r.db.Set(ctx, OTPCollection, subjectID, rec); err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

// Delete deletes the record for a student
func (r *OTPRepository) Delete(ctx context.Context, subjectID string) error {
	if err := r.db.Delete(ctx, OTPCollection, subjectID); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

// DeleteIfIssuedBefore removes the record only when it was issued before
// cutoff and reports whether it did. Inside a transaction the check and the
// delete cannot interleave with a re-issue.
func (r *OTPRepository) DeleteIfIssuedBefore(ctx context.Context, subjectID string, cutoff time.Time) (bool, error) {
	d, err := r.db.Get(ctx, OTPCollection, subjectID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get otp: %w", err)
	}
	if !d.CreateTime.Before(cutoff) {
		return false, nil
	}
	if err := r.db.Delete(ctx, OTPCollection, subjectID); err != nil {
		return false, fmt.Errorf("failed to delete otp: %w", err)
	}
	return true, nil
}

// ListIssueTimes returns every record with only SubjectID and IssuedAt set.
// Bodies are not decoded so malformed records still expire.
func (r *OTPRepository) ListIssueTimes(ctx context.Context) ([]models.OTPRecord, error) {
	docs, err := r.db.List(ctx, OTPCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list otps: %w", err)
	}
	out := make([]models.OTPRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.OTPRecord{SubjectID: d.Key, IssuedAt: d.CreateTime})
	}
	return out, nil
}
