package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/metrics"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"
	"blinddate-backend/internal/sms"

	"github.com/rs/zerolog/log"
)

const (
	// OTPTTL is how long an issued code stays valid.
	OTPTTL = 300 * time.Second
	// OTPResendInterval is the minimum time between two issues for one student.
	OTPResendInterval = 60 * time.Second

	otpMin     = 100000
	otpMax     = 999999
	otpMessage = "Your OTP code is %s. It expires in 5 minutes."
)

// OTPOptions configures OTPService
type OTPOptions struct {
	// Sender is the SMS sender label.
	Sender string
	// SingleUse deletes a record once it has been verified.
	SingleUse bool
}

// OTPService issues, verifies and expires one-time passcodes
type OTPService struct {
	store     docstore.Store
	otps      *repository.OTPRepository
	students  *repository.StudentRepository
	sender    sms.Dispatcher
	from      string
	singleUse bool

	nowFunc  func() time.Time
	codeFunc func() (string, error)
}

// NewOTPService creates a new OTP service
func NewOTPService(store docstore.Store, students *repository.StudentRepository, sender sms.Dispatcher, opts OTPOptions) *OTPService {
	return &OTPService{
		store:     store,
		otps:      repository.NewOTPRepository(store),
		students:  students,
		sender:    sender,
		from:      opts.Sender,
		singleUse: opts.SingleUse,
		nowFunc:   time.Now,
		codeFunc:  generateOTP,
	}
}

// generateOTP returns a uniform 6-digit code in [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// Issue creates or replaces the code for subjectID and texts it to phone.
// The rate limit check and the write happen in one transaction; the SMS is
// sent only after the write committed.
func (s *OTPService) Issue(ctx context.Context, subjectID, phone string) error {
	if subjectID == "" || phone == "" {
		metrics.OTPIssued.WithLabelValues(metrics.OutcomeRejected).Inc()
		return invalid("Phone number and student ID are required.")
	}

	var code string
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
		otps := s.otps.WithTx(tx)

		rec, err := otps.Get(ctx, subjectID)
		switch {
		case err == nil:
			elapsed := s.nowFunc().Sub(rec.IssuedAt)
			if elapsed < 0 {
				elapsed = 0
			}
			if elapsed < OTPResendInterval {
				wait := int(OTPResendInterval/time.Second) - int(math.Floor(elapsed.Seconds()))
				return &RateLimitError{WaitSeconds: wait}
			}
		case errors.Is(err, repository.ErrNotFound):
		default:
			return &StorageError{Op: "read otp", Err: err}
		}

		code, err = s.codeFunc()
		if err != nil {
			return err
		}
		if err := otps.Put(ctx, subjectID, code); err != nil {
			return &StorageError{Op: "write otp", Err: err}
		}
		return nil
	})
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			metrics.OTPIssued.WithLabelValues(metrics.OutcomeRejected).Inc()
			log.Info().
				Str("student_id", subjectID).
				Int("wait_seconds", rl.WaitSeconds).
				Msg("OTP request rate limited")
			return err
		}
		metrics.OTPIssued.WithLabelValues(metrics.OutcomeError).Inc()
		log.Error().Err(err).Str("student_id", subjectID).Msg("Failed to store OTP")
		return storageErr("issue otp", err)
	}

	if err := s.sender.Send(ctx, phone, s.from, fmt.Sprintf(otpMessage, code)); err != nil {
		metrics.OTPIssued.WithLabelValues(metrics.OutcomeError).Inc()
		metrics.SMSSent.WithLabelValues("otp", metrics.OutcomeError).Inc()
		log.Error().
			Err(err).
			Str("student_id", subjectID).
			Msg("OTP stored but SMS dispatch failed")
		return &DispatchError{Err: err}
	}

	metrics.OTPIssued.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.SMSSent.WithLabelValues("otp", metrics.OutcomeOK).Inc()
	log.Info().Str("student_id", subjectID).Msg("OTP issued")
	return nil
}

// IssueToStudent issues a code for studentID only when phone is the number
// on file. The code is texted to the stored number.
func (s *OTPService) IssueToStudent(ctx context.Context, studentID, phone string) error {
	studentID = NormalizeID(studentID)
	phone = NormalizePhone(phone)
	if studentID == "" || phone == "" {
		metrics.OTPIssued.WithLabelValues(metrics.OutcomeRejected).Inc()
		return invalid("Phone number and student ID are required.")
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if phone != NormalizePhone(student.Phone) {
		metrics.OTPIssued.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Warn().Str("student_id", studentID).Msg("OTP requested for a phone number not on file")
		return invalid("Phone number does not match our records.")
	}
	return s.Issue(ctx, student.ID, student.Phone)
}

// RequestLogin issues a code to the phone number on file for a student.
func (s *OTPService) RequestLogin(ctx context.Context, studentID string) error {
	studentID = NormalizeID(studentID)
	if studentID == "" {
		return invalid("Please enter your ID number.")
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return err
	}
	return s.Issue(ctx, student.ID, student.Phone)
}

func (s *OTPService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}
	return student, nil
}

// Verify checks candidate against the live code for subjectID. A record
// older than OTPTTL is rejected even when the sweep has not removed it yet.
func (s *OTPService) Verify(ctx context.Context, subjectID, candidate string) error {
	if subjectID == "" || candidate == "" {
		metrics.OTPVerified.WithLabelValues(metrics.OutcomeRejected).Inc()
		return invalid("Student ID and OTP are required.")
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
		otps := s.otps.WithTx(tx)

		rec, err := otps.Get(ctx, subjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOTPNotFound
			}
			return &StorageError{Op: "read otp", Err: err}
		}
		if rec.IssuedAt.IsZero() || s.nowFunc().Sub(rec.IssuedAt) > OTPTTL {
			return ErrOTPExpired
		}
		if rec.Code != candidate {
			return ErrInvalidCode
		}
		if s.singleUse {
			if err := otps.Delete(ctx, subjectID); err != nil {
				return &StorageError{Op: "consume otp", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		var se *StorageError
		if errors.As(err, &se) || !isDomainError(err) {
			metrics.OTPVerified.WithLabelValues(metrics.OutcomeError).Inc()
			log.Error().Err(err).Str("student_id", subjectID).Msg("Failed to verify OTP")
			return storageErr("verify otp", err)
		}
		metrics.OTPVerified.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Info().Err(err).Str("student_id", subjectID).Msg("OTP verification rejected")
		return err
	}

	metrics.OTPVerified.WithLabelValues(metrics.OutcomeOK).Inc()
	log.Info().Str("student_id", subjectID).Msg("OTP verified")
	return nil
}

// SweepResult summarises one sweep run
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
}

// Sweep deletes every record older than OTPTTL. Deletes run concurrently
// and one failure does not stop the others. Each delete re-reads the record
// in a transaction, so a code re-issued after the listing survives.
func (s *OTPService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	records, err := s.otps.ListIssueTimes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("OTP sweep could not list records")
		return result, &StorageError{Op: "list otps", Err: err}
	}
	result.Scanned = len(records)

	now := s.nowFunc()
	cutoff := now.Add(-OTPTTL)
	var (
		wg      sync.WaitGroup
		deleted atomic.Int64
		failed  atomic.Int64
	)
	for _, rec := range records {
		if now.Sub(rec.IssuedAt) <= OTPTTL {
			continue
		}
		wg.Add(1)
		go func(subjectID string) {
			defer wg.Done()
			var removed bool
			err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
				var err error
				removed, err = s.otps.WithTx(tx).DeleteIfIssuedBefore(ctx, subjectID, cutoff)
				return err
			})
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("student_id", subjectID).Msg("Failed to delete expired OTP")
				return
			}
			if !removed {
				log.Debug().Str("student_id", subjectID).Msg("OTP re-issued during sweep, kept")
				return
			}
			deleted.Add(1)
		}(rec.SubjectID)
	}
	wg.Wait()

	result.Deleted = int(deleted.Load())
	result.Failed = int(failed.Load())
	metrics.SweepDeleted.Add(float64(result.Deleted))
	metrics.SweepFailed.Add(float64(result.Failed))

	if result.Deleted > 0 || result.Failed > 0 {
		log.Info().
			Int("scanned", result.Scanned).
			Int("deleted", result.Deleted).
			Int("failed", result.Failed).
			Msg("OTP sweep finished")
	}
	return result, nil
}
