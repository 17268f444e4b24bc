package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blinddate-backend/internal/metrics"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/queue"
	"blinddate-backend/internal/repository"
	"blinddate-backend/internal/sms"

	"github.com/rs/zerolog/log"
)

// Recipient groups for a broadcast
const (
	RecipientsAll        = "all"
	RecipientsMales      = "males"
	RecipientsFemales    = "females"
	RecipientsIndividual = "individual"
)

// AnnouncementNotifier pushes a stored announcement to a connected student.
type AnnouncementNotifier interface {
	NotifyAnnouncement(studentID, message string)
}

// BroadcastRequest selects recipients and the message body
type BroadcastRequest struct {
	Recipients string `json:"recipients" validate:"required,oneof=all males females individual"`
	StudentID  string `json:"studentId" validate:"required_if=Recipients individual"`
	Message    string `json:"message" validate:"required"`
}

// BroadcastResult reports how many messages were queued and which
// students could not be reached.
type BroadcastResult struct {
	Queued int      `json:"queued"`
	Failed []string `json:"failed"`
}

// AnnouncementService sends announcements by SMS
type AnnouncementService struct {
	students      *repository.StudentRepository
	announcements *repository.AnnouncementRepository
	queue         queue.Queue
	sender        sms.Dispatcher
	from          string
	notifier      AnnouncementNotifier
}

// NewAnnouncementService creates a new announcement service. notifier may
// be nil.
func NewAnnouncementService(
	students *repository.StudentRepository,
	announcements *repository.AnnouncementRepository,
	q queue.Queue,
	sender sms.Dispatcher,
	from string,
	notifier AnnouncementNotifier,
) *AnnouncementService {
	return &AnnouncementService{
		students:      students,
		announcements: announcements,
		queue:         q,
		sender:        sender,
		from:          from,
		notifier:      notifier,
	}
}

// SendSMS sends one message right away
func (s *AnnouncementService) SendSMS(ctx context.Context, phone, message string) error {
	if phone == "" || message == "" {
		return invalid("Phone number and message are required.")
	}
	if err := s.sender.Send(ctx, phone, s.from, message); err != nil {
		metrics.SMSSent.WithLabelValues("direct", metrics.OutcomeError).Inc()
		log.Error().Err(err).Str("phone", phone).Msg("Failed to send SMS")
		return &DispatchError{Err: err}
	}
	metrics.SMSSent.WithLabelValues("direct", metrics.OutcomeOK).Inc()
	return nil
}

// Greeting returns the salutation for a student.
func Greeting(student *models.Student) string {
	if student.Gender == models.GenderMale {
		return "Hi Mr. " + student.Name
	}
	return "Hi Miss " + student.Name
}

// Broadcast stores one personalised announcement per recipient and queues
// its SMS. Recipients whose record or job fails are reported, the others
// still go out.
func (s *AnnouncementService) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, invalid("Please enter a message.")
	}

	recipients, err := s.recipients(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, invalid("No recipients match the selected criteria.")
	}

	result := &BroadcastResult{Failed: []string{}}
	for _, student := range recipients {
		body := fmt.Sprintf("%s, %s", Greeting(student), message)
		a := &models.Announcement{
			StudentID:   student.ID,
			StudentName: student.Name,
			Phone:       student.Phone,
			Message:     body,
		}
		if err := s.announcements.Create(ctx, a); err != nil {
			log.Error().Err(err).Str("student_id", student.ID).Msg("Failed to store announcement")
			result.Failed = append(result.Failed, student.ID)
			continue
		}
		job := queue.Job{Phone: student.Phone, From: s.from, Body: body, Ref: a.ID}
		if err := s.queue.Publish(ctx, job); err != nil {
			log.Error().Err(err).Str("student_id", student.ID).Msg("Failed to queue announcement SMS")
			result.Failed = append(result.Failed, student.ID)
			continue
		}
		if s.notifier != nil {
			s.notifier.NotifyAnnouncement(student.ID, body)
		}
		result.Queued++
	}

	log.Info().
		Str("recipients", req.Recipients).
		Int("queued", result.Queued).
		Int("failed", len(result.Failed)).
		Msg("Announcement broadcast")
	return result, nil
}

// List returns stored announcements, newest first
func (s *AnnouncementService) List(ctx context.Context) ([]*models.Announcement, error) {
	out, err := s.announcements.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list announcements", Err: err}
	}
	return out, nil
}

func (s *AnnouncementService) recipients(ctx context.Context, req BroadcastRequest) ([]*models.Student, error) {
	var (
		out []*models.Student
		err error
	)
	switch req.Recipients {
	case RecipientsAll:
		out, err = s.students.List(ctx)
	case RecipientsMales:
		out, err = s.students.ListByGender(ctx, models.GenderMale)
	case RecipientsFemales:
		out, err = s.students.ListByGender(ctx, models.GenderFemale)
	case RecipientsIndividual:
		if req.StudentID == "" {
			return nil, invalid("Please select a student.")
		}
		student, err := s.students.GetByID(ctx, req.StudentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, invalid("Selected student not found.")
			}
			return nil, &StorageError{Op: "load student", Err: err}
		}
		return []*models.Student{student}, nil
	default:
		return nil, invalid("Unknown recipient group %q.", req.Recipients)
	}
	if err != nil {
		return nil, &StorageError{Op: "list recipients", Err: err}
	}
	return out, nil
}

// SMSWorker sends queued announcement messages until ctx ends. Failures
// are logged and the job is dropped.
type SMSWorker struct {
	queue  queue.Queue
	sender sms.Dispatcher
}

// NewSMSWorker creates a worker draining q through sender
func NewSMSWorker(q queue.Queue, sender sms.Dispatcher) *SMSWorker {
	return &SMSWorker{queue: q, sender: sender}
}

// Run blocks until ctx is cancelled
func (w *SMSWorker) Run(ctx context.Context) error {
	jobs, err := w.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume sms queue: %w", err)
	}
	log.Info().Msg("SMS worker started")
	for job := range jobs {
		if err := w.sender.Send(ctx, job.Phone, job.From, job.Body); err != nil {
			metrics.SMSSent.WithLabelValues("announcement", metrics.OutcomeError).Inc()
			log.Error().Err(err).Str("phone", job.Phone).Str("announcement_id", job.Ref).
				Msg("Failed to send announcement SMS")
			continue
		}
		metrics.SMSSent.WithLabelValues("announcement", metrics.OutcomeOK).Inc()
		log.Debug().Str("announcement_id", job.Ref).Msg("Announcement SMS sent")
	}
	log.Info().Msg("SMS worker stopped")
	return nil
}
