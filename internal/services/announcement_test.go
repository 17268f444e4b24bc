package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blinddate-backend/internal/models"
	"blinddate-backend/internal/queue"
	"blinddate-backend/internal/sms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingQueue struct {
	queue.Queue
	failPhone string
}

func (q failingQueue) Publish(ctx context.Context, job queue.Job) error {
	if job.Phone == q.failPhone {
		return errors.New("queue full")
	}
	return q.Queue.Publish(ctx, job)
}

type announcementSpy struct {
	mu   sync.Mutex
	sent map[string]string
}

func (s *announcementSpy) NotifyAnnouncement(studentID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[string]string{}
	}
	s.sent[studentID] = message
}

func drain(t *testing.T, q queue.Queue, n int) []queue.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	var out []queue.Job
	for len(out) < n {
		select {
		case job := <-jobs:
			out = append(out, job)
		case <-ctx.Done():
			t.Fatalf("got %d of %d jobs", len(out), n)
		}
	}
	return out
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, "Hi Mr. Kofi", Greeting(&models.Student{Name: "Kofi", Gender: models.GenderMale}))
	assert.Equal(t, "Hi Miss Ama", Greeting(&models.Student{Name: "Ama", Gender: models.GenderFemale}))
}

func TestBroadcastToGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStudent(t, "1001", "Kofi", models.GenderMale)
	f.addStudent(t, "2001", "Ama", models.GenderFemale)
	f.addStudent(t, "2002", "Esi", models.GenderFemale)

	q := queue.NewInMemory(10)
	spy := &announcementSpy{}
	svc := NewAnnouncementService(f.students, f.announcement, q, &sms.Recorder{}, "AcolatseVodziHall", spy)

	result, err := svc.Broadcast(ctx, BroadcastRequest{Recipients: RecipientsFemales, Message: " Meet at the quad "})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued)
	assert.Empty(t, result.Failed)

	jobs := drain(t, q, 2)
	bodies := []string{jobs[0].Body, jobs[1].Body}
	assert.ElementsMatch(t, []string{"Hi Miss Ama, Meet at the quad", "Hi Miss Esi, Meet at the quad"}, bodies)
	for _, job := range jobs {
		assert.Equal(t, "AcolatseVodziHall", job.From)
		assert.NotEmpty(t, job.Ref)
	}

	stored, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, "Hi Miss Ama, Meet at the quad", spy.sent["2001"])
	assert.NotContains(t, spy.sent, "1001")
}

func TestBroadcastIndividual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kofi := f.addStudent(t, "1001", "Kofi", models.GenderMale)
	q := queue.NewInMemory(10)
	svc := NewAnnouncementService(f.students, f.announcement, q, &sms.Recorder{}, "AcolatseVodziHall", nil)

	result, err := svc.Broadcast(ctx, BroadcastRequest{Recipients: RecipientsIndividual, StudentID: "1001", Message: "Your date is here"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)

	jobs := drain(t, q, 1)
	assert.Equal(t, kofi.Phone, jobs[0].Phone)
	assert.Equal(t, "Hi Mr. Kofi, Your date is here", jobs[0].Body)

	_, err = svc.Broadcast(ctx, BroadcastRequest{Recipients: RecipientsIndividual, StudentID: "9999", Message: "hi"})
	assert.EqualError(t, err, "Selected student not found.")
}

func TestBroadcastRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStudent(t, "2001", "Ama", models.GenderFemale)
	svc := NewAnnouncementService(f.students, f.announcement, queue.NewInMemory(10), &sms.Recorder{}, "x", nil)

	_, err := svc.Broadcast(ctx, BroadcastRequest{Recipients: RecipientsAll, Message: "  "})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Broadcast(ctx, BroadcastRequest{Recipients: RecipientsMales, Message: "hello"})
	assert.EqualError(t, err, "No recipients match the selected criteria.")

	_, err = svc.Broadcast(ctx, BroadcastRequest{Recipients: "staff", Message: "hello"})
	assert.ErrorAs(t, err, &ve)
}

func TestBroadcastReportsQueueFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStudent(t, "1001", "Kofi", models.GenderMale)
	bad := f.addStudent(t, "1002", "Yaw", models.GenderMale)

	q := queue.NewInMemory(10)
	svc := NewAnnouncementService(f.students, f.announcement, failingQueue{Queue: q, failPhone: bad.Phone}, &sms.Recorder{}, "x", nil)

	result, err := svc.Broadcast(ctx, BroadcastRequest{Recipients: RecipientsAll, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, []string{"1002"}, result.Failed)
}

func TestSendSMS(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := &sms.Recorder{}
	svc := NewAnnouncementService(f.students, f.announcement, queue.NewInMemory(1), rec, "AcolatseVodziHall", nil)

	require.NoError(t, svc.SendSMS(ctx, "0244000000", "Hello"))
	assert.Equal(t, []sms.Message{{To: "0244000000", From: "AcolatseVodziHall", Body: "Hello"}}, rec.Messages())

	var ve *ValidationError
	assert.ErrorAs(t, svc.SendSMS(ctx, "", "Hello"), &ve)

	rec.FailWith(errors.New("boom"))
	var de *DispatchError
	assert.ErrorAs(t, svc.SendSMS(ctx, "0244000000", "Hello"), &de)
}

func TestSMSWorkerDrainsQueue(t *testing.T) {
	q := queue.NewInMemory(10)
	rec := &sms.Recorder{}
	worker := NewSMSWorker(q, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.NoError(t, q.Publish(ctx, queue.Job{Phone: "0241", From: "x", Body: "one"}))
	require.NoError(t, q.Publish(ctx, queue.Job{Phone: "0242", From: "x", Body: "two"}))

	require.Eventually(t, func() bool { return len(rec.Messages()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, "one", rec.Messages()[0].Body)
}
