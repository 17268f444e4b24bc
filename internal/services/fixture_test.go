package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

// fixture is an in-memory store with a shared, hand-driven clock.
type fixture struct {
	store        *docstore.Memory
	students     *repository.StudentRepository
	events       *repository.EventRepository
	partnerings  *repository.PartneringRepository
	identities   *repository.IdentityRepository
	announcement *repository.AnnouncementRepository

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: docstore.NewMemory(),
		now:   time.Date(2025, 2, 14, 18, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(f.clock)
	f.students = repository.NewStudentRepository(f.store)
	f.events = repository.NewEventRepository(f.store)
	f.partnerings = repository.NewPartneringRepository(f.store)
	f.identities = repository.NewIdentityRepository(f.store)
	f.announcement = repository.NewAnnouncementRepository(f.store)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) addStudent(t *testing.T, id, name string, gender models.Gender) *models.Student {
	t.Helper()
	s := &models.Student{
		ID:     id,
		Name:   name,
		Phone:  "024" + id,
		Gender: gender,
		Hall:   "Commonwealth",
		Room:   "B12",
	}
	require.NoError(t, f.students.Save(context.Background(), s))
	return s
}

func (f *fixture) addEvent(t *testing.T, id, title string) *models.Event {
	t.Helper()
	e := &models.Event{
		ID:        id,
		Title:     title,
		Date:      "2025-02-14",
		StartTime: "18:00",
		EndTime:   "22:00",
		Status:    models.EventUpcoming,
	}
	require.NoError(t, f.events.Save(context.Background(), e))
	return e
}

type recordedNotice struct {
	eventID    string
	studentIDs []string
}

type notifierSpy struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *notifierSpy) NotifyPairingsUpdated(eventID string, studentIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{eventID: eventID, studentIDs: studentIDs})
}

func (n *notifierSpy) all() []recordedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedNotice(nil), n.notices...)
}
