package services

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/metrics"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// PairingNotifier is told which students have new or changed dates.
type PairingNotifier interface {
	NotifyPairingsUpdated(eventID string, studentIDs []string)
}

// PairingService generates and manages partnerings. Males are the primary
// group and females the secondary group.
type PairingService struct {
	store       docstore.Store
	partnerings *repository.PartneringRepository
	students    *repository.StudentRepository
	events      *repository.EventRepository
	notifier    PairingNotifier

	shuffle func(n int, swap func(i, j int))
}

// NewPairingService creates a new pairing service. notifier may be nil.
func NewPairingService(
	store docstore.Store,
	partnerings *repository.PartneringRepository,
	students *repository.StudentRepository,
	events *repository.EventRepository,
	notifier PairingNotifier,
) *PairingService {
	return &PairingService{
		store:       store,
		partnerings: partnerings,
		students:    students,
		events:      events,
		notifier:    notifier,
		shuffle:     rand.Shuffle,
	}
}

// Generate replaces every partnering of an event with a fresh random
// assignment. All checks run before anything is deleted. The delete and
// the creates are separate writes: a failure half way leaves the event
// with no or some partnerings, and running Generate again repairs it.
func (s *PairingService) Generate(ctx context.Context, eventID string) ([]*models.Partnering, error) {
	if eventID == "" {
		return nil, invalid("Please select an event first.")
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	primaries, err := s.students.ListByGender(ctx, models.GenderMale)
	if err != nil {
		return nil, &StorageError{Op: "list males", Err: err}
	}
	secondaries, err := s.students.ListByGender(ctx, models.GenderFemale)
	if err != nil {
		return nil, &StorageError{Op: "list females", Err: err}
	}
	if len(primaries) == 0 {
		return nil, &EmptyGroupError{Gender: models.GenderMale}
	}
	if len(secondaries) == 0 {
		return nil, &EmptyGroupError{Gender: models.GenderFemale}
	}
	if len(secondaries) < len(primaries) {
		return nil, &InsufficientCapacityError{Primaries: len(primaries), Secondaries: len(secondaries)}
	}

	existing, err := s.partnerings.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, &StorageError{Op: "list partnerings", Err: err}
	}
	for _, p := range existing {
		if err := s.partnerings.Delete(ctx, p.ID); err != nil {
			log.Error().Err(err).Str("event_id", eventID).Str("partnering_id", p.ID).
				Msg("Failed to delete previous partnering")
			return nil, &StorageError{Op: "delete partnering", Err: err}
		}
	}

	groups := Assign(primaries, secondaries, s.shuffle)
	created := make([]*models.Partnering, 0, len(groups))
	for i, group := range groups {
		p := &models.Partnering{
			EventID:     eventID,
			Primary:     primaries[i].Snapshot(),
			Secondaries: snapshots(group),
		}
		if err := s.partnerings.Create(ctx, p); err != nil {
			log.Error().Err(err).
				Str("event_id", eventID).
				Int("written", len(created)).
				Int("total", len(groups)).
				Msg("Pairing generation interrupted")
			return nil, &StorageError{Op: "create partnering", Err: err}
		}
		created = append(created, p)
	}

	metrics.PairingsGenerated.Add(float64(len(created)))
	log.Info().
		Str("event_id", eventID).
		Int("males", len(primaries)).
		Int("females", len(secondaries)).
		Int("replaced", len(existing)).
		Msg("Pairings generated")

	s.notify(eventID, created...)
	return created, nil
}

// Assign deals secondaries to primaries. The secondaries are shuffled,
// secondary i goes to primary i, and the surplus is dealt round-robin
// starting again at primary 0. The result is indexed like primaries.
// Callers guarantee len(secondaries) >= len(primaries) > 0.
func Assign(primaries, secondaries []*models.Student, shuffle func(n int, swap func(i, j int))) [][]*models.Student {
	pool := append([]*models.Student(nil), secondaries...)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	groups := make([][]*models.Student, len(primaries))
	for i := range primaries {
		groups[i] = []*models.Student{pool[i]}
	}
	next := 0
	for _, extra := range pool[len(primaries):] {
		groups[next] = append(groups[next], extra)
		next = (next + 1) % len(primaries)
	}
	return groups
}

// CreateManual pairs one male with the chosen females for an event.
func (s *PairingService) CreateManual(ctx context.Context, eventID, primaryID string, secondaryIDs []string) (*models.Partnering, error) {
	switch {
	case eventID == "":
		return nil, invalid("Please select an event first.")
	case primaryID == "":
		return nil, invalid("Please select a male student.")
	case len(secondaryIDs) == 0:
		return nil, invalid("At least one female must be selected.")
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	primary, err := s.loadMember(ctx, primaryID, models.GenderMale)
	if err != nil {
		return nil, err
	}
	secondaries, err := s.loadMembers(ctx, secondaryIDs, models.GenderFemale)
	if err != nil {
		return nil, err
	}

	p := &models.Partnering{
		EventID:     eventID,
		Primary:     primary.Snapshot(),
		Secondaries: snapshots(secondaries),
	}
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
		repo := s.partnerings.WithTx(tx)

		existing, err := repo.ListByEvent(ctx, eventID)
		if err != nil {
			return &StorageError{Op: "list partnerings", Err: err}
		}
		for _, other := range existing {
			if other.Primary.ID == primary.ID {
				return &ConflictError{
					Message: "This male is already paired for the selected event.",
					Names:   []string{primary.Name},
				}
			}
		}
		if err := secondaryConflict(existing, secondaries, ""); err != nil {
			return err
		}
		if err := repo.Create(ctx, p); err != nil {
			return &StorageError{Op: "create partnering", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("create partnering", err)
	}

	log.Info().
		Str("event_id", eventID).
		Str("partnering_id", p.ID).
		Str("male_id", primary.ID).
		Int("females", len(secondaries)).
		Msg("Manual pairing created")
	s.notify(eventID, p)
	return p, nil
}

// EditSecondaries replaces the females of one partnering. No other field
// of it, and no other partnering, is touched.
func (s *PairingService) EditSecondaries(ctx context.Context, partneringID string, secondaryIDs []string) (*models.Partnering, error) {
	if partneringID == "" {
		return nil, invalid("Please select a pairing.")
	}
	if len(secondaryIDs) == 0 {
		return nil, invalid("At least one female must be selected.")
	}
	secondaries, err := s.loadMembers(ctx, secondaryIDs, models.GenderFemale)
	if err != nil {
		return nil, err
	}

	var updated *models.Partnering
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.DB) error {
		repo := s.partnerings.WithTx(tx)

		target, err := repo.GetByID(ctx, partneringID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPartneringNotFound
			}
			return &StorageError{Op: "load partnering", Err: err}
		}
		existing, err := repo.ListByEvent(ctx, target.EventID)
		if err != nil {
			return &StorageError{Op: "list partnerings", Err: err}
		}
		if err := secondaryConflict(existing, secondaries, target.ID); err != nil {
			return err
		}

		target.Secondaries = snapshots(secondaries)
		if err := repo.UpdateSecondaries(ctx, target.ID, target.Secondaries); err != nil {
			return &StorageError{Op: "update partnering", Err: err}
		}
		updated = target
		return nil
	})
	if err != nil {
		return nil, storageErr("edit partnering", err)
	}

	log.Info().
		Str("partnering_id", updated.ID).
		Int("females", len(updated.Secondaries)).
		Msg("Pairing updated")
	s.notify(updated.EventID, updated)
	return updated, nil
}

// ClearAll deletes every partnering of every event. It is best-effort:
// failed deletes are reported together once all were attempted.
func (s *PairingService) ClearAll(ctx context.Context, confirmed bool) (int, error) {
	if !confirmed {
		return 0, invalid("Please confirm that all pairings should be cleared.")
	}

	ids, err := s.partnerings.ListIDs(ctx)
	if err != nil {
		return 0, &StorageError{Op: "list partnerings", Err: err}
	}
	if len(ids) == 0 {
		return 0, ErrNothingToClear
	}

	var failed []string
	for _, id := range ids {
		if err := s.partnerings.Delete(ctx, id); err != nil {
			log.Error().Err(err).Str("partnering_id", id).Msg("Failed to delete partnering")
			failed = append(failed, id)
		}
	}
	deleted := len(ids) - len(failed)

	log.Warn().Int("deleted", deleted).Int("failed", len(failed)).Msg("All pairings cleared")
	if s.notifier != nil && deleted > 0 {
		s.notifier.NotifyPairingsUpdated("", nil)
	}
	if len(failed) > 0 {
		return deleted, &PartialFailureError{Op: "delete pairings", IDs: failed}
	}
	return deleted, nil
}

// List returns every partnering, or those of one event when eventID is set.
func (s *PairingService) List(ctx context.Context, eventID string) ([]*models.Partnering, error) {
	var (
		out []*models.Partnering
		err error
	)
	if eventID == "" {
		out, err = s.partnerings.List(ctx)
	} else {
		out, err = s.partnerings.ListByEvent(ctx, eventID)
	}
	if err != nil {
		return nil, &StorageError{Op: "list partnerings", Err: err}
	}
	return out, nil
}

// GroupByEvent groups partnerings by event, keeping their order within
// each group.
func GroupByEvent(partnerings []*models.Partnering) map[string][]*models.Partnering {
	groups := make(map[string][]*models.Partnering)
	for _, p := range partnerings {
		groups[p.EventID] = append(groups[p.EventID], p)
	}
	return groups
}

// Date is one match as seen by a student.
type Date struct {
	PartneringID string                   `json:"partneringId"`
	EventID      string                   `json:"eventId"`
	EventTitle   string                   `json:"eventTitle,omitempty"`
	Partners     []models.StudentSnapshot `json:"partners"`
}

// MyDates lists the matches of a student. A female sees her male, a male
// sees his females. Partner details come from the current roster when the
// partner still exists.
func (s *PairingService) MyDates(ctx context.Context, studentID string) ([]Date, error) {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}

	all, err := s.partnerings.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list partnerings", Err: err}
	}

	titles := make(map[string]string)
	dates := []Date{}
	for _, p := range all {
		if !p.Involves(studentID) {
			continue
		}
		partners := []models.StudentSnapshot{p.Primary}
		if p.Primary.ID == studentID {
			partners = p.Secondaries
		}

		d := Date{PartneringID: p.ID, EventID: p.EventID}
		for _, partner := range partners {
			if live, err := s.students.GetByID(ctx, partner.ID); err == nil {
				partner = live.Snapshot()
			}
			d.Partners = append(d.Partners, partner)
		}
		if _, ok := titles[p.EventID]; !ok {
			if e, err := s.events.GetByID(ctx, p.EventID); err == nil {
				titles[p.EventID] = e.Title
			} else {
				titles[p.EventID] = ""
			}
		}
		d.EventTitle = titles[p.EventID]
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *PairingService) requireEvent(ctx context.Context, eventID string) error {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEventNotFound
		}
		return &StorageError{Op: "load event", Err: err}
	}
	return nil
}

func (s *PairingService) loadMember(ctx context.Context, id string, gender models.Gender) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("Student %s was not found.", id)
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}
	if student.Gender != gender {
		return nil, invalid("%s is not in the %s group.", student.Name, gender.Noun())
	}
	return student, nil
}

// loadMembers loads the students in ids, skipping repeated IDs.
func (s *PairingService) loadMembers(ctx context.Context, ids []string, gender models.Gender) ([]*models.Student, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]*models.Student, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		student, err := s.loadMember(ctx, id, gender)
		if err != nil {
			return nil, err
		}
		out = append(out, student)
	}
	if len(out) == 0 {
		return nil, invalid("At least one female must be selected.")
	}
	return out, nil
}

// secondaryConflict fails when any chosen female already sits in the
// secondaries of a partnering other than skipID.
func secondaryConflict(existing []*models.Partnering, chosen []*models.Student, skipID string) error {
	var names []string
	for _, student := range chosen {
		for _, p := range existing {
			if p.ID != skipID && p.HasSecondary(student.ID) {
				names = append(names, student.Name)
				break
			}
		}
	}
	if len(names) > 0 {
		return &ConflictError{
			Message: "The following females are already paired: " + strings.Join(names, ", ") + ".",
			Names:   names,
		}
	}
	return nil
}

func (s *PairingService) notify(eventID string, partnerings ...*models.Partnering) {
	if s.notifier == nil {
		return
	}
	var ids []string
	for _, p := range partnerings {
		ids = append(ids, p.Primary.ID)
		for _, sec := range p.Secondaries {
			ids = append(ids, sec.ID)
		}
	}
	s.notifier.NotifyPairingsUpdated(eventID, ids)
}

func snapshots(students []*models.Student) []models.StudentSnapshot {
	out := make([]models.StudentSnapshot, 0, len(students))
	for _, st := range students {
		out = append(out, st.Snapshot())
	}
	return out
}
