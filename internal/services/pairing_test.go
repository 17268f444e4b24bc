package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"blinddate-backend/internal/docstore"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noShuffle(int, func(i, j int)) {}

func newTestPairingService(f *fixture, notifier PairingNotifier) *PairingService {
	svc := NewPairingService(f.store, f.partnerings, f.students, f.events, notifier)
	svc.shuffle = noShuffle
	return svc
}

// seedRoster adds males 1001.. and females 2001.. with names M1.. and F1..
func seedRoster(t *testing.T, f *fixture, males, females int) {
	t.Helper()
	for i := 1; i <= males; i++ {
		f.addStudent(t, fmt.Sprintf("%d", 1000+i), fmt.Sprintf("M%d", i), models.GenderMale)
	}
	for i := 1; i <= females; i++ {
		f.addStudent(t, fmt.Sprintf("%d", 2000+i), fmt.Sprintf("F%d", i), models.GenderFemale)
	}
}

func snapshotIDs(snaps []models.StudentSnapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.ID)
	}
	return out
}

func people(names ...string) []*models.Student {
	out := make([]*models.Student, 0, len(names))
	for _, n := range names {
		out = append(out, &models.Student{ID: n, Name: n})
	}
	return out
}

func TestAssignDealsSurplusRoundRobin(t *testing.T) {
	groups := Assign(people("m0", "m1", "m2"), people("f0", "f1", "f2", "f3", "f4"), noShuffle)

	require.Len(t, groups, 3)
	names := func(g []*models.Student) []string {
		var out []string
		for _, s := range g {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []string{"f0", "f3"}, names(groups[0]))
	assert.Equal(t, []string{"f1", "f4"}, names(groups[1]))
	assert.Equal(t, []string{"f2"}, names(groups[2]))
}

func TestAssignWrapsAround(t *testing.T) {
	groups := Assign(people("m0", "m1"), people("f0", "f1", "f2", "f3", "f4", "f5", "f6"), noShuffle)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 4)
	assert.Len(t, groups[1], 3)
}

func TestAssignUsesShuffle(t *testing.T) {
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	secondaries := people("f0", "f1", "f2")
	groups := Assign(people("m0", "m1", "m2"), secondaries, reverse)

	assert.Equal(t, "f2", groups[0][0].ID)
	assert.Equal(t, "f0", groups[2][0].ID)
	assert.Equal(t, "f0", secondaries[0].ID, "input slice is not reordered")
}

func TestGenerateIsExhaustive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 3, 5)
	f.addEvent(t, "ev1", "Valentine Mixer")
	spy := &notifierSpy{}
	svc := newTestPairingService(f, spy)

	created, err := svc.Generate(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, created, 3)

	seenMales := map[string]int{}
	seenFemales := map[string]int{}
	for _, p := range created {
		assert.Equal(t, "ev1", p.EventID)
		assert.NotEmpty(t, p.ID)
		seenMales[p.Primary.ID]++
		for _, s := range p.Secondaries {
			seenFemales[s.ID]++
		}
	}
	assert.Len(t, seenMales, 3)
	assert.Len(t, seenFemales, 5)
	for id, n := range seenFemales {
		assert.Equal(t, 1, n, "female %s assigned more than once", id)
	}

	assert.Equal(t, []string{"2001", "2004"}, snapshotIDs(created[0].Secondaries))
	assert.Equal(t, []string{"2002", "2005"}, snapshotIDs(created[1].Secondaries))
	assert.Equal(t, []string{"2003"}, snapshotIDs(created[2].Secondaries))

	stored, err := svc.List(ctx, "ev1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	notices := spy.all()
	require.Len(t, notices, 1)
	assert.Equal(t, "ev1", notices[0].eventID)
	assert.Len(t, notices[0].studentIDs, 8)
}

func TestGenerateReplacesOnlyThatEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 2, 2)
	f.addEvent(t, "ev1", "First")
	f.addEvent(t, "ev2", "Second")
	svc := newTestPairingService(f, nil)

	_, err := svc.Generate(ctx, "ev1")
	require.NoError(t, err)
	other, err := svc.Generate(ctx, "ev2")
	require.NoError(t, err)
	_, err = svc.Generate(ctx, "ev1")
	require.NoError(t, err)

	ev1, err := svc.List(ctx, "ev1")
	require.NoError(t, err)
	assert.Len(t, ev1, 2)

	ev2, err := svc.List(ctx, "ev2")
	require.NoError(t, err)
	require.Len(t, ev2, 2)
	assert.ElementsMatch(t, []string{other[0].ID, other[1].ID}, []string{ev2[0].ID, ev2[1].ID})
}

func TestGenerateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("missing event id", func(t *testing.T) {
		f := newFixture(t)
		_, err := newTestPairingService(f, nil).Generate(ctx, "")
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		seedRoster(t, f, 1, 1)
		_, err := newTestPairingService(f, nil).Generate(ctx, "nope")
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("no males", func(t *testing.T) {
		f := newFixture(t)
		seedRoster(t, f, 0, 2)
		f.addEvent(t, "ev1", "Mixer")
		_, err := newTestPairingService(f, nil).Generate(ctx, "ev1")
		var ee *EmptyGroupError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "No male students found.", err.Error())
	})

	t.Run("no females", func(t *testing.T) {
		f := newFixture(t)
		seedRoster(t, f, 2, 0)
		f.addEvent(t, "ev1", "Mixer")
		_, err := newTestPairingService(f, nil).Generate(ctx, "ev1")
		assert.EqualError(t, err, "No female students found.")
	})
}

func TestGenerateInsufficientKeepsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 4, 2)
	f.addEvent(t, "ev1", "Mixer")
	svc := newTestPairingService(f, nil)

	manual, err := svc.CreateManual(ctx, "ev1", "1001", []string{"2001"})
	require.NoError(t, err)

	_, err = svc.Generate(ctx, "ev1")
	var ie *InsufficientCapacityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 4, ie.Primaries)
	assert.Equal(t, 2, ie.Secondaries)
	assert.Equal(t, "Not enough females to pair with all males.", err.Error())

	stored, err := svc.List(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, manual.ID, stored[0].ID)
}

func TestCreateManual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 2, 3)
	f.addEvent(t, "ev1", "Mixer")
	spy := &notifierSpy{}
	svc := newTestPairingService(f, spy)

	p, err := svc.CreateManual(ctx, "ev1", "1001", []string{"2001", "2002", "2001"})
	require.NoError(t, err)
	assert.Equal(t, "M1", p.Primary.Name)
	assert.Equal(t, []string{"2001", "2002"}, snapshotIDs(p.Secondaries), "repeated ids collapse")
	assert.False(t, p.CreatedAt.IsZero())

	notices := spy.all()
	require.Len(t, notices, 1)
	assert.ElementsMatch(t, []string{"1001", "2001", "2002"}, notices[0].studentIDs)
}

func TestCreateManualConflictsLeaveStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 2, 3)
	f.addStudent(t, "2010", "Ama", models.GenderFemale)
	f.addStudent(t, "2011", "Esi", models.GenderFemale)
	f.addEvent(t, "ev1", "Mixer")
	f.addEvent(t, "ev2", "Other")
	svc := newTestPairingService(f, nil)

	_, err := svc.CreateManual(ctx, "ev1", "1001", []string{"2010", "2011"})
	require.NoError(t, err)

	_, err = svc.CreateManual(ctx, "ev1", "1001", []string{"2003"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "This male is already paired for the selected event.", ce.Message)

	_, err = svc.CreateManual(ctx, "ev1", "1002", []string{"2001", "2010", "2011"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "The following females are already paired: Ama, Esi.", err.Error())
	assert.Equal(t, []string{"Ama", "Esi"}, ce.Names)

	stored, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// Uniqueness is per event.
	_, err = svc.CreateManual(ctx, "ev2", "1001", []string{"2010"})
	assert.NoError(t, err)
}

func TestCreateManualValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 1, 1)
	f.addEvent(t, "ev1", "Mixer")
	svc := newTestPairingService(f, nil)

	tests := []struct {
		name      string
		eventID   string
		primary   string
		secondary []string
	}{
		{"no event", "", "1001", []string{"2001"}},
		{"no primary", "ev1", "", []string{"2001"}},
		{"no secondaries", "ev1", "1001", nil},
		{"blank secondaries", "ev1", "1001", []string{""}},
		{"female as primary", "ev1", "2001", []string{"2001"}},
		{"male as secondary", "ev1", "1001", []string{"1001"}},
		{"unknown secondary", "ev1", "1001", []string{"9999"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateManual(ctx, tt.eventID, tt.primary, tt.secondary)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	_, err := svc.CreateManual(ctx, "missing", "1001", []string{"2001"})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEditSecondaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 2, 4)
	f.addEvent(t, "ev1", "Mixer")
	svc := newTestPairingService(f, nil)

	first, err := svc.CreateManual(ctx, "ev1", "1001", []string{"2001", "2002"})
	require.NoError(t, err)
	second, err := svc.CreateManual(ctx, "ev1", "1002", []string{"2003"})
	require.NoError(t, err)

	// Keeping one of its own females is not a conflict.
	updated, err := svc.EditSecondaries(ctx, first.ID, []string{"2002", "2004"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2002", "2004"}, snapshotIDs(updated.Secondaries))

	got, err := f.partnerings.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2002", "2004"}, snapshotIDs(got.Secondaries))
	assert.Equal(t, "1001", got.Primary.ID)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	untouched, err := f.partnerings.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2003"}, snapshotIDs(untouched.Secondaries))

	_, err = svc.EditSecondaries(ctx, first.ID, []string{"2003"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"F3"}, ce.Names)

	got, err = f.partnerings.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2002", "2004"}, snapshotIDs(got.Secondaries))

	_, err = svc.EditSecondaries(ctx, "missing", []string{"2001"})
	assert.ErrorIs(t, err, ErrPartneringNotFound)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 2, 2)
	f.addEvent(t, "ev1", "First")
	f.addEvent(t, "ev2", "Second")
	spy := &notifierSpy{}
	svc := newTestPairingService(f, spy)

	_, err := svc.ClearAll(ctx, true)
	assert.ErrorIs(t, err, ErrNothingToClear)

	_, err = svc.Generate(ctx, "ev1")
	require.NoError(t, err)
	_, err = svc.Generate(ctx, "ev2")
	require.NoError(t, err)

	_, err = svc.ClearAll(ctx, false)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	n, err := svc.ClearAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	remaining, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	notices := spy.all()
	last := notices[len(notices)-1]
	assert.Equal(t, "", last.eventID)
	assert.Nil(t, last.studentIDs)
}

func TestClearAllReportsFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 3, 3)
	f.addEvent(t, "ev1", "Mixer")
	svc := newTestPairingService(f, nil)

	created, err := svc.Generate(ctx, "ev1")
	require.NoError(t, err)
	stuck := created[1].ID

	f.store.SetFault(func(op docstore.Op, collection, key string) error {
		if op == docstore.OpDelete && key == stuck {
			return errors.New("permission denied")
		}
		return nil
	})

	n, err := svc.ClearAll(ctx, true)
	var pe *PartialFailureError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{stuck}, pe.IDs)
	assert.Equal(t, 2, n)

	f.store.SetFault(nil)
	remaining, err := repository.NewPartneringRepository(f.store).ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{stuck}, remaining)
}

func TestGroupByEvent(t *testing.T) {
	a1 := &models.Partnering{ID: "a1", EventID: "a"}
	b1 := &models.Partnering{ID: "b1", EventID: "b"}
	a2 := &models.Partnering{ID: "a2", EventID: "a"}

	groups := GroupByEvent([]*models.Partnering{a1, b1, a2})

	assert.Equal(t, map[string][]*models.Partnering{
		"a": {a1, a2},
		"b": {b1},
	}, groups)
	assert.Empty(t, GroupByEvent(nil))
}

func TestMyDates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedRoster(t, f, 1, 2)
	f.addEvent(t, "ev1", "Valentine Mixer")
	svc := newTestPairingService(f, nil)

	_, err := svc.CreateManual(ctx, "ev1", "1001", []string{"2001", "2002"})
	require.NoError(t, err)

	// A later rename shows up in the partner's view.
	require.NoError(t, f.students.UpdateFields(ctx, "1001", map[string]any{"name": "Kwame"}))

	dates, err := svc.MyDates(ctx, "2002")
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "Valentine Mixer", dates[0].EventTitle)
	require.Len(t, dates[0].Partners, 1)
	assert.Equal(t, "Kwame", dates[0].Partners[0].Name)

	dates, err = svc.MyDates(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, []string{"2001", "2002"}, snapshotIDs(dates[0].Partners))

	_, err = svc.MyDates(ctx, "nobody")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}
