package services

import (
	"context"

	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"
)

// Stats is the admin dashboard summary
type Stats struct {
	Students       int `json:"students"`
	Males          int `json:"males"`
	Females        int `json:"females"`
	WithPhoto      int `json:"withPhoto"`
	Events         int `json:"events"`
	UpcomingEvents int `json:"upcomingEvents"`
	Partnerings    int `json:"partnerings"`
}

// StatsService computes dashboard counts
type StatsService struct {
	students    *repository.StudentRepository
	events      *repository.EventRepository
	partnerings *repository.PartneringRepository
}

// NewStatsService creates a new stats service
func NewStatsService(students *repository.StudentRepository, events *repository.EventRepository, partnerings *repository.PartneringRepository) *StatsService {
	return &StatsService{students: students, events: events, partnerings: partnerings}
}

// Compute reads the collections and counts
func (s *StatsService) Compute(ctx context.Context) (*Stats, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list students", Err: err}
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list events", Err: err}
	}
	ids, err := s.partnerings.ListIDs(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list partnerings", Err: err}
	}

	stats := &Stats{Students: len(students), Events: len(events), Partnerings: len(ids)}
	for _, st := range students {
		switch st.Gender {
		case models.GenderMale:
			stats.Males++
		case models.GenderFemale:
			stats.Females++
		}
		if st.ProfilePicURL != "" {
			stats.WithPhoto++
		}
	}
	for _, e := range events {
		if e.Status == models.EventUpcoming {
			stats.UpcomingEvents++
		}
	}
	return stats, nil
}
