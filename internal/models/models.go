package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Gender partitions the roster for pairing.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts any casing of MALE or FEMALE.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g, nil
	default:
		return "", fmt.Errorf("invalid gender %q", s)
	}
}

// Noun returns the plural display noun used in user-facing messages.
func (g Gender) Noun() string {
	if g == GenderFemale {
		return "females"
	}
	return "males"
}

// Student represents a student on the roster. ID is the index number and
// the document key.
type Student struct {
	ID            string `json:"idNumber"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Gender        Gender `json:"gender"`
	Hall          string `json:"hall"`
	Room          string `json:"room"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`
}

// Validate checks required fields
func (s *Student) Validate() error {
	var missing []string
	if s.ID == "" {
		missing = append(missing, "idNumber")
	}
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.Phone == "" {
		missing = append(missing, "phone")
	}
	if s.Hall == "" {
		missing = append(missing, "hall")
	}
	if s.Room == "" {
		missing = append(missing, "room")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	if _, err := ParseGender(string(s.Gender)); err != nil {
		return err
	}
	return nil
}

// Snapshot returns the denormalized copy stored inside a Partnering.
func (s *Student) Snapshot() StudentSnapshot {
	return StudentSnapshot{
		ID:            s.ID,
		Name:          s.Name,
		Phone:         s.Phone,
		Gender:        s.Gender,
		Hall:          s.Hall,
		Room:          s.Room,
		ProfilePicURL: s.ProfilePicURL,
	}
}

// StudentSnapshot is a copy of a student taken when a pairing is written.
type StudentSnapshot struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Gender        Gender `json:"gender"`
	Hall          string `json:"hall"`
	Room          string `json:"room"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`
}

// OTPRecord is the live passcode for a student. IssuedAt is the store's
// write timestamp, not part of the stored body.
type OTPRecord struct {
	SubjectID string    `json:"-"`
	Code      string    `json:"otp"`
	IssuedAt  time.Time `json:"-"`
}

// Validate checks required fields
func (o *OTPRecord) Validate() error {
	if o.Code == "" {
		return errors.New("missing otp code")
	}
	return nil
}

// EventStatus is derived from the event window when the event is written.
type EventStatus string

const (
	EventUpcoming  EventStatus = "Upcoming"
	EventOngoing   EventStatus = "Ongoing"
	EventCompleted EventStatus = "Completed"
)

// Event represents a matchmaking event
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	Status      EventStatus `json:"status"`
	Students    int         `json:"students"`
}

// Validate checks required fields
func (e *Event) Validate() error {
	if e.Title == "" || e.Date == "" || e.StartTime == "" || e.EndTime == "" {
		return errors.New("event requires title, date, startTime and endTime")
	}
	return nil
}

// Partnering assigns one primary (male) student to one or more secondary
// (female) students for an event.
type Partnering struct {
	ID          string            `json:"-"`
	EventID     string            `json:"eventId"`
	Primary     StudentSnapshot   `json:"primary"`
	Secondaries []StudentSnapshot `json:"secondaries"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Validate checks required fields
func (p *Partnering) Validate() error {
	if p.EventID == "" {
		return errors.New("partnering without eventId")
	}
	if p.Primary.ID == "" {
		return errors.New("partnering without primary")
	}
	if len(p.Secondaries) == 0 {
		return errors.New("partnering without secondaries")
	}
	return nil
}

// HasSecondary reports whether studentID is among the secondaries.
func (p *Partnering) HasSecondary(studentID string) bool {
	for _, s := range p.Secondaries {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// Involves reports whether studentID is on either side.
func (p *Partnering) Involves(studentID string) bool {
	return p.Primary.ID == studentID || p.HasSecondary(studentID)
}

// Announcement is a message sent to one student
type Announcement struct {
	ID          string    `json:"-"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks required fields
func (a *Announcement) Validate() error {
	if a.StudentID == "" || a.Message == "" {
		return errors.New("announcement requires studentId and message")
	}
	return nil
}

// Identity is the login credential of a student.
type Identity struct {
	UID       string    `json:"uid"`
	StudentID string    `json:"studentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks required fields
func (i *Identity) Validate() error {
	if i.UID == "" {
		return errors.New("identity without uid")
	}
	return nil
}
