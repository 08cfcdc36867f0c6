package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/calendar"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether an appointment in this status occupies its slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

type Reason string

const (
	ReasonInitialConsultation Reason = "initial_consultation"
	ReasonFollowUp            Reason = "follow_up"
	ReasonSecondOpinion       Reason = "second_opinion"
	ReasonTreatmentPlanning   Reason = "treatment_planning"
	ReasonPostSurgery         Reason = "post_surgery"
	ReasonEmergency           Reason = "emergency"
	ReasonOther               Reason = "other"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonInitialConsultation, ReasonFollowUp, ReasonSecondOpinion, ReasonTreatmentPlanning,
		ReasonPostSurgery, ReasonEmergency, ReasonOther:
		return true
	}
	return false
}

// Trigger identifies who asked for a status change.
type Trigger string

const (
	TriggerStaff Trigger = "staff"
	TriggerLink  Trigger = "email_link"
)

type Appointment struct {
	ID           uuid.UUID          `json:"id"`
	PatientName  string             `json:"patient_name"`
	PatientEmail string             `json:"patient_email"`
	PatientPhone string             `json:"patient_phone"`
	Date         calendar.Date      `json:"appointment_date"`
	Time         calendar.TimeOfDay `json:"appointment_time"`
	Reason       Reason             `json:"reason"`
	Status       Status             `json:"status"`
	Notes        string             `json:"notes"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// SlotKey identifies the appointment's slot, e.g. 2026-10-21T0900.
func (a Appointment) SlotKey() string {
	return SlotKey(a.Date, a.Time)
}

func SlotKey(date calendar.Date, t calendar.TimeOfDay) string {
	return date.String() + "T" + t.Compact()
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// BookingRequest is a patient's request for one slot.
type BookingRequest struct {
	PatientName  string             `json:"patient_name" validate:"required,max=100"`
	PatientEmail string             `json:"patient_email" validate:"required,email,max=254"`
	PatientPhone string             `json:"patient_phone" validate:"required,phone"`
	Date         calendar.Date      `json:"appointment_date"`
	Time         calendar.TimeOfDay `json:"appointment_time"`
	Reason       Reason             `json:"reason" validate:"required,reason"`
	Notes        string             `json:"notes" validate:"max=1000"`
}

type BookingResult struct {
	Appointment        Appointment
	NotificationQueued bool
}

// Outcome describes the result of a status change request.
type Outcome struct {
	Appointment        Appointment
	Previous           Status
	AlreadyInState     bool
	NotificationQueued bool
}

// Patch holds staff edits; nil fields are left unchanged.
type Patch struct {
	PatientName  *string
	PatientEmail *string
	PatientPhone *string
	Date         *calendar.Date
	Time         *calendar.TimeOfDay
	Reason       *Reason
	Notes        *string
	Status       *Status
}

func (p Patch) movesSlot() bool {
	return p.Date != nil || p.Time != nil
}

func (p Patch) editsFields() bool {
	return p.PatientName != nil || p.PatientEmail != nil || p.PatientPhone != nil ||
		p.movesSlot() || p.Reason != nil || p.Notes != nil
}

type ListQuery struct {
	Page   int
	Limit  int
	Status *Status
}

type Page struct {
	Appointments []Appointment `json:"appointments"`
	Total        int           `json:"total_count"`
	TotalPages   int           `json:"total_pages"`
	CurrentPage  int           `json:"current_page"`
	Limit        int           `json:"limit"`
	HasNext      bool          `json:"has_next"`
	HasPrevious  bool          `json:"has_previous"`
}

// StatsQuery bounds Stats to appointment dates in [From, To]; nil means open.
type StatsQuery struct {
	From *calendar.Date
	To   *calendar.Date
}

type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
	Completed int `json:"completed"`
	NoShow    int `json:"no_show"`
}
