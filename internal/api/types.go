package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/slots"
)

type CreateAppointmentRequest struct {
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	Date         string `json:"appointment_date" validate:"required"`
	Time         string `json:"appointment_time" validate:"required"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes"`
}

type UpdateAppointmentRequest struct {
	PatientName  *string `json:"patient_name"`
	PatientEmail *string `json:"patient_email"`
	PatientPhone *string `json:"patient_phone"`
	Date         *string `json:"appointment_date"`
	Time         *string `json:"appointment_time"`
	Reason       *string `json:"reason"`
	Notes        *string `json:"notes"`
	Status       *string `json:"status"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type BookingResponse struct {
	Message            string                  `json:"message"`
	Appointment        appointment.Appointment `json:"appointment"`
	NotificationQueued bool                    `json:"notification_queued"`
}

type StatusResponse struct {
	Result             string                  `json:"result"`
	Appointment        appointment.Appointment `json:"appointment"`
	PreviousStatus     appointment.Status      `json:"previous_status"`
	NotificationQueued bool                    `json:"notification_queued"`
}

// AvailabilityRequest creates one rule, or one recurring rule per entry in Days.
type AvailabilityRequest struct {
	DayOfWeek    *int   `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	Date         string `json:"date"`
	Days         []int  `json:"days" validate:"omitempty,dive,min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	SlotDuration int    `json:"slot_duration" validate:"omitempty,min=1"`
	IsActive     *bool  `json:"is_active"`
}

type AvailabilityPatchRequest struct {
	DayOfWeek    *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	Date         *string `json:"date"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	SlotDuration *int    `json:"slot_duration" validate:"omitempty,min=1"`
	IsActive     *bool   `json:"is_active"`
}

type AvailabilityResponse struct {
	ID           uuid.UUID `json:"id"`
	IsRecurring  bool      `json:"is_recurring"`
	DayOfWeek    *int      `json:"day_of_week"`
	DayName      string    `json:"day_name,omitempty"`
	Date         *string   `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SlotDuration int       `json:"slot_duration"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAvailabilityResponse(r availability.Rule) AvailabilityResponse {
	resp := AvailabilityResponse{
		ID:           r.ID,
		IsRecurring:  r.IsRecurring(),
		StartTime:    r.Start.String(),
		EndTime:      r.End.String(),
		SlotDuration: r.SlotMinutes,
		IsActive:     r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	switch s := r.Schedule.(type) {
	case availability.Recurring:
		day := int(s.Weekday)
		resp.DayOfWeek = &day
		resp.DayName = s.Weekday.String()
	case availability.OneOff:
		date := s.Date.String()
		resp.Date = &date
	}
	return resp
}

func toAvailabilityResponses(rules []availability.Rule) []AvailabilityResponse {
	out := make([]AvailabilityResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toAvailabilityResponse(r))
	}
	return out
}

type AvailableSlotsResponse struct {
	Date           calendar.Date `json:"date"`
	DayName        string        `json:"day_name"`
	Slots          []slots.View  `json:"slots"`
	TotalAvailable int           `json:"total_available"`
}

type NextAvailableResponse struct {
	Found bool           `json:"found"`
	Date  *calendar.Date `json:"next_available_date"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Details string         `json:"details,omitempty"`
	Field   string         `json:"field,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}
