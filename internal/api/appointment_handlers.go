package api

import (
	"net/http"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/errs"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decode(r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		date, err := parseDate("appointment_date", req.Date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		t, err := parseTime("appointment_time", req.Time)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		res, err := svc.BookSlot(r.Context(), appointment.BookingRequest{
			PatientName:  req.PatientName,
			PatientEmail: req.PatientEmail,
			PatientPhone: req.PatientPhone,
			Date:         date,
			Time:         t,
			Reason:       appointment.Reason(req.Reason),
			Notes:        req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			Message:            "appointment requested, the clinic will confirm shortly",
			Appointment:        res.Appointment,
			NotificationQueued: res.NotificationQueued,
		})
	}
}

// linkActionHandler serves the confirm and cancel links sent by email.
func linkActionHandler(svc *appointment.Service, to appointment.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		var out appointment.Outcome
		if to == appointment.StatusConfirmed {
			out, err = svc.ConfirmFromLink(r.Context(), id)
		} else {
			out, err = svc.CancelFromLink(r.Context(), id)
		}
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse(out))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := intQuery(r, "page")
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		limit, err := intQuery(r, "limit")
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		q := appointment.ListQuery{Page: page, Limit: limit}
		if s := r.URL.Query().Get("status"); s != "" {
			status := appointment.Status(s)
			q.Status = &status
		}

		result, err := svc.List(r.Context(), q)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func appointmentStatsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := optionalDate(r, "from")
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		to, err := optionalDate(r, "to")
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		stats, err := svc.Stats(r.Context(), appointment.StatsQuery{From: from, To: to})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		var req UpdateAppointmentRequest
		if err := decode(r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		patch, err := patchFrom(req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		out, err := svc.Update(r.Context(), id, patch)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse(out))
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		var req StatusRequest
		if err := decode(r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		out, err := svc.Transition(r.Context(), id, appointment.Status(req.Status), appointment.TriggerStaff)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse(out))
	}
}

func statusResponse(out appointment.Outcome) StatusResponse {
	result := string(out.Appointment.Status)
	if out.AlreadyInState {
		result = "already_processed"
	}
	return StatusResponse{
		Result:             result,
		Appointment:        out.Appointment,
		PreviousStatus:     out.Previous,
		NotificationQueued: out.NotificationQueued,
	}
}

func patchFrom(req UpdateAppointmentRequest) (appointment.Patch, error) {
	p := appointment.Patch{
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		Notes:        req.Notes,
	}
	if req.Date != nil {
		d, err := parseDate("appointment_date", *req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if req.Time != nil {
		t, err := parseTime("appointment_time", *req.Time)
		if err != nil {
			return p, err
		}
		p.Time = &t
	}
	if req.Reason != nil {
		reason := appointment.Reason(*req.Reason)
		if !reason.Valid() {
			return p, errs.Validation("reason", "unknown appointment reason")
		}
		p.Reason = &reason
	}
	if req.Status != nil {
		status := appointment.Status(*req.Status)
		p.Status = &status
	}
	return p, nil
}
