package api

import (
	"net/http"

	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/errs"
)

func listAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := availability.RuleFilter{RecurringOnly: r.URL.Query().Get("recurring_only") == "true"}

		rules, err := svc.ListRules(r.Context(), filter)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponses(rules))
	}
}

func createAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityRequest
		if err := decode(r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		start, err := parseTime("start_time", req.StartTime)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		end, err := parseTime("end_time", req.EndTime)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		if len(req.Days) > 0 {
			days := make([]calendar.Weekday, 0, len(req.Days))
			for _, d := range req.Days {
				days = append(days, calendar.Weekday(d))
			}
			rules, err := svc.AddRecurringRules(r.Context(), days, start, end, req.SlotDuration)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, toAvailabilityResponses(rules))
			return
		}

		schedule, err := scheduleFrom(req.DayOfWeek, req.Date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		rule, err := svc.AddRule(r.Context(), availability.RuleInput{
			Schedule:    schedule,
			Start:       start,
			End:         end,
			SlotMinutes: req.SlotDuration,
			Active:      req.IsActive,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAvailabilityResponse(rule))
	}
}

func getAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		rule, err := svc.GetRule(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(rule))
	}
}

func updateAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		var req AvailabilityPatchRequest
		if err := decode(r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		patch, err := rulePatchFrom(req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		rule, err := svc.UpdateRule(r.Context(), id, patch)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(rule))
	}
}

func deleteAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		if err := svc.DeleteRule(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// scheduleFrom picks the rule kind. Exactly one of dayOfWeek and date is expected.
func scheduleFrom(dayOfWeek *int, date string) (availability.Schedule, error) {
	switch {
	case dayOfWeek != nil && date != "":
		return nil, errs.Validation("schedule", "set either day_of_week or date, not both")
	case dayOfWeek != nil:
		return availability.Recurring{Weekday: calendar.Weekday(*dayOfWeek)}, nil
	case date != "":
		d, err := parseDate("date", date)
		if err != nil {
			return nil, err
		}
		return availability.OneOff{Date: d}, nil
	}
	return nil, nil
}

func rulePatchFrom(req AvailabilityPatchRequest) (availability.RulePatch, error) {
	var patch availability.RulePatch

	if req.DayOfWeek != nil || req.Date != nil {
		var date string
		if req.Date != nil {
			date = *req.Date
		}
		schedule, err := scheduleFrom(req.DayOfWeek, date)
		if err != nil {
			return patch, err
		}
		patch.Schedule = schedule
	}
	if req.StartTime != nil {
		t, err := parseTime("start_time", *req.StartTime)
		if err != nil {
			return patch, err
		}
		patch.Start = &t
	}
	if req.EndTime != nil {
		t, err := parseTime("end_time", *req.EndTime)
		if err != nil {
			return patch, err
		}
		patch.End = &t
	}
	patch.SlotMinutes = req.SlotDuration
	patch.Active = req.IsActive
	return patch, nil
}
