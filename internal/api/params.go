package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/errs"
)

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errs.Validation("id", "id must be a valid UUID")
	}
	return id, nil
}

func parseDate(field, v string) (calendar.Date, error) {
	d, err := calendar.ParseDate(v)
	if err != nil {
		return calendar.Date{}, errs.Validation(field, err.Error())
	}
	return d, nil
}

func parseTime(field, v string) (calendar.TimeOfDay, error) {
	t, err := calendar.ParseTimeOfDay(v)
	if err != nil {
		return 0, errs.Validation(field, err.Error())
	}
	return t, nil
}

// optionalDate reads a YYYY-MM-DD query parameter; absent means nil.
func optionalDate(r *http.Request, name string) (*calendar.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(name, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func intQuery(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.Validation(name, "must be an integer")
	}
	return n, nil
}
