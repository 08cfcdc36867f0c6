package api

import (
	"net/http"

	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/slots"
)

// dateOrTomorrow reads ?date=, defaulting to the clinic's tomorrow.
func dateOrTomorrow(r *http.Request, today func() calendar.Date) (calendar.Date, error) {
	d, err := optionalDate(r, "date")
	if err != nil {
		return calendar.Date{}, err
	}
	if d == nil {
		return today().AddDays(1), nil
	}
	return *d, nil
}

func availableSlotsHandler(resolver *slots.Resolver, today func() calendar.Date, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := dateOrTomorrow(r, today)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		free, err := resolver.ResolveAvailableSlots(r.Context(), date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		m.ObserveSlotQuery("public")

		writeJSON(w, http.StatusOK, AvailableSlotsResponse{
			Date:           date,
			DayName:        date.Weekday().String(),
			Slots:          free,
			TotalAvailable: len(free),
		})
	}
}

func nextAvailableDateHandler(resolver *slots.Resolver, today func() calendar.Date, horizonDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := today()
		if d, err := optionalDate(r, "from"); err != nil {
			handleServiceError(w, r, err)
			return
		} else if d != nil {
			from = *d
		}

		next, found, err := resolver.NextAvailableDate(r.Context(), from, horizonDays)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := NextAvailableResponse{Found: found}
		if found {
			resp.Date = &next
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func detailedSlotsHandler(resolver *slots.Resolver, today func() calendar.Date, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := dateOrTomorrow(r, today)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		sum, err := resolver.ResolveSlots(r.Context(), date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		m.ObserveSlotQuery("admin")

		writeJSON(w, http.StatusOK, sum)
	}
}
