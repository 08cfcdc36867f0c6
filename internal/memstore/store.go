// Package memstore keeps rules and appointments in process memory. It backs
// STORAGE_DRIVER=memory and the service tests, and enforces the same
// invariants as the Postgres schema.
package memstore

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
)

type Store struct {
	mu     sync.RWMutex
	rules  map[uuid.UUID]availability.Rule
	appts  map[uuid.UUID]appointment.Appointment
	events []appointment.EventLog

	// serializes rule writes against appointment slot writes
	txMu sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		rules: make(map[uuid.UUID]availability.Rule),
		appts: make(map[uuid.UUID]appointment.Appointment),
		now:   time.Now,
	}
}

// Rules returns the availability.Repository view of the store.
func (s *Store) Rules() *RuleStore {
	return &RuleStore{s: s}
}

// Appointments returns the appointment.Repository view of the store.
func (s *Store) Appointments() *AppointmentStore {
	return &AppointmentStore{s: s}
}

// Events returns a copy of the recorded event log.
func (s *Store) Events() []appointment.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointment.EventLog(nil), s.events...)
}

func (s *Store) snapshotRules() map[uuid.UUID]availability.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.rules)
}

func (s *Store) restoreRules(snap map[uuid.UUID]availability.Rule) {
	s.mu.Lock()
	s.rules = snap
	s.mu.Unlock()
}
