package repository

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/model"
)

// Observer is notified with every history entry after the mutation it
// records has been committed.  Observers run outside the ledger's locks, so
// entries of concurrent mutations may reach an observer in a different
// order than AdminHistory reports them.
type Observer func(model.HistoryEntry)

// Option configures a ReservationLedger.
type Option func(*ReservationLedger)

// WithClock overrides the time source used for createdAt and history
// timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *ReservationLedger) { l.clock = c }
}

// WithIDGenerator overrides how concert and history identifiers are minted.
func WithIDGenerator(fn func() string) Option {
	return func(l *ReservationLedger) { l.newID = fn }
}

// WithObserver registers fn to receive committed history entries.
func WithObserver(fn Observer) Option {
	return func(l *ReservationLedger) { l.observers = append(l.observers, fn) }
}

// concertSlot owns one active concert.  mu serializes reservation changes
// on that concert only.
type concertSlot struct {
	mu      sync.Mutex
	concert model.Concert
}

// ReservationLedger keeps the active concerts and the append-only history
// log in memory.
//
// Locking: mu guards the active collection (order and byID).  Create and
// Delete take it exclusively; reserve, cancel and reads take it shared and
// then lock the affected concert's slot, so mutations on different concerts
// run in parallel while a delete never interleaves with a reservation.
// histMu guards the history log and is always acquired last, inside the
// critical section of the mutation being recorded.
type ReservationLedger struct {
	mu    sync.RWMutex
	order []*concertSlot // newest first
	byID  map[string]*concertSlot

	histMu   sync.Mutex
	history  []model.HistoryEntry // append order
	canceled int

	clock     clock.Clock
	newID     func() string
	observers []Observer
}

// NewReservationLedger returns an empty ledger.
func NewReservationLedger(opts ...Option) *ReservationLedger {
	l := &ReservationLedger{
		byID:  make(map[string]*concertSlot),
		clock: clock.NewSystem(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create registers a new concert with no reservations and records a
// create entry attributed to the system user.  Inputs are validated by the
// caller.
func (l *ReservationLedger) Create(name, description string, totalSeats int) model.Concert {
	l.mu.Lock()
	slot := &concertSlot{concert: model.Concert{
		ID:                l.newID(),
		Name:              name,
		Description:       description,
		TotalSeats:        totalSeats,
		ReservedByUserIDs: []string{},
		CreatedAt:         model.NewTimestamp(l.clock.Now()),
	}}
	l.order = slices.Insert(l.order, 0, slot)
	l.byID[slot.concert.ID] = slot
	entry := l.appendHistory(model.SystemUserID, slot.concert, model.ActionCreate)
	created := cloneConcert(slot.concert)
	l.mu.Unlock()

	l.notify(entry)
	return created
}

// Delete removes the concert from the active set.  History recorded for it
// is kept; a delete entry is appended with the name the concert had at
// deletion time.
func (l *ReservationLedger) Delete(concertID string) error {
	l.mu.Lock()
	slot, ok := l.byID[concertID]
	if !ok {
		l.mu.Unlock()
		return ErrConcertNotFound
	}
	slot.mu.Lock()
	delete(l.byID, concertID)
	l.order = slices.DeleteFunc(l.order, func(s *concertSlot) bool { return s == slot })
	entry := l.appendHistory(model.SystemUserID, slot.concert, model.ActionDelete)
	slot.mu.Unlock()
	l.mu.Unlock()

	l.notify(entry)
	return nil
}

// ReserveSeat claims one seat on the concert for userID.
func (l *ReservationLedger) ReserveSeat(concertID, userID string) error {
	userID = normalizeUserID(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	return l.withConcert(concertID, func(c *model.Concert) (model.HistoryEntry, error) {
		if lo.Contains(c.ReservedByUserIDs, userID) {
			return model.HistoryEntry{}, ErrAlreadyReserved
		}
		if len(c.ReservedByUserIDs) >= c.TotalSeats {
			return model.HistoryEntry{}, ErrSoldOut
		}
		c.ReservedByUserIDs = append(c.ReservedByUserIDs, userID)
		return l.appendHistory(userID, *c, model.ActionReserve), nil
	})
}

// CancelReservation releases the seat held by userID on the concert.
func (l *ReservationLedger) CancelReservation(concertID, userID string) error {
	userID = normalizeUserID(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	return l.withConcert(concertID, func(c *model.Concert) (model.HistoryEntry, error) {
		idx := slices.Index(c.ReservedByUserIDs, userID)
		if idx == -1 {
			return model.HistoryEntry{}, ErrReservationNotFound
		}
		c.ReservedByUserIDs = slices.Delete(c.ReservedByUserIDs, idx, idx+1)
		return l.appendHistory(userID, *c, model.ActionCancel), nil
	})
}

// withConcert runs fn inside the concert's critical section.  fn either
// mutates the concert and returns the entry recording it, or returns an
// error and leaves the concert untouched.  Observers are notified after all
// locks are released.
func (l *ReservationLedger) withConcert(concertID string, fn func(c *model.Concert) (model.HistoryEntry, error)) error {
	l.mu.RLock()
	slot, ok := l.byID[concertID]
	if !ok {
		l.mu.RUnlock()
		return ErrConcertNotFound
	}
	slot.mu.Lock()
	entry, err := fn(&slot.concert)
	slot.mu.Unlock()
	l.mu.RUnlock()
	if err != nil {
		return err
	}

	l.notify(entry)
	return nil
}

// List returns the active concerts in storage order with derived fields.
func (l *ReservationLedger) List() []model.ConcertView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.ConcertView, 0, len(l.order))
	for _, slot := range l.order {
		out = append(out, slot.view())
	}
	return out
}

// Get returns a single active concert.
func (l *ReservationLedger) Get(concertID string) (model.ConcertView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slot, ok := l.byID[concertID]
	if !ok {
		return model.ConcertView{}, ErrConcertNotFound
	}
	return slot.view(), nil
}

// DashboardMetrics sums capacity and reservations over active concerts and
// counts every cancel ever recorded, including those of deleted concerts.
// The exclusive lock makes the three figures a consistent snapshot.
func (l *ReservationLedger) DashboardMetrics() model.DashboardMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	var m model.DashboardMetrics
	for _, slot := range l.order {
		m.TotalSeats += slot.concert.TotalSeats
		m.ReservedSeats += len(slot.concert.ReservedByUserIDs)
	}
	l.histMu.Lock()
	m.CanceledCount = l.canceled
	l.histMu.Unlock()
	return m
}

// AdminHistory returns every history entry, most recent first.  Entries
// sharing a timestamp are ordered by append sequence, later first.
func (l *ReservationLedger) AdminHistory() []model.HistoryEntry {
	l.histMu.Lock()
	out := make([]model.HistoryEntry, len(l.history))
	copy(out, l.history)
	l.histMu.Unlock()

	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b model.HistoryEntry) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
	return out
}

// UserHistory returns AdminHistory restricted to entries whose actor is
// exactly userID.
func (l *ReservationLedger) UserHistory(userID string) []model.HistoryEntry {
	return lo.Filter(l.AdminHistory(), func(e model.HistoryEntry, _ int) bool {
		return e.UserID == userID
	})
}

// appendHistory must be called while holding the lock that covers the
// mutation being recorded.
func (l *ReservationLedger) appendHistory(userID string, c model.Concert, action model.HistoryAction) model.HistoryEntry {
	entry := model.HistoryEntry{
		ID:          l.newID(),
		Timestamp:   model.NewTimestamp(l.clock.Now()),
		UserID:      userID,
		ConcertID:   c.ID,
		ConcertName: c.Name,
		Action:      action,
	}
	l.histMu.Lock()
	l.history = append(l.history, entry)
	if action == model.ActionCancel {
		l.canceled++
	}
	l.histMu.Unlock()
	return entry
}

func (l *ReservationLedger) notify(entry model.HistoryEntry) {
	for _, fn := range l.observers {
		fn(entry)
	}
}

func (s *concertSlot) view() model.ConcertView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.NewConcertView(cloneConcert(s.concert))
}

func cloneConcert(c model.Concert) model.Concert {
	ids := make([]string, len(c.ReservedByUserIDs))
	copy(ids, c.ReservedByUserIDs)
	c.ReservedByUserIDs = ids
	return c
}

// normalizeUserID trims surrounding whitespace so that "  u1 " and "u1"
// name the same user for storage, duplicate detection and cancellation.
func normalizeUserID(userID string) string {
	return strings.TrimSpace(userID)
}
