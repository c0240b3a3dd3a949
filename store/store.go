package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AgeUnset marks a passenger slot whose age has not been entered yet.
const AgeUnset = -1

// ─── Criteria ─────────────────────────────────────────────────────────────────

// SearchCriteria is the traveler's current trip parameters. Ages always has
// exactly one entry per passenger; unset entries hold AgeUnset.
type SearchCriteria struct {
	DestinationCode string `json:"destination_code"`
	StartDate       string `json:"start_date"` // YYYY/MM/DD
	EndDate         string `json:"end_date"`   // YYYY/MM/DD
	Ages            []int  `json:"ages"`
}

// PassengerCount returns the number of passengers in the criteria.
func (c SearchCriteria) PassengerCount() int {
	return len(c.Ages)
}

// Complete reports whether the criteria can back a quote request: both dates
// set and every passenger age entered.
func (c SearchCriteria) Complete() bool {
	if c.StartDate == "" || c.EndDate == "" || len(c.Ages) == 0 {
		return false
	}
	for _, age := range c.Ages {
		if age == AgeUnset {
			return false
		}
	}
	return true
}

// Fingerprint identifies the criteria values a quote request depends on.
// Two criteria with equal fingerprints would produce equivalent requests.
func (c SearchCriteria) Fingerprint() string {
	fp := c.DestinationCode + "|" + c.StartDate + "|" + c.EndDate
	for _, age := range c.Ages {
		fp += fmt.Sprintf("|%d", age)
	}
	return fp
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session holds one traveler's criteria plus the results state of the most
// recent submitted search. All access goes through the mutex; Snapshot hands
// out copies so readers never observe a half-applied mutation.
type Session struct {
	ID string

	mu       sync.Mutex
	criteria SearchCriteria
	lastUsed time.Time

	// fetchMu serializes the availability fetch so it runs at most once per
	// submitted search even under concurrent results requests.
	fetchMu sync.Mutex

	submitted Submitted
}

// Submitted is the results-view state of a session: the canonical criteria
// snapshot captured at submit time and the availability outcome, fetched at
// most once per submission.
type Submitted struct {
	OK       bool
	Criteria SearchCriteria
	Fetched  bool
	Listings []HotelListing
	FetchErr error
}

// HotelListing is one priced hotel offer, immutable once normalized.
type HotelListing struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	RegionName            string   `json:"region_name"`
	City                  string   `json:"city"`
	Stars                 int      `json:"stars"`
	Address               string   `json:"address"`
	PricePerNight         float64  `json:"price_per_night"`
	OriginalPricePerNight float64  `json:"original_price_per_night"`
	Images                []string `json:"images"` // opaque media keys
	MealType              string   `json:"meal_type"`
	DiscountPercent       float64  `json:"discount_percent"`
	Refundable            bool     `json:"refundable"`
}

// SetDates sets both trip dates in one step.
func (s *Session) SetDates(start, end string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.StartDate = start
	s.criteria.EndDate = end
	s.lastUsed = time.Now()
}

// SetPassengerCount resizes the ages sequence to n, padding new slots with
// AgeUnset and truncating extras. len(Ages) == n holds afterwards.
func (s *Session) SetPassengerCount(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ages := make([]int, n)
	for i := range ages {
		if i < len(s.criteria.Ages) {
			ages[i] = s.criteria.Ages[i]
		} else {
			ages[i] = AgeUnset
		}
	}
	s.criteria.Ages = ages
	s.lastUsed = time.Now()
}

// SetAge sets the age of one passenger slot. Returns false when the index is
// outside the current passenger count.
func (s *Session) SetAge(index, age int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.criteria.Ages) {
		return false
	}
	s.criteria.Ages[index] = age
	s.lastUsed = time.Now()
	return true
}

// Snapshot returns a consistent copy of the current criteria.
func (s *Session) Snapshot() SearchCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return s.copyCriteria()
}

func (s *Session) copyCriteria() SearchCriteria {
	c := s.criteria
	c.Ages = append([]int(nil), s.criteria.Ages...)
	return c
}

// Submit captures the canonical criteria snapshot for the results view and
// resets any previous search's availability state.
func (s *Session) Submit(destination string) SearchCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.DestinationCode = destination
	snap := s.copyCriteria()
	s.submitted = Submitted{OK: true, Criteria: snap}
	s.lastUsed = time.Now()
	return snap
}

// SubmittedCriteria returns the snapshot captured by the last successful
// submit, or ok=false when the session was never submitted.
func (s *Session) SubmittedCriteria() (SearchCriteria, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.submitted.OK {
		return SearchCriteria{}, false
	}
	c := s.submitted.Criteria
	c.Ages = append([]int(nil), s.submitted.Criteria.Ages...)
	return c, true
}

// Availability returns the cached availability outcome of the current search.
// fetched=false means no fetch has completed since the last submit.
func (s *Session) Availability() (listings []HotelListing, err error, fetched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted.Listings, s.submitted.FetchErr, s.submitted.Fetched
}

// StoreAvailability records the availability outcome; the view keeps it until
// the next submit.
func (s *Session) StoreAvailability(listings []HotelListing, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted.Listings = listings
	s.submitted.FetchErr = err
	s.submitted.Fetched = true
	s.lastUsed = time.Now()
}

// EnsureAvailability returns the cached availability outcome, running fetch
// exactly once per submitted search. Concurrent callers are serialized; the
// losers read the stored outcome.
func (s *Session) EnsureAvailability(fetch func() ([]HotelListing, error)) ([]HotelListing, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if listings, err, fetched := s.Availability(); fetched {
		return listings, err
	}
	listings, err := fetch()
	s.StoreAvailability(listings, err)
	return listings, err
}

// ─── Store ────────────────────────────────────────────────────────────────────

// Store owns all live sessions. It is injected into the handlers rather than
// held as a package global so every consumer reads the same source of truth.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	done     chan struct{}
}

// New creates a Store whose sessions expire after ttl of inactivity.
func New(ttl time.Duration) *Store {
	st := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go st.cleanup()
	return st
}

// Close stops the background session reaper.
func (st *Store) Close() {
	close(st.done)
}

// Create starts a new session: one passenger, age unset, dates unset.
func (st *Store) Create() *Session {
	s := &Session{
		ID:       uuid.New().String(),
		criteria: SearchCriteria{Ages: []int{AgeUnset}},
		lastUsed: time.Now(),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given id, or nil.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			st.mu.Lock()
			for id, s := range st.sessions {
				s.mu.Lock()
				idle := now.Sub(s.lastUsed)
				s.mu.Unlock()
				if idle > st.ttl {
					delete(st.sessions, id)
				}
			}
			st.mu.Unlock()
		case <-st.done:
			return
		}
	}
}
