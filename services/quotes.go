package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"staysearch/store"
)

// ─── Types ────────────────────────────────────────────────────────────────────

// Passenger carries the demographics the quote upstream prices against.
// Birthdate is synthesized from the age per aggregation attempt; it only
// exists to satisfy the upstream contract and is never stored.
type Passenger struct {
	Age       int    `json:"age"`
	Birthdate string `json:"birthdate"` // YYYY/MM/DD
}

// QuoteRequest is the quote upstream's request body.
type QuoteRequest struct {
	Passengers      []Passenger `json:"passengers"`
	DestinationCode string      `json:"destinationCode"`
	StartDate       string      `json:"startDate"`
	EndDate         string      `json:"endDate"`
}

// PromotionalOffer is an optional discount attached to a quoted product.
// Percentage travels as a string on the wire.
type PromotionalOffer struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Percentage  string `json:"percentage"`
}

// QuoteAmount holds the original and discounted totals of a product.
type QuoteAmount struct {
	Original   float64 `json:"totalOriginal"`
	Discounted float64 `json:"total"`
}

// QuotedProduct is one ancillary product priced for the current
// passenger/date combination. The accepted snapshot is broadcast read-only
// to every displayed listing.
type QuotedProduct struct {
	ProductCode      string            `json:"productCode"`
	RateCode         string            `json:"rateCode"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Currency         string            `json:"currency"`
	Modality         string            `json:"modality"`
	PromotionalOffer *PromotionalOffer `json:"promotionalOffer,omitempty"`
	Amount           QuoteAmount       `json:"amount"`
}

// QuoteFetcher issues one quote request. Implemented by QuoteClient; tests
// substitute their own.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, req QuoteRequest) ([]QuotedProduct, error)
}

// ─── Client ───────────────────────────────────────────────────────────────────

// QuoteClient talks to the ancillary product quote upstream.
type QuoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewQuoteClient creates a client for the quote upstream.
func NewQuoteClient(baseURL string, timeout time.Duration) *QuoteClient {
	return &QuoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchQuotes posts the passenger/date combination and returns the priced
// products.
func (c *QuoteClient) FetchQuotes(ctx context.Context, quoteReq QuoteRequest) ([]QuotedProduct, error) {
	payload, err := json.Marshal(quoteReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/related-products", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("quote error (%d): %s", resp.StatusCode, excerpt(body))
	}

	var products []QuotedProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	return products, nil
}

// ─── Birthdate synthesis ──────────────────────────────────────────────────────

// SynthesizeBirthdate derives a plausible birthdate for an age: the year is
// exact (currentYear − age), month and day are random. Day stays within 1–28
// so any month is valid. Re-run per aggregation attempt; not stable across
// calls.
func SynthesizeBirthdate(age int, now time.Time) string {
	year := now.Year() - age
	month := rand.Intn(12) + 1
	day := rand.Intn(28) + 1
	return fmt.Sprintf("%d/%02d/%02d", year, month, day)
}

// DerivePassengers builds the quote request passengers from the criteria
// ages.
func DerivePassengers(ages []int, now time.Time) []Passenger {
	passengers := make([]Passenger, 0, len(ages))
	for _, age := range ages {
		passengers = append(passengers, Passenger{
			Age:       age,
			Birthdate: SynthesizeBirthdate(age, now),
		})
	}
	return passengers
}

// ─── Aggregator ───────────────────────────────────────────────────────────────

// Aggregator coordinates quote fetches per session. It fires a new upstream
// call only when the criteria fingerprint changed since the last issued call,
// and applies responses in issue order: a response is accepted only if its
// sequence number is the highest applied so far, so a late response for
// stale criteria can never overwrite a newer one.
type Aggregator struct {
	fetcher QuoteFetcher

	mu       sync.Mutex
	sessions map[string]*quoteState
	ttl      time.Duration
	done     chan struct{}
}

type quoteState struct {
	mu sync.Mutex

	issuedFingerprint string        // fingerprint of the most recently issued call
	nextSeq           uint64        // sequence number for the next issued call
	appliedSeq        uint64        // highest sequence number applied so far
	inflight          chan struct{} // closed when the latest issued call completes
	inflightSeq       uint64

	products []QuotedProduct // latest accepted snapshot
	lastErr  error           // from the latest applied attempt; success clears it
	lastUsed time.Time
}

// NewAggregator creates an Aggregator on top of a fetcher. Per-session state
// is dropped after ttl of inactivity.
func NewAggregator(fetcher QuoteFetcher, ttl time.Duration) *Aggregator {
	a := &Aggregator{
		fetcher:  fetcher,
		sessions: make(map[string]*quoteState),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go a.cleanup()
	return a
}

// Close stops the background state reaper.
func (a *Aggregator) Close() {
	close(a.done)
}

// Refresh brings the session's quote snapshot up to date with the criteria
// and returns it. Incomplete criteria never trigger a call. An unchanged
// fingerprint suppresses a new call: if that call is still in flight its
// completion is awaited, otherwise the existing snapshot is returned as-is.
func (a *Aggregator) Refresh(ctx context.Context, sessionID string, c store.SearchCriteria) ([]QuotedProduct, error) {
	st := a.state(sessionID)

	if !c.Complete() {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.products, st.lastErr
	}

	fp := c.Fingerprint()

	st.mu.Lock()
	st.lastUsed = time.Now()

	if fp == st.issuedFingerprint {
		inflight := st.inflight
		st.mu.Unlock()
		if inflight != nil {
			select {
			case <-inflight:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.products, st.lastErr
	}

	// New fingerprint: issue a call tagged with the next sequence number.
	st.issuedFingerprint = fp
	st.nextSeq++
	seq := st.nextSeq
	callDone := make(chan struct{})
	st.inflight = callDone
	st.inflightSeq = seq
	passengers := DerivePassengers(c.Ages, time.Now())
	st.mu.Unlock()

	products, err := a.fetcher.FetchQuotes(ctx, QuoteRequest{
		Passengers:      passengers,
		DestinationCode: c.DestinationCode,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.inflightSeq == seq {
		st.inflight = nil
	}
	close(callDone)

	// Supersession: apply only if no later-issued response got there first.
	if seq <= st.appliedSeq {
		return st.products, st.lastErr
	}
	st.appliedSeq = seq

	if err != nil {
		// Keep the previously accepted snapshot; release the fingerprint so
		// a user-initiated resubmission of the same criteria can retry.
		st.lastErr = err
		if st.issuedFingerprint == fp {
			st.issuedFingerprint = ""
		}
		return st.products, st.lastErr
	}

	st.products = products
	st.lastErr = nil
	return st.products, nil
}

// Snapshot returns the session's current accepted products and error without
// triggering any fetch.
func (a *Aggregator) Snapshot(sessionID string) ([]QuotedProduct, error) {
	st := a.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.products, st.lastErr
}

func (a *Aggregator) state(sessionID string) *quoteState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.sessions[sessionID]
	if !ok {
		st = &quoteState{lastUsed: time.Now()}
		a.sessions[sessionID] = st
	}
	return st
}

func (a *Aggregator) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			a.mu.Lock()
			for id, st := range a.sessions {
				st.mu.Lock()
				idle := now.Sub(st.lastUsed)
				st.mu.Unlock()
				if idle > a.ttl {
					delete(a.sessions, id)
				}
			}
			a.mu.Unlock()
		case <-a.done:
			return
		}
	}
}
