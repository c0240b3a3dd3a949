package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"staysearch/handlers"
	"staysearch/services"
	"staysearch/store"
)

const availabilityBody = `{
	"success": true,
	"data": [
		{
			"id": "h1",
			"name": "Marina Grand",
			"regionName": "Dubai Marina",
			"address": {"address1": "1 Palm Street", "address2": "", "address3": "", "city": "Dubai"},
			"stars": 5,
			"pricePerNight": 100.00,
			"originalPricePerNight": 120.00,
			"photos": ["a.jpg"],
			"mealType": "All inclusive",
			"discounts": [20],
			"hasRefundableOptions": true
		},
		{
			"id": "h2",
			"name": "Desert Rose",
			"regionName": "Deira",
			"address": {"address1": "Souk Lane 9", "address2": "", "address3": "", "city": "Dubai"},
			"stars": 3,
			"pricePerNight": 80.00,
			"originalPricePerNight": 80.00,
			"photos": [],
			"mealType": "Breakfast included",
			"discounts": [],
			"hasRefundableOptions": false
		}
	]
}`

const quotesBody = `[
	{
		"productCode": "INS01",
		"rateCode": "STD",
		"name": "Trip insurance",
		"description": "Covers cancellation",
		"currency": "USD",
		"modality": "Standard",
		"promotionalOffer": null,
		"amount": {"totalOriginal": 120.00, "total": 120.00}
	}
]`

type offersResponse struct {
	Criteria store.SearchCriteria `json:"criteria"`
	Nights   int                  `json:"nights"`
	Listings []struct {
		ID            string  `json:"id"`
		PricePerNight float64 `json:"price_per_night"`
		Stars         int     `json:"stars"`
		TotalPrice    float64 `json:"total_price"`
	} `json:"listings"`
	Products   []services.QuotedProduct `json:"products"`
	QuoteError string                   `json:"quote_error"`
}

func newTestAPI(t *testing.T, avail, quotes http.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	availSrv := httptest.NewServer(avail)
	t.Cleanup(availSrv.Close)
	quoteSrv := httptest.NewServer(quotes)
	t.Cleanup(quoteSrv.Close)

	sessions := store.New(time.Hour)
	t.Cleanup(sessions.Close)
	aggregator := services.NewAggregator(services.NewQuoteClient(quoteSrv.URL, 2*time.Second), time.Hour)
	t.Cleanup(aggregator.Close)

	h := handlers.New(sessions, services.NewAvailabilityClient(availSrv.URL, 2*time.Second), aggregator)
	r := gin.New()
	h.Register(r.Group("/api"))
	return r
}

func serveOK(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func serveFail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse session response: %v", err)
	}
	return resp.SessionID
}

// submitSearch walks a session to a valid submitted state.
func submitSearch(t *testing.T, r *gin.Engine, id string) {
	t.Helper()
	if w := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/dates",
		gin.H{"start_date": "2025/06/01", "end_date": "2025/06/03"}); w.Code != http.StatusOK {
		t.Fatalf("set dates: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/ages",
		gin.H{"index": 0, "age": 30}); w.Code != http.StatusOK {
		t.Fatalf("set age: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/search",
		gin.H{"destination": "dxb"}); w.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))
	id := createSession(t, r)

	w := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/passengers", gin.H{"count": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("set passengers: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Criteria store.SearchCriteria `json:"criteria"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Criteria.Ages) != 3 {
		t.Fatalf("expected 3 ages after resize, got %d", len(resp.Criteria.Ages))
	}
	for _, age := range resp.Criteria.Ages {
		if age != store.AgeUnset {
			t.Errorf("expected padded sentinel ages, got %v", resp.Criteria.Ages)
		}
	}

	// Out-of-range age index is a client error.
	if w := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/ages",
		gin.H{"index": 5, "age": 30}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range index, got %d", w.Code)
	}

	// Malformed dates are rejected before they reach the store.
	if w := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/dates",
		gin.H{"start_date": "2025-06-01", "end_date": "2025/06/03"}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for wrong date format, got %d", w.Code)
	}
}

func TestSearch_ValidationOrder(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))
	id := createSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/search", gin.H{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	want := []string{services.MsgDestinationMissing, services.MsgDatesIncomplete, services.MsgAgesMissing}
	if len(resp.Errors) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), resp.Errors)
	}
	for i := range want {
		if resp.Errors[i] != want[i] {
			t.Errorf("message %d: expected %q, got %q", i, want[i], resp.Errors[i])
		}
	}
}

func TestOffers_MergedAndPriced(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))
	id := createSession(t, r)
	submitSearch(t, r, id)

	w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp offersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.Nights != 3 {
		t.Errorf("expected 3 nights, got %d", resp.Nights)
	}
	if resp.Criteria.DestinationCode != "DXB" {
		t.Errorf("expected destination uppercased to DXB, got %q", resp.Criteria.DestinationCode)
	}
	if len(resp.Listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(resp.Listings))
	}
	// 100.00/night x 3 nights x 1 passenger
	if resp.Listings[0].TotalPrice != 300.00 {
		t.Errorf("expected total 300.00, got %.2f", resp.Listings[0].TotalPrice)
	}
	if len(resp.Products) != 1 || resp.Products[0].ProductCode != "INS01" {
		t.Errorf("expected the quoted product broadcast, got %+v", resp.Products)
	}
	if resp.QuoteError != "" {
		t.Errorf("unexpected quote error: %q", resp.QuoteError)
	}
}

func TestOffers_SortModes(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))
	id := createSession(t, r)
	submitSearch(t, r, id)

	tests := []struct {
		query string
		first string
	}{
		{"?sort=0", "h2"}, // price asc
		{"?sort=1", "h1"}, // price desc
		{"?sort=2", "h2"}, // stars asc
		{"?sort=3", "h1"}, // stars desc
		{"?sort=9", "h1"}, // unknown: insertion order
		{"", "h1"},        // no sort: insertion order
	}

	for _, tt := range tests {
		w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers"+tt.query, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("sort %q: expected 200, got %d", tt.query, w.Code)
		}
		var resp offersResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Listings[0].ID != tt.first {
			t.Errorf("sort %q: expected first listing %s, got %s", tt.query, tt.first, resp.Listings[0].ID)
		}
	}
}

func TestOffers_AvailabilityFetchedOncePerSearch(t *testing.T) {
	var calls atomic.Int64
	avail := func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(availabilityBody))
	}

	r := newTestAPI(t, avail, serveOK(quotesBody))
	id := createSession(t, r)
	submitSearch(t, r, id)

	for i := 0; i < 3; i++ {
		if w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers", nil); w.Code != http.StatusOK {
			t.Fatalf("offers: expected 200, got %d", w.Code)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 availability fetch for repeated visits, got %d", got)
	}

	// A new submission is a new search and fetches again.
	if w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/search",
		gin.H{"destination": "DXB"}); w.Code != http.StatusOK {
		t.Fatalf("resubmit: expected 200, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers", nil); w.Code != http.StatusOK {
		t.Fatalf("offers after resubmit: expected 200, got %d", w.Code)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected a fresh fetch after resubmission, got %d", got)
	}
}

func TestOffers_QuoteFailureIsNonTerminal(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveFail())
	id := createSession(t, r)
	submitSearch(t, r, id)

	w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite quote failure, got %d: %s", w.Code, w.Body.String())
	}

	var resp offersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Listings) != 2 {
		t.Errorf("listings must still render, got %d", len(resp.Listings))
	}
	if resp.QuoteError == "" {
		t.Error("expected quote_error to be set")
	}
	if len(resp.Products) != 0 {
		t.Errorf("expected no products, got %+v", resp.Products)
	}
}

func TestOffers_AvailabilityFailureIsTerminal(t *testing.T) {
	r := newTestAPI(t, serveFail(), serveOK(quotesBody))
	id := createSession(t, r)
	submitSearch(t, r, id)

	w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "listings") {
		t.Error("no partial listings may render on availability failure")
	}
}

func TestOffers_RequiresSubmittedSearch(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))
	id := createSession(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/offers", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before submit, got %d", w.Code)
	}
}

func TestSummary_ReturnsPDF(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))
	id := createSession(t, r)
	submitSearch(t, r, id)

	w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/summary?hotel_id=h2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("response body is not a PDF")
	}

	if w := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/summary?hotel_id=nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown hotel, got %d", w.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	r := newTestAPI(t, serveOK(availabilityBody), serveOK(quotesBody))

	w := doJSON(t, r, http.MethodGet, "/api/sessions/missing/offers", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
