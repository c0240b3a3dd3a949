package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"staysearch/store"
)

// ─── Client ───────────────────────────────────────────────────────────────────

// AvailabilityClient fetches raw hotel availability for a destination and
// normalizes it into listings. The fetch depends only on the destination;
// the caller decides when (and how often) to run it.
type AvailabilityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAvailabilityClient creates a client for the availability upstream.
func NewAvailabilityClient(baseURL string, timeout time.Duration) *AvailabilityClient {
	return &AvailabilityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ─── Wire types ───────────────────────────────────────────────────────────────

type availabilityEnvelope struct {
	Success bool        `json:"success"`
	Data    []rawRecord `json:"data"`
}

type rawRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RegionName string `json:"regionName"`
	Address    struct {
		Address1 string `json:"address1"`
		Address2 string `json:"address2"`
		Address3 string `json:"address3"`
		City     string `json:"city"`
	} `json:"address"`
	Stars                 int       `json:"stars"`
	PricePerNight         float64   `json:"pricePerNight"`
	OriginalPricePerNight float64   `json:"originalPricePerNight"`
	Photos                []string  `json:"photos"`
	MealType              mealType  `json:"mealType"`
	Discounts             []float64 `json:"discounts"`
	HasRefundableOptions  bool      `json:"hasRefundableOptions"`
}

// mealType arrives either as a plain string or as an object carrying a text
// field; both normalize to a string.
type mealType string

func (m *mealType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = mealType(s)
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("mealType is neither string nor object: %s", string(data))
	}
	*m = mealType(obj.Text)
	return nil
}

// ─── Fetch ────────────────────────────────────────────────────────────────────

// FetchHotels requests availability for one destination code and maps the
// response into normalized listings. Any transport failure, non-2xx status,
// or success=false envelope is returned as a single error; no partial
// results are produced.
func (c *AvailabilityClient) FetchHotels(ctx context.Context, destinationCode string) ([]store.HotelListing, error) {
	u, err := url.Parse(c.baseURL + "/api/availability/public")
	if err != nil {
		return nil, fmt.Errorf("invalid availability URL: %w", err)
	}
	q := u.Query()
	q.Set("destination", destinationCode)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("availability request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("availability error (%d): %s", resp.StatusCode, excerpt(body))
	}

	var envelope availabilityEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse availability response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("availability upstream reported failure")
	}

	listings := make([]store.HotelListing, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		listings = append(listings, normalizeRecord(raw))
	}
	return listings, nil
}

func normalizeRecord(raw rawRecord) store.HotelListing {
	// Empty discount lists happen on non-promotional rates; treat as no
	// discount rather than failing the whole response.
	discount := 0.0
	if len(raw.Discounts) > 0 {
		discount = raw.Discounts[0]
	}

	return store.HotelListing{
		ID:                    raw.ID,
		Name:                  raw.Name,
		RegionName:            raw.RegionName,
		City:                  raw.Address.City,
		Stars:                 raw.Stars,
		Address:               joinAddress(raw.Address.Address1, raw.Address.Address2, raw.Address.Address3),
		PricePerNight:         round2(raw.PricePerNight),
		OriginalPricePerNight: round2(raw.OriginalPricePerNight),
		Images:                raw.Photos,
		MealType:              string(raw.MealType),
		DiscountPercent:       discount,
		Refundable:            raw.HasRefundableOptions,
	}
}

func joinAddress(lines ...string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
