package handlers

import (
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"staysearch/services"
	"staysearch/store"
)

type OfferListing struct {
	store.HotelListing
	TotalPrice float64 `json:"total_price"`
}

type OffersResponse struct {
	Criteria   store.SearchCriteria     `json:"criteria"`
	Nights     int                      `json:"nights"`
	Listings   []OfferListing           `json:"listings"`
	Products   []services.QuotedProduct `json:"products"`
	QuoteError string                   `json:"quote_error,omitempty"`
}

// OffersHandler serves the results view: hotel availability and ancillary
// product quotes fetched concurrently, merged, priced, and sorted. The
// availability fetch runs once per submitted search; the quote refresh is
// de-duplicated and superseded inside the aggregator. Availability failure
// is terminal for the view, quote failure is not.
func (h *Handler) OffersHandler(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	criteria, ok := s.SubmittedCriteria()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "Search has not been submitted"})
		return
	}

	var (
		wg       sync.WaitGroup
		listings []store.HotelListing
		fetchErr error
		products []services.QuotedProduct
		quoteErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		listings, fetchErr = s.EnsureAvailability(func() ([]store.HotelListing, error) {
			return h.availability.FetchHotels(c.Request.Context(), criteria.DestinationCode)
		})
	}()
	go func() {
		defer wg.Done()
		products, quoteErr = h.aggregator.Refresh(c.Request.Context(), s.ID, criteria)
	}()
	wg.Wait()

	if fetchErr != nil {
		log.Printf("❌ Availability fetch failed: session=%s: %v", s.ID, fetchErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not load hotel availability"})
		return
	}

	sortMode := -1
	if v, err := strconv.Atoi(c.DefaultQuery("sort", "-1")); err == nil {
		sortMode = v
	}

	// Sort a copy; the session's listing order stays untouched.
	sorted := append([]store.HotelListing(nil), listings...)
	services.SortListings(sorted, sortMode)

	nights := services.Nights(criteria.StartDate, criteria.EndDate)
	offers := make([]OfferListing, 0, len(sorted))
	for _, listing := range sorted {
		offers = append(offers, OfferListing{
			HotelListing: listing,
			TotalPrice:   services.TotalPrice(listing, criteria),
		})
	}

	if products == nil {
		products = []services.QuotedProduct{}
	}

	resp := OffersResponse{
		Criteria: criteria,
		Nights:   nights,
		Listings: offers,
		Products: products,
	}
	if quoteErr != nil {
		log.Printf("⚠️  Quote refresh failed: session=%s: %v", s.ID, quoteErr)
		resp.QuoteError = "Could not load travel products"
	}

	c.JSON(http.StatusOK, resp)
}

// SummaryHandler renders the trip summary PDF for one listing of the current
// search. hotel_id selects the listing; it defaults to the first one.
func (h *Handler) SummaryHandler(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	criteria, ok := s.SubmittedCriteria()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "Search has not been submitted"})
		return
	}

	listings, err := s.EnsureAvailability(func() ([]store.HotelListing, error) {
		return h.availability.FetchHotels(c.Request.Context(), criteria.DestinationCode)
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not load hotel availability"})
		return
	}
	if len(listings) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No listings available for this search"})
		return
	}

	listing := listings[0]
	if hotelID := c.Query("hotel_id"); hotelID != "" {
		found := false
		for _, l := range listings {
			if l.ID == hotelID {
				listing = l
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hotel not found in current search"})
			return
		}
	}

	// The summary renders without products when the quote upstream is down.
	products, quoteErr := h.aggregator.Refresh(c.Request.Context(), s.ID, criteria)
	if quoteErr != nil {
		log.Printf("⚠️  Summary rendered without products: session=%s: %v", s.ID, quoteErr)
	}

	pdfBytes, err := services.BuildSummaryPDF(services.SummaryData{
		Criteria:   criteria,
		Listing:    listing,
		Nights:     services.Nights(criteria.StartDate, criteria.EndDate),
		TotalPrice: services.TotalPrice(listing, criteria),
		Products:   products,
	})
	if err != nil {
		log.Printf("❌ PDF generation failed: session=%s: %v", s.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=staysearch-summary.pdf")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
