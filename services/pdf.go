package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"staysearch/store"
)

// SummaryData collects everything the trip summary PDF renders: the chosen
// listing, the criteria snapshot it was priced against, and the current
// quote snapshot.
type SummaryData struct {
	Criteria   store.SearchCriteria
	Listing    store.HotelListing
	Nights     int
	TotalPrice float64
	Products   []QuotedProduct
}

// BuildSummaryPDF generates the printable trip summary and returns raw bytes
// (no filesystem needed).
func BuildSummaryPDF(data SummaryData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "StaySearch", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "Hotel Offer Summary", "", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	// ── Section Helpers ──────────────────────────────────────
	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(115, 7, value, "", 1, "L", false, 0, "")
	}

	// ── Trip Overview ─────────────────────────────────────────
	sectionHeader("Trip Overview")
	row("Destination", data.Criteria.DestinationCode)
	row("Check-in", fmtDateReadable(data.Criteria.StartDate))
	row("Check-out", fmtDateReadable(data.Criteria.EndDate))
	row("Duration", fmt.Sprintf("%d nights", data.Nights))
	row("Guests", fmt.Sprintf("%d", data.Criteria.PassengerCount()))
	row("Generated", time.Now().Format("02 Jan 2006, 15:04 UTC"))
	pdf.Ln(4)

	// ── Selected Hotel ────────────────────────────────────────
	sectionHeader("Selected Hotel")
	row("Hotel", data.Listing.Name)
	row("Area", data.Listing.RegionName)
	row("Address", data.Listing.Address)
	row("Stars", fmt.Sprintf("%d / 5", data.Listing.Stars))
	if data.Listing.MealType != "" {
		row("Meals", data.Listing.MealType)
	}
	refundable := "No"
	if data.Listing.Refundable {
		refundable = "Yes"
	}
	row("Refundable options", refundable)
	row("Price", fmt.Sprintf("$%.2f/night", data.Listing.PricePerNight))
	pdf.Ln(4)

	// ── Cost Summary ──────────────────────────────────────────
	sectionHeader("Cost Summary")
	row("Nightly price", fmt.Sprintf("$%.2f", data.Listing.PricePerNight))
	row("Stay", fmt.Sprintf("%d nights x %d guests", data.Nights, data.Criteria.PassengerCount()))

	pdf.SetFillColor(212, 168, 67)
	pdf.SetTextColor(13, 24, 37)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(55, 9, "TOTAL", "", 0, "L", true, 0, "")
	pdf.CellFormat(115, 9, fmt.Sprintf("$%.2f", data.TotalPrice), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	// ── Travel Products ───────────────────────────────────────
	if len(data.Products) > 0 {
		sectionHeader("Travel Products")
		for _, p := range data.Products {
			row(p.Modality, fmt.Sprintf("%s $%.2f", p.Currency, p.Amount.Discounted))
			if p.PromotionalOffer != nil && p.PromotionalOffer.Percentage != "" {
				row("", fmt.Sprintf("%s%% off, was %s $%.2f",
					p.PromotionalOffer.Percentage, p.Currency, p.Amount.Original))
			}
		}
		pdf.Ln(4)
	}

	// ── Footer ────────────────────────────────────────────────
	pdf.SetY(-22)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.3)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 8,
		"Generated by StaySearch · Not a booking confirmation · Prices subject to change",
		"", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtDateReadable(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02 Jan 2006 (Mon)")
}
