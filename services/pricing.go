package services

import (
	"sort"
	"time"

	"staysearch/store"
)

// Sort modes, selected by index from the results view's sort control.
const (
	SortPriceAsc  = 0
	SortPriceDesc = 1
	SortStarsAsc  = 2
	SortStarsDesc = 3
)

// Nights returns the inclusive day count of a trip date range
// (2025/06/01–2025/06/03 → 3). Unparseable or inverted ranges yield 0.
func Nights(startDate, endDate string) int {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return 0
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// TotalPrice computes the derived trip cost of one listing:
// nightly price × nights × passenger count.
func TotalPrice(listing store.HotelListing, c store.SearchCriteria) float64 {
	return listing.PricePerNight * float64(Nights(c.StartDate, c.EndDate)) * float64(c.PassengerCount())
}

// SortListings orders listings in place by the selected mode. The sort is
// stable, so equal keys keep their relative order; unrecognized modes leave
// the order untouched.
func SortListings(listings []store.HotelListing, mode int) {
	switch mode {
	case SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].PricePerNight < listings[j].PricePerNight
		})
	case SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].PricePerNight > listings[j].PricePerNight
		})
	case SortStarsAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].Stars < listings[j].Stars
		})
	case SortStarsDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].Stars > listings[j].Stars
		})
	}
}
