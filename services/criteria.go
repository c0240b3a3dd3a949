package services

import (
	"time"

	"staysearch/store"
)

// DateLayout is the date format exchanged with the frontend and both
// upstream APIs.
const DateLayout = "2006/01/02"

// Validation messages, surfaced in priority order. The frontend shows the
// first one; the full list is always returned.
const (
	MsgDestinationMissing = "Select a destination."
	MsgDatesIncomplete    = "Select the trip dates."
	MsgAgesMissing        = "Enter the ages of all passengers."
)

// ValidateCriteria checks raw criteria against a destination selection and
// returns the complete ordered list of failures, or an empty list when the
// criteria are fetch-ready. Pure function: no state is touched.
func ValidateCriteria(destination string, c store.SearchCriteria) []string {
	var errs []string

	if destination == "" {
		errs = append(errs, MsgDestinationMissing)
	}

	if !datesValid(c.StartDate, c.EndDate) {
		errs = append(errs, MsgDatesIncomplete)
	}

	for _, age := range c.Ages {
		if age == store.AgeUnset || age <= 0 {
			errs = append(errs, MsgAgesMissing)
			break
		}
	}

	return errs
}

func datesValid(start, end string) bool {
	if start == "" || end == "" {
		return false
	}
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return false
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return false
	}
	return !s.After(e)
}
