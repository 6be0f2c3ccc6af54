package usecase

import "time"

const stayDateLayout = "2006-01-02"

// stayNights counts nights between check-in and check-out. A stay is at
// least one night, so inverted or same-day ranges collapse to 1.
func stayNights(checkIn, checkOut time.Time) int {
	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		return 1
	}
	return nights
}

// checkoutDate derives the check-out date from check-in plus nights.
func checkoutDate(checkIn time.Time, nights int) time.Time {
	if nights < 1 {
		nights = 1
	}
	return checkIn.AddDate(0, 0, nights)
}

// stayWindow resolves the dates a query mentions into a check-in/check-out
// pair. Two explicit dates win over a nights count; one date plus a nights
// count derives the check-out; a lone date means a one-night stay.
func stayWindow(dates []string, nights int) (string, string, bool) {
	if len(dates) == 0 {
		return "", "", false
	}
	checkIn, err := time.Parse(stayDateLayout, dates[0])
	if err != nil {
		return "", "", false
	}
	if len(dates) > 1 {
		if checkOut, err := time.Parse(stayDateLayout, dates[1]); err == nil && checkOut.After(checkIn) {
			return dates[0], dates[1], true
		}
	}
	return dates[0], checkoutDate(checkIn, nights).Format(stayDateLayout), true
}
