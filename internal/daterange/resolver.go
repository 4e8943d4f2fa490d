// Package daterange turns optional, caller-supplied date strings into a
// concrete, validated DateRange.
package daterange

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

// DefaultLookbackYears is how far back a range reaches when its start is omitted.
const DefaultLookbackYears = 3

// Resolver fills in missing bounds relative to the clock's current date.
type Resolver struct {
	clock  clock.Clock
	logger logrus.FieldLogger
}

func NewResolver(c clock.Clock, logger logrus.FieldLogger) *Resolver {
	return &Resolver{clock: c, logger: logger}
}

// Resolve returns the range for the given bounds. An empty string means the
// bound was not supplied.
func (r *Resolver) Resolve(from, to string) (models.DateRange, error) {
	var (
		fromDate, toDate time.Time
		err              error
	)
	if from != "" {
		if fromDate, err = ParseDate(from); err != nil {
			return models.DateRange{}, err
		}
	}
	if to != "" {
		if toDate, err = ParseDate(to); err != nil {
			return models.DateRange{}, err
		}
	}

	today := models.Midnight(r.clock.Now())
	switch {
	case from == "" && to == "":
		toDate = today
		fromDate = YearsBefore(today, DefaultLookbackYears)
	case to == "":
		toDate = today
	case from == "":
		fromDate = YearsBefore(toDate, DefaultLookbackYears)
	}

	if fromDate.After(toDate) {
		return models.DateRange{}, apierr.Validationf(
			"start date %s is after end date %s",
			fromDate.Format(models.DateLayout), toDate.Format(models.DateLayout))
	}

	if fromDate.Equal(toDate) {
		extended := toDate.AddDate(0, 0, 1)
		r.logger.WithFields(logrus.Fields{
			"from":        fromDate.Format(models.DateLayout),
			"original_to": toDate.Format(models.DateLayout),
			"to":          extended.Format(models.DateLayout),
		}).Warn("Start and end date are equal, extending end date by one day")
		toDate = extended
	}

	return models.DateRange{From: fromDate, To: toDate}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	var d strfmt.Date
	if err := d.UnmarshalText([]byte(s)); err != nil {
		return time.Time{}, apierr.Validationf("invalid date format %q, expected YYYY-MM-DD", s)
	}
	return models.Midnight(time.Time(d)), nil
}

// YearsBefore subtracts n calendar years from t, clamping Feb 29 to Feb 28.
func YearsBefore(t time.Time, n int) time.Time {
	year := t.Year() - n
	day := t.Day()
	if last := daysIn(t.Month(), year); day > last {
		day = last
	}
	return time.Date(year, t.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
