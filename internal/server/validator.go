package server

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
)

// DefaultMaxRange matches the client's default lookback window.
const DefaultMaxRange = 3 * 366 * 24 * time.Hour

type RequestValidator struct {
	maxRange time.Duration
}

func NewRequestValidator(maxRange time.Duration) *RequestValidator {
	if maxRange <= 0 {
		maxRange = DefaultMaxRange
	}
	return &RequestValidator{maxRange: maxRange}
}

// Parse reads the start and end query values and validates them.
func (v *RequestValidator) Parse(startRaw, endRaw string) (time.Time, time.Time, error) {
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("missing timestamp")
	}
	start, err := strfmt.ParseDateTime(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start timestamp %q", startRaw)
	}
	end, err := strfmt.ParseDateTime(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end timestamp %q", endRaw)
	}
	s, e := time.Time(start), time.Time(end)
	return s, e, v.Validate(s, e)
}

// Validate checks if the request parameters are valid
func (v *RequestValidator) Validate(start, end time.Time) error {
	// Validate timestamps are present
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("missing timestamp")
	}

	if !start.Before(end) {
		return fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > v.maxRange {
		return fmt.Errorf("time range exceeds maximum allowed")
	}

	return nil
}
