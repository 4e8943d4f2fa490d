package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by the metering API.
const DateLayout = strfmt.RFC3339FullDate

// SeriesType selects the granularity of a measurement series
type SeriesType string

const (
	QuarterHour SeriesType = "QUARTER_HOUR"
	Daily       SeriesType = "DAY"
	MeterRead   SeriesType = "METER_READ"
)

// Valid reports whether t is one of the series types the API accepts.
func (t SeriesType) Valid() bool {
	switch t {
	case QuarterHour, Daily, MeterRead:
		return true
	}
	return false
}

// DateRange is an inclusive pair of calendar dates at UTC midnight.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange truncates from and to to their UTC calendar dates.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: Midnight(from), To: Midnight(to)}
}

// Midnight returns t's UTC calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r DateRange) FromString() string { return r.From.Format(DateLayout) }
func (r DateRange) ToString() string   { return r.To.Format(DateLayout) }

// Days is the number of days between From and To.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours() / 24)
}

func (r DateRange) String() string {
	return r.FromString() + ".." + r.ToString()
}

// Sample is one measured value for a time window.
type Sample struct {
	WindowStart strfmt.DateTime `json:"zeitVon" yaml:"window_start"`
	WindowEnd   strfmt.DateTime `json:"zeitBis" yaml:"window_end"`
	Value       decimal.Decimal `json:"messwert" yaml:"value"`
	Quality     string          `json:"qualitaet,omitempty" yaml:"quality,omitempty"`
}

// WindowKey identifies a sample within its register.
type WindowKey struct {
	Start string
	End   string
}

// Key returns the sample's identity.
func (s Sample) Key() WindowKey {
	return WindowKey{
		Start: time.Time(s.WindowStart).UTC().Format(time.RFC3339Nano),
		End:   time.Time(s.WindowEnd).UTC().Format(time.RFC3339Nano),
	}
}

// Register is a measurement channel of a meter, identified by its OBIS code.
type Register struct {
	Code    string   `json:"obisCode" yaml:"code"`
	Unit    string   `json:"einheit,omitempty" yaml:"unit,omitempty"`
	Samples []Sample `json:"messwerte" yaml:"samples"`
}

// MeterSeries holds all registers returned for one metering point.
type MeterSeries struct {
	MeterID   string     `json:"zaehlpunkt" yaml:"meter_id"`
	Registers []Register `json:"zaehlwerke" yaml:"registers"`
}

// Clone returns a deep copy of m.
func (m MeterSeries) Clone() MeterSeries {
	out := MeterSeries{MeterID: m.MeterID, Registers: make([]Register, len(m.Registers))}
	for i, reg := range m.Registers {
		samples := make([]Sample, len(reg.Samples))
		copy(samples, reg.Samples)
		out.Registers[i] = Register{Code: reg.Code, Unit: reg.Unit, Samples: samples}
	}
	return out
}

// SampleCount returns the number of samples across all registers.
func (m MeterSeries) SampleCount() int {
	n := 0
	for _, reg := range m.Registers {
		n += len(reg.Samples)
	}
	return n
}

// SampleRecord is a sample flattened with its meter and register identity.
type SampleRecord struct {
	MeterID      string
	RegisterCode string
	Unit         string
	Sample
}

// SeriesResult is the outcome of a measurement query: the meters seen, in
// the order they first appeared. An empty result means no data.
type SeriesResult struct {
	Meters []MeterSeries
}

// Empty reports whether no identifiable meter data was returned.
func (r SeriesResult) Empty() bool {
	return len(r.Meters) == 0
}

// Single returns the only meter when exactly one was returned.
func (r SeriesResult) Single() (MeterSeries, bool) {
	if len(r.Meters) != 1 {
		return MeterSeries{}, false
	}
	return r.Meters[0], true
}

// SampleCount returns the number of samples across all meters.
func (r SeriesResult) SampleCount() int {
	n := 0
	for _, m := range r.Meters {
		n += m.SampleCount()
	}
	return n
}

// Records flattens the result for storage.
func (r SeriesResult) Records() []SampleRecord {
	records := make([]SampleRecord, 0, r.SampleCount())
	for _, m := range r.Meters {
		for _, reg := range m.Registers {
			for _, s := range reg.Samples {
				records = append(records, SampleRecord{
					MeterID:      m.MeterID,
					RegisterCode: reg.Code,
					Unit:         reg.Unit,
					Sample:       s,
				})
			}
		}
	}
	return records
}

// shape mirrors the upstream payload: one object, a list, or null.
func (r SeriesResult) shape() interface{} {
	switch len(r.Meters) {
	case 0:
		return nil
	case 1:
		return r.Meters[0]
	default:
		return r.Meters
	}
}

func (r SeriesResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.shape())
}

func (r *SeriesResult) UnmarshalJSON(data []byte) error {
	meters, _, err := ParseSeries(data)
	if err != nil {
		return err
	}
	r.Meters = meters
	return nil
}

func (r SeriesResult) MarshalYAML() (interface{}, error) {
	return r.shape(), nil
}

// ParseSeries decodes a measurement payload that is either a single meter
// object or a list of them. Records without a meter id are dropped.
// present is false when the payload is empty or null.
func ParseSeries(raw []byte) (meters []MeterSeries, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}

	var records []MeterSeries
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, true, fmt.Errorf("failed to decode series list: %w", err)
		}
	case '{':
		var single MeterSeries
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, true, fmt.Errorf("failed to decode series: %w", err)
		}
		records = []MeterSeries{single}
	default:
		return nil, true, fmt.Errorf("unexpected series payload starting with %q", raw[0])
	}

	meters = make([]MeterSeries, 0, len(records))
	for _, rec := range records {
		if rec.MeterID == "" {
			continue
		}
		meters = append(meters, rec)
	}
	return meters, true, nil
}
