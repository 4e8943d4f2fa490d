package paginate

import (
	"sort"
	"time"

	"github.com/tejusbharadwaj/meterclient/internal/models"
)

// Aggregator merges chunk results by meter id and register code, keeping
// one sample per (WindowStart, WindowEnd).
type Aggregator struct {
	order  []string
	meters map[string]*meterAcc
}

type meterAcc struct {
	series models.MeterSeries
	codes  map[string]int
	seen   []map[models.WindowKey]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{meters: make(map[string]*meterAcc)}
}

// Add merges records and returns how many new samples were kept.
// Records without a meter id are ignored.
func (a *Aggregator) Add(records []models.MeterSeries) int {
	added := 0
	for _, rec := range records {
		if rec.MeterID == "" {
			continue
		}

		acc, ok := a.meters[rec.MeterID]
		if !ok {
			acc = &meterAcc{
				series: models.MeterSeries{MeterID: rec.MeterID, Registers: []models.Register{}},
				codes:  make(map[string]int),
			}
			a.meters[rec.MeterID] = acc
			a.order = append(a.order, rec.MeterID)
		}

		// Single-register fast path: skip the code lookup.
		if len(acc.series.Registers) == 1 && len(rec.Registers) == 1 &&
			acc.series.Registers[0].Code == rec.Registers[0].Code {
			added += acc.merge(0, rec.Registers[0])
			continue
		}

		for _, reg := range rec.Registers {
			idx, ok := acc.codes[reg.Code]
			if !ok {
				idx = acc.addRegister(reg)
			}
			added += acc.merge(idx, reg)
		}
	}
	return added
}

func (m *meterAcc) addRegister(reg models.Register) int {
	idx := len(m.series.Registers)
	m.series.Registers = append(m.series.Registers, models.Register{
		Code:    reg.Code,
		Unit:    reg.Unit,
		Samples: []models.Sample{},
	})
	m.codes[reg.Code] = idx
	m.seen = append(m.seen, make(map[models.WindowKey]struct{}))
	return idx
}

func (m *meterAcc) merge(idx int, reg models.Register) int {
	dst := &m.series.Registers[idx]
	if dst.Unit == "" {
		dst.Unit = reg.Unit
	}
	seen := m.seen[idx]

	added := 0
	for _, s := range reg.Samples {
		key := s.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dst.Samples = append(dst.Samples, s)
		added++
	}
	return added
}

// Meters returns the number of distinct meters seen so far.
func (a *Aggregator) Meters() int {
	return len(a.order)
}

// Result returns the merged series in first-seen meter order with each
// register's samples sorted by window.
func (a *Aggregator) Result() models.SeriesResult {
	out := models.SeriesResult{Meters: make([]models.MeterSeries, 0, len(a.order))}
	for _, id := range a.order {
		series := a.meters[id].series.Clone()
		for i := range series.Registers {
			sortSamples(series.Registers[i].Samples)
		}
		out.Meters = append(out.Meters, series)
	}
	if len(out.Meters) == 0 {
		out.Meters = nil
	}
	return out
}

func sortSamples(samples []models.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		si, sj := time.Time(samples[i].WindowStart), time.Time(samples[j].WindowStart)
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return time.Time(samples[i].WindowEnd).Before(time.Time(samples[j].WindowEnd))
	})
}
