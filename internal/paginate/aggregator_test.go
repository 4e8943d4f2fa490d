package paginate

import (
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/meterclient/internal/models"
)

func sample(start string, value int64) models.Sample {
	s := day(start)
	return models.Sample{
		WindowStart: strfmt.DateTime(s),
		WindowEnd:   strfmt.DateTime(s.AddDate(0, 0, 1)),
		Value:       decimal.NewFromInt(value),
		Quality:     "VAL",
	}
}

func meter(id string, regs ...models.Register) models.MeterSeries {
	return models.MeterSeries{MeterID: id, Registers: regs}
}

func register(code string, samples ...models.Sample) models.Register {
	return models.Register{Code: code, Unit: "WH", Samples: samples}
}

func starts(reg models.Register) []string {
	out := make([]string, len(reg.Samples))
	for i, s := range reg.Samples {
		out[i] = time.Time(s.WindowStart).Format(models.DateLayout)
	}
	return out
}

func TestAggregatorDeduplicatesOverlap(t *testing.T) {
	agg := NewAggregator()

	added := agg.Add([]models.MeterSeries{meter("A", register("1.8.0", sample("2025-01-02", 2), sample("2025-01-03", 3)))})
	assert.Equal(t, 2, added)

	added = agg.Add([]models.MeterSeries{meter("A", register("1.8.0", sample("2025-01-01", 1), sample("2025-01-02", 2)))})
	assert.Equal(t, 1, added)

	res := agg.Result()
	single, ok := res.Single()
	require.True(t, ok)
	require.Len(t, single.Registers, 1)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, starts(single.Registers[0]))
}

func TestAggregatorMergesRegistersByCode(t *testing.T) {
	agg := NewAggregator()

	agg.Add([]models.MeterSeries{meter("A",
		register("1.8.0", sample("2025-01-02", 2)),
		register("2.8.0", sample("2025-01-02", 20)),
	)})
	agg.Add([]models.MeterSeries{meter("A",
		register("2.8.0", sample("2025-01-01", 10)),
		register("1.7.0", sample("2025-01-01", 5)),
	)})

	res := agg.Result()
	single, ok := res.Single()
	require.True(t, ok)
	require.Len(t, single.Registers, 3)

	assert.Equal(t, "1.8.0", single.Registers[0].Code)
	assert.Equal(t, []string{"2025-01-02"}, starts(single.Registers[0]))
	assert.Equal(t, "2.8.0", single.Registers[1].Code)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02"}, starts(single.Registers[1]))
	assert.Equal(t, "1.7.0", single.Registers[2].Code)
}

func TestAggregatorKeepsMeterOrderAndSkipsAnonymous(t *testing.T) {
	agg := NewAggregator()

	agg.Add([]models.MeterSeries{
		meter("B", register("1.8.0", sample("2025-01-02", 1))),
		meter("", register("1.8.0", sample("2025-01-02", 99))),
		meter("A", register("1.8.0", sample("2025-01-02", 1))),
	})
	agg.Add([]models.MeterSeries{meter("C"), meter("A", register("1.8.0", sample("2025-01-01", 1)))})

	res := agg.Result()
	_, ok := res.Single()
	assert.False(t, ok)
	require.Len(t, res.Meters, 3)
	assert.Equal(t, "B", res.Meters[0].MeterID)
	assert.Equal(t, "A", res.Meters[1].MeterID)
	assert.Equal(t, "C", res.Meters[2].MeterID)
	assert.Equal(t, 3, agg.Meters())
	assert.Equal(t, 3, res.SampleCount())
}

func TestAggregatorDeepCopiesInput(t *testing.T) {
	agg := NewAggregator()
	in := []models.MeterSeries{meter("A", register("1.8.0", sample("2025-01-02", 2)))}

	agg.Add(in)
	in[0].Registers[0].Samples[0].Quality = "EST"
	in[0].Registers[0].Code = "mutated"

	res := agg.Result()
	assert.Equal(t, "VAL", res.Meters[0].Registers[0].Samples[0].Quality)
	assert.Equal(t, "1.8.0", res.Meters[0].Registers[0].Code)
}

func TestAggregatorEmpty(t *testing.T) {
	res := NewAggregator().Result()
	assert.True(t, res.Empty())
	assert.Nil(t, res.Meters)
}
