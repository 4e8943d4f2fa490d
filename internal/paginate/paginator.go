package paginate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/metrics"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

// FetchFunc retrieves the raw measurement payload for one chunk.
type FetchFunc func(ctx context.Context, chunk models.DateRange) (json.RawMessage, error)

// Paginator walks the chunks of a range newest first and aggregates them.
type Paginator struct {
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

func New(logger logrus.FieldLogger, m *metrics.Metrics) *Paginator {
	return &Paginator{logger: logger, metrics: m}
}

// Run fetches every chunk of rng and merges the results. Once a chunk has
// contributed samples, the first later chunk that answers with no samples
// ends the walk. Any fetch error aborts the whole run.
func (p *Paginator) Run(ctx context.Context, rng models.DateRange, chunkDays int, seriesType models.SeriesType, fetch FetchFunc) (models.SeriesResult, error) {
	chunks, err := Split(rng, chunkDays)
	if err != nil {
		return models.SeriesResult{}, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"series_type": string(seriesType),
		"range":       rng.String(),
		"chunk_days":  chunkDays,
		"chunks":      len(chunks),
	})
	log.Debug("Starting paginated fetch")

	agg := NewAggregator()
	seenSamples := false
	for i, chunk := range chunks {
		raw, err := fetch(ctx, chunk)
		if err != nil {
			return models.SeriesResult{}, fmt.Errorf("chunk %s: %w", chunk, err)
		}
		p.metrics.ObserveChunk(string(seriesType))

		meters, present, err := models.ParseSeries(raw)
		if err != nil {
			log.WithField("chunk", chunk.String()).WithError(err).Warn("Skipping undecodable chunk")
			continue
		}
		if !present {
			log.WithField("chunk", chunk.String()).Debug("Chunk returned no payload")
			continue
		}

		samples := 0
		for _, m := range meters {
			samples += m.SampleCount()
		}
		if samples == 0 && seenSamples {
			p.metrics.ObserveEarlyStop()
			log.WithFields(logrus.Fields{
				"chunk":   chunk.String(),
				"skipped": len(chunks) - i - 1,
			}).Info("Chunk contained no samples, stopping pagination early")
			break
		}

		added := agg.Add(meters)
		if samples > 0 {
			seenSamples = true
		}
		log.WithFields(logrus.Fields{
			"chunk": chunk.String(),
			"added": added,
		}).Debug("Merged chunk")
	}

	result := agg.Result()
	if result.Empty() {
		log.Info("No measurement data returned for range")
	}
	return result, nil
}
