package api

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/database"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

// SeriesSource fetches a merged series over a date range. *Client implements it.
type SeriesSource interface {
	FetchPaginated(ctx context.Context, seriesType models.SeriesType, meterID, from, to string, chunkDays int) (models.SeriesResult, error)
}

// SyncConfig selects what the fetcher keeps in the sample store.
type SyncConfig struct {
	Meters      []string
	SeriesTypes []models.SeriesType
	ChunkDays   int
}

// SeriesFetcher copies measurement series from the metering API into the
// sample store.
type SeriesFetcher struct {
	source SeriesSource
	repo   database.SeriesRepository
	cfg    SyncConfig
	clock  clock.Clock
	logger logrus.FieldLogger
}

func NewSeriesFetcher(
	source SeriesSource,
	repo database.SeriesRepository,
	cfg SyncConfig,
	c clock.Clock,
	logger logrus.FieldLogger,
) *SeriesFetcher {
	if len(cfg.SeriesTypes) == 0 {
		cfg.SeriesTypes = []models.SeriesType{models.QuarterHour}
	}
	return &SeriesFetcher{
		source: source,
		repo:   repo,
		cfg:    cfg,
		clock:  c,
		logger: logger,
	}
}

// Sync fetches one meter's series between from and to and stores it.
// Returns the number of newly stored samples.
func (f *SeriesFetcher) Sync(ctx context.Context, meterID string, seriesType models.SeriesType, from, to string) (int, error) {
	log := f.logger.WithFields(logrus.Fields{
		"meter":       meterID,
		"series_type": seriesType,
		"from":        from,
		"to":          to,
	})

	res, err := f.source.FetchPaginated(ctx, seriesType, meterID, from, to, f.cfg.ChunkDays)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s series for %s: %w", seriesType, meterID, err)
	}
	if res.Empty() {
		log.Info("No samples returned")
		return 0, nil
	}

	stored, err := f.repo.StoreSeries(ctx, res.Meters)
	if err != nil {
		return 0, fmt.Errorf("failed to store %s series for %s: %w", seriesType, meterID, err)
	}

	log.WithFields(logrus.Fields{
		"fetched": res.SampleCount(),
		"stored":  stored,
	}).Info("Synced series")
	return stored, nil
}

// SyncRecent syncs the last days days, up to today, for every configured
// meter and series type.
func (f *SeriesFetcher) SyncRecent(ctx context.Context, days int) error {
	today := models.Midnight(f.clock.Now())
	rng := models.DateRange{From: today.AddDate(0, 0, -days), To: today}
	return f.syncAll(ctx, rng.FromString(), rng.ToString())
}

// BootstrapHistoricalData syncs the default lookback window for every
// configured meter and series type.
func (f *SeriesFetcher) BootstrapHistoricalData(ctx context.Context) error {
	return f.syncAll(ctx, "", "")
}

func (f *SeriesFetcher) syncAll(ctx context.Context, from, to string) error {
	for _, meterID := range f.cfg.Meters {
		for _, seriesType := range f.cfg.SeriesTypes {
			if _, err := f.Sync(ctx, meterID, seriesType, from, to); err != nil {
				return err
			}
		}
	}
	return nil
}
