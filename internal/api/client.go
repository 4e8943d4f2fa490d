package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/daterange"
	"github.com/tejusbharadwaj/meterclient/internal/models"
	"github.com/tejusbharadwaj/meterclient/internal/paginate"
)

// DefaultResultType selects all metering points in a meter listing.
const DefaultResultType = "ALL"

// ClientOptions tunes the endpoint wrappers.
type ClientOptions struct {
	ChunkDays          int // default chunk length for paginated queries
	MeterInfoCacheSize int // 0 disables the meter info cache
}

// Client exposes the metering API endpoints on top of an Executor.
type Client struct {
	exec      *Executor
	resolver  *daterange.Resolver
	paginator *paginate.Paginator
	chunkDays int
	infoCache *lru.Cache
	logger    logrus.FieldLogger
}

func NewClient(
	exec *Executor,
	resolver *daterange.Resolver,
	paginator *paginate.Paginator,
	opts ClientOptions,
	logger logrus.FieldLogger,
) (*Client, error) {
	chunkDays := opts.ChunkDays
	if chunkDays == 0 {
		chunkDays = paginate.DefaultChunkDays
	}
	if err := paginate.ValidateChunkDays(chunkDays); err != nil {
		return nil, err
	}

	c := &Client{
		exec:      exec,
		resolver:  resolver,
		paginator: paginator,
		chunkDays: chunkDays,
		logger:    logger,
	}
	if opts.MeterInfoCacheSize > 0 {
		cache, err := lru.New(opts.MeterInfoCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create meter info cache: %w", err)
		}
		c.infoCache = cache
	}
	return c, nil
}

// MeterInfo returns the details of one metering point, or all of them
// filtered by resultType when meterID is empty.
func (c *Client) MeterInfo(ctx context.Context, meterID, resultType string) (json.RawMessage, error) {
	endpoint := "zaehlpunkte"
	var params url.Values
	if meterID != "" {
		endpoint += "/" + url.PathEscape(meterID)
	} else {
		if resultType == "" {
			resultType = DefaultResultType
		}
		params = url.Values{"resultType": {resultType}}
	}

	key := endpoint + "?" + params.Encode()
	if c.infoCache != nil {
		if cached, ok := c.infoCache.Get(key); ok {
			c.logger.WithField("endpoint", endpoint).Debug("Serving meter info from cache")
			return cached.(json.RawMessage), nil
		}
	}

	body, err := c.exec.Execute(ctx, endpoint, http.MethodGet, params, nil)
	if err != nil {
		return nil, err
	}
	if c.infoCache != nil {
		c.infoCache.Add(key, body)
	}
	return body, nil
}

// QueryOption adjusts a measurement query.
type QueryOption func(*query)

type query struct {
	paginate  bool
	chunkDays int
}

// WithPagination fetches the range in chunks of the client's default size.
func WithPagination() QueryOption {
	return func(q *query) {
		q.paginate = true
	}
}

// WithChunkDays fetches the range in chunks of chunkDays days.
func WithChunkDays(chunkDays int) QueryOption {
	return func(q *query) {
		q.paginate = true
		q.chunkDays = chunkDays
	}
}

// Measurements fetches a series of seriesType for meterID, or for all meters
// when meterID is empty. from and to are optional YYYY-MM-DD dates.
func (c *Client) Measurements(
	ctx context.Context,
	seriesType models.SeriesType,
	meterID, from, to string,
	opts ...QueryOption,
) (models.SeriesResult, error) {
	if !seriesType.Valid() {
		return models.SeriesResult{}, apierr.Validationf("invalid series type %q", seriesType)
	}

	q := query{chunkDays: c.chunkDays}
	for _, opt := range opts {
		opt(&q)
	}
	if q.paginate {
		if err := paginate.ValidateChunkDays(q.chunkDays); err != nil {
			return models.SeriesResult{}, err
		}
	}

	rng, err := c.resolver.Resolve(from, to)
	if err != nil {
		return models.SeriesResult{}, err
	}

	fetch := func(ctx context.Context, chunk models.DateRange) (json.RawMessage, error) {
		return c.fetchRange(ctx, seriesType, meterID, chunk)
	}

	if q.paginate {
		return c.paginator.Run(ctx, rng, q.chunkDays, seriesType, fetch)
	}

	raw, err := fetch(ctx, rng)
	if err != nil {
		return models.SeriesResult{}, err
	}
	meters, _, err := models.ParseSeries(raw)
	if err != nil {
		return models.SeriesResult{}, err
	}
	if len(meters) == 0 {
		return models.SeriesResult{}, nil
	}
	return models.SeriesResult{Meters: meters}, nil
}

// FetchPaginated fetches the range in chunks of chunkDays days and merges them.
func (c *Client) FetchPaginated(
	ctx context.Context,
	seriesType models.SeriesType,
	meterID, from, to string,
	chunkDays int,
) (models.SeriesResult, error) {
	return c.Measurements(ctx, seriesType, meterID, from, to, WithChunkDays(chunkDays))
}

func (c *Client) QuarterHourValues(ctx context.Context, meterID, from, to string, opts ...QueryOption) (models.SeriesResult, error) {
	return c.Measurements(ctx, models.QuarterHour, meterID, from, to, opts...)
}

func (c *Client) DailyValues(ctx context.Context, meterID, from, to string, opts ...QueryOption) (models.SeriesResult, error) {
	return c.Measurements(ctx, models.Daily, meterID, from, to, opts...)
}

func (c *Client) MeterReadings(ctx context.Context, meterID, from, to string, opts ...QueryOption) (models.SeriesResult, error) {
	return c.Measurements(ctx, models.MeterRead, meterID, from, to, opts...)
}

func (c *Client) fetchRange(ctx context.Context, seriesType models.SeriesType, meterID string, rng models.DateRange) (json.RawMessage, error) {
	endpoint := "zaehlpunkte/messwerte"
	if meterID != "" {
		endpoint = "zaehlpunkte/" + url.PathEscape(meterID) + "/messwerte"
	}
	params := url.Values{
		"wertetyp": {string(seriesType)},
		"datumVon": {rng.FromString()},
		"datumBis": {rng.ToString()},
	}
	return c.exec.Execute(ctx, endpoint, http.MethodGet, params, nil)
}
