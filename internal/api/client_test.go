package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/daterange"
	"github.com/tejusbharadwaj/meterclient/internal/models"
	"github.com/tejusbharadwaj/meterclient/internal/paginate"
	"github.com/tejusbharadwaj/meterclient/internal/transport"
	"github.com/tejusbharadwaj/meterclient/internal/transport/mocks"
)

func newTestClient(t *testing.T, tr transport.Transport, opts ClientOptions) *Client {
	t.Helper()
	c := clock.NewManual(testEpoch)
	f := newExecutorFixture(t, tr, c, 3)
	logger, _ := test.NewNullLogger()

	client, err := NewClient(f.exec, daterange.NewResolver(c, logger), paginate.New(logger, f.metrics), opts, logger)
	require.NoError(t, err)
	return client
}

func dailySample(day string, value int) string {
	return fmt.Sprintf(`{"zeitVon":"%sT00:00:00.000Z","zeitBis":"%sT23:59:59.999Z","messwert":%d,"qualitaet":"VAL"}`, day, day, value)
}

func TestMeterInfoSingleMeterIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{MeterInfoCacheSize: 8})

	u := &upstream{
		tokens: []string{"tok-1"},
		api: []func(transport.Request) (*transport.Response, error){
			func(req transport.Request) (*transport.Response, error) {
				assert.Equal(t, testBaseURL+"zaehlpunkte/AT%2F1", req.URL)
				assert.Empty(t, req.Query)
				return &transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"zaehlpunkt":"AT/1"}`)}, nil
			},
		},
	}
	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(u.do).Times(2)

	for i := 0; i < 2; i++ {
		body, err := client.MeterInfo(context.Background(), "AT/1", "")
		require.NoError(t, err)
		assert.JSONEq(t, `{"zaehlpunkt":"AT/1"}`, string(body))
	}
	assert.Equal(t, 1, u.apiCalls)
}

func TestMeterInfoListing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{})

	var seen []string
	handler := func(req transport.Request) (*transport.Response, error) {
		assert.Equal(t, testBaseURL+"zaehlpunkte", req.URL)
		seen = append(seen, req.Query.Get("resultType"))
		return &transport.Response{StatusCode: http.StatusOK, Body: []byte(`[]`)}, nil
	}
	u := &upstream{
		tokens: []string{"tok-1"},
		api:    []func(transport.Request) (*transport.Response, error){handler, handler},
	}
	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(u.do).Times(3)

	_, err := client.MeterInfo(context.Background(), "", "")
	require.NoError(t, err)
	_, err = client.MeterInfo(context.Background(), "", "ACTIVE")
	require.NoError(t, err)

	assert.Equal(t, []string{"ALL", "ACTIVE"}, seen)
}

func TestMeasurementsDefaultsDateRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{})

	u := &upstream{
		tokens: []string{"tok-1"},
		api: []func(transport.Request) (*transport.Response, error){
			func(req transport.Request) (*transport.Response, error) {
				assert.Equal(t, testBaseURL+"zaehlpunkte/AT1/messwerte", req.URL)
				assert.Equal(t, "QUARTER_HOUR", req.Query.Get("wertetyp"))
				assert.Equal(t, "2022-06-01", req.Query.Get("datumVon"))
				assert.Equal(t, "2025-06-01", req.Query.Get("datumBis"))
				body := `{"zaehlpunkt":"AT1","zaehlwerke":[{"obisCode":"1-1:1.9.0","einheit":"WH","messwerte":[` +
					dailySample("2025-05-31", 12) + `]}]}`
				return &transport.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
			},
		},
	}
	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(u.do).Times(2)

	res, err := client.QuarterHourValues(context.Background(), "AT1", "", "")

	require.NoError(t, err)
	single, ok := res.Single()
	require.True(t, ok)
	assert.Equal(t, "AT1", single.MeterID)
	assert.Equal(t, 1, single.SampleCount())
}

func TestMeasurementsAllMeters(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{})

	u := &upstream{
		tokens: []string{"tok-1"},
		api: []func(transport.Request) (*transport.Response, error){
			func(req transport.Request) (*transport.Response, error) {
				assert.Equal(t, testBaseURL+"zaehlpunkte/messwerte", req.URL)
				assert.Equal(t, "2025-01-01", req.Query.Get("datumVon"))
				assert.Equal(t, "2025-01-02", req.Query.Get("datumBis"))
				return &transport.Response{StatusCode: http.StatusOK, Body: []byte(`[{"zaehlpunkt":"A"},{"zaehlpunkt":"B"},{"zaehlwerke":[]}]`)}, nil
			},
		},
	}
	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(u.do).Times(2)

	res, err := client.MeterReadings(context.Background(), "", "2025-01-01", "2025-01-01")

	require.NoError(t, err)
	require.Len(t, res.Meters, 2)
	assert.Equal(t, "A", res.Meters[0].MeterID)
	assert.Equal(t, "B", res.Meters[1].MeterID)
}

func TestMeasurementsNullPayloadIsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{})

	u := &upstream{
		tokens: []string{"tok-1"},
		api:    []func(transport.Request) (*transport.Response, error){respond(http.StatusOK, `null`)},
	}
	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(u.do).Times(2)

	res, err := client.DailyValues(context.Background(), "AT1", "2025-01-01", "2025-02-01")

	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestFetchPaginatedMergesChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{})

	byStart := map[string]string{
		"2025-01-03": dailySample("2025-01-03", 3),
		"2025-01-02": dailySample("2025-01-02", 2),
		"2025-01-01": dailySample("2025-01-01", 1),
	}
	var requested []string
	handler := func(req transport.Request) (*transport.Response, error) {
		from := req.Query.Get("datumVon")
		requested = append(requested, from+".."+req.Query.Get("datumBis"))
		body := `{"zaehlpunkt":"AT1","zaehlwerke":[{"obisCode":"1-1:1.9.0","einheit":"WH","messwerte":[` + byStart[from] + `]}]}`
		return &transport.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	}
	u := &upstream{
		tokens: []string{"tok-1"},
		api:    []func(transport.Request) (*transport.Response, error){handler, handler, handler},
	}
	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(u.do).Times(4)

	res, err := client.FetchPaginated(context.Background(), models.Daily, "AT1", "2025-01-01", "2025-01-04", 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-03..2025-01-04", "2025-01-02..2025-01-03", "2025-01-01..2025-01-02"}, requested)
	single, ok := res.Single()
	require.True(t, ok)
	require.Len(t, single.Registers, 1)
	assert.Equal(t, 3, single.SampleCount())
	assert.True(t, single.Registers[0].Samples[0].Value.IsPositive())
}

func TestMeasurementsValidatesBeforeIO(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// any transport call fails the test
	tr := mocks.NewMockTransport(ctrl)
	client := newTestClient(t, tr, ClientOptions{})

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "unknown series type",
			call: func() error {
				_, err := client.Measurements(context.Background(), "HOURLY", "AT1", "", "")
				return err
			},
		},
		{
			name: "zero chunk days",
			call: func() error {
				_, err := client.FetchPaginated(context.Background(), models.Daily, "AT1", "2025-01-01", "2025-02-01", 0)
				return err
			},
		},
		{
			name: "malformed date",
			call: func() error {
				_, err := client.DailyValues(context.Background(), "AT1", "2025/01/01", "", WithPagination())
				return err
			},
		},
		{
			name: "reversed range",
			call: func() error {
				_, err := client.DailyValues(context.Background(), "AT1", "2025-02-01", "2025-01-01")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, apierr.IsKind(err, apierr.KindValidation), "got %v", err)
		})
	}
}

func TestNewClientRejectsNegativeChunkDays(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewClient(nil, nil, nil, ClientOptions{ChunkDays: -5}, logger)
	assert.True(t, apierr.IsKind(err, apierr.KindValidation))
}
