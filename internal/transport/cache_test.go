package transport_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/transport"
	"github.com/tejusbharadwaj/meterclient/internal/transport/mocks"
)

func newCachingTransport(t *testing.T, next transport.Transport) *transport.CachingTransport {
	t.Helper()
	cache, err := transport.OpenResponseCache("", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	logger, _ := test.NewNullLogger()
	now := clock.NewManual(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	return transport.NewCachingTransport(next, cache, now, logger)
}

const sampleBody = `{"zaehlpunkt":"AT1","zaehlwerke":[{"obisCode":"1-1:1.9.0","einheit":"WH","messwerte":[` +
	`{"zeitVon":"2025-01-01T00:00:00Z","zeitBis":"2025-01-02T00:00:00Z","messwert":12,"qualitaet":"VAL"}]}]}`

func measurementRequest(to string) transport.Request {
	return transport.Request{
		Method: http.MethodGet,
		URL:    "https://api.example.test/zaehlpunkte/AT1/messwerte",
		Header: http.Header{"Authorization": []string{"Bearer first"}},
		Query:  url.Values{"wertetyp": {"DAY"}, "datumVon": {"2025-01-01"}, "datumBis": {to}},
	}
}

func TestCachingTransportServesClosedWindows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	next := mocks.NewMockTransport(ctrl)
	ct := newCachingTransport(t, next)

	body := []byte(sampleBody)
	next.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(&transport.Response{StatusCode: http.StatusOK, Body: body}, nil).
		Times(1)

	first, err := ct.Do(context.Background(), measurementRequest("2025-02-01"))
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(first.Body))

	// A different bearer token must still hit the same entry.
	req := measurementRequest("2025-02-01")
	req.Header.Set("Authorization", "Bearer second")
	second, err := ct.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.JSONEq(t, string(body), string(second.Body))
}

func TestCachingTransportPassThrough(t *testing.T) {
	tests := []struct {
		name string
		req  transport.Request
	}{
		{name: "window ending today", req: measurementRequest("2025-06-01")},
		{name: "window ending in the future", req: measurementRequest("2025-07-01")},
		{name: "no end date", req: transport.Request{Method: http.MethodGet, URL: "https://api.example.test/zaehlpunkte"}},
		{name: "post", req: transport.Request{Method: http.MethodPost, URL: "https://api.example.test/x", Query: url.Values{"datumBis": {"2025-01-01"}}}},
		{name: "malformed end date", req: measurementRequest("01.01.2025")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			next := mocks.NewMockTransport(ctrl)
			ct := newCachingTransport(t, next)

			next.EXPECT().
				Do(gomock.Any(), tt.req).
				Return(&transport.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil).
				Times(2)

			for i := 0; i < 2; i++ {
				_, err := ct.Do(context.Background(), tt.req)
				require.NoError(t, err)
			}
		})
	}
}

func TestCachingTransportDoesNotStoreFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	next := mocks.NewMockTransport(ctrl)
	ct := newCachingTransport(t, next)
	req := measurementRequest("2025-02-01")

	gomock.InOrder(
		next.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset")),
		next.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&transport.Response{StatusCode: http.StatusBadGateway, Body: []byte(`{}`)}, nil),
		next.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&transport.Response{StatusCode: http.StatusOK, Body: []byte(`not json`)}, nil),
		next.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&transport.Response{StatusCode: http.StatusOK, Body: []byte(sampleBody)}, nil),
	)

	_, err := ct.Do(context.Background(), req)
	require.Error(t, err)

	resp, err := ct.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, err = ct.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(resp.Body))

	resp, err = ct.Do(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, sampleBody, string(resp.Body))

	// Now cached.
	resp, err = ct.Do(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, sampleBody, string(resp.Body))
}

func TestCachingTransportDoesNotStoreEmptyPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "null", body: `null`},
		{name: "empty list", body: `[]`},
		{name: "empty object", body: `{}`},
		{name: "no registers", body: `{"zaehlpunkt":"AT1","zaehlwerke":[]}`},
		{name: "register without samples", body: `[{"zaehlpunkt":"AT1","zaehlwerke":[{"obisCode":"1-1:1.9.0","messwerte":[]}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			next := mocks.NewMockTransport(ctrl)
			ct := newCachingTransport(t, next)
			req := measurementRequest("2025-02-01")

			next.EXPECT().
				Do(gomock.Any(), gomock.Any()).
				Return(&transport.Response{StatusCode: http.StatusOK, Body: []byte(tt.body)}, nil).
				Times(2)

			for i := 0; i < 2; i++ {
				resp, err := ct.Do(context.Background(), req)
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(resp.Body))
			}
		})
	}
}
