package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/crypto-pulse/internal/aggregator"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

type fakeProvider struct {
	series    []models.SeriesPoint
	coins     []string
	err       error
	lastCoin  string
	lastWidth aggregator.BucketWidth
	lastFrame aggregator.Timeframe
}

func (f *fakeProvider) Series(_ context.Context, coin string, width aggregator.BucketWidth, frame aggregator.Timeframe) ([]models.SeriesPoint, error) {
	f.lastCoin = coin
	f.lastWidth = width
	f.lastFrame = frame
	return f.series, f.err
}

func (f *fakeProvider) Coins(_ context.Context) ([]string, error) {
	return f.coins, f.err
}

type fakeChecker struct{ err error }

func (f *fakeChecker) Health() error { return f.err }

func newTestServer(provider SeriesProvider, checks map[string]HealthChecker) *Server {
	return NewServer("0", provider, NewBroadcaster(), checks)
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestTimeseriesReturnsSeries(t *testing.T) {
	provider := &fakeProvider{series: []models.SeriesPoint{
		{Timestamp: "2024-03-10T00:00:00Z", Positive: 66.67, Neutral: 33.33},
	}}
	s := newTestServer(provider, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/sentiment-timeseries?coin=BTC&timeframe=30d&interval=hour")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SeriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "BTC", resp.Coin)
	assert.Equal(t, "30d", resp.Frame)
	require.Len(t, resp.Series, 1)
	assert.Empty(t, resp.Message)

	assert.Equal(t, "BTC", provider.lastCoin)
	assert.Equal(t, aggregator.WidthHour, provider.lastWidth)
	assert.Equal(t, aggregator.Timeframe30d, provider.lastFrame)
}

func TestTimeseriesDefaults(t *testing.T) {
	provider := &fakeProvider{series: []models.SeriesPoint{{Timestamp: "2024-03-10T00:00:00Z"}}}
	s := newTestServer(provider, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/sentiment-timeseries?coin=eth")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, aggregator.WidthDay, provider.lastWidth)
	assert.Equal(t, aggregator.Timeframe7d, provider.lastFrame)
}

func TestTimeseriesEmptySeriesMessage(t *testing.T) {
	s := newTestServer(&fakeProvider{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/sentiment-timeseries?coin=DOGE&timeframe=24h")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SeriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotNil(t, resp.Series)
	assert.Empty(t, resp.Series)
	assert.Equal(t, "No data available for DOGE in the last 24h.", resp.Message)
}

func TestTimeseriesMissingCoin(t *testing.T) {
	s := newTestServer(&fakeProvider{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/sentiment-timeseries")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeseriesProviderError(t *testing.T) {
	s := newTestServer(&fakeProvider{err: errors.New("db down")}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/sentiment-timeseries?coin=BTC")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestCoinsEndpoint(t *testing.T) {
	s := newTestServer(&fakeProvider{coins: []string{"BTC", "ETH", "UNKNOWN"}}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/coins")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Coins []string `json:"coins"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"BTC", "ETH", "UNKNOWN"}, resp.Coins)
}

func TestCORSHeadersAndPreflight(t *testing.T) {
	s := newTestServer(&fakeProvider{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/coins")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = doRequest(t, s, http.MethodOptions, "/api/sentiment-timeseries")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthAlwaysOK(t *testing.T) {
	checks := map[string]HealthChecker{
		"database": &fakeChecker{err: errors.New("connection refused")},
	}
	s := newTestServer(&fakeProvider{}, checks)

	// Liveness stays 200 even with a dead dependency
	rec := doRequest(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/health?verbose=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestReadinessGatedOnChecks(t *testing.T) {
	db := &fakeChecker{}
	s := newTestServer(&fakeProvider{}, map[string]HealthChecker{"database": db})

	// Not ready until marked
	rec := doRequest(t, s, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec = doRequest(t, s, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Dependency failure flips it back
	db.err = errors.New("timeout")
	rec = doRequest(t, s, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBroadcasterDeliversSnapshots(t *testing.T) {
	b := NewBroadcaster()

	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snaps := []models.SentimentSnapshot{
		{Coin: "BTC", BucketWidth: "day", Positive: 50, Neutral: 25, Negative: 25, Total: 4},
	}

	// Connection registration races the dial; wait for it
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.BroadcastSnapshots(snaps)

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload struct {
		Type      string                     `json:"type"`
		Snapshots []models.SentimentSnapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(msg, &payload))
	assert.Equal(t, "snapshots", payload.Type)
	require.Len(t, payload.Snapshots, 1)
	assert.Equal(t, "BTC", payload.Snapshots[0].Coin)
}

func TestBroadcastNoClientsNoPanic(t *testing.T) {
	b := NewBroadcaster()
	b.BroadcastSnapshots([]models.SentimentSnapshot{{Coin: "BTC"}})
	assert.Equal(t, 0, b.ClientCount())
}
