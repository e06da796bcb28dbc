package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
	"ForexPulse/internal/repository"
	"ForexPulse/internal/usecase"
	xhttp "ForexPulse/pkg/http"
	"ForexPulse/pkg/logger"
)

var t0 = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	q := usecase.NewQueryUseCase(store, nil, []models.Instrument{{Symbol: "XAUUSD", AssetClass: "metal", TickSize: 0.01}})
	h := NewHandler(logger.Nop(), q, "test", 20*time.Millisecond)
	srv := xhttp.NewServer(h, xhttp.WithLogger(logger.Nop()), xhttp.WithRegistry(prometheus.NewRegistry()))
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts, store
}

func get(t *testing.T, url string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestPricesEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.InsertBar(context.Background(), models.Bar{
			Instrument: "XAUUSD", Timeframe: "1m", Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open: 1, High: 2, Low: 0.5, Close: float64(i), Volume: 1,
		}))
	}

	code, _ := get(t, ts.URL+"/prices")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, ts.URL+"/prices?instrument=XAUUSD&timeframe=2h")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := get(t, ts.URL+"/prices?instrument=XAUUSD&timeframe=1m&limit=3")
	require.Equal(t, http.StatusOK, code)
	var res usecase.GetPricesResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Bars, 3)
	assert.Equal(t, 2.0, res.Bars[0].Close)
	assert.Equal(t, 4.0, res.Bars[2].Close)

	// default timeframe is 1h
	code, env = get(t, ts.URL+"/prices?instrument=XAUUSD")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "1h", res.Timeframe)
}

func TestNewsAndMacroValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	code, _ := get(t, ts.URL+"/news?impact=extreme")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := get(t, ts.URL+"/news")
	require.Equal(t, http.StatusOK, code)
	var page xhttp.Page
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 0, page.Count)

	code, _ = get(t, ts.URL+"/macro?start=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, ts.URL+"/macro?start=2024-03-05&end=2024-03-04")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, ts.URL+"/macro?start=2024-03-04&end=2024-03-05&currency=USD")
	assert.Equal(t, http.StatusOK, code)
}

func TestLatestSignalEndpoint(t *testing.T) {
	ts, store := newTestServer(t)

	code, _ := get(t, ts.URL+"/signals/latest")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, ts.URL+"/signals/latest?instrument=XAUUSD")
	assert.Equal(t, http.StatusNotFound, code)

	require.NoError(t, store.InsertSignal(context.Background(), models.Signal{
		Instrument: "XAUUSD", Timestamp: t0, Label: models.LabelBullish, Confidence: 0.7, ModelVersion: "lr-20240304120000-0001",
	}))
	code, env := get(t, ts.URL+"/signals/latest?instrument=XAUUSD")
	require.Equal(t, http.StatusOK, code)
	var sig models.Signal
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.Equal(t, models.LabelBullish, sig.Label)

	code, _ = get(t, ts.URL+"/signals?instrument=XAUUSD&limit=1000")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndInstruments(t *testing.T) {
	ts, store := newTestServer(t)
	require.NoError(t, store.RecordJobRun(context.Background(), models.JobHealth{
		JobName: "news", LastRun: t0, Status: models.JobStatusFailed, Error: "timeout",
	}))

	code, env := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, code)
	var hr healthResponse
	require.NoError(t, json.Unmarshal(env.Data, &hr))
	assert.Equal(t, "test", hr.Environment)
	assert.False(t, hr.RedisOK)
	require.Len(t, hr.Jobs, 1)
	assert.Equal(t, "timeout", hr.Jobs[0].Error)

	code, env = get(t, ts.URL+"/instruments")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "XAUUSD")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewsStreamPushesInsertedItems(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()
	_, err := store.UpsertNews(ctx, models.NewsItem{URL: "https://example.com/1", Title: "first", PublishedAt: t0})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/news?since=2000-01-01"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var item models.NewsItem
	require.NoError(t, conn.ReadJSON(&item))
	assert.Equal(t, "first", item.Title)

	_, err = store.UpsertNews(ctx, models.NewsItem{URL: "https://example.com/2", Title: "second", PublishedAt: t0})
	require.NoError(t, err)
	require.NoError(t, conn.ReadJSON(&item))
	assert.Equal(t, "second", item.Title)
}
