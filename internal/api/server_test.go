package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/sampler"
	"github.com/v2xlab/vextel/internal/timeseries"
	"github.com/v2xlab/vextel/internal/traffic"
)

func newTestServer(t *testing.T) (*Server, *traffic.State, *timeseries.Store) {
	t.Helper()
	state := traffic.NewState()
	store := timeseries.NewStore(16)
	s := NewServer(zap.NewNop(), state, store, "run-test")
	s.Start()
	t.Cleanup(s.Stop)
	return s, state, store
}

func TestHealthEndpoints(t *testing.T) {
	s, state, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	// Not ready until the scheduler reports in.
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	state.MarkRunning(true)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatusReportsTrafficSnapshot(t *testing.T) {
	s, state, _ := newTestServer(t)
	state.SetScenario(traffic.ScenarioHighway, []string{"h1", "h2"})
	state.MarkRunning(true)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "run-test", resp.RunID)
	assert.Equal(t, traffic.ScenarioHighway, resp.Traffic.Scenario)
	assert.True(t, resp.Traffic.Active["h1"])
	assert.True(t, resp.Traffic.Running)
}

func TestSeriesEndpoints(t *testing.T) {
	s, _, store := newTestServer(t)
	store.Upsert("endpoint.h1.tx_mbps").Add(timeseries.Point{T: time.Now(), V: 42})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/series", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var keys struct {
		Keys []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &keys))
	assert.Equal(t, []string{"endpoint.h1.tx_mbps"}, keys.Keys)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/series/endpoint.h1.tx_mbps", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var series struct {
		Key    string             `json:"key"`
		Points []timeseries.Point `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &series))
	require.Len(t, series.Points, 1)
	assert.Equal(t, 42.0, series.Points[0].V)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/series/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStreamDeliversBatches(t *testing.T) {
	s, _, _ := newTestServer(t)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// Wait for the hub to register the client before broadcasting.
	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	streamSink := NewStreamSink(s.Hub())
	require.NoError(t, streamSink.WriteBatch([]sampler.Record{
		{Endpoint: "h4", Zone: "highway", TxMbps: 61.5, Scenario: traffic.ScenarioHighway, Active: true},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "records", msg.Type)
	require.Len(t, msg.Records, 1)
	assert.Equal(t, "h4", msg.Records[0].Endpoint)
	assert.True(t, msg.Records[0].Active)
}
