package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-ticker/internal/aggregator"
	"go-ticker/internal/pricing"
	"go-ticker/internal/series"
	"go-ticker/internal/service"
	"go-ticker/internal/util"
	"go-ticker/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *service.Service, *series.State) {
	t.Helper()
	state := series.NewState()
	svc, err := service.NewService(state, aggregator.New(), "m1", 4, nil)
	require.NoError(t, err)
	return NewRouter(svc, util.NewNopLogger()), svc, state
}

func sampleWindow() []models.Tick {
	return []models.Tick{
		{Price: decimal.RequireFromString("100"), Timestamp: 0},
		{Price: decimal.RequireFromString("98.5"), Timestamp: 61000},
	}
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	router, _, state := setup(t)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/livez", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/readyz", "").Code)

	state.SetPhase(series.PhaseStreaming)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/readyz", "").Code)

	rec := do(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "streaming", health["phase"])
	assert.Equal(t, "none", health["position"])
}

func TestGetSnapshot(t *testing.T) {
	router, _, state := setup(t)
	state.MarkSynced()
	state.Update(sampleWindow())

	rec := do(router, http.MethodGet, "/api/v1/snapshot?timeframe=m1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Ready)
	assert.Equal(t, models.DirectionDown, snap.Direction)
	require.Len(t, snap.Candles, 2)
	assert.Equal(t, "98.5", snap.LatestPrice.String())

	rec = do(router, http.MethodGet, "/api/v1/snapshot?timeframe=x9", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPositionRoundTrip(t *testing.T) {
	router, svc, _ := setup(t)

	rec := do(router, http.MethodPut, "/api/v1/position", `{"position":"sell"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pricing.PositionShort, svc.Position())

	rec = do(router, http.MethodGet, "/api/v1/position", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"position":"sell"}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPut, "/api/v1/position", `{"position":"hodl"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPut, "/api/v1/position", `not json`).Code)
	assert.Equal(t, pricing.PositionShort, svc.Position())
}

func TestMetricsRoute(t *testing.T) {
	router, _, _ := setup(t)
	rec := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStreamPushesSnapshots(t *testing.T) {
	router, svc, state := setup(t)
	state.MarkSynced()
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?timeframe=m1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var primed models.Snapshot
	require.NoError(t, conn.ReadJSON(&primed))
	assert.False(t, primed.Ready)

	w := sampleWindow()
	state.Update(w)
	svc.Publish(w)

	var snap models.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.True(t, snap.Ready)
	assert.Len(t, snap.Candles, 2)

	svc.Shutdown()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestStreamRejectsTimeframe(t *testing.T) {
	router, _, _ := setup(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?timeframe=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
