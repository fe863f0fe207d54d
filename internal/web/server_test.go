package web_test

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/config"
	"sleepywoodpecker/emg-goes-live/internal/processing"
	"sleepywoodpecker/emg-goes-live/internal/web"
)

func newServer(t *testing.T) (*web.Server, *processing.Pipeline) {
	t.Helper()
	cfg := config.Default()
	cfg.PacketSize = 4
	p, err := processing.NewPipeline(cfg, zap.NewNop())
	require.NoError(t, err)

	raw := make([]byte, 0, 4*1200)
	for i := 0; i < 1200; i++ {
		v := float32(10 * math.Sin(2*math.Pi*100*float64(i)/800))
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	p.Feed(raw)

	return web.NewServer(":0", p, zap.NewNop()), p
}

func get(t *testing.T, s *web.Server, url string, out any) int {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSeriesEndpoint(t *testing.T) {
	s, p := newServer(t)

	var body struct {
		Name   string    `json:"name"`
		From   int       `json:"from"`
		Total  int       `json:"total"`
		Values []float64 `json:"values"`
	}
	require.Equal(t, http.StatusOK, get(t, s, "/api/series/mpf", &body))
	assert.Equal(t, "mpf", body.Name)
	assert.Equal(t, p.MPF(), body.Values)
	require.Len(t, body.Values, 2)
	assert.InDelta(t, 100, body.Values[0], 1)

	require.Equal(t, http.StatusOK, get(t, s, "/api/series/samples?from=1190", &body))
	assert.Equal(t, 1200, body.Total)
	assert.Len(t, body.Values, 10)
}

func TestSeriesEndpointErrors(t *testing.T) {
	s, _ := newServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/series/heartbeat", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/series/rms?from=-1", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/series/rms?from=abc", nil))
}

func TestStatsAndSnapshot(t *testing.T) {
	s, _ := newServer(t)

	var stats processing.Stats
	require.Equal(t, http.StatusOK, get(t, s, "/api/stats", &stats))
	assert.Equal(t, 1200, stats.Samples)
	assert.EqualValues(t, 2, stats.Epochs)

	var rows []processing.FeatureRow
	require.Equal(t, http.StatusOK, get(t, s, "/api/snapshot", &rows))
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].FatigueA)
}
