package influx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/export/influx"
	"github.com/weatherboard/weatherboard/internal/forecast"
	"github.com/weatherboard/weatherboard/internal/weather"
)

type recordingServer struct {
	mu     sync.Mutex
	bodies []string
	dbs    []string
	status int
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/write":
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.dbs = append(s.dbs, r.URL.Query().Get("db"))
		s.mu.Unlock()
		if s.status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":"database not found"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func sampleForecast() *weather.DailyForecast {
	return &weather.DailyForecast{
		Location: weather.Location{City: "Seoul", Country: "KR"},
		Days: []forecast.DailySummary{
			{Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Samples: 8, TempMin: 1.5, TempMax: 9, TempMean: 5.25, HumidityMin: 40, HumidityMax: 80, HumidityMean: 60, RainTotal: 2.5, RainPeak: 1.5},
			{Date: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), Samples: 4, TempMin: -2, TempMax: 3, SnowTotal: 1.2},
		},
	}
}

func newWriter(t *testing.T, srv *httptest.Server) *influx.Writer {
	t.Helper()
	w, err := influx.NewWriter(influx.Config{Addr: srv.URL, Database: "wx", Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestNewWriter_RequiresAddress(t *testing.T) {
	_, err := influx.NewWriter(influx.Config{})
	assert.ErrorIs(t, err, influx.ErrNoAddress)
}

func TestPoints(t *testing.T) {
	bp, err := influx.Points("wx", "Seoul", sampleForecast())
	require.NoError(t, err)

	pts := bp.Points()
	require.Len(t, pts, 2)
	assert.Equal(t, influx.Measurement, pts[0].Name())
	assert.Equal(t, map[string]string{"city": "Seoul", "country": "KR"}, pts[0].Tags())
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), pts[0].Time())

	fields, err := pts[0].Fields()
	require.NoError(t, err)
	assert.Len(t, fields, 16)
	assert.Equal(t, 1.5, fields["temp_min"])
	assert.Equal(t, 2.5, fields["rain_total"])
}

func TestWriter_WriteDailyForecast(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	w := newWriter(t, srv)
	require.NoError(t, w.Ping(time.Second))
	require.NoError(t, w.WriteDailyForecast(context.Background(), "서울", sampleForecast()))

	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "wx", rec.dbs[0])
	lines := strings.Split(strings.TrimSpace(rec.bodies[0]), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "daily_forecast,city=서울,country=KR "))
	assert.Contains(t, lines[0], "temp_max=9")
	assert.True(t, strings.HasSuffix(lines[0], " 1773100800"))
}

func TestWriter_EmptyForecastSkipsWrite(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	w := newWriter(t, srv)
	require.NoError(t, w.WriteDailyForecast(context.Background(), "Seoul", &weather.DailyForecast{}))
	assert.Empty(t, rec.bodies)
}

func TestWriter_ServerError(t *testing.T) {
	rec := &recordingServer{status: http.StatusNotFound}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	w := newWriter(t, srv)
	err := w.WriteDailyForecast(context.Background(), "Seoul", sampleForecast())
	assert.ErrorContains(t, err, "Seoul")
}

func TestWriter_CancelledContext(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newWriter(t, srv)
	assert.ErrorIs(t, w.WriteDailyForecast(ctx, "Seoul", sampleForecast()), context.Canceled)
	assert.Empty(t, rec.bodies)
}
