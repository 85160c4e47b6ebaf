package geolocation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
)

var seoul = geolocation.Location{Lat: 37.5665, Lon: 126.9780, City: "Seoul"}

func newIPAPIClient(baseURL string) *geolocation.IPAPIClient {
	cfg := resilience.DefaultClientConfig("ip-api-test")
	cfg.DisableRetries = true
	return geolocation.NewIPAPIClient(geolocation.IPAPIConfig{
		BaseURL:    baseURL,
		HTTPClient: resilience.NewClient(cfg),
	})
}

func TestIPAPIClient_Locate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "lat")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "success", "lat": 37.386, "lon": -122.0838, "city": "Mountain View"}`))
	}))
	defer server.Close()

	loc, err := newIPAPIClient(server.URL).Locate(context.Background(), "8.8.8.8")
	require.NoError(t, err)

	assert.Equal(t, 37.386, loc.Lat)
	assert.Equal(t, -122.0838, loc.Lon)
	assert.Equal(t, "Mountain View", loc.City)
	assert.False(t, loc.Fallback)
}

func TestIPAPIClient_PrivateAddressesQuerySelf(t *testing.T) {
	for _, ip := range []string{"", "127.0.0.1", "::1", "10.1.2.3", "192.168.0.10", "not-an-ip"} {
		t.Run(ip, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/", r.URL.Path)
				_, _ = w.Write([]byte(`{"status": "success", "lat": 35.1, "lon": 129.0, "city": "Busan"}`))
			}))
			defer server.Close()

			loc, err := newIPAPIClient(server.URL+"/").Locate(context.Background(), ip)
			require.NoError(t, err)
			assert.Equal(t, "Busan", loc.City)
		})
	}
}

func TestIPAPIClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"lookup failed", http.StatusOK, `{"status": "fail", "message": "reserved range"}`, "reserved range"},
		{"bad status", http.StatusForbidden, `{}`, "unexpected status code: 403"},
		{"bad json", http.StatusOK, `nope`, "decoding response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newIPAPIClient(server.URL).Locate(context.Background(), "1.1.1.1")
			require.Error(t, err)
			assert.ErrorIs(t, err, geolocation.ErrLookupFailed)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

type stubLocator struct {
	loc geolocation.Location
	err error
}

func (s stubLocator) Locate(context.Context, string) (geolocation.Location, error) {
	return s.loc, s.err
}

func TestService_Locate(t *testing.T) {
	want := geolocation.Location{Lat: 35.87, Lon: 128.6, City: "Daegu"}
	svc := geolocation.NewService(geolocation.ServiceConfig{
		Locator:  stubLocator{loc: want},
		Fallback: seoul,
		Logger:   zerolog.Nop(),
	})

	assert.Equal(t, want, svc.Locate(context.Background(), "1.2.3.4"))
}

func TestService_LocateFallsBack(t *testing.T) {
	svc := geolocation.NewService(geolocation.ServiceConfig{
		Locator:  stubLocator{err: geolocation.ErrLookupFailed},
		Fallback: seoul,
		Logger:   zerolog.Nop(),
	})

	loc := svc.Locate(context.Background(), "1.2.3.4")
	assert.True(t, loc.Fallback)
	assert.Equal(t, 37.5665, loc.Lat)
	assert.Equal(t, 126.9780, loc.Lon)
	assert.Equal(t, "Seoul", loc.City)
}

func TestService_NoLocator(t *testing.T) {
	svc := geolocation.NewService(geolocation.ServiceConfig{Fallback: seoul, Logger: zerolog.Nop()})

	loc := svc.Locate(context.Background(), "1.2.3.4")
	assert.True(t, loc.Fallback)
	assert.Equal(t, loc, svc.Fallback())
}
