package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl888/feedcore/internal/pool"
	"github.com/shl888/feedcore/internal/venue"
)

type fakeSource struct{}

func (fakeSource) GetConnectionStatus(v venue.Name) (pool.Snapshot, []pool.FailoverRecord) {
	return pool.Snapshot{Venue: v, PoolMode: "active"}, nil
}

func newTestServer(cfg Config) *Server {
	return New(cfg, fakeSource{}, []venue.Name{venue.OKX, venue.Binance})
}

func doRequest(s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_PublicRoutesUnauthenticated(t *testing.T) {
	s := newTestServer(DefaultConfig())

	for _, path := range []string{"/public/ping", "/health", "/"} {
		rec := doRequest(s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_APIRoutesRequirePassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccessPassword = "secret"
	s := newTestServer(cfg)

	rec := doRequest(s, http.MethodGet, "/api/debug/pool", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/debug/pool", map[string]string{"X-Access-Password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/debug/pool", map[string]string{"X-Access-Password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_TradeAndAccountRoutesAreStubs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccessPassword = "secret"
	s := newTestServer(cfg)
	headers := map[string]string{"X-Access-Password": "secret"}

	rec := doRequest(s, http.MethodGet, "/api/trade/orders", headers)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	cfg.HasOKXKeys = true
	cfg.HasBinanceKeys = true
	s = newTestServer(cfg)
	rec = doRequest(s, http.MethodGet, "/api/account/balance", headers)
	assert.Equal(t, http.StatusNotImplemented, rec.Code, "still not implemented even with venue keys configured")
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	s := newTestServer(DefaultConfig())
	rec := doRequest(s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
