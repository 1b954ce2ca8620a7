package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/saeidalz13/battleship-server/models/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer()

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RespHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "dev", resp.Stage)

	s.Shutdown()
	rec = get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionsListsLiveGames(t *testing.T) {
	s := newTestServer(t)

	a := dialRaw(t, s, true)
	b := dialRaw(t, s, true)
	a.next(packet.TypeGrid)
	b.next(packet.TypeGrid)

	rec := get(t, s, "/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RespSessions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	require.Len(t, resp.Games, 1)
	assert.Equal(t, "setup", resp.Games[0].Phase)
	assert.Equal(t, [2]int{5, 5}, resp.Games[0].ShipsLeft)
	assert.Nil(t, resp.Analytics, "no database configured")
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer()
	_ = get(t, s, "/healthz")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "battleship_http_requests_total"))
}

func TestGetServerIpNet(t *testing.T) {
	ipNet := getServerIpNet(&net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 27000})
	assert.Equal(t, "10.1.2.3", ipNet.IP.String())
	ones, bits := ipNet.Mask.Size()
	assert.Equal(t, 32, ones)
	assert.Equal(t, 32, bits)

	wildcard := getServerIpNet(&net.TCPAddr{IP: net.IPv4zero, Port: 27000})
	assert.False(t, wildcard.IP.IsUnspecified())
}
