package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/teamhub/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	require.NotPanics(t, func() {
		m.AuthnOutcome("authenticated")
		m.Login("password", "ok")
		m.TokenIssued("access")
		m.RefreshTokensPurged(3)
		m.RealtimeConnected()
		m.RealtimeDisconnected()
		m.HandshakeOutcome("anonymous")
		m.FrameDropped()
	})
	require.Nil(t, m.Registry())
}

func TestHandlerExposesCounters(t *testing.T) {
	m := telemetry.New()
	m.AuthnOutcome("expired_token")
	m.AuthnOutcome("expired_token")
	m.TokenIssued("refresh")
	m.RealtimeConnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/actuator/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `teamhub_authn_gate_total{outcome="expired_token"} 2`)
	require.Contains(t, string(body), `teamhub_tokens_issued_total{kind="refresh"} 1`)
	require.Contains(t, string(body), `teamhub_realtime_connections 1`)
}
