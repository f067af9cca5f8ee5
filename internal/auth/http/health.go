package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
)

// HealthHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Returns uptime, version and the status of the database
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	HealthResponse	"status, uptime, version, checks - service degraded"
//	@Router			/actuator/health [get].
func HealthHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
