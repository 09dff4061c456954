package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/httpx"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "walletauth"

// LivezHandler godoc
//
//	@Summary		Liveness Check Endpoint
//	@Description	Reports that the wallet auth process is up, with its start time, uptime and version.
//	@Description	Storage and key material are not consulted; see /readyz.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, service, started_at, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	started := startTime.UTC().Format(time.RFC3339)
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:    "ok",
			Service:   ServiceName,
			StartedAt: started,
			Uptime:    time.Since(startTime).Truncate(time.Second).String(),
			Version:   version,
		})
	}
}
