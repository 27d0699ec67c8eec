package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/metrics"
	"github.com/ibaifernandez/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

// PanicRecovery keeps a panicking handler from taking the server down:
// the panic is logged with its stack, counted, and turned into a 500.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				log.Errorf("http: panic serving %s: %v\n%s", r.URL.Path, recovered, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
