package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// LogRequest trace-logs every incoming request before it reaches the
// router. Kept at trace level so production logs stay quiet.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Tracef(
				" ====> request [%s] path: [%s] [UA: %s]",
				r.Method, r.URL.Path, r.Header.Get("User-Agent"),
			)
			next.ServeHTTP(w, r)
		})
	}
}
