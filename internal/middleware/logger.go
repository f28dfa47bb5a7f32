package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwork/rewards-api/internal/pkg/logger"
)

// Logger writes one access log line per request. Server errors log at error
// level and client errors at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		l := logger.FromContext(r.Context())
		var ev *zerolog.Event
		switch {
		case rec.status >= http.StatusInternalServerError:
			ev = l.Error()
		case rec.status >= http.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}

		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Str("remote_ip", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// statusRecorder captures what the handler wrote. The client address comes
// from chi's RealIP middleware, which runs earlier in the chain.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
