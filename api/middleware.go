package api

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivolkov/loothound/game/app"
)

const tokenLength = 32

// bearerToken extracts and validates the Authorization header. It reports
// false when the header is missing or is not a 32-char lowercase hex token.
func bearerToken(r *http.Request) (app.Token, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if len(token) != tokenLength {
		return "", false
	}
	for _, c := range token {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	return app.Token(token), true
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs every request with its status and duration.
func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Infow("request",
				"method", r.Method,
				"uri", r.RequestURI,
				"status", recorder.status,
				"duration", time.Since(start),
			)
		})
	}
}

// recoverer turns handler panics into 500 responses with the standard error
// envelope. Stack traces go to the log, never to the client.
func recoverer(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorw("handler panic", "uri", r.RequestURI, "panic", rec, "stack", string(debug.Stack()))
					writeError(w, http.StatusInternalServerError, CodeBadRequest, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
