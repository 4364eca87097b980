package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"
)

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// silentPrefixes are high-frequency polling endpoints that are only logged on
// errors (status >= 400).
var silentPrefixes = []string{
	"/api/health",
	"/api/jobs/",
}

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if wrapped.statusCode < 400 && r.Method == http.MethodGet && isSilent(r.URL.Path) {
			return
		}
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

func isSilent(path string) bool {
	for _, prefix := range silentPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
