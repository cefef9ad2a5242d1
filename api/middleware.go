package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one logrus entry per request once the response is
// complete. Place it after middleware.RequestID so the id is available.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  middleware.GetReqID(r.Context()),
				})
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					entry.Error("request failed")
				case ww.Status() >= http.StatusBadRequest:
					entry.Warn("request rejected")
				default:
					entry.Info("request served")
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
