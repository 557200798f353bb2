// Package middleware provides HTTP middleware for the trackfusion worker.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoveryMiddleware recovers from panics and logs them with a stack trace.
type RecoveryMiddleware struct {
	log *logrus.Entry
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(log *logrus.Entry) *RecoveryMiddleware {
	return &RecoveryMiddleware{log: log}
}

// Handler returns the recovery middleware handler. The reply uses the same
// status=1 error envelope shape as the intake endpoint (spec.md §6) since a
// panic means the handler never reached its own error path.
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				m.log.WithFields(logrus.Fields{
					"panic":       fmt.Sprintf("%v", err),
					"stack":       string(debug.Stack()),
					"path":        r.URL.Path,
					"method":      r.Method,
					"remote_addr": r.RemoteAddr,
				}).Error("panic recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status": 1, "message": "internal error",
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
