package middleware

import (
	"net/http"
	"runtime/debug"

	"safarank-api/internal/logger"
	"safarank-api/pkg/apierror"
)

// Recovery turns a panic into a 500. JSON clients get the error envelope,
// browsers a plain text page.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.FromContext(r.Context()).Error("panic recovered",
					"panic", err, "path", r.URL.Path, "stack", string(debug.Stack()))

				if WantsJSON(r) {
					writeError(w, apierror.InternalError("internal server error"))
					return
				}
				http.Error(w, "Error interno del servidor", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
