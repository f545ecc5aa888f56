package middleware

import (
	"context"
	"net/http"
	"strings"

	"safarank-api/internal/logger"
	"safarank-api/internal/model"
	"safarank-api/internal/service"
	"safarank-api/internal/web"
	"safarank-api/pkg/apierror"
)

// SessionCookie is the cookie holding the login session token.
const SessionCookie = "safarank_session"

// SessionKey is the context key for the current session.
const SessionKey contextKey = "session"

// LoadSession resolves the session cookie into the request context. A bad
// or expired token clears the cookie and the request continues anonymous.
// Sessions past half their lifetime are refreshed and the cookie re-issued.
func LoadSession(sessions *service.SessionService, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			data, err := sessions.Validate(r.Context(), c.Value)
			if err != nil {
				if !apierror.HasCode(err, apierror.CodeUnauthorized) {
					logger.FromContext(r.Context()).Warn("session lookup failed", "error", err)
				}
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			if sessions.NeedsRefresh(data) {
				refreshed, err := sessions.Refresh(r.Context(), c.Value)
				if err != nil {
					logger.FromContext(r.Context()).Warn("session refresh failed", "error", err)
				} else {
					data = refreshed
					SetSessionCookie(w, c.Value, int(sessions.TTL().Seconds()), secureCookie)
				}
			}

			ctx := WithSession(r.Context(), data)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user_id", data.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession returns a copy of ctx carrying the session.
func WithSession(ctx context.Context, s *model.SessionData) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// CurrentUser returns the session of the logged-in user, or nil.
func CurrentUser(ctx context.Context) *model.SessionData {
	if s, ok := ctx.Value(SessionKey).(*model.SessionData); ok {
		return s
	}
	return nil
}

// RequireUser rejects anonymous requests. Pages redirect to the login form.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			if WantsJSON(r) {
				writeError(w, apierror.Unauthorized(""))
				return
			}
			web.Redirect(w, r, "/", web.FlashInfo, "Inicia sesión para continuar.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from anyone but administrators.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := CurrentUser(r.Context())
		switch {
		case s == nil && WantsJSON(r):
			writeError(w, apierror.Unauthorized(""))
		case s == nil:
			web.Redirect(w, r, "/", web.FlashInfo, "Inicia sesión para continuar.")
		case !s.IsAdmin() && WantsJSON(r):
			writeError(w, apierror.Forbidden("administrator role required"))
		case !s.IsAdmin():
			web.Redirect(w, r, "/dashboard", web.FlashError, "Acceso restringido a administradores.")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// SetSessionCookie stores token in the session cookie.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// WantsJSON reports whether the caller expects a JSON reply rather than a
// page: API paths, JSON request bodies and JSON-only Accept headers.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
