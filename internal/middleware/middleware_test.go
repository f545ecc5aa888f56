package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/logger"
	"safarank-api/internal/model"
	"safarank-api/internal/service"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"generated", "", false},
		{"reused", "abc-123", true},
		{"too long", strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tt.reuse != (got == tt.header) {
				t.Errorf("id = %q, reuse = %v", got, tt.reuse)
			}
		})
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path        string
		contentType string
		accept      string
		want        bool
	}{
		{"/api/v1/admin/stats", "", "", true},
		{"/ranking/reorder", "application/json; charset=utf-8", "", true},
		{"/catalogo", "", "application/json", true},
		{"/catalogo", "", "text/html,application/json;q=0.9", false},
		{"/catalogo", "application/x-www-form-urlencoded", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Content-Type", tt.contentType)
		req.Header.Set("Accept", tt.accept)
		if got := WantsJSON(req); got != tt.want {
			t.Errorf("WantsJSON(%s, %q, %q) = %v, want %v", tt.path, tt.contentType, tt.accept, got, tt.want)
		}
	}
}

func TestRequireRoles(t *testing.T) {
	client := &model.SessionData{UserID: 1, Role: model.RoleClient}
	admin := &model.SessionData{UserID: 2, Role: model.RoleAdmin}

	tests := []struct {
		name     string
		mw       func(http.Handler) http.Handler
		session  *model.SessionData
		path     string
		status   int
		location string
	}{
		{"user anonymous page", RequireUser, nil, "/catalogo", http.StatusSeeOther, "/"},
		{"user anonymous api", RequireUser, nil, "/api/x", http.StatusUnauthorized, ""},
		{"user ok", RequireUser, client, "/catalogo", http.StatusOK, ""},
		{"admin anonymous page", RequireAdmin, nil, "/panel-admin", http.StatusSeeOther, "/"},
		{"admin client page", RequireAdmin, client, "/panel-admin", http.StatusSeeOther, "/dashboard"},
		{"admin client api", RequireAdmin, client, "/api/v1/admin/stats", http.StatusForbidden, ""},
		{"admin anonymous api", RequireAdmin, nil, "/api/v1/admin/stats", http.StatusUnauthorized, ""},
		{"admin ok", RequireAdmin, admin, "/panel-admin", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.session != nil {
				req = req.WithContext(WithSession(req.Context(), tt.session))
			}
			rec := httptest.NewRecorder()
			tt.mw(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.location != "" && rec.Header().Get("Location") != tt.location {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.location)
			}
			if rec.Code >= 400 && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("error reply is %q, want JSON", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestLoadSession(t *testing.T) {
	ctx := context.Background()
	sessions := service.NewSessionService(cache.NewMemoryCache(), time.Hour)
	token, _, err := sessions.Create(ctx, &model.User{ID: 7, Email: "ana@example.com", Name: "Ana", Role: model.RoleClient})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var got *model.SessionData
	h := LoadSession(sessions, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CurrentUser(r.Context())
	}))

	tests := []struct {
		name    string
		cookie  string
		want    int64
		cleared bool
	}{
		{"no cookie", "", 0, false},
		{"valid", token, 7, false},
		{"unknown token", service.SessionPrefix + "nope", 0, true},
		{"malformed", "garbage", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			switch {
			case tt.want == 0 && got != nil:
				t.Errorf("session = %+v, want none", got)
			case tt.want != 0 && (got == nil || got.UserID != tt.want):
				t.Errorf("session = %+v, want user %d", got, tt.want)
			}
			cleared := strings.Contains(rec.Header().Get("Set-Cookie"), SessionCookie+"=;")
			if cleared != tt.cleared {
				t.Errorf("cookie cleared = %v, want %v", cleared, tt.cleared)
			}
		})
	}
}

func TestLoadSessionSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	ttl := 2 * time.Second
	sessions := service.NewSessionService(cache.NewMemoryCache(), ttl)
	token, created, err := sessions.Create(ctx, &model.User{ID: 7, Email: "ana@example.com", Name: "Ana", Role: model.RoleClient})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := LoadSession(sessions, true)(okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// a fresh session is left alone
	if rec := send(); rec.Header().Get("Set-Cookie") != "" {
		t.Errorf("fresh session re-issued cookie: %q", rec.Header().Get("Set-Cookie"))
	}

	time.Sleep(ttl/2 + 100*time.Millisecond)
	rec := send()

	data, err := sessions.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate after request: %v", err)
	}
	if !data.ExpiresAt.After(created.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want later than %v", data.ExpiresAt, created.ExpiresAt)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != token || cookie.MaxAge != int(ttl.Seconds()) || !cookie.Secure {
		t.Errorf("re-issued cookie = %+v", cookie)
	}
}

func TestRecovery(t *testing.T) {
	panicking := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalogo", nil))
	if rec.Code != http.StatusInternalServerError || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("page panic: status %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	var buf strings.Builder
	l := logger.New(&buf, "debug")

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/tea", nil)
	req = req.WithContext(logger.WithContext(req.Context(), l))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	if err := json.Unmarshal([]byte(buf.String()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(15) || line["path"] != "/tea" {
		t.Errorf("log line = %v", line)
	}
}
