package handler

import (
	"net/http"

	"safarank-api/internal/logger"
	"safarank-api/internal/middleware"
	"safarank-api/internal/model"
	"safarank-api/internal/service"
	"safarank-api/internal/web"
	"safarank-api/pkg/apierror"
)

// AuthHandler serves login, registration, logout and the dashboard.
type AuthHandler struct {
	auth         *service.AuthService
	sessions     *service.SessionService
	rankings     *service.RankingService
	categories   *service.CategoryService
	render       *web.Renderer
	secureCookie bool
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(
	auth *service.AuthService,
	sessions *service.SessionService,
	rankings *service.RankingService,
	categories *service.CategoryService,
	render *web.Renderer,
	secureCookie bool,
) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		sessions:     sessions,
		rankings:     rankings,
		categories:   categories,
		render:       render,
		secureCookie: secureCookie,
	}
}

type loginForm struct {
	Email string
}

type registerForm struct {
	Email  string
	Name   string
	Role   string
	Errors map[string]string
}

// LoginPage handles GET /
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUser(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render.Render(w, http.StatusOK, "login", newPage(w, r, "Iniciar sesión", loginForm{}))
}

// Login handles POST /
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	user, err := h.auth.Authenticate(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		if !apierror.HasCode(err, apierror.CodeUnauthorized) {
			logger.FromContext(r.Context()).Error("login failed", "error", err)
		}
		page := newPage(w, r, "Iniciar sesión", loginForm{Email: email})
		page.Flash = &web.Flash{Kind: web.FlashError, Message: "Email o contraseña incorrectos."}
		h.render.Render(w, http.StatusUnauthorized, "login", page)
		return
	}

	token, _, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		fail(w, r, err, "/")
		return
	}
	middleware.SetSessionCookie(w, token, int(h.sessions.TTL().Seconds()), h.secureCookie)
	web.Redirect(w, r, "/dashboard", web.FlashSuccess, "Bienvenido, "+user.Name+".")
}

// RegisterPage handles GET /registro
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	form := registerForm{Role: string(model.RoleClient), Errors: map[string]string{}}
	h.render.Render(w, http.StatusOK, "registro", newPage(w, r, "Registro", form))
}

// Register handles POST /registro
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Email:  r.PostFormValue("email"),
		Name:   r.PostFormValue("nombre"),
		Role:   r.PostFormValue("rol"),
		Errors: map[string]string{},
	}
	password := r.PostFormValue("password")

	if password != r.PostFormValue("password2") {
		form.Errors["password2"] = "Las contraseñas no coinciden."
		h.render.Render(w, http.StatusBadRequest, "registro", newPage(w, r, "Registro", form))
		return
	}

	_, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    form.Email,
		Name:     form.Name,
		Role:     model.Role(form.Role),
		Password: password,
	})
	if err != nil {
		if errs, ok := fieldErrors(err); ok {
			form.Errors = errs
		} else if apierror.IsConflict(err) {
			form.Errors["email"] = "Ya existe una cuenta con este email."
		} else {
			fail(w, r, err, "/registro")
			return
		}
		h.render.Render(w, http.StatusBadRequest, "registro", newPage(w, r, "Registro", form))
		return
	}

	web.Redirect(w, r, "/", web.FlashSuccess, "Cuenta creada. Ya puedes iniciar sesión.")
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookie); err == nil {
		if err := h.sessions.Revoke(r.Context(), c.Value); err != nil {
			logger.FromContext(r.Context()).Warn("failed to revoke session", "error", err)
		}
	}
	middleware.ClearSessionCookie(w)
	web.Redirect(w, r, "/", web.FlashInfo, "Has cerrado sesión.")
}

type dashboardData struct {
	Rankings   []model.RankingSummary
	Categories []model.Category
}

// Dashboard handles GET /dashboard
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	rankings, err := h.rankings.ListForOwner(r.Context(), user.UserID)
	if err != nil {
		fail(w, r, err, "/")
		return
	}
	categories, err := h.categories.List(r.Context())
	if err != nil {
		fail(w, r, err, "/")
		return
	}
	h.render.Render(w, http.StatusOK, "dashboard", newPage(w, r, "Inicio", dashboardData{
		Rankings:   rankings,
		Categories: categories,
	}))
}
