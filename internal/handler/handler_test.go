package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/handler"
	"safarank-api/internal/middleware"
	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/internal/router"
	"safarank-api/internal/service"
	"safarank-api/internal/web"

	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	router     http.Handler
	store      *repository.SQLiteCatalogRepository
	auth       *service.AuthService
	sessions   *service.SessionService
	rankings   *service.RankingService
	categories *service.CategoryService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store, err := repository.NewSQLiteCatalogRepository(":memory:")
	if err != nil {
		t.Fatalf("catalog store: %v", err)
	}
	users, err := repository.OpenUserRepository(repository.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("user store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		users.Close()
	})

	c := cache.NewMemoryCache()
	auth := service.NewAuthService(users, bcrypt.MinCost)
	sessions := service.NewSessionService(c, time.Hour)
	catalog := service.NewCatalogService(store, store, c, 12)
	categories := service.NewCategoryService(store, store)
	reviews := service.NewReviewService(store, store, c)
	rankings := service.NewRankingService(store, store)
	stats := service.NewStatsService(users, store, c, time.Minute)
	render := web.MustNewRenderer()

	r := router.New(router.Config{
		Handler: handler.New("safarank", "test",
			handler.Dependency{Name: "identity_store", Pinger: users},
			handler.Dependency{Name: "catalog_store", Pinger: store},
			handler.Dependency{Name: "cache", Pinger: c},
		),
		AuthHandler:    handler.NewAuthHandler(auth, sessions, rankings, categories, render, false),
		CatalogHandler: handler.NewCatalogHandler(catalog, categories, reviews, rankings, render),
		RankingHandler: handler.NewRankingHandler(rankings, catalog, render),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Catalog:    catalog,
			Categories: categories,
			Reviews:    reviews,
			Stats:      stats,
			Users:      users,
			Store:      store,
			Cache:      c,
			Render:     render,
			Backends:   map[string]string{"identity": "sqlite", "catalog": "sqlite", "cache": "memory"},
		}),
		SessionLoader: middleware.LoadSession(sessions, false),
	})

	return &testApp{
		router:     r,
		store:      store,
		auth:       auth,
		sessions:   sessions,
		rankings:   rankings,
		categories: categories,
	}
}

// login registers an account and returns a session token for it.
func (a *testApp) login(t *testing.T, email string, role model.Role) (*model.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := a.auth.Register(ctx, service.RegisterInput{
		Email:    email,
		Name:     strings.Split(email, "@")[0],
		Role:     role,
		Password: "secreto123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	token, _, err := a.sessions.Create(ctx, user)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return user, token
}

func (a *testApp) seedItems(t *testing.T, names ...string) []int64 {
	t.Helper()
	items := make([]model.Item, len(names))
	for i, n := range names {
		items[i] = model.Item{Name: n, Price: 100 * (i + 1)}
	}
	if _, err := a.store.BulkCreateItems(context.Background(), items); err != nil {
		t.Fatalf("seed items: %v", err)
	}
	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids
}

func (a *testApp) do(req *http.Request, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func wantRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

// follow replays the flash cookie of a redirect on a GET to its target.
func (a *testApp) follow(t *testing.T, rec *httptest.ResponseRecorder, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil)
	var cookies []*http.Cookie
	if c := responseCookie(rec, "safarank_flash"); c != nil {
		cookies = append(cookies, c)
	}
	return a.do(req, token, cookies...)
}

func TestRegisterLoginLogout(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(postForm("/registro", url.Values{
		"email":     {"ana@example.com"},
		"nombre":    {"Ana"},
		"rol":       {"cliente"},
		"password":  {"secreto123"},
		"password2": {"secreto123"},
	}), "")
	wantRedirect(t, rec, "/")

	rec = app.do(postForm("/", url.Values{"email": {"ana@example.com"}, "password": {"incorrecta"}}), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Email o contraseña incorrectos.") {
		t.Error("bad login page has no error notice")
	}

	rec = app.do(postForm("/", url.Values{"email": {"ANA@example.com "}, "password": {"secreto123"}}), "")
	wantRedirect(t, rec, "/dashboard")
	session := responseCookie(rec, middleware.SessionCookie)
	if session == nil || session.Value == "" {
		t.Fatal("login did not set the session cookie")
	}
	if !session.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), session.Value)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Hola, Ana") {
		t.Error("dashboard does not greet the user")
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/", nil), session.Value)
	wantRedirect(t, rec, "/dashboard")

	rec = app.do(postForm("/logout", nil), session.Value)
	wantRedirect(t, rec, "/")
	if c := responseCookie(rec, middleware.SessionCookie); c == nil || c.MaxAge >= 0 {
		t.Error("logout did not clear the session cookie")
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), session.Value)
	wantRedirect(t, rec, "/")
}

func TestRegisterErrors(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "ana@example.com", model.RoleClient)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "passwords differ",
			form: url.Values{"email": {"b@example.com"}, "nombre": {"B"}, "rol": {"cliente"}, "password": {"secreto123"}, "password2": {"otra"}},
			want: "Las contraseñas no coinciden.",
		},
		{
			name: "duplicate email",
			form: url.Values{"email": {"ana@example.com"}, "nombre": {"Ana"}, "rol": {"cliente"}, "password": {"secreto123"}, "password2": {"secreto123"}},
			want: "Ya existe una cuenta con este email.",
		},
		{
			name: "short password",
			form: url.Values{"email": {"c@example.com"}, "nombre": {"C"}, "rol": {"cliente"}, "password": {"corta"}, "password2": {"corta"}},
			want: "must be at least 8 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(postForm("/registro", tt.form), "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body does not contain %q", tt.want)
			}
		})
	}
}

func TestAccessControl(t *testing.T) {
	app := newTestApp(t)
	_, client := app.login(t, "cliente@example.com", model.RoleClient)
	_, admin := app.login(t, "admin@example.com", model.RoleAdmin)

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		location string
	}{
		{"anonymous page", "/catalogo", "", http.StatusSeeOther, "/"},
		{"anonymous admin page", "/panel-admin", "", http.StatusSeeOther, "/"},
		{"client admin page", "/panel-admin", client, http.StatusSeeOther, "/dashboard"},
		{"anonymous admin api", "/api/v1/admin/stats", "", http.StatusUnauthorized, ""},
		{"client admin api", "/api/v1/admin/stats", client, http.StatusForbidden, ""},
		{"admin page", "/panel-admin", admin, http.StatusOK, ""},
		{"admin api", "/api/v1/admin/stats", admin, http.StatusOK, ""},
		{"client catalog", "/catalogo", client, http.StatusOK, ""},
		{"unknown session", "/catalogo", "not-a-token", http.StatusSeeOther, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.token)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.location != "" {
				if got := rec.Header().Get("Location"); got != tt.location {
					t.Errorf("Location = %q, want %q", got, tt.location)
				}
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/ready", "/api/status"} {
		rec := app.do(httptest.NewRequest(http.MethodGet, path, nil), "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s has no X-Request-ID", path)
		}
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsFailingDependency(t *testing.T) {
	h := handler.New("safarank", "test",
		handler.Dependency{Name: "catalog_store", Pinger: cache.NewMemoryCache()},
		handler.Dependency{Name: "cache", Pinger: downPinger{}},
	)
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Details []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("body = %s", rec.Body.String())
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "cache" || body.Error.Details[0].Message != "connection refused" {
		t.Errorf("details = %+v", body.Error.Details)
	}
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func TestReorder(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	owner, ownerToken := app.login(t, "owner@example.com", model.RoleClient)
	_, otherToken := app.login(t, "other@example.com", model.RoleClient)
	ids := app.seedItems(t, "Mi 11", "Redmi 9", "Poco F5")

	list, err := app.rankings.CreateList(ctx, owner.ID, "Favoritos")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	listID := strconv.FormatInt(list.ID, 10)
	valid := `{"ranking_id":` + listID + `,"tiers":{"S":[` + strconv.FormatInt(ids[1], 10) + `],"A":["` + strconv.FormatInt(ids[0], 10) + `"]}}`

	tests := []struct {
		name    string
		token   string
		body    string
		status  int
		message string
	}{
		{"anonymous", "", valid, http.StatusUnauthorized, ""},
		{"malformed body", ownerToken, `{"ranking_id":`, http.StatusBadRequest, "invalid request body"},
		{"non numeric id", ownerToken, `{"ranking_id":"abc","tiers":{}}`, http.StatusBadRequest, "invalid request body"},
		{"missing id", ownerToken, `{"tiers":{}}`, http.StatusBadRequest, "ranking_id"},
		{"missing tiers", ownerToken, `{"ranking_id":` + listID + `}`, http.StatusBadRequest, "tiers is required"},
		{"unknown tier", ownerToken, `{"ranking_id":` + listID + `,"tiers":{"Z":[1]}}`, http.StatusBadRequest, "unknown tier"},
		{"unknown list", ownerToken, `{"ranking_id":9999,"tiers":{}}`, http.StatusNotFound, ""},
		{"not the owner", otherToken, valid, http.StatusForbidden, ""},
		{"owner", ownerToken, valid, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(postJSON("/ranking/reorder", tt.body), tt.token)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.status, rec.Body.String())
			}
			var body statusBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			wantStatus := "error"
			if tt.status == http.StatusOK {
				wantStatus = "ok"
			}
			if body.Status != wantStatus {
				t.Errorf("status field = %q, want %q", body.Status, wantStatus)
			}
			if !strings.Contains(body.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", body.Message, tt.message)
			}
		})
	}

	view, err := app.rankings.LoadForDisplay(ctx, list.ID, owner.ID)
	if err != nil {
		t.Fatalf("LoadForDisplay: %v", err)
	}
	for _, rt := range view.Tiers {
		switch rt.Tier {
		case model.TierS:
			if len(rt.Items) != 1 || rt.Items[0].ID != ids[1] {
				t.Errorf("tier S = %+v, want [%d]", rt.Items, ids[1])
			}
		case model.TierA:
			if len(rt.Items) != 1 || rt.Items[0].ID != ids[0] {
				t.Errorf("tier A = %+v, want [%d]", rt.Items, ids[0])
			}
		default:
			if len(rt.Items) != 0 {
				t.Errorf("tier %s = %+v, want empty", rt.Tier, rt.Items)
			}
		}
	}

	rec := app.do(postJSON("/ranking/guardar-orden", valid), ownerToken)
	if rec.Code != http.StatusOK {
		t.Errorf("alias status = %d, want 200", rec.Code)
	}
}

func TestRankingPages(t *testing.T) {
	app := newTestApp(t)
	owner, token := app.login(t, "owner@example.com", model.RoleClient)
	_, otherToken := app.login(t, "other@example.com", model.RoleClient)
	ids := app.seedItems(t, "Mi 11", "Redmi 9")

	rec := app.do(postForm("/mis-rankings", url.Values{"nombre": {"Gama media"}}), token)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create status = %d", rec.Code)
	}
	lists, err := app.rankings.ListForOwner(context.Background(), owner.ID)
	if err != nil || len(lists) != 1 {
		t.Fatalf("ListForOwner = %v, %v", lists, err)
	}
	page := "/ranking/" + strconv.FormatInt(lists[0].ID, 10)
	if loc := rec.Header().Get("Location"); loc != page {
		t.Fatalf("Location = %q, want %q", loc, page)
	}

	add := url.Values{"item_id": {strconv.FormatInt(ids[0], 10)}}
	rec = app.do(postForm(page+"/add", add), token)
	wantRedirect(t, rec, page)
	shown := app.follow(t, rec, token)
	if shown.Code != http.StatusOK {
		t.Fatalf("ranking page status = %d", shown.Code)
	}
	body := shown.Body.String()
	if !strings.Contains(body, "Móvil añadido al ranking.") {
		t.Error("ranking page has no added notice")
	}
	if !strings.Contains(body, `data-id="`+strconv.FormatInt(ids[0], 10)+`"`) {
		t.Error("added item is not on the board")
	}

	rec = app.do(postForm(page+"/add", add), token)
	if !strings.Contains(app.follow(t, rec, token).Body.String(), "El móvil ya está en este ranking.") {
		t.Error("second add did not report the item as present")
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, page, nil), otherToken)
	wantRedirect(t, rec, "/mis-rankings")
	body = app.follow(t, rec, otherToken).Body.String()
	if !strings.Contains(body, "No se ha encontrado lo que buscabas.") || strings.Contains(body, "ranking not found") {
		t.Error("foreign ranking notice is not the localized one")
	}

	rec = app.do(postForm("/mis-rankings", url.Values{"nombre": {"  "}}), token)
	wantRedirect(t, rec, "/mis-rankings")
	if !strings.Contains(app.follow(t, rec, token).Body.String(), "El nombre del ranking es obligatorio.") {
		t.Error("blank ranking name did not report a localized notice")
	}

	rec = app.do(postForm(page+"/remove", add), token)
	if !strings.Contains(app.follow(t, rec, token).Body.String(), "Móvil quitado del ranking.") {
		t.Error("remove did not report success")
	}

	rec = app.do(postForm("/ranking/borrar/"+strconv.FormatInt(lists[0].ID, 10), nil), token)
	wantRedirect(t, rec, "/mis-rankings")
	if lists, _ := app.rankings.ListForOwner(context.Background(), owner.ID); len(lists) != 0 {
		t.Errorf("list not deleted: %+v", lists)
	}
}

func TestItemPageAndRating(t *testing.T) {
	app := newTestApp(t)
	_, token := app.login(t, "ana@example.com", model.RoleClient)
	ids := app.seedItems(t, "Mi 11")
	page := "/movil/" + strconv.FormatInt(ids[0], 10)

	rec := app.do(postForm(page+"/valorar", url.Values{"puntuacion": {"4"}, "comentario": {"Muy buena batería"}}), token)
	wantRedirect(t, rec, page)

	shown := app.follow(t, rec, token)
	if shown.Code != http.StatusOK {
		t.Fatalf("item page status = %d", shown.Code)
	}
	body := shown.Body.String()
	for _, want := range []string{"Valoración guardada.", "Muy buena batería", "Actualizar valoración"} {
		if !strings.Contains(body, want) {
			t.Errorf("item page does not contain %q", want)
		}
	}

	rec = app.do(postForm(page+"/valorar", url.Values{"puntuacion": {"9"}}), token)
	wantRedirect(t, rec, page)
	if responseCookie(rec, "safarank_flash") == nil {
		t.Error("invalid score set no notice")
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/movil/9999", nil), token)
	wantRedirect(t, rec, "/catalogo")
	if body := app.follow(t, rec, token).Body.String(); !strings.Contains(body, "No se ha encontrado lo que buscabas.") {
		t.Error("missing item notice is not the localized one")
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/catalogo?q=mi&sort=price", nil), token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Mi 11") {
		t.Errorf("catalog search status = %d", rec.Code)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/catalogo?page=9223372036854775807", nil), token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Página 1 de 1") {
		t.Errorf("catalog page past the end: status %d", rec.Code)
	}
}

func TestAdminItems(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.login(t, "admin@example.com", model.RoleAdmin)

	rec := app.do(postForm("/gestion/elementos/crear", url.Values{"name": {""}, "price": {"abc"}}), admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid item status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "price: must be an integer") {
		t.Error("form does not show the price error")
	}

	rec = app.do(postForm("/gestion/elementos/crear", url.Values{"name": {""}}), admin)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "name: is required") {
		t.Errorf("missing name: status %d", rec.Code)
	}

	rec = app.do(postForm("/gestion/elementos/crear", url.Values{
		"name":    {"Galaxy S23"},
		"ratings": {"4.6"},
		"price":   {"899"},
		"ram":     {"8"},
	}), admin)
	wantRedirect(t, rec, "/gestion/elementos")

	list := app.follow(t, rec, admin)
	if list.Code != http.StatusOK || !strings.Contains(list.Body.String(), "Galaxy S23") {
		t.Fatalf("items page status = %d", list.Code)
	}

	items, _, err := app.store.ListItems(context.Background(), model.ItemFilter{Limit: 10})
	if err != nil || len(items) != 1 {
		t.Fatalf("ListItems = %v, %v", items, err)
	}
	id := strconv.FormatInt(items[0].ID, 10)
	if items[0].Display != model.DefaultDisplay {
		t.Errorf("Display = %q, want default", items[0].Display)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/gestion/elementos/editar/"+id, nil), admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit page status = %d", rec.Code)
	}

	rec = app.do(postForm("/gestion/elementos/editar/"+id, url.Values{"name": {"Galaxy S23+"}, "price": {"999"}}), admin)
	wantRedirect(t, rec, "/gestion/elementos")
	item, _ := app.store.GetItem(context.Background(), items[0].ID)
	if item == nil || item.Name != "Galaxy S23+" || item.Price != 999 {
		t.Errorf("updated item = %+v", item)
	}

	rec = app.do(postForm("/gestion/elementos/borrar/"+id, nil), admin)
	wantRedirect(t, rec, "/gestion/elementos")
	if item, _ := app.store.GetItem(context.Background(), items[0].ID); item != nil {
		t.Error("item not deleted")
	}
}

func TestAdminCategories(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.login(t, "admin@example.com", model.RoleAdmin)
	_, client := app.login(t, "cliente@example.com", model.RoleClient)
	ids := app.seedItems(t, "Mi 11", "Redmi 9")

	rec := app.do(httptest.NewRequest(http.MethodGet, "/gestion/categorias/crear", nil), admin)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Redmi 9") {
		t.Fatalf("new category form status = %d", rec.Code)
	}

	form := url.Values{
		"code":        {"1"},
		"name":        {"Gama alta"},
		"description": {"Lo mejor"},
		"moviles":     {strconv.FormatInt(ids[0], 10)},
	}
	rec = app.do(postForm("/gestion/categorias/crear", form), admin)
	wantRedirect(t, rec, "/gestion/categorias")

	rec = app.do(postForm("/gestion/categorias/crear", form), admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate category status = %d, want 400", rec.Code)
	}

	cats, err := app.categories.List(context.Background())
	if err != nil || len(cats) != 1 {
		t.Fatalf("categories = %v, %v", cats, err)
	}
	rec = app.do(httptest.NewRequest(http.MethodGet, "/categoria/"+strconv.FormatInt(cats[0].ID, 10), nil), client)
	if rec.Code != http.StatusOK {
		t.Fatalf("category page status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Mi 11") || strings.Contains(body, "Redmi 9") {
		t.Error("category page lists the wrong items")
	}

	rec = app.do(postForm("/gestion/categorias/borrar/"+strconv.FormatInt(cats[0].ID, 10), nil), admin)
	wantRedirect(t, rec, "/gestion/categorias")
}

func TestAdminUploadAndStatistics(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.login(t, "admin@example.com", model.RoleAdmin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("archivo", "moviles.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Name,Ratings,Price,imgURL,Camera,display,Battery,Storage,RAM,Processor,Android_version\n" +
		"Mi 11,4.5,29999,,108,6.81,4600,128,8,Snapdragon 888,11\n" +
		"Redmi 9,4.1,8999,,13,6.53,5020,64,4,Helio G80,10\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/cargar-datos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := app.do(req, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Importados: 2") {
		t.Error("upload page does not show the import count")
	}

	rec = app.do(postForm("/cargar-datos", nil), admin)
	wantRedirect(t, rec, "/cargar-datos")

	for _, path := range []string{"/panel-admin/estadisticas", "/panel-admin/valoraciones", "/panel-admin", "/gestion/categorias"} {
		rec = app.do(httptest.NewRequest(http.MethodGet, path, nil), admin)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/api/v1/admin/statistics", nil), admin)
	var stats struct {
		Success bool `json:"success"`
		Data    struct {
			Totals model.Totals `json:"totals"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if !stats.Success || stats.Data.Totals.Items != 2 || stats.Data.Totals.Users != 1 {
		t.Errorf("statistics = %+v", stats)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews?page=1&limit=10", nil), admin)
	var reviews struct {
		Success bool `json:"success"`
		Meta    struct {
			Page  int   `json:"page"`
			Limit int   `json:"limit"`
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reviews); err != nil {
		t.Fatalf("decode reviews: %v", err)
	}
	if !reviews.Success || reviews.Meta.Limit != 10 || reviews.Meta.Total != 0 {
		t.Errorf("reviews = %+v", reviews)
	}
}
