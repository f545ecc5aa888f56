package handler

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/internal/service"
	"safarank-api/internal/web"
	"safarank-api/pkg/apierror"
	"safarank-api/pkg/response"
)

const maxUploadSize = 10 << 20

// AdminHandler serves the administration pages and admin JSON endpoints.
type AdminHandler struct {
	catalog    *service.CatalogService
	categories *service.CategoryService
	reviews    *service.ReviewService
	stats      *service.StatsService
	users      repository.UserRepository
	store      repository.CatalogRepository
	cache      cache.Cache
	render     *web.Renderer
	backends   map[string]string
	startTime  time.Time
}

// AdminConfig wires an AdminHandler.
type AdminConfig struct {
	Catalog    *service.CatalogService
	Categories *service.CategoryService
	Reviews    *service.ReviewService
	Stats      *service.StatsService
	Users      repository.UserRepository
	Store      repository.CatalogRepository
	Cache      cache.Cache
	Render     *web.Renderer
	// Backends names the configured store and cache types for the stats
	// endpoint, e.g. {"identity": "mysql", "catalog": "mongodb"}.
	Backends map[string]string
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		catalog:    cfg.Catalog,
		categories: cfg.Categories,
		reviews:    cfg.Reviews,
		stats:      cfg.Stats,
		users:      cfg.Users,
		store:      cfg.Store,
		cache:      cfg.Cache,
		render:     cfg.Render,
		backends:   cfg.Backends,
		startTime:  time.Now(),
	}
}

type panelData struct {
	Totals model.Totals
}

// Panel handles GET /panel-admin
func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	totals, err := h.totals(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	h.render.Render(w, http.StatusOK, "panel_admin", newPage(w, r, "Administración", panelData{Totals: totals}))
}

func (h *AdminHandler) totals(ctx context.Context) (model.Totals, error) {
	totals, err := h.store.Counts(ctx)
	if err != nil {
		return totals, err
	}
	totals.Users, err = h.users.CountUsers(ctx)
	return totals, err
}

// UploadPage handles GET /cargar-datos
func (h *AdminHandler) UploadPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, "cargar_datos", newPage(w, r, "Cargar datos", (*service.ImportResult)(nil)))
}

// Upload handles POST /cargar-datos
func (h *AdminHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		fail(w, r, apierror.BadRequest("No se pudo leer el formulario: "+err.Error()), "/cargar-datos")
		return
	}
	file, header, err := r.FormFile("archivo")
	if err != nil {
		fail(w, r, apierror.ValidationError("Selecciona un archivo CSV."), "/cargar-datos")
		return
	}
	defer file.Close()

	result, err := h.catalog.Import(r.Context(), file)
	if err != nil {
		fail(w, r, err, "/cargar-datos")
		return
	}

	page := newPage(w, r, "Cargar datos", result)
	page.Flash = &web.Flash{
		Kind:    web.FlashSuccess,
		Message: "Importados " + strconv.Itoa(result.Imported) + " móviles desde " + header.Filename + ".",
	}
	h.render.Render(w, http.StatusOK, "cargar_datos", page)
}

// Items handles GET /gestion/elementos
func (h *AdminHandler) Items(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.List(r.Context(), r.URL.Query().Get("q"), model.SortByName, queryPage(r))
	if err != nil {
		fail(w, r, err, "/panel-admin")
		return
	}
	h.render.Render(w, http.StatusOK, "elementos", newPage(w, r, "Móviles", page))
}

type itemFormData struct {
	Item   model.Item
	Action string
	Errors []apierror.FieldError
}

// parseItemForm reads an item from the edit form. Unparseable numbers are
// reported as field errors.
func parseItemForm(r *http.Request) (model.Item, []apierror.FieldError) {
	var errs []apierror.FieldError
	item := model.Item{
		Name:      r.PostFormValue("name"),
		ImageURL:  r.PostFormValue("imgURL"),
		Display:   strings.TrimSpace(r.PostFormValue("display")),
		Processor: strings.TrimSpace(r.PostFormValue("processor")),
	}

	if v := strings.TrimSpace(r.PostFormValue("ratings")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, apierror.FieldError{Field: "ratings", Message: "must be a number"})
		}
		item.Ratings = f
	}
	ints := []struct {
		field string
		dst   *int
	}{
		{"price", &item.Price},
		{"camera", &item.Camera},
		{"battery", &item.Battery},
		{"storage", &item.Storage},
		{"ram", &item.RAM},
		{"android_version", &item.AndroidVersion},
	}
	for _, f := range ints {
		v := strings.TrimSpace(r.PostFormValue(f.field))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, apierror.FieldError{Field: f.field, Message: "must be an integer"})
		}
		*f.dst = n
	}
	return item, errs
}

func (h *AdminHandler) renderItemForm(w http.ResponseWriter, r *http.Request, status int, title string, data itemFormData) {
	h.render.Render(w, status, "elemento_form", newPage(w, r, title, data))
}

// NewItem handles GET /gestion/elementos/crear
func (h *AdminHandler) NewItem(w http.ResponseWriter, r *http.Request) {
	item := model.Item{}
	item.ApplyDefaults()
	h.renderItemForm(w, r, http.StatusOK, "Nuevo móvil", itemFormData{Item: item, Action: "/gestion/elementos/crear"})
}

// CreateItem handles POST /gestion/elementos/crear
func (h *AdminHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	data := itemFormData{Action: "/gestion/elementos/crear"}
	data.Item, data.Errors = parseItemForm(r)
	if len(data.Errors) == 0 {
		err := h.catalog.Create(r.Context(), &data.Item)
		if err == nil {
			web.Redirect(w, r, "/gestion/elementos", web.FlashSuccess, "Móvil creado.")
			return
		}
		apiErr, ok := apierror.From(err)
		if !ok || apiErr.Code != apierror.CodeValidation {
			fail(w, r, err, "/gestion/elementos")
			return
		}
		data.Errors = apiErr.Details
	}
	h.renderItemForm(w, r, http.StatusBadRequest, "Nuevo móvil", data)
}

// EditItem handles GET /gestion/elementos/editar/{id}
func (h *AdminHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/gestion/elementos")
		return
	}
	item, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err, "/gestion/elementos")
		return
	}
	h.renderItemForm(w, r, http.StatusOK, "Editar "+item.Name, itemFormData{
		Item:   *item,
		Action: "/gestion/elementos/editar/" + strconv.FormatInt(id, 10),
	})
}

// UpdateItem handles POST /gestion/elementos/editar/{id}
func (h *AdminHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/gestion/elementos")
		return
	}
	data := itemFormData{Action: "/gestion/elementos/editar/" + strconv.FormatInt(id, 10)}
	data.Item, data.Errors = parseItemForm(r)
	data.Item.ID = id
	if len(data.Errors) == 0 {
		err := h.catalog.Update(r.Context(), &data.Item)
		if err == nil {
			web.Redirect(w, r, "/gestion/elementos", web.FlashSuccess, "Móvil actualizado.")
			return
		}
		apiErr, ok := apierror.From(err)
		if !ok || apiErr.Code != apierror.CodeValidation {
			fail(w, r, err, "/gestion/elementos")
			return
		}
		data.Errors = apiErr.Details
	}
	h.renderItemForm(w, r, http.StatusBadRequest, "Editar móvil", data)
}

// DeleteItem handles POST /gestion/elementos/borrar/{id}
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/gestion/elementos")
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		fail(w, r, err, "/gestion/elementos")
		return
	}
	web.Redirect(w, r, "/gestion/elementos", web.FlashSuccess, "Móvil borrado.")
}

// Categories handles GET /gestion/categorias
func (h *AdminHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.List(r.Context())
	if err != nil {
		fail(w, r, err, "/panel-admin")
		return
	}
	h.render.Render(w, http.StatusOK, "categorias", newPage(w, r, "Categorías", cats))
}

type categoryFormData struct {
	Category model.Category
	Action   string
	Items    []model.Item
	Selected map[int64]bool
	Errors   []apierror.FieldError
}

func parseCategoryForm(r *http.Request) (model.Category, []apierror.FieldError) {
	var errs []apierror.FieldError
	if err := r.ParseForm(); err != nil {
		errs = append(errs, apierror.FieldError{Field: "form", Message: err.Error()})
	}
	c := model.Category{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		ItemIDs:     []int64{},
	}
	code, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("code")))
	if err != nil {
		errs = append(errs, apierror.FieldError{Field: "code", Message: "must be an integer"})
	}
	c.Code = code
	for _, v := range r.PostForm["moviles"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, apierror.FieldError{Field: "moviles", Message: "invalid item id " + v})
			continue
		}
		c.ItemIDs = append(c.ItemIDs, id)
	}
	return c, errs
}

func (h *AdminHandler) renderCategoryForm(w http.ResponseWriter, r *http.Request, status int, title string, data categoryFormData) {
	items, err := h.catalog.All(r.Context())
	if err != nil {
		fail(w, r, err, "/gestion/categorias")
		return
	}
	data.Items = items
	data.Selected = make(map[int64]bool, len(data.Category.ItemIDs))
	for _, id := range data.Category.ItemIDs {
		data.Selected[id] = true
	}
	h.render.Render(w, status, "categoria_form", newPage(w, r, title, data))
}

// NewCategory handles GET /gestion/categorias/crear
func (h *AdminHandler) NewCategory(w http.ResponseWriter, r *http.Request) {
	h.renderCategoryForm(w, r, http.StatusOK, "Nueva categoría", categoryFormData{Action: "/gestion/categorias/crear"})
}

// CreateCategory handles POST /gestion/categorias/crear
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	data := categoryFormData{Action: "/gestion/categorias/crear"}
	data.Category, data.Errors = parseCategoryForm(r)
	if len(data.Errors) == 0 {
		err := h.categories.Create(r.Context(), &data.Category)
		if err == nil {
			web.Redirect(w, r, "/gestion/categorias", web.FlashSuccess, "Categoría creada.")
			return
		}
		if data.Errors = formErrors(err); data.Errors == nil {
			fail(w, r, err, "/gestion/categorias")
			return
		}
	}
	h.renderCategoryForm(w, r, http.StatusBadRequest, "Nueva categoría", data)
}

// EditCategory handles GET /gestion/categorias/editar/{id}
func (h *AdminHandler) EditCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/gestion/categorias")
		return
	}
	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err, "/gestion/categorias")
		return
	}
	h.renderCategoryForm(w, r, http.StatusOK, "Editar "+c.Name, categoryFormData{
		Category: *c,
		Action:   "/gestion/categorias/editar/" + strconv.FormatInt(id, 10),
	})
}

// UpdateCategory handles POST /gestion/categorias/editar/{id}
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/gestion/categorias")
		return
	}
	data := categoryFormData{Action: "/gestion/categorias/editar/" + strconv.FormatInt(id, 10)}
	data.Category, data.Errors = parseCategoryForm(r)
	data.Category.ID = id
	if len(data.Errors) == 0 {
		err := h.categories.Update(r.Context(), &data.Category)
		if err == nil {
			web.Redirect(w, r, "/gestion/categorias", web.FlashSuccess, "Categoría actualizada.")
			return
		}
		if data.Errors = formErrors(err); data.Errors == nil {
			fail(w, r, err, "/gestion/categorias")
			return
		}
	}
	h.renderCategoryForm(w, r, http.StatusBadRequest, "Editar categoría", data)
}

// formErrors turns validation and conflict errors into form messages. It
// returns nil for anything else.
func formErrors(err error) []apierror.FieldError {
	apiErr, ok := apierror.From(err)
	if !ok {
		return nil
	}
	switch apiErr.Code {
	case apierror.CodeValidation:
		return apiErr.Details
	case apierror.CodeConflict:
		return []apierror.FieldError{{Field: "category", Message: apiErr.Message}}
	}
	return nil
}

// DeleteCategory handles POST /gestion/categorias/borrar/{id}
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		fail(w, r, err, "/gestion/categorias")
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		fail(w, r, err, "/gestion/categorias")
		return
	}
	web.Redirect(w, r, "/gestion/categorias", web.FlashSuccess, "Categoría borrada.")
}

// Statistics handles GET /panel-admin/estadisticas
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Snapshot(r.Context())
	if err != nil {
		fail(w, r, err, "/panel-admin")
		return
	}
	h.render.Render(w, http.StatusOK, "estadisticas", newPage(w, r, "Estadísticas", st))
}

// GetStatistics handles GET /api/v1/admin/statistics
func (h *AdminHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Snapshot(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, st)
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["backends"] = h.backends

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if storeStats, err := h.store.GetStats(ctx); err == nil {
		storeStats["status"] = "connected"
		stats["catalog_store"] = storeStats
	} else {
		stats["catalog_store"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	if n, err := h.users.CountUsers(ctx); err == nil {
		stats["identity_store"] = map[string]interface{}{"status": "connected", "total_users": n}
	} else {
		stats["identity_store"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	cacheStats := map[string]interface{}{"status": "connected"}
	if err := h.cache.Ping(ctx); err != nil {
		cacheStats = map[string]interface{}{"status": "error", "error": err.Error()}
	}
	if mc, ok := h.cache.(*cache.MemoryCache); ok {
		cacheStats["entries"] = mc.Len()
	}
	stats["cache"] = cacheStats

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
