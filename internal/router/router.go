package router

import (
	"net/http"

	"safarank-api/internal/handler"
	"safarank-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	AuthHandler    *handler.AuthHandler
	CatalogHandler *handler.CatalogHandler
	RankingHandler *handler.RankingHandler
	AdminHandler   *handler.AdminHandler

	// SessionLoader resolves the session cookie on every request.
	SessionLoader  func(http.Handler) http.Handler
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.SessionLoader != nil {
		r.Use(cfg.SessionLoader)
	}

	// PUBLIC routes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}

	if cfg.AuthHandler != nil {
		r.Get("/", cfg.AuthHandler.LoginPage)
		r.Post("/", cfg.AuthHandler.Login)
		r.Get("/registro", cfg.AuthHandler.RegisterPage)
		r.Post("/registro", cfg.AuthHandler.Register)
		r.Get("/logout", cfg.AuthHandler.Logout)
		r.Post("/logout", cfg.AuthHandler.Logout)
	}

	// The reorder endpoint answers JSON and checks the session itself.
	if cfg.RankingHandler != nil {
		r.Post("/ranking/reorder", cfg.RankingHandler.Reorder)
		r.Post("/ranking/guardar-orden", cfg.RankingHandler.Reorder)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		if cfg.AuthHandler != nil {
			r.Get("/dashboard", cfg.AuthHandler.Dashboard)
		}

		if cfg.CatalogHandler != nil {
			r.Get("/catalogo", cfg.CatalogHandler.Catalog)
			r.Get("/movil/{id}", cfg.CatalogHandler.Item)
			r.Post("/movil/{id}/valorar", cfg.CatalogHandler.Rate)
			r.Get("/categoria/{id}", cfg.CatalogHandler.Category)
		}

		if cfg.RankingHandler != nil {
			r.Get("/mis-rankings", cfg.RankingHandler.List)
			r.Post("/mis-rankings", cfg.RankingHandler.Create)
			r.Get("/ranking/{id}", cfg.RankingHandler.Show)
			r.Post("/ranking/{id}/add", cfg.RankingHandler.Add)
			r.Post("/ranking/{id}/remove", cfg.RankingHandler.Remove)
			r.Post("/ranking/borrar/{id}", cfg.RankingHandler.Delete)
		}
	})

	// ADMIN routes
	if cfg.AdminHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/panel-admin", cfg.AdminHandler.Panel)
			r.Get("/panel-admin/estadisticas", cfg.AdminHandler.Statistics)
			r.Get("/panel-admin/valoraciones", cfg.AdminHandler.Reviews)

			r.Get("/cargar-datos", cfg.AdminHandler.UploadPage)
			r.Post("/cargar-datos", cfg.AdminHandler.Upload)

			r.Route("/gestion/elementos", func(r chi.Router) {
				r.Get("/", cfg.AdminHandler.Items)
				r.Get("/crear", cfg.AdminHandler.NewItem)
				r.Post("/crear", cfg.AdminHandler.CreateItem)
				r.Get("/editar/{id}", cfg.AdminHandler.EditItem)
				r.Post("/editar/{id}", cfg.AdminHandler.UpdateItem)
				r.Post("/borrar/{id}", cfg.AdminHandler.DeleteItem)
			})

			r.Route("/gestion/categorias", func(r chi.Router) {
				r.Get("/", cfg.AdminHandler.Categories)
				r.Get("/crear", cfg.AdminHandler.NewCategory)
				r.Post("/crear", cfg.AdminHandler.CreateCategory)
				r.Get("/editar/{id}", cfg.AdminHandler.EditCategory)
				r.Post("/editar/{id}", cfg.AdminHandler.UpdateCategory)
				r.Post("/borrar/{id}", cfg.AdminHandler.DeleteCategory)
			})

			r.Route("/api/v1/admin", func(r chi.Router) {
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/statistics", cfg.AdminHandler.GetStatistics)
				r.Get("/reviews", cfg.AdminHandler.GetReviews)
			})
		})
	}

	return r
}
