package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/galerija/internal/blob"
	"github.com/erazemk/galerija/internal/catalog"
	"github.com/erazemk/galerija/internal/contact"
	"github.com/erazemk/galerija/internal/metrics"
	"github.com/erazemk/galerija/internal/model"
)

// Config holds everything the API needs to serve requests.
type Config struct {
	DB        *sql.DB
	JWTSecret string
	Paintings *catalog.Service
	Blobs     blob.Store
	// Local is set when blobs live on disk and are served under /images/.
	Local *blob.DirStore
	// LegacyImageBase is where unknown /images/ paths are redirected.
	LegacyImageBase string
	Contact         contact.Sender
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret}
	usersHandler := &UsersHandler{DB: cfg.DB}
	paintingsHandler := &PaintingsHandler{Service: cfg.Paintings}
	uploadHandler := &UploadHandler{Blobs: cfg.Blobs}
	contactHandler := &ContactHandler{Sender: cfg.Contact}
	imagesHandler := &ImagesHandler{Paintings: cfg.Paintings, Local: cfg.Local, LegacyBase: cfg.LegacyImageBase}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireEditor := RequireRole(model.RoleEditor)

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/paintings", paintingsHandler.List)
	mux.HandleFunc("GET /api/paintings/{id}", paintingsHandler.Get)
	mux.HandleFunc("POST /api/contact", contactHandler.Send)
	mux.HandleFunc("GET /images/{name...}", imagesHandler.Serve)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", health(cfg.DB))

	// Authenticated.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("PUT /api/users/{id}/role", authMW(requireAdmin(http.HandlerFunc(usersHandler.UpdateRole))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Painting mutations. The catalog service makes the role decision.
	mux.Handle("POST /api/paintings", authMW(http.HandlerFunc(paintingsHandler.Create)))
	mux.Handle("PATCH /api/paintings/order", authMW(http.HandlerFunc(paintingsHandler.Reorder)))
	mux.Handle("POST /api/paintings/normalize", authMW(http.HandlerFunc(paintingsHandler.Normalize)))
	mux.Handle("PATCH /api/paintings/{id}", authMW(http.HandlerFunc(paintingsHandler.Update)))
	mux.Handle("DELETE /api/paintings/{id}", authMW(http.HandlerFunc(paintingsHandler.Delete)))

	mux.Handle("POST /api/upload", authMW(requireEditor(http.HandlerFunc(uploadHandler.Upload))))

	return mux
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
