package app

import (
	"net/http"

	"github.com/efleague/admin/internal/handler"
	"github.com/efleague/admin/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/api/health", handler.Health(app.store))

	authHandler := handler.NewAuthHandler(app.logger, app.accounts)
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/session", authHandler.Session)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.Post("/password/forgot", authHandler.ForgotPassword)
		r.Get("/password/reset", authHandler.ValidateResetToken)
		r.Post("/password/reset", authHandler.ResetPassword)

		// Protected admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(app.accounts))
			r.Get("/dashboard", authHandler.Dashboard)
		})
	})
	return r
}
