package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/salon-client/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware локального API.
// Если metrics не nil, он отдаётся по /metrics.
func (h *Handler) SetupRouter(metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.guard.Middleware)

		r.Route("/session", func(r chi.Router) {
			r.Post("/bootstrap", h.Bootstrap)
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/logout", h.Logout)
		})

		r.Get("/state", h.GetState)
		r.Post("/refresh", h.Refresh)

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.CreateAppointment)
			r.Put("/{id}", h.UpdateAppointment)
			r.Post("/{id}/cancel", h.CancelAppointment)
			r.Post("/{id}/reschedule", h.RescheduleAppointment)
		})

		r.Get("/slots", h.AvailableSlots)
		r.Get("/services", h.Services)

		r.Post("/vip/subscribe", h.SubscribeVip)
		r.Post("/vip/cancel", h.CancelVip)

		r.Put("/profile", h.UpdateProfile)
		r.Post("/profile/avatar", h.UploadAvatar)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
