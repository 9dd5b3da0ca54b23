package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", handler.ListProducts)
	r.Post("/order", handler.CreateOrder)
	r.Get("/order", handler.ListOrders)
	r.Get("/order/{id}", handler.GetOrder)
	r.Put("/order/{id}", handler.UpdateOrder)
	r.Get("/job/{id}", handler.JobStatus)
	r.Get("/health", handler.Health)
	return r
}
