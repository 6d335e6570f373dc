package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Register mounts the API routes on r
func Register(r chi.Router, health *HealthHandler, fees *FeeHandler, zaps *ZapHandler) {
	r.Get("/health", health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/fee", fees.GetFee)
		r.Get("/fee/quote", fees.QuoteFee)
		r.Put("/fee", fees.UpdateFee)

		r.Post("/zap/preview", zaps.Preview)
		r.Post("/zap", zaps.Execute)
		r.Get("/balances/{token}/{account}", zaps.GetBalance)
	})
}
