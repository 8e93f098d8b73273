package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/apikey"
	"github.com/kobopay/kobopay/internal/funding"
	"github.com/kobopay/kobopay/internal/middleware"
)

// RegisterFundingRoutes wires deposit endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, rateLimiter fiber.Handler) {
	r.Post("/deposits", middleware.RequireCapability(apikey.CapabilityDeposit), rateLimiter, h.Initiate)
	read := middleware.RequireCapability(apikey.CapabilityRead)
	r.Get("/deposits/:reference", read, h.Status)
	r.Get("/deposits/:reference/verify", read, h.Verify)
}
