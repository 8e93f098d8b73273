package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/apikey"
	"github.com/kobopay/kobopay/internal/middleware"
	"github.com/kobopay/kobopay/internal/payments"
)

// RegisterPaymentRoutes wires wallet-to-wallet transfer endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transfers", middleware.RequireCapability(apikey.CapabilityTransfer), h.Transfer)
}
