package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/apikey"
	"github.com/kobopay/kobopay/internal/middleware"
	"github.com/kobopay/kobopay/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	read := middleware.RequireCapability(apikey.CapabilityRead)
	r.Get("/wallet", read, h.Me)
	r.Get("/wallet/transactions", read, h.Transactions)
	r.Get("/wallet/transactions/:reference", read, h.Transaction)
}
