package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/apikey"
	"github.com/kobopay/kobopay/internal/middleware"
)

// RegisterKeyRoutes wires API key management endpoints. Only primary-identity
// callers may manage keys; a key cannot mint, list, or revoke keys.
func RegisterKeyRoutes(r fiber.Router, h *apikey.Handler) {
	keys := r.Group("/keys", middleware.RequireJWT())
	keys.Post("", h.Create)
	keys.Get("", h.List)
	keys.Delete("/:keyId", h.Revoke)
	keys.Post("/rollover", h.Rollover)
}
