package apikey

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes API key management endpoints. These are reachable with a
// primary identity only; API keys cannot mint other API keys.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds an API key HTTP handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type createRequest struct {
	Name        string   `json:"name" validate:"required,min=3,max=100"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,oneof=deposit transfer read"`
	Expiry      string   `json:"expiry" validate:"required,oneof=1H 1D 1M 1Y"`
}

type rolloverRequest struct {
	ExpiredKeyID string `json:"expired_key_id" validate:"required,uuid4"`
	Expiry       string `json:"expiry" validate:"required,oneof=1H 1D 1M 1Y"`
}

type keyInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Prefix      string   `json:"key_prefix"`
	Permissions []string `json:"permissions"`
	ExpiresAt   string   `json:"expires_at"`
	Active      bool     `json:"is_active"`
	Revoked     bool     `json:"is_revoked"`
	CreatedAt   string   `json:"created_at"`
	LastUsedAt  string   `json:"last_used_at,omitempty"`
}

// Create issues a new API key. The plaintext token appears in this response
// only.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caps, err := ParseCapabilities(req.Permissions)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	key, token, err := h.service.Create(c.UserContext(), userID, req.Name, caps, req.Expiry)
	if err != nil {
		if errors.Is(err, ErrKeyLimitReached) || errors.Is(err, ErrInvalidExpiry) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"api_key":    token,
		"expires_at": key.ExpiresAt.Format(time.RFC3339),
	})
}

// List returns the caller's keys with expiry state reconciled to the clock.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	keys, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]keyInfo, 0, len(keys))
	for _, key := range keys {
		items = append(items, toKeyInfo(key))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"keys": items})
}

// Revoke permanently disables the identified key.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if err := h.service.Revoke(c.UserContext(), c.Params("keyId"), userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "api key not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"revoked": true})
}

// Rollover reissues an expired key with its original capabilities.
func (h *Handler) Rollover(c *fiber.Ctx) error {
	var req rolloverRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	key, token, err := h.service.Rollover(c.UserContext(), req.ExpiredKeyID, userID, req.Expiry)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "api key not found")
		case errors.Is(err, ErrKeyNotExpired), errors.Is(err, ErrKeyLimitReached), errors.Is(err, ErrInvalidExpiry):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"api_key":    token,
		"expires_at": key.ExpiresAt.Format(time.RFC3339),
	})
}

func toKeyInfo(key Key) keyInfo {
	perms := make([]string, 0, len(key.Capabilities))
	for _, c := range key.Capabilities {
		perms = append(perms, string(c))
	}
	info := keyInfo{
		ID:          key.ID,
		Name:        key.Name,
		Prefix:      key.Prefix,
		Permissions: perms,
		ExpiresAt:   key.ExpiresAt.Format(time.RFC3339),
		Active:      key.Active,
		Revoked:     key.Revoked,
		CreatedAt:   key.CreatedAt.Format(time.RFC3339),
	}
	if !key.LastUsedAt.IsZero() {
		info.LastUsedAt = key.LastUsedAt.Format(time.RFC3339)
	}
	return info
}
