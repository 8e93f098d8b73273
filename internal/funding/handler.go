package funding

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/wallet"
)

const signatureHeader = "x-paystack-signature"

// Handler exposes deposit endpoints plus the provider webhook.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a funding HTTP handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type initiateRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

// Initiate opens a deposit checkout session for the caller.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	email, _ := c.Locals("user_email").(string)
	deposit, err := h.service.Initiate(c.UserContext(), userID, email, req.Amount, req.Description)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"reference":         deposit.Reference,
		"amount":            deposit.Amount,
		"status":            deposit.Status,
		"authorization_url": deposit.AuthorizationURL,
		"access_code":       deposit.AccessCode,
	})
}

// Status reports the local ledger view of a deposit.
func (h *Handler) Status(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	tx, err := h.service.Status(c.UserContext(), userID, c.Params("reference"))
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownReference) || errors.Is(err, wallet.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "deposit not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toDepositStatus(tx))
}

// Verify pairs the local record with the provider's own view of the charge.
func (h *Handler) Verify(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	tx, charge, err := h.service.VerifyWithProvider(c.UserContext(), userID, c.Params("reference"))
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownReference) || errors.Is(err, wallet.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "deposit not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"deposit": toDepositStatus(tx),
		"provider": fiber.Map{
			"status":   charge.Status,
			"amount":   charge.Amount,
			"currency": charge.Currency,
			"channel":  charge.Channel,
			"paid_at":  charge.PaidAt,
		},
	})
}

// Webhook ingests provider event deliveries. Every validated-or-discarded
// delivery is acknowledged with 200 so the provider stops retrying; only an
// infrastructure failure returns 5xx and invites a redelivery.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get(signatureHeader)
	if err := h.service.HandleWebhook(c.UserContext(), payload, signature); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "event processing failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": true})
}

func toDepositStatus(tx ledger.Transaction) fiber.Map {
	resp := fiber.Map{
		"reference":  tx.Reference,
		"amount":     tx.Amount,
		"status":     tx.Status,
		"created_at": tx.CreatedAt.Format(time.RFC3339Nano),
	}
	if !tx.CompletedAt.IsZero() {
		resp["completed_at"] = tx.CompletedAt.Format(time.RFC3339Nano)
	}
	return resp
}
