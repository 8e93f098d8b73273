package payments

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/wallet"
)

// Handler exposes the wallet-to-wallet transfer endpoint.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a payments HTTP handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type transferRequest struct {
	ToWalletNumber string `json:"to_wallet_number" validate:"required,len=13,numeric"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	ClientTxID     string `json:"client_tx_id" validate:"omitempty,max=64"`
}

// Transfer moves funds from the caller's wallet to the destination wallet.
// Replaying the same client_tx_id returns the original posting with 200
// instead of 201.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	result, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromUserID:     userID,
		ToWalletNumber: req.ToWalletNumber,
		Amount:         req.Amount,
		ClientTxID:     req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return c.Status(http.StatusOK).JSON(toTransferResponse(result, true))
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, ErrInvalidDestination):
			return fiber.NewError(http.StatusBadRequest, "invalid destination wallet")
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toTransferResponse(result, false))
}

func toTransferResponse(result ledger.TransferResult, replayed bool) fiber.Map {
	return fiber.Map{
		"transfer_id":      result.TransferID,
		"debit_reference":  result.DebitReference,
		"credit_reference": result.CreditReference,
		"balance":          result.FromBalance,
		"replayed":         replayed,
	}
}
