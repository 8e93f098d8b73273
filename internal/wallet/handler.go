package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/ledger"
)

// Handler exposes wallet HTTP endpoints for the authenticated caller.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transactionResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Reference    string `json:"reference"`
	TransferID   string `json:"transfer_id,omitempty"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
	Counterparty string `json:"counterparty_wallet_id,omitempty"`
}

// Me returns the caller's wallet and current balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	wallet, err := h.service.GetByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	balance, err := h.service.Balance(c.UserContext(), wallet.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":            wallet.ID,
		"wallet_number": wallet.WalletNumber,
		"currency":      wallet.Currency,
		"balance":       balance.Amount,
		"as_of":         balance.AsOf,
	})
}

// Transactions returns the caller's transaction history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	wallet, err := h.service.GetByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	history, err := h.service.History(c.UserContext(), wallet.ID, limit, offset)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]transactionResponse, 0, len(history))
	for _, tx := range history {
		items = append(items, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": items})
}

// Transaction returns a single transaction by reference.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	reference := c.Params("reference")

	wallet, err := h.service.GetByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	tx, err := h.service.Transaction(c.UserContext(), wallet.ID, reference)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownReference) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:           tx.ID,
		Kind:         tx.Kind,
		Status:       tx.Status,
		Amount:       tx.Amount,
		Reference:    tx.Reference,
		TransferID:   tx.TransferID,
		Description:  tx.Description,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339Nano),
		Counterparty: tx.CounterpartyWalletID,
	}
	if !tx.CompletedAt.IsZero() {
		resp.CompletedAt = tx.CompletedAt.Format(time.RFC3339Nano)
	}
	return resp
}
