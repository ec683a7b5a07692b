package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/common/models"
	"github.com/blockdoc/blockdoc/common/repository"
)

// AdminHandler exposes operator endpoints for registration recovery and
// blockchain diagnostics
type AdminHandler struct {
	container *container.Container
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(c *container.Container) *AdminHandler {
	return &AdminHandler{container: c}
}

// Register re-queues a document for blockchain registration. Confirmed
// documents are left alone.
// POST /api/v1/admin/documents/:id/register
func (h *AdminHandler) Register(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_id", "document id must be a UUID"))
	}

	ctx := c.Request().Context()
	doc, err := h.container.Documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("document_not_found", "no document with that id"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("register_failed", err.Error()))
	}

	if doc.ChainStatus == models.ChainStatusConfirmed {
		return c.JSON(http.StatusConflict, errorBody("already_confirmed", "document is already confirmed on chain"))
	}

	if err := h.container.Documents.ResetToPending(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusConflict, errorBody("already_confirmed", "document is already confirmed on chain"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("register_failed", err.Error()))
	}

	if err := h.container.Components.Queue.Enqueue(ctx, id.String()); err != nil {
		h.container.Components.Logger.Error("failed to enqueue registration", "document_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("enqueue_failed", "document reset but could not be queued, retry the request"))
	}

	h.container.Components.Logger.Info("document re-queued for registration", "document_id", id)
	return c.JSON(http.StatusAccepted, map[string]string{
		"document_id": id.String(),
		"status":      "queued",
	})
}

// Status reports blockchain configuration, node connectivity and the size of
// the registration backlog.
// GET /api/v1/admin/blockchain/status
func (h *AdminHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	cfg := h.container.Components.Config.Blockchain

	status := map[string]interface{}{
		"network":          cfg.NetworkName,
		"chain_id":         cfg.ChainID,
		"contract_address": h.container.Components.Codec.ContractAddress().Hex(),
		"account_address":  h.container.Components.Signer.Address().Hex(),
		"gas_limit":        cfg.GasLimit,
	}

	if gasPrice, err := h.container.Components.Chain.GasPrice(ctx); err != nil {
		status["node_reachable"] = false
		status["node_error"] = err.Error()
	} else {
		status["node_reachable"] = true
		status["gas_price_wei"] = gasPrice.String()
	}

	if pending, err := h.container.Documents.CountByStatus(ctx, models.ChainStatusPending); err == nil {
		status["pending_documents"] = pending
	}
	if failed, err := h.container.Documents.CountByStatus(ctx, models.ChainStatusFailed); err == nil {
		status["failed_documents"] = failed
	}
	if depth, err := h.container.Components.Queue.Depth(ctx); err == nil {
		status["queue_depth"] = depth
	}

	return c.JSON(http.StatusOK, status)
}

// Balance reports the registration account balance next to the estimated cost
// of a single registration, so an operator can see how many submissions are
// still funded.
// GET /api/v1/admin/blockchain/balance
func (h *AdminHandler) Balance(c echo.Context) error {
	ctx := c.Request().Context()

	balance, err := h.container.Components.Chain.Balance(ctx, h.container.Components.Signer.Address())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("node_unreachable", err.Error()))
	}

	resp := map[string]interface{}{
		"account_address": h.container.Components.Signer.Address().Hex(),
		"balance_wei":     balance.String(),
	}

	if cost, err := h.container.Registrar.EstimatedCost(ctx); err == nil && cost.Sign() > 0 {
		resp["estimated_registration_cost_wei"] = cost.String()
		resp["registrations_funded"] = balance.Div(balance, cost).Uint64()
	}

	return c.JSON(http.StatusOK, resp)
}

// Timestamp returns the on-chain registration timestamp recorded for a
// document by the contract.
// GET /api/v1/admin/documents/:id/timestamp
func (h *AdminHandler) Timestamp(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_id", "document id must be a UUID"))
	}

	ctx := c.Request().Context()
	doc, err := h.container.Documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("document_not_found", "no document with that id"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("timestamp_failed", err.Error()))
	}

	ts, err := h.container.Verifier.ChainTimestamp(ctx, doc.ContentHash)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("node_unreachable", err.Error()))
	}
	if ts == nil {
		return c.JSON(http.StatusNotFound, errorBody("not_registered", "the contract has no record of this document"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"document_id":      id.String(),
		"content_hash":     doc.ContentHash,
		"registered_at":    ts,
		"transaction_hash": doc.TransactionHash,
		"chain_status":     doc.ChainStatus,
	})
}
