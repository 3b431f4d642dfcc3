package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
)

const maxTicketBytes = 1 << 20

func (h *Handler) PostTicket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTicketBytes))
	if err != nil {
		h.HandleErrors(w, r, utils.ValidationError("unreadable ticket: %v", err))
		return
	}
	result, err := h.Controller.BookTicket(ctx, principalFrom(r), body)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, result, http.StatusCreated)
}

// GetTicketPreview answers what a sell of qty would consume:
// /api/tickets/preview?broker=..&external_id=..&isin=..&ccy=..&qty=..
func (h *Handler) GetTicketPreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	query := r.URL.Query()
	qty, err := decimal.NewFromString(query.Get("qty"))
	if err != nil {
		h.HandleErrors(w, r, utils.ValidationError("qty must be a number"))
		return
	}
	req := services.SellPreviewRequest{
		Broker:     query.Get("broker"),
		ExternalID: query.Get("external_id"),
		ISIN:       query.Get("isin"),
		Currency:   query.Get("ccy"),
		Qty:        qty,
	}
	result, err := h.Controller.PreviewSell(ctx, principalFrom(r), req)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, result, http.StatusOK)
}

func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	asOf := utils.TruncateDay(time.Now())
	if asOfStr := r.URL.Query().Get("asOf"); asOfStr != "" {
		var err error
		asOf, err = utils.ParseDate(asOfStr)
		if err != nil {
			h.HandleErrors(w, r, utils.ValidationError("%v", err))
			return
		}
	}

	positions, err := h.Controller.GetPositions(ctx, principalFrom(r), asOf)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, positions, http.StatusOK)
}

func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	trades, err := h.Controller.GetTrades(ctx, principalFrom(r))
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, trades, http.StatusOK)
}

func (h *Handler) GetCashflows(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	cashflows, err := h.Controller.GetCashflows(ctx, principalFrom(r))
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, cashflows, http.StatusOK)
}
