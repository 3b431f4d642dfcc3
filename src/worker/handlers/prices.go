package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/go-chi/chi/v5"
)

type adjustedSeriesResponse struct {
	Vendor               string                   `json:"vendor"`
	Symbol               string                   `json:"symbol"`
	CumulativeAdjustment float64                  `json:"cumulative_adjustment"`
	Prices               []services.AdjustedPrice `json:"prices"`
}

func (h *Handler) withLogger(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := utils.WithLogger(r.Context(), h.Controller.Logger)
	return context.WithTimeout(ctx, 60*time.Second)
}

// PostPrices stages a price batch sent as a JSON array or as text/csv.
func (h *Handler) PostPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withLogger(r)
	defer cancel()

	var rows []services.PriceRow
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		rows, err = services.ParsePriceCSV(r.Body)
	} else if decodeErr := json.NewDecoder(r.Body).Decode(&rows); decodeErr != nil {
		err = utils.ValidationError("malformed price batch: %v", decodeErr)
	}
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	result, err := h.Controller.LoadPrices(ctx, rows)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, result, http.StatusAccepted)
}

func (h *Handler) PostMergePrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withLogger(r)
	defer cancel()

	result, err := h.Controller.MergePrices(ctx)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, result, http.StatusOK)
}

func (h *Handler) PostCorporateActions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withLogger(r)
	defer cancel()

	var rows []services.CorporateActionRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		h.HandleErrors(w, r, utils.ValidationError("malformed corporate actions: %v", err))
		return
	}
	result, err := h.Controller.LoadCorporateActions(ctx, rows)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, result, http.StatusOK)
}

// GetAdjustedSeries serves /api/prices/{vendor}/{symbol}/adjusted?from=..&to=..
func (h *Handler) GetAdjustedSeries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withLogger(r)
	defer cancel()

	from, err := utils.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		h.HandleErrors(w, r, utils.ValidationError("from: %v", err))
		return
	}
	to := utils.TruncateDay(time.Now())
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err = utils.ParseDate(toStr)
		if err != nil {
			h.HandleErrors(w, r, utils.ValidationError("to: %v", err))
			return
		}
	}

	vendor, symbol := chi.URLParam(r, "vendor"), chi.URLParam(r, "symbol")
	series, factor, err := h.Controller.GetAdjustedSeries(ctx, vendor, symbol, from, to)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, adjustedSeriesResponse{
		Vendor:               vendor,
		Symbol:               symbol,
		CumulativeAdjustment: factor,
		Prices:               series,
	}, http.StatusOK)
}
