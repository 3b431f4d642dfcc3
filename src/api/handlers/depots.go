package handlers

import (
	"context"
	"net/http"
	"time"

	"depotbook/src/schemas"
	"depotbook/src/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) PostUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.UserRequest
	if err := h.decode(r, &req); err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	user, err := h.Controller.CreateUser(ctx, principalFrom(r), req)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, user, http.StatusCreated)
}

func (h *Handler) PostDepot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.DepotRequest
	if err := h.decode(r, &req); err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	depot, err := h.Controller.CreateDepot(ctx, principalFrom(r), req)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, depot, http.StatusCreated)
}

func (h *Handler) PostPermission(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.PermissionRequest
	if err := h.decode(r, &req); err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	perm, err := h.Controller.GrantPermission(ctx, principalFrom(r), chi.URLParam(r, "broker"), chi.URLParam(r, "externalID"), req)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, perm, http.StatusOK)
}

func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.PermissionRequest
	if err := h.decode(r, &req); err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	err := h.Controller.RevokePermission(ctx, principalFrom(r), chi.URLParam(r, "broker"), chi.URLParam(r, "externalID"), req)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PostInstrument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.InstrumentRequest
	if err := h.decode(r, &req); err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	inst, err := h.Controller.CreateInstrument(ctx, principalFrom(r), req)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, inst, http.StatusOK)
}

func (h *Handler) PutSymbol(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var input services.SymbolInput
	if err := h.decode(r, &input); err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	symbol, err := h.Controller.PutSymbol(ctx, principalFrom(r), input)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	h.respond(w, r, symbol, http.StatusOK)
}
