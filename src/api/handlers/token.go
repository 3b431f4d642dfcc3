package handlers

import (
	"context"
	"net/http"
	"time"

	"depotbook/src/schemas"
)

func (h *Handler) PostToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var tokenRequestCreds = new(schemas.TokenRequest)
	if err := h.decode(r, tokenRequestCreds); err != nil {
		h.HandleErrors(w, r, err)
		return
	}

	tokenResponse, err := h.Controller.PostToken(ctx, tokenRequestCreds.Username, tokenRequestCreds.Password)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}

	h.respond(w, r, tokenResponse, http.StatusOK)
}
