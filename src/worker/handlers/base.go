package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"depotbook/src/utils"
	"depotbook/src/worker/controllers"
)

type Handler struct {
	Controller *controllers.Controller
}

func NewHandler(controller *controllers.Controller) *Handler {
	return &Handler{Controller: controller}
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		h.HandleErrors(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

func (h *Handler) HandleErrors(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		h.respond(w, r, map[string]string{"error": "Request timed out"}, http.StatusGatewayTimeout)
		return
	}
	if utils.KindOf(err) == "" {
		h.Controller.Logger.WithError(err).Error("request failed")
	}
	utils.WriteError(w, err)
}
