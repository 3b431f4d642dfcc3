package handlers

import (
	"net/http"
	"sort"
)

// Healthcheck reports liveness and the names of the scheduled tasks.
func (h *Handler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	tasks := []string{}
	for name := range h.Controller.GetSchedulers() {
		tasks = append(tasks, name)
	}
	sort.Strings(tasks)
	h.respond(w, r, map[string]interface{}{"status": "alive", "scheduled": tasks}, http.StatusOK)
}
