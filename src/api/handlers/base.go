package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"depotbook/src/api/controllers"
	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/go-chi/jwtauth"
	"github.com/sirupsen/logrus"
)

type principalKey struct{}

type Handler struct {
	Controller controllers.IController
}

func NewHandler(controller controllers.IController) *Handler {
	return &Handler{Controller: controller}
}

func Healthcheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		fmt.Fprintf(w, "Im alive!")
	} else {
		fmt.Fprintf(w, "Method not available: %s", r.Method)
	}
}

func (h *Handler) respond(w http.ResponseWriter, _ *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
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
		utils.LoggerFromContext(r.Context()).WithError(err).Error("request failed")
	}
	utils.WriteError(w, err)
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return utils.ValidationError("malformed request body: %v", err)
	}
	return nil
}

// Authenticate resolves the principal of a token checked by jwtauth.Verifier
// and jwtauth.Authenticator, and stores it in the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			h.respond(w, r, map[string]string{"error": "Unauthorized"}, http.StatusUnauthorized)
			return
		}
		principal, err := h.Controller.PrincipalFromClaims(r.Context(), claims)
		if err != nil {
			if utils.KindOf(err) == utils.KindAuthorization {
				h.respond(w, r, map[string]string{"error": "Unauthorized"}, http.StatusUnauthorized)
				return
			}
			h.HandleErrors(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithLogger puts logger into every request context.
func WithLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(utils.WithLogger(r.Context(), logger)))
		})
	}
}

// principalFrom returns the anonymous principal outside Authenticate.
func principalFrom(r *http.Request) services.Principal {
	principal, _ := r.Context().Value(principalKey{}).(services.Principal)
	return principal
}
