package api

import (
	"net/http"
	"time"

	"depotbook/src/api/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/sirupsen/logrus"
)

type Server struct {
	Router    *chi.Mux
	Handler   *handlers.Handler
	TokenAuth *jwtauth.JWTAuth
	Logger    *logrus.Logger
}

func NewServer(handler *handlers.Handler, tokenAuth *jwtauth.JWTAuth, logger *logrus.Logger) *Server {
	server := &Server{
		Router:    chi.NewRouter(),
		Handler:   handler,
		TokenAuth: tokenAuth,
		Logger:    logger,
	}
	server.InitRoutes()
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(handlers.WithLogger(s.Logger))

	s.Router.Get("/alive", handlers.Healthcheck)
	s.Router.Post("/api/token", s.Handler.PostToken)

	s.Router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.TokenAuth))
		r.Use(jwtauth.Authenticator)
		r.Use(s.Handler.Authenticate)

		r.Post("/api/users", s.Handler.PostUser)

		r.Route("/api/depots", func(r chi.Router) {
			r.Post("/", s.Handler.PostDepot)
			r.Post("/{broker}/{externalID}/permissions", s.Handler.PostPermission)
			r.Delete("/{broker}/{externalID}/permissions", s.Handler.DeletePermission)
		})

		r.Post("/api/instruments", s.Handler.PostInstrument)
		r.Put("/api/symbols", s.Handler.PutSymbol)

		r.Route("/api/tickets", func(r chi.Router) {
			r.Post("/", s.Handler.PostTicket)
			r.Get("/preview", s.Handler.GetTicketPreview)
		})

		r.Get("/api/positions", s.Handler.GetPositions)
		r.Get("/api/trades", s.Handler.GetTrades)
		r.Get("/api/cashflows", s.Handler.GetCashflows)
	})
}

func NewHTTPServer(server *Server, port string) *http.Server {
	if port == "" {
		port = "8000"
	}
	httpServer := &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Handler:      server,
	}
	return httpServer
}
