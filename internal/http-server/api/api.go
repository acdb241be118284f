package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"entrypay/internal/config"
	"entrypay/internal/http-server/handlers/checkout"
	"entrypay/internal/http-server/handlers/entry"
	"entrypay/internal/http-server/handlers/errors"
	"entrypay/internal/http-server/handlers/stripehandler"
	"entrypay/internal/http-server/middleware/authenticate"
	"entrypay/internal/http-server/middleware/timeout"
	"entrypay/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	entry.Core
	checkout.Core
	stripehandler.Core
}

// NewRouter builds the route tree; exposed separately so it can be served by httptest.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(time.Duration(conf.Listen.Timeout)))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/entries", func(en chi.Router) {
			en.Post("/", entry.Register(log, handler))
			en.Get("/{id}", entry.Get(log, handler))
			en.Post("/{id}/withdraw", entry.Withdraw(log, handler))
			en.Get("/{id}/payment", entry.Payment(log, handler))
		})
		rootApi.Post("/checkout", checkout.Create(log, handler))
	})
	router.Route("/webhook", func(rootWH chi.Router) {
		rootWH.Post("/stripe", stripehandler.Event(log, handler))
	})
	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      NewRouter(conf, log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: time.Duration(conf.Listen.Timeout+5) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
