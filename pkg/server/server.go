package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/secboard/pkg/handlers/pages"
	secboardmiddleware "github.com/de-tools/secboard/pkg/server/middleware"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Session *pages.Session
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) (*WebAPI, error) {
	if config.Dependencies.Session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	h, err := handlers.NewHandler(config.Dependencies.Session)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(secboardmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	router.Get("/healthz", h.Health)
	router.Get("/dashboard", h.Dashboard)

	router.Route("/attack-surface", func(r chi.Router) {
		r.Get("/", h.AttackSurface)
		r.Post("/repos", h.AddRepository)
		r.Post("/repos/new", h.OpenRepositoryForm)
		r.Post("/repos/cancel", h.CancelRepositoryForm)
		r.Post("/repos/{id}/scan", h.ScanRepository)
		r.Post("/findings/{id}/status", h.AttackSurfaceFindingStatus)
		r.Post("/findings/{id}/dismiss", h.DismissAttackSurfaceFindingError)
	})

	router.Route("/cloud", func(r chi.Router) {
		r.Get("/", h.Cloud)
		r.Post("/accounts", h.AddAccount)
		r.Post("/accounts/new", h.OpenAccountForm)
		r.Post("/accounts/cancel", h.CancelAccountForm)
		r.Post("/accounts/{id}/sync", h.SyncAccount)
		r.Post("/findings/{id}/status", h.CloudFindingStatus)
		r.Post("/findings/{id}/dismiss", h.DismissCloudFindingError)
	})

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}, nil
}

func (w *WebAPI) Handler() http.Handler {
	return w.router
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
