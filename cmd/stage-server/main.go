package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/khunglong92/staged-content/pkg/stagedcontent/api"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/config"
	memorygateway "github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/memory"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	gateway, err := cfg.BuildGateway()
	if err != nil {
		slog.Error("Failed to build gateway", "error", err)
		os.Exit(1)
	}

	// The in-memory gateway serves its own blobs so resolved display URLs
	// work against this process.
	var blobHandler http.Handler
	if cfg.GatewayType == "memory" {
		mem := memorygateway.New(
			memorygateway.WithURLPrefix(fmt.Sprintf("http://localhost:%s/blobs", cfg.Port)),
		)
		gateway = mem
		blobHandler = mem.Handler()
	}

	entities, err := cfg.BuildEntityAPI(context.Background(), gateway)
	if err != nil {
		slog.Error("Failed to build entity backend", "error", err)
		os.Exit(1)
	}

	formHandler, err := api.NewFormHandler(gateway, entities, config.DefaultProfiles())
	if err != nil {
		slog.Error("Failed to build form handler", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.PlainText(w, req, http.StatusText(http.StatusOK))
	})

	if blobHandler != nil {
		r.Mount("/blobs", http.StripPrefix("/blobs", blobHandler))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator)
		}
		r.Mount("/forms", formHandler.Routes())
	})

	addr := ":" + cfg.Port
	slog.Info("Starting stage server", "addr", addr, "gateway", cfg.GatewayType, "environment", cfg.Environment)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
