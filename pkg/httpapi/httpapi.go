// Taganrog Catalog
// Copyright (c) 2026 The Taganrog Catalog Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Taganrog Catalog.
//
// Taganrog Catalog is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Taganrog Catalog is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Taganrog Catalog.  If not, see <http://www.gnu.org/licenses/>.

// Package httpapi is the thin boundary adapter mapping the Engine's API
// onto the HTTP surface of §6. It never touches Store, TagIndex or the
// Log directly; every request is served through the Engine and Vault.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/taganrog-go/catalog/pkg/catalog/engine"
	"github.com/taganrog-go/catalog/pkg/catalog/vault"
	"github.com/taganrog-go/catalog/pkg/config"
)

// Server wires the Engine and Vault onto a chi router and owns the
// http.Server lifecycle.
type Server struct {
	engine   *engine.Engine
	vault    *vault.Vault
	cfg      *config.Instance
	logger   zerolog.Logger
	validate *validator.Validate
}

// New builds a Server. Call Router to obtain the http.Handler, or Serve to
// run it to completion (blocking until ctx is done).
func New(eng *engine.Engine, v *vault.Vault, cfg *config.Instance, logger zerolog.Logger) *Server {
	return &Server{
		engine:   eng,
		vault:    v,
		cfg:      cfg,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the chi.Mux implementing the §6 HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Timeout(config.APIRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/api/ping", s.handlePing)

	r.Route("/api/media", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListMedia)
		r.Post("/", s.handleCreateMedia)
		r.Get("/random", s.handleRandomMedia)
		r.Post("/search", s.handleSearch)
		r.Post("/upload", s.handleUpload)
		r.Get("/{id}", s.handleGetMedia)
		r.Delete("/{id}", s.handleDeleteMedia)
		r.Get("/{id}/thumbnail", s.handleThumbnail)
		r.Get("/{id}/stream", s.handleStream)
		r.Post("/{id}/add-tag", s.handleAddTag)
		r.Post("/{id}/remove-tag", s.handleRemoveTag)
	})

	r.Route("/api/tags", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/autocomplete", s.handleAutocomplete)
	})

	r.Route("/api/export", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleExport)
	})

	return r
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := ":" + strconv.Itoa(s.cfg.APIPort())
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverDone := make(chan error, 1)
	serverReady := make(chan struct{})

	go func() {
		lc := &net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to bind to port")
			serverDone <- err
			return
		}
		close(serverReady)

		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	select {
	case <-serverReady:
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	case err := <-serverDone:
		return err
	}

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("initiating HTTP server graceful shutdown")
	case err := <-serverDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverDone
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !config.AuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearer(r.Header.Get("Authorization"))
		if !config.CheckToken(token) {
			w.Header().Set("WWW-Authenticate", "Token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}
