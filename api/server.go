// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/penny-vault/pvedgar/data"
	"github.com/penny-vault/pvedgar/edgar"
	"github.com/penny-vault/pvedgar/ingest"
	"github.com/penny-vault/pvedgar/library"
	"github.com/rs/zerolog/log"
)

// Resolver maps tickers and CIKs to companies
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (edgar.Company, bool)
}

// Ingester fetches filings on demand when a query finds nothing
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// Store answers filing queries
type Store interface {
	Filings(ctx context.Context, filter library.FilingFilter) ([]*data.Filing, error)
	LatestFiling(ctx context.Context, filter library.FilingFilter) (*data.Filing, error)
	Filing(ctx context.Context, id int64) (*data.Filing, error)
	Sections(ctx context.Context, filingID int64) ([]*data.Section, error)
	Exhibits(ctx context.Context, filingID int64) ([]*data.Exhibit, error)
	KPIs(ctx context.Context, filingID int64) ([]*data.KPI, error)
	SectionInsights(ctx context.Context, sectionID int64) (*library.Insights, error)
}

// Server is the read-only filings API
type Server struct {
	resolver Resolver
	store    Store
	ingester Ingester
	router   *chi.Mux
}

// New builds the API. ingester may be nil, which disables auto ingest.
func New(resolver Resolver, store Store, ingester Ingester) *Server {
	server := &Server{
		resolver: resolver,
		store:    store,
		ingester: ingester,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", server.handleHealth)
	r.Get("/resolve", server.handleResolve)

	r.Route("/filings", func(r chi.Router) {
		r.Get("/", server.handleFilings)
		r.Get("/latest", server.handleLatestFiling)
		r.Get("/{id}", server.handleFiling)
		r.Get("/{id}/exhibits", server.handleExhibits)
		r.Get("/{id}/kpis", server.handleKPIs)
	})

	r.Get("/sections/{id}/insights", server.handleInsights)

	server.router = r
	return server
}

func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.router.ServeHTTP(w, r)
}

// ListenAndServe serves the API on addr until ctx is canceled
func (server *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("Addr", addr).Msg("serving filings api")
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().Str("Method", r.Method).Str("Path", r.URL.Path).Int("Status", ww.Status()).
			Int("Bytes", ww.BytesWritten()).Dur("Elapsed", time.Since(start)).
			Str("RequestID", middleware.GetReqID(r.Context())).Msg("handled request")
	})
}
