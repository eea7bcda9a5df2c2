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
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pvedgar/data"
	"github.com/penny-vault/pvedgar/document"
	"github.com/penny-vault/pvedgar/edgar"
	"github.com/penny-vault/pvedgar/ingest"
	"github.com/penny-vault/pvedgar/library"
	"github.com/rs/zerolog/log"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	previewChars    = 3000
	errNoIdentifier = "provide 'identifier' (ticker or CIK)"
)

// AutoIngestForms are fetched when a query names no form
var AutoIngestForms = []string{"10-K", "10-Q", "8-K"}

type errorResponse struct {
	Detail string `json:"detail"`
}

type sectionPreview struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Preview string `json:"preview"`
}

type filingResponse struct {
	Filing   *data.Filing      `json:"filing"`
	Sections []*sectionPreview `json:"sections"`
}

type insightsResponse struct {
	SectionID int64                `json:"section_id"`
	Sentiment any                  `json:"sentiment"`
	Risks     []*library.RiskScore `json:"risks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("could not encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Warn().Err(err).Msg("could not write response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}

	log.Error().Err(err).Msg("store query failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (server *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	company, ok := server.company(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func identifierParam(r *http.Request) string {
	query := r.URL.Query()
	if identifier := strings.TrimSpace(query.Get("identifier")); identifier != "" {
		return identifier
	}
	return strings.TrimSpace(query.Get("ticker"))
}

// company resolves the identifier (or legacy ticker) query parameter and
// writes the error response when it cannot
func (server *Server) company(w http.ResponseWriter, r *http.Request) (edgar.Company, bool) {
	identifier := identifierParam(r)
	if identifier == "" {
		writeError(w, http.StatusBadRequest, errNoIdentifier)
		return edgar.Company{}, false
	}

	company, ok := server.resolver.Resolve(r.Context(), identifier)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown identifier (not in SEC ticker list)")
		return edgar.Company{}, false
	}

	return company, true
}

// formParams returns the forms to filter on and the forms to ingest
func formParams(r *http.Request) (filter []string, ingestForms []string) {
	query := r.URL.Query()

	var listed []string
	for _, form := range strings.Split(query.Get("forms"), ",") {
		if form = strings.TrimSpace(form); form != "" {
			listed = append(listed, form)
		}
	}

	single := strings.TrimSpace(query.Get("form"))
	switch {
	case single != "":
		filter = []string{single}
	case len(listed) > 0:
		filter = listed
	}

	switch {
	case len(listed) > 0:
		ingestForms = listed
	case single != "":
		ingestForms = []string{single}
	default:
		ingestForms = AutoIngestForms
	}

	return filter, ingestForms
}

func boolParam(r *http.Request, name string, fallback bool) (bool, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// autoIngest fetches the most recent matching filing from EDGAR
func (server *Server) autoIngest(r *http.Request, company edgar.Company, forms []string) error {
	if server.ingester == nil {
		return nil
	}

	_, err := server.ingester.Ingest(r.Context(), ingest.Request{
		Identifier: identifierParam(r),
		CIK:        company.CIK,
		Ticker:     company.Ticker,
		Forms:      forms,
		Limit:      1,
	})
	return err
}

func (server *Server) handleFilings(w http.ResponseWriter, r *http.Request) {
	company, ok := server.company(w, r)
	if !ok {
		return
	}

	limit := defaultLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > maxLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	wantIngest, err := boolParam(r, "auto_ingest", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "auto_ingest must be a boolean")
		return
	}

	filterForms, ingestForms := formParams(r)
	filter := library.FilingFilter{CIK: company.CIK, Forms: filterForms, Limit: limit}

	filings, err := server.store.Filings(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "no filings found")
		return
	}

	if len(filings) == 0 && wantIngest && server.ingester != nil {
		if err := server.autoIngest(r, company, ingestForms); err != nil {
			log.Error().Err(err).Str("CIK", company.CIK).Msg("auto ingest failed")
			writeError(w, http.StatusBadGateway, "could not fetch filings from EDGAR")
			return
		}

		filings, err = server.store.Filings(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err, "no filings found")
			return
		}
	}

	writeJSON(w, http.StatusOK, filings)
}

func (server *Server) handleLatestFiling(w http.ResponseWriter, r *http.Request) {
	company, ok := server.company(w, r)
	if !ok {
		return
	}

	wantIngest, err := boolParam(r, "auto_ingest", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "auto_ingest must be a boolean")
		return
	}

	filterForms, ingestForms := formParams(r)
	filter := library.FilingFilter{CIK: company.CIK, Forms: filterForms}

	filing, err := server.store.LatestFiling(r.Context(), filter)
	if errors.Is(err, library.ErrNotFound) && wantIngest && server.ingester != nil {
		if err := server.autoIngest(r, company, ingestForms); err != nil {
			log.Error().Err(err).Str("CIK", company.CIK).Msg("auto ingest failed")
			writeError(w, http.StatusBadGateway, "could not fetch filings from EDGAR")
			return
		}
		filing, err = server.store.LatestFiling(r.Context(), filter)
	}

	if err != nil {
		writeStoreError(w, err, "no filing found")
		return
	}

	writeJSON(w, http.StatusOK, filing)
}

func (server *Server) handleFiling(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "filing id must be an integer")
		return
	}

	filing, err := server.store.Filing(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "filing not found")
		return
	}

	sections, err := server.store.Sections(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "filing not found")
		return
	}

	previews := make([]*sectionPreview, 0, len(sections))
	for _, section := range sections {
		previews = append(previews, &sectionPreview{
			ID:      section.ID,
			Name:    section.Name,
			Preview: document.Truncate(section.Text, previewChars),
		})
	}

	writeJSON(w, http.StatusOK, filingResponse{Filing: filing, Sections: previews})
}

func (server *Server) handleExhibits(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "filing id must be an integer")
		return
	}

	if _, err := server.store.Filing(r.Context(), id); err != nil {
		writeStoreError(w, err, "filing not found")
		return
	}

	exhibits, err := server.store.Exhibits(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "filing not found")
		return
	}

	writeJSON(w, http.StatusOK, exhibits)
}

func (server *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "filing id must be an integer")
		return
	}

	if _, err := server.store.Filing(r.Context(), id); err != nil {
		writeStoreError(w, err, "filing not found")
		return
	}

	kpis, err := server.store.KPIs(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "filing not found")
		return
	}

	writeJSON(w, http.StatusOK, kpis)
}

func (server *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "section id must be an integer")
		return
	}

	insights, err := server.store.SectionInsights(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "section not found")
		return
	}

	response := insightsResponse{
		SectionID: insights.SectionID,
		Sentiment: struct{}{},
		Risks:     insights.Risks,
	}
	if insights.Sentiment != nil {
		response.Sentiment = insights.Sentiment
	}
	if response.Risks == nil {
		response.Risks = []*library.RiskScore{}
	}

	writeJSON(w, http.StatusOK, response)
}
