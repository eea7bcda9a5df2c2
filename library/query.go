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
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvedgar/data"
	"github.com/rs/zerolog/log"
)

const filingColumns = `id, cik, coalesce(ticker, '') AS ticker, coalesce(form, '') AS form,
	filing_date, accession,
	coalesce(source_url, '') AS source_url, coalesce(filename, '') AS filename`

// FilingFilter selects filings of one company. A CIK takes precedence over the
// ticker; an empty Forms list matches every form.
type FilingFilter struct {
	CIK    string
	Ticker string
	Forms  []string
	Limit  int
}

func (filter FilingFilter) where(prefix string) (string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)

	switch {
	case filter.CIK != "":
		args = append(args, filter.CIK)
		clauses = append(clauses, fmt.Sprintf("%scik = $%d", prefix, len(args)))
	case filter.Ticker != "":
		args = append(args, strings.ToUpper(filter.Ticker))
		clauses = append(clauses, fmt.Sprintf("%sticker = $%d", prefix, len(args)))
	}

	if len(filter.Forms) > 0 {
		args = append(args, filter.Forms)
		clauses = append(clauses, fmt.Sprintf("%sform = ANY($%d)", prefix, len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// Filings lists matching filings, newest first, without their text
func (myLibrary *Library) Filings(ctx context.Context, filter FilingFilter) ([]*data.Filing, error) {
	where, args := filter.where("")
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s FROM filings %s ORDER BY filing_date DESC NULLS LAST, id DESC LIMIT $%d`,
		filingColumns, where, len(args))

	filings := make([]*data.Filing, 0, limit)
	if err := pgxscan.Select(ctx, myLibrary.Pool, &filings, sql, args...); err != nil {
		log.Error().Err(err).Str("SQL", sql).Msg("could not list filings")
		return nil, err
	}

	return filings, nil
}

// LatestFiling returns the newest matching filing
func (myLibrary *Library) LatestFiling(ctx context.Context, filter FilingFilter) (*data.Filing, error) {
	filter.Limit = 1
	filings, err := myLibrary.Filings(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(filings) == 0 {
		return nil, ErrNotFound
	}
	return filings[0], nil
}

// Filing fetches one filing by id, including its extracted text
func (myLibrary *Library) Filing(ctx context.Context, id int64) (*data.Filing, error) {
	filing := &data.Filing{}
	err := pgxscan.Get(ctx, myLibrary.Pool, filing,
		`SELECT `+filingColumns+`, coalesce(raw_text, '') AS raw_text FROM filings WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return filing, nil
}

// Sections lists the sections of a filing in the order they were stored
func (myLibrary *Library) Sections(ctx context.Context, filingID int64) ([]*data.Section, error) {
	sections := make([]*data.Section, 0, 4)
	err := pgxscan.Select(ctx, myLibrary.Pool, &sections,
		`SELECT id, filing_id, name, coalesce(text, '') AS text FROM sections WHERE filing_id = $1 ORDER BY id`, filingID)
	return sections, err
}

// Exhibits lists the exhibits stored with a filing, without their text
func (myLibrary *Library) Exhibits(ctx context.Context, filingID int64) ([]*data.Exhibit, error) {
	exhibits := make([]*data.Exhibit, 0, 8)
	err := pgxscan.Select(ctx, myLibrary.Pool, &exhibits,
		`SELECT e.id, e.filing_accession, coalesce(e.cik, '') AS cik, coalesce(e.ticker, '') AS ticker,
	coalesce(e.form, '') AS form, e.filing_date, e.filename,
	coalesce(e.url, '') AS url, coalesce(e.doc_type, '') AS doc_type, coalesce(e.description, '') AS description,
	coalesce(e.size, 0) AS size
FROM exhibits e JOIN filings f ON f.accession = e.filing_accession
WHERE f.id = $1 ORDER BY e.id`, filingID)
	return exhibits, err
}

// KPIs lists the figures extracted from a filing
func (myLibrary *Library) KPIs(ctx context.Context, filingID int64) ([]*data.KPI, error) {
	kpis := make([]*data.KPI, 0, 3)
	err := pgxscan.Select(ctx, myLibrary.Pool, &kpis,
		`SELECT id, filing_id, name, coalesce(value, '') AS value, coalesce(evidence_snippet, '') AS evidence_snippet
FROM kpis WHERE filing_id = $1 ORDER BY id`, filingID)
	return kpis, err
}

// FilingKPI is a KPI joined with the filing it was answered from
type FilingKPI struct {
	Ticker     string     `csv:"ticker" db:"ticker"`
	CIK        string     `csv:"cik" db:"cik"`
	Form       string     `csv:"form" db:"form"`
	FilingDate *time.Time `csv:"filing_date" db:"filing_date"`
	Accession  string     `csv:"accession" db:"accession"`
	Name       string     `csv:"name" db:"name"`
	Value      string     `csv:"value" db:"value"`
	Evidence   string     `csv:"evidence" db:"evidence"`
}

// CompanyKPIs lists every KPI of a company's matching filings, newest filing
// first
func (myLibrary *Library) CompanyKPIs(ctx context.Context, filter FilingFilter) ([]*FilingKPI, error) {
	where, args := filter.where("f.")

	sql := fmt.Sprintf(`SELECT coalesce(f.ticker, '') AS ticker, f.cik, coalesce(f.form, '') AS form,
	f.filing_date, f.accession, k.name,
	coalesce(k.value, '') AS value, coalesce(k.evidence_snippet, '') AS evidence
FROM kpis k JOIN filings f ON f.id = k.filing_id %s
ORDER BY f.filing_date DESC NULLS LAST, k.id`, where)

	kpis := make([]*FilingKPI, 0, 16)
	err := pgxscan.Select(ctx, myLibrary.Pool, &kpis, sql, args...)
	return kpis, err
}

// RiskScore is the strongest score a label received in a section and the
// number of paragraphs tagged with it
type RiskScore struct {
	Label string  `json:"label" db:"label"`
	Score float64 `json:"score" db:"score"`
	Hits  int     `json:"hits" db:"hits"`
}

// Insights summarizes the annotations of a section
type Insights struct {
	SectionID int64           `json:"section_id"`
	Sentiment *data.Sentiment `json:"sentiment"`
	Risks     []*RiskScore    `json:"risks"`
}

// SectionInsights returns a section's sentiment, if any, and its risk labels
// ranked by their best paragraph score
func (myLibrary *Library) SectionInsights(ctx context.Context, sectionID int64) (*Insights, error) {
	insights := &Insights{
		SectionID: sectionID,
		Risks:     make([]*RiskScore, 0, 9),
	}

	var exists bool
	if err := myLibrary.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sections WHERE id = $1)`, sectionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	sentiment := &data.Sentiment{}
	err := pgxscan.Get(ctx, myLibrary.Pool, sentiment,
		`SELECT id, section_id, label, score FROM sentiments WHERE section_id = $1 ORDER BY id DESC LIMIT 1`, sectionID)
	switch {
	case err == nil:
		insights.Sentiment = sentiment
	case !pgxscan.NotFound(err):
		return nil, err
	}

	err = pgxscan.Select(ctx, myLibrary.Pool, &insights.Risks,
		`SELECT label, max(score) AS score, count(*) AS hits FROM classifications WHERE section_id = $1
GROUP BY label ORDER BY score DESC, label LIMIT 50`, sectionID)
	if err != nil {
		return nil, err
	}

	return insights, nil
}

// PendingSections returns sections that have no sentiment yet, newest first
func (myLibrary *Library) PendingSections(ctx context.Context, limit int) ([]*data.Section, error) {
	if limit <= 0 {
		limit = 50
	}

	sections := make([]*data.Section, 0, limit)
	err := pgxscan.Select(ctx, myLibrary.Pool, &sections,
		`SELECT s.id, s.filing_id, s.name, coalesce(s.text, '') AS text
FROM sections s LEFT JOIN sentiments st ON st.section_id = s.id
WHERE st.id IS NULL
ORDER BY s.id DESC
LIMIT $1`, limit)
	return sections, err
}

// Annotations are the model outputs for one section
type Annotations struct {
	Sentiment       *data.Sentiment
	Classifications []*data.Classification
	KPIs            []*data.KPI
}

// SaveAnnotations writes a section's annotations in one transaction. The
// sentiment is written first and claims the section; when another run has
// already annotated it nothing is written and ErrAlreadyAnnotated is returned.
func (myLibrary *Library) SaveAnnotations(ctx context.Context, annotations *Annotations) error {
	tx, err := myLibrary.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Error().Err(err).Msg("could not roll back annotation transaction")
		}
	}()

	if annotations.Sentiment != nil {
		claimed, err := annotations.Sentiment.SaveDB(ctx, tx)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: section %d", ErrAlreadyAnnotated, annotations.Sentiment.SectionID)
		}
	}

	for _, classification := range annotations.Classifications {
		if err := classification.SaveDB(ctx, tx); err != nil {
			return err
		}
	}

	for _, kpi := range annotations.KPIs {
		if err := kpi.SaveDB(ctx, tx); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SaveIngestRun records or updates an ingestion run
func (myLibrary *Library) SaveIngestRun(ctx context.Context, run *data.IngestRun) error {
	return run.SaveDB(ctx, myLibrary.Pool)
}

// IngestRuns returns the most recent ingestion runs
func (myLibrary *Library) IngestRuns(ctx context.Context, limit int) ([]*data.IngestRun, error) {
	if limit <= 0 {
		limit = 10
	}

	runs := make([]*data.IngestRun, 0, limit)
	err := pgxscan.Select(ctx, myLibrary.Pool, &runs,
		`SELECT id, identifier, coalesce(cik, '') AS cik, coalesce(ticker, '') AS ticker,
	coalesce(forms, '{}'::text[]) AS forms, started_at, coalesce(finished_at, started_at) AS finished_at,
	filings_ingested, filings_skipped, status, coalesce(error, '') AS error
FROM ingest_runs ORDER BY started_at DESC LIMIT $1`, limit)
	return runs, err
}

func notFound(err error) error {
	if pgxscan.NotFound(err) {
		return ErrNotFound
	}
	return err
}
