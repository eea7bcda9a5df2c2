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
package data

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DateLayout is the format EDGAR uses for filing dates
const DateLayout = "2006-01-02"

// ParseDate reads an EDGAR filing date. Blank or malformed dates are nil so
// they are stored as NULL.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// Filing is one submission's primary document. Accession numbers are unique;
// saving a filing that already exists refreshes every mutable column and
// keeps its id.
type Filing struct {
	ID         int64      `json:"id" csv:"id" db:"id"`
	CIK        string     `json:"cik" csv:"cik" db:"cik"`
	Ticker     string     `json:"ticker" csv:"ticker" db:"ticker"`
	Form       string     `json:"form" csv:"form" db:"form"`
	FilingDate *time.Time `json:"filing_date" csv:"filing_date" db:"filing_date"`
	Accession  string     `json:"accession" csv:"accession" db:"accession"`
	SourceURL  string     `json:"source_url" csv:"source_url" db:"source_url"`
	Filename   string     `json:"filename" csv:"filename" db:"filename"`
	RawText    string     `json:"-" csv:"-" db:"raw_text"`
}

// SaveDB upserts the filing by accession and stores the resulting row id on
// the filing
func (filing *Filing) SaveDB(ctx context.Context, db Querier) error {
	sql := `INSERT INTO filings (
		"cik",
		"ticker",
		"form",
		"filing_date",
		"accession",
		"source_url",
		"filename",
		"raw_text"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	) ON CONFLICT (accession) DO UPDATE SET
		ticker = EXCLUDED.ticker,
		form = EXCLUDED.form,
		filing_date = coalesce(EXCLUDED.filing_date, filings.filing_date),
		source_url = EXCLUDED.source_url,
		filename = EXCLUDED.filename,
		raw_text = EXCLUDED.raw_text
	RETURNING id`

	err := db.QueryRow(ctx, sql, filing.CIK, filing.Ticker, filing.Form, filing.FilingDate,
		filing.Accession, filing.SourceURL, filing.Filename, filing.RawText).Scan(&filing.ID)
	if err != nil {
		log.Error().Err(err).Str("Accession", filing.Accession).Msg("error saving filing to database")
		return err
	}

	return nil
}

// Section is a named span of a filing's text
type Section struct {
	ID       int64  `json:"id" db:"id"`
	FilingID int64  `json:"filing_id" db:"filing_id"`
	Name     string `json:"name" db:"name"`
	Text     string `json:"text" db:"text"`
}

// SaveDB inserts the section. Sections are not deduplicated.
func (section *Section) SaveDB(ctx context.Context, db Querier) error {
	err := db.QueryRow(ctx, `INSERT INTO sections ("filing_id", "name", "text") VALUES ($1, $2, $3) RETURNING id`,
		section.FilingID, section.Name, section.Text).Scan(&section.ID)
	if err != nil {
		log.Error().Err(err).Int64("FilingID", section.FilingID).Str("Section", section.Name).Msg("error saving section to database")
		return err
	}
	return nil
}

// Exhibit is a supporting document of a filing. The first copy of an exhibit
// stored for a filing is kept; later saves of the same filename are ignored.
type Exhibit struct {
	ID              int64      `json:"id" db:"id"`
	FilingAccession string     `json:"filing_accession" db:"filing_accession"`
	CIK             string     `json:"cik" db:"cik"`
	Ticker          string     `json:"ticker" db:"ticker"`
	Form            string     `json:"form" db:"form"`
	FilingDate      *time.Time `json:"filing_date" db:"filing_date"`
	Filename        string     `json:"filename" db:"filename"`
	URL             string     `json:"url" db:"url"`
	DocType         string     `json:"doc_type" db:"doc_type"`
	Description     string     `json:"description" db:"description"`
	Size            int64      `json:"size" db:"size"`
	Text            string     `json:"-" db:"text"`
}

// SaveDB inserts the exhibit unless one with the same filename already exists
// for the filing. It reports whether a row was written.
func (exhibit *Exhibit) SaveDB(ctx context.Context, db Querier) (bool, error) {
	sql := `INSERT INTO exhibits (
		"filing_accession",
		"cik",
		"ticker",
		"form",
		"filing_date",
		"filename",
		"url",
		"doc_type",
		"description",
		"size",
		"text"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	) ON CONFLICT (filing_accession, filename) DO NOTHING`

	tag, err := db.Exec(ctx, sql, exhibit.FilingAccession, exhibit.CIK, exhibit.Ticker, exhibit.Form,
		exhibit.FilingDate, exhibit.Filename, exhibit.URL, exhibit.DocType, exhibit.Description,
		exhibit.Size, exhibit.Text)
	if err != nil {
		log.Error().Err(err).Str("Accession", exhibit.FilingAccession).Str("Filename", exhibit.Filename).Msg("error saving exhibit to database")
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}
