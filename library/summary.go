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
	"fmt"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/penny-vault/pvedgar/data"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Counts are the row totals shown in the library summary
type Counts struct {
	Companies       int
	Filings         int
	Sections        int
	PendingSections int
	Exhibits        int
	KPIs            int
}

// Counts tallies the rows in each table
func (myLibrary *Library) Counts(ctx context.Context) (*Counts, error) {
	counts := &Counts{}
	err := myLibrary.Pool.QueryRow(ctx, `SELECT
	(SELECT count(DISTINCT cik) FROM filings),
	(SELECT count(*) FROM filings),
	(SELECT count(*) FROM sections),
	(SELECT count(*) FROM sections s LEFT JOIN sentiments st ON st.section_id = s.id WHERE st.id IS NULL),
	(SELECT count(*) FROM exhibits),
	(SELECT count(*) FROM kpis)`).Scan(&counts.Companies, &counts.Filings, &counts.Sections,
		&counts.PendingSections, &counts.Exhibits, &counts.KPIs)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// LastUpdated returns the date that the database was last updated
func (myLibrary *Library) LastUpdated(ctx context.Context) (time.Time, error) {
	var lastUpdated time.Time
	err := myLibrary.Pool.QueryRow(ctx, "SELECT coalesce(max(finished_at), '0001-01-01'::timestamptz) FROM ingest_runs").Scan(&lastUpdated)
	if err != nil {
		return time.Time{}, err
	}

	return lastUpdated, nil
}

// Summary returns a description of the library in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	counts, err := myLibrary.Counts(ctx)
	if err != nil {
		return "", err
	}

	lastUpdated, err := myLibrary.LastUpdated(ctx)
	if err != nil {
		return "", err
	}

	runs, err := myLibrary.IngestRuns(ctx, 10)
	if err != nil {
		return "", err
	}

	return renderSummary(myLibrary.DBUrl, counts, lastUpdated, runs), nil
}

func renderSummary(dbURL string, counts *Counts, lastUpdated time.Time, runs []*data.IngestRun) string {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString("# pvedgar\n")
	builder.WriteString("## Details\n\n")
	builder.WriteString(fmt.Sprintf("Database: %s\n\n", redactPassword(dbURL)))

	builder.WriteString(p.Sprintf("  * Companies: %d\n", counts.Companies))
	builder.WriteString(p.Sprintf("  * Filings: %d\n", counts.Filings))
	builder.WriteString(p.Sprintf("  * Sections: %d (%d awaiting annotation)\n", counts.Sections, counts.PendingSections))
	builder.WriteString(p.Sprintf("  * Exhibits: %d\n", counts.Exhibits))
	builder.WriteString(p.Sprintf("  * KPIs: %d\n\n", counts.KPIs))

	if lastUpdated.Year() <= 1 {
		builder.WriteString("Last Updated: Never\n\n")
	} else {
		age := timeago.English.Format(lastUpdated)
		builder.WriteString(fmt.Sprintf("Last Updated: %s (%s)\n\n", age, lastUpdated.Local().Format("01/02/2006")))
	}

	builder.WriteString("## Recent ingests\n\n")
	if len(runs) == 0 {
		builder.WriteString("No filings have been ingested yet.\n")
	}

	for _, run := range runs {
		name := run.Ticker
		if name == "" {
			name = run.CIK
		}

		elapsed := durafmt.Parse(run.Duration().Round(time.Second)).LimitFirstN(2).String()
		builder.WriteString(p.Sprintf("  * %s %s: %d ingested, %d skipped in %s (%s) [%s]\n", name,
			strings.Join(run.Forms, ","), run.FilingsIngested, run.FilingsSkipped, elapsed,
			timeago.English.Format(run.StartedAt), run.Status))
	}

	return builder.String()
}

// redactPassword hides the password in a postgres connection string
func redactPassword(dbURL string) string {
	schemeEnd := strings.Index(dbURL, "://")
	at := strings.LastIndex(dbURL, "@")
	if schemeEnd == -1 || at == -1 || at < schemeEnd {
		return dbURL
	}

	userInfo := dbURL[schemeEnd+3 : at]
	colon := strings.Index(userInfo, ":")
	if colon == -1 {
		return dbURL
	}

	return dbURL[:schemeEnd+3] + userInfo[:colon] + ":xxxxx" + dbURL[at:]
}
