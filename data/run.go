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
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// IngestRun records one ingestion of a company's filings
type IngestRun struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Identifier      string    `json:"identifier" db:"identifier"`
	CIK             string    `json:"cik" db:"cik"`
	Ticker          string    `json:"ticker" db:"ticker"`
	Forms           []string  `json:"forms" db:"forms"`
	StartedAt       time.Time `json:"started_at" db:"started_at"`
	FinishedAt      time.Time `json:"finished_at" db:"finished_at"`
	FilingsIngested int       `json:"filings_ingested" db:"filings_ingested"`
	FilingsSkipped  int       `json:"filings_skipped" db:"filings_skipped"`
	Status          RunStatus `json:"status" db:"status"`
	Error           string    `json:"error,omitempty" db:"error"`
}

// NewIngestRun starts a run record with a fresh id
func NewIngestRun(identifier, cik, ticker string, forms []string) *IngestRun {
	return &IngestRun{
		ID:         uuid.New(),
		Identifier: identifier,
		CIK:        cik,
		Ticker:     ticker,
		Forms:      forms,
		StartedAt:  time.Now(),
	}
}

// Finish stamps the end time and derives the status from the counts and err
func (run *IngestRun) Finish(err error) {
	run.FinishedAt = time.Now()

	switch {
	case err != nil:
		run.Status = RunFailed
		run.Error = err.Error()
	case run.FilingsSkipped > 0:
		run.Status = RunPartial
	default:
		run.Status = RunSucceeded
	}
}

// Duration is how long the run took
func (run *IngestRun) Duration() time.Duration {
	if run.FinishedAt.IsZero() {
		return time.Since(run.StartedAt)
	}
	return run.FinishedAt.Sub(run.StartedAt)
}

func (run *IngestRun) SaveDB(ctx context.Context, db Querier) error {
	sql := `INSERT INTO ingest_runs (
		"id",
		"identifier",
		"cik",
		"ticker",
		"forms",
		"started_at",
		"finished_at",
		"filings_ingested",
		"filings_skipped",
		"status",
		"error"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	) ON CONFLICT (id) DO UPDATE SET
		finished_at = EXCLUDED.finished_at,
		filings_ingested = EXCLUDED.filings_ingested,
		filings_skipped = EXCLUDED.filings_skipped,
		status = EXCLUDED.status,
		error = EXCLUDED.error`

	_, err := db.Exec(ctx, sql, run.ID, run.Identifier, run.CIK, run.Ticker, run.Forms,
		run.StartedAt, run.FinishedAt, run.FilingsIngested, run.FilingsSkipped, string(run.Status), run.Error)
	if err != nil {
		log.Error().Err(err).Str("RunID", run.ID.String()).Msg("error saving ingest run to database")
	}
	return err
}
