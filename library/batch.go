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

	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvedgar/data"
	"github.com/rs/zerolog/log"
)

// Batch groups the writes of one ingestion run. Each filing is saved in its
// own savepoint so a filing that fails to save is rolled back without losing
// the filings saved before it; nothing is visible to other connections until
// Commit.
type Batch interface {
	SaveFiling(ctx context.Context, filing *data.Filing, sections []*data.Section, exhibits []*data.Exhibit) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type txBatch struct {
	tx              pgx.Tx
	replaceSections bool
}

// BeginBatch opens the transaction for an ingestion run
func (myLibrary *Library) BeginBatch(ctx context.Context) (Batch, error) {
	if myLibrary.Pool == nil {
		return nil, ErrNotConnected
	}

	tx, err := myLibrary.Pool.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not begin ingest transaction")
		return nil, err
	}

	return &txBatch{
		tx:              tx,
		replaceSections: myLibrary.ReplaceSections,
	}, nil
}

// SaveFiling upserts the filing then writes its sections and exhibits. The
// filing's id is set on every section before it is saved.
func (batch *txBatch) SaveFiling(ctx context.Context, filing *data.Filing, sections []*data.Section, exhibits []*data.Exhibit) error {
	savepoint, err := batch.tx.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := savepoint.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Error().Err(err).Str("Accession", filing.Accession).Msg("could not roll back filing savepoint")
		}
	}()

	if err := filing.SaveDB(ctx, savepoint); err != nil {
		return err
	}

	if batch.replaceSections {
		if _, err := savepoint.Exec(ctx, `DELETE FROM sections WHERE filing_id = $1`, filing.ID); err != nil {
			log.Error().Err(err).Int64("FilingID", filing.ID).Msg("could not delete previous sections")
			return err
		}
	}

	for _, section := range sections {
		section.FilingID = filing.ID
		if err := section.SaveDB(ctx, savepoint); err != nil {
			return err
		}
	}

	for _, exhibit := range exhibits {
		exhibit.FilingAccession = filing.Accession
		if _, err := exhibit.SaveDB(ctx, savepoint); err != nil {
			return err
		}
	}

	return savepoint.Commit(ctx)
}

func (batch *txBatch) Commit(ctx context.Context) error {
	return batch.tx.Commit(ctx)
}

// Rollback discards the batch. Rolling back a committed batch is a no-op.
func (batch *txBatch) Rollback(ctx context.Context) error {
	err := batch.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
