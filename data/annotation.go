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

	"github.com/rs/zerolog/log"
)

// Sentiment is the overall tone of a section. A section without a sentiment
// has not been annotated yet.
type Sentiment struct {
	ID        int64   `json:"id" db:"id"`
	SectionID int64   `json:"section_id" db:"section_id"`
	Label     string  `json:"label" db:"label"`
	Score     float64 `json:"score" db:"score"`
}

// SaveDB records the section's sentiment. A section keeps its first
// sentiment; false is returned when one already exists.
func (sentiment *Sentiment) SaveDB(ctx context.Context, db Querier) (bool, error) {
	tag, err := db.Exec(ctx, `INSERT INTO sentiments ("section_id", "label", "score") VALUES ($1, $2, $3)
ON CONFLICT (section_id) DO NOTHING`,
		sentiment.SectionID, sentiment.Label, sentiment.Score)
	if err != nil {
		log.Error().Err(err).Int64("SectionID", sentiment.SectionID).Msg("error saving sentiment to database")
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Classification tags one paragraph of a section with a risk label
type Classification struct {
	ID           int64   `json:"id" db:"id"`
	SectionID    int64   `json:"section_id" db:"section_id"`
	ParagraphIdx int     `json:"paragraph_idx" db:"paragraph_idx"`
	Label        string  `json:"label" db:"label"`
	Score        float64 `json:"score" db:"score"`
}

// SaveDB upserts the classification, keeping the higher score when the
// paragraph was already tagged with the label
func (classification *Classification) SaveDB(ctx context.Context, db Querier) error {
	sql := `INSERT INTO classifications (
		"section_id",
		"paragraph_idx",
		"label",
		"score"
	) VALUES (
		$1, $2, $3, $4
	) ON CONFLICT (section_id, paragraph_idx, label) DO UPDATE SET
		score = GREATEST(classifications.score, EXCLUDED.score)`

	_, err := db.Exec(ctx, sql, classification.SectionID, classification.ParagraphIdx,
		classification.Label, classification.Score)
	if err != nil {
		log.Error().Err(err).Int64("SectionID", classification.SectionID).Str("Label", classification.Label).Msg("error saving classification to database")
	}
	return err
}

// KPI is a key figure answered from a filing with the text it came from
type KPI struct {
	ID              int64  `json:"id" csv:"id" db:"id"`
	FilingID        int64  `json:"filing_id" csv:"filing_id" db:"filing_id"`
	Name            string `json:"name" csv:"name" db:"name"`
	Value           string `json:"value" csv:"value" db:"value"`
	EvidenceSnippet string `json:"evidence_snippet" csv:"evidence_snippet" db:"evidence_snippet"`
}

func (kpi *KPI) SaveDB(ctx context.Context, db Querier) error {
	_, err := db.Exec(ctx, `INSERT INTO kpis ("filing_id", "name", "value", "evidence_snippet") VALUES ($1, $2, $3, $4)`,
		kpi.FilingID, kpi.Name, kpi.Value, kpi.EvidenceSnippet)
	if err != nil {
		log.Error().Err(err).Int64("FilingID", kpi.FilingID).Str("KPI", kpi.Name).Msg("error saving kpi to database")
	}
	return err
}
