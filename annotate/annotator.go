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
package annotate

import (
	"context"
	"errors"
	"strings"

	"github.com/penny-vault/pvedgar/data"
	"github.com/penny-vault/pvedgar/document"
	"github.com/penny-vault/pvedgar/library"
	"github.com/rs/zerolog/log"
)

// RiskLabels are the zero-shot classes paragraphs are tagged with
var RiskLabels = []string{
	"regulatory compliance",
	"cybersecurity",
	"supply chain",
	"macroeconomic",
	"liquidity",
	"competition",
	"legal",
	"operational",
	"environmental",
}

type KPIQuestion struct {
	Name     string
	Question string
}

// KPIQuestions are asked of every section
var KPIQuestions = []KPIQuestion{
	{Name: "total_revenue", Question: "What is the total revenue?"},
	{Name: "operating_income", Question: "What is the operating income?"},
	{Name: "cash_and_equivalents", Question: "What is the cash and cash equivalents?"},
}

// Store supplies sections to annotate and saves the results
type Store interface {
	PendingSections(ctx context.Context, limit int) ([]*data.Section, error)
	SaveAnnotations(ctx context.Context, annotations *library.Annotations) error
}

type Options struct {
	// RiskThreshold is the minimum zero-shot score stored
	RiskThreshold float64

	// KPIMinScore is the answer score a KPI must exceed
	KPIMinScore float64

	MinParagraphWords int
	MaxParagraphs     int

	// MaxInputChars caps the text sent to the sentiment and zero-shot models
	MaxInputChars int

	// MaxContextChars caps the section text questions are asked against
	MaxContextChars int

	MaxValueChars   int
	SnippetPadding  int
	MaxSnippetChars int
}

func DefaultOptions() Options {
	return Options{
		RiskThreshold:     0.55,
		KPIMinScore:       0.2,
		MinParagraphWords: 7,
		MaxParagraphs:     100,
		MaxInputChars:     2000,
		MaxContextChars:   20000,
		MaxValueChars:     120,
		SnippetPadding:    60,
		MaxSnippetChars:   400,
	}
}

// Annotator runs the inference models over sections that have not been
// annotated yet
type Annotator struct {
	inference Inference
	store     Store
	opts      Options
}

func New(inference Inference, store Store, opts Options) *Annotator {
	defaults := DefaultOptions()
	if opts.RiskThreshold <= 0 {
		opts.RiskThreshold = defaults.RiskThreshold
	}
	if opts.KPIMinScore <= 0 {
		opts.KPIMinScore = defaults.KPIMinScore
	}
	if opts.MinParagraphWords <= 0 {
		opts.MinParagraphWords = defaults.MinParagraphWords
	}
	if opts.MaxParagraphs <= 0 {
		opts.MaxParagraphs = defaults.MaxParagraphs
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = defaults.MaxInputChars
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = defaults.MaxContextChars
	}
	if opts.MaxValueChars <= 0 {
		opts.MaxValueChars = defaults.MaxValueChars
	}
	if opts.SnippetPadding <= 0 {
		opts.SnippetPadding = defaults.SnippetPadding
	}
	if opts.MaxSnippetChars <= 0 {
		opts.MaxSnippetChars = defaults.MaxSnippetChars
	}

	return &Annotator{
		inference: inference,
		store:     store,
		opts:      opts,
	}
}

// Outcome is the result of one model call
type Outcome struct {
	Step string
	Err  error
}

func (outcome Outcome) Failed() bool {
	return outcome.Err != nil
}

// SectionResult describes the annotations produced for one section
type SectionResult struct {
	SectionID int64
	Sentiment string
	Risks     int
	KPIs      int
	Outcomes  []Outcome
	Saved     bool
}

// Failures counts the model calls that failed
func (result *SectionResult) Failures() int {
	count := 0
	for _, outcome := range result.Outcomes {
		if outcome.Failed() {
			count++
		}
	}
	return count
}

// Summary of an annotation run
type Summary struct {
	Sections  []*SectionResult
	Annotated int
	Pending   int

	// AlreadyAnnotated counts sections another run finished first
	AlreadyAnnotated int
}

// Run annotates up to limit pending sections, newest first. Model failures
// are logged and never stop the run; a section whose sentiment could not be
// computed is left pending and retried on the next run.
func (annotator *Annotator) Run(ctx context.Context, limit int) (*Summary, error) {
	sections, err := annotator.store.PendingSections(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("could not load pending sections")
		return nil, err
	}

	summary := &Summary{
		Sections: make([]*SectionResult, 0, len(sections)),
	}

	for _, section := range sections {
		annotations, result := annotator.Annotate(ctx, section)
		summary.Sections = append(summary.Sections, result)

		if annotations == nil {
			summary.Pending++
			continue
		}

		err := annotator.store.SaveAnnotations(ctx, annotations)
		if errors.Is(err, library.ErrAlreadyAnnotated) {
			log.Info().Int64("SectionID", section.ID).Msg("section was annotated by another run")
			summary.AlreadyAnnotated++
			continue
		}
		if err != nil {
			log.Error().Err(err).Int64("SectionID", section.ID).Msg("could not save annotations")
			result.Outcomes = append(result.Outcomes, Outcome{Step: "save", Err: err})
			summary.Pending++
			continue
		}

		result.Saved = true
		summary.Annotated++
	}

	log.Info().Int("Sections", len(sections)).Int("Annotated", summary.Annotated).Int("Pending", summary.Pending).
		Int("AlreadyAnnotated", summary.AlreadyAnnotated).Msg("annotation run finished")
	return summary, nil
}

// Annotate runs every model over section. The annotations are nil when the
// sentiment could not be computed.
func (annotator *Annotator) Annotate(ctx context.Context, section *data.Section) (*library.Annotations, *SectionResult) {
	result := &SectionResult{SectionID: section.ID}
	subLog := log.With().Int64("SectionID", section.ID).Str("Section", section.Name).Logger()

	sentiment, err := annotator.inference.Sentiment(ctx, document.Truncate(section.Text, annotator.opts.MaxInputChars))
	result.Outcomes = append(result.Outcomes, Outcome{Step: "sentiment", Err: err})
	if err != nil {
		subLog.Warn().Err(err).Msg("sentiment failed; section stays pending")
		return nil, result
	}
	result.Sentiment = sentiment.Label

	annotations := &library.Annotations{
		Sentiment: &data.Sentiment{
			SectionID: section.ID,
			Label:     sentiment.Label,
			Score:     sentiment.Score,
		},
	}

	for idx, paragraph := range Paragraphs(section.Text, annotator.opts.MinParagraphWords, annotator.opts.MaxParagraphs) {
		labels, err := annotator.inference.ZeroShot(ctx, document.Truncate(paragraph, annotator.opts.MaxInputChars), RiskLabels)
		result.Outcomes = append(result.Outcomes, Outcome{Step: "zero-shot", Err: err})
		if err != nil {
			subLog.Debug().Err(err).Int("Paragraph", idx).Msg("zero-shot classification failed")
			continue
		}

		for _, label := range labels {
			if label.Score < annotator.opts.RiskThreshold {
				continue
			}
			annotations.Classifications = append(annotations.Classifications, &data.Classification{
				SectionID:    section.ID,
				ParagraphIdx: idx,
				Label:        label.Label,
				Score:        label.Score,
			})
		}
	}
	result.Risks = len(annotations.Classifications)

	passage := document.Truncate(section.Text, annotator.opts.MaxContextChars)
	for _, kpi := range KPIQuestions {
		answer, err := annotator.inference.Answer(ctx, kpi.Question, passage)
		result.Outcomes = append(result.Outcomes, Outcome{Step: kpi.Name, Err: err})
		if err != nil {
			subLog.Debug().Err(err).Str("KPI", kpi.Name).Msg("question answering failed")
			continue
		}

		value := strings.TrimSpace(answer.Answer)
		if answer.Score <= annotator.opts.KPIMinScore || value == "" {
			continue
		}

		annotations.KPIs = append(annotations.KPIs, &data.KPI{
			FilingID:        section.FilingID,
			Name:            kpi.Name,
			Value:           document.Truncate(value, annotator.opts.MaxValueChars),
			EvidenceSnippet: Snippet(passage, answer.Start, answer.End, annotator.opts.SnippetPadding, annotator.opts.MaxSnippetChars),
		})
	}
	result.KPIs = len(annotations.KPIs)

	subLog.Debug().Str("Sentiment", result.Sentiment).Int("Risks", result.Risks).Int("KPIs", result.KPIs).
		Int("Failures", result.Failures()).Msg("annotated section")

	return annotations, result
}

// Paragraphs splits text on line breaks and keeps the first limit lines that
// have at least minWords words
func Paragraphs(text string, minWords, limit int) []string {
	paragraphs := make([]string, 0, 16)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(strings.Fields(line)) < minWords {
			continue
		}

		paragraphs = append(paragraphs, line)
		if limit > 0 && len(paragraphs) >= limit {
			break
		}
	}
	return paragraphs
}

// Snippet returns the text around the character span [start, end), padded
// on both sides and capped at maxChars characters
func Snippet(text string, start, end, padding, maxChars int) string {
	runes := []rune(text)

	from := max(start-padding, 0)
	to := min(max(end, 0)+padding, len(runes))
	if from >= to {
		return ""
	}

	return document.Truncate(string(runes[from:to]), maxChars)
}
