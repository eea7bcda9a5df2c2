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
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/penny-vault/pvedgar/archive"
	"github.com/penny-vault/pvedgar/data"
	"github.com/penny-vault/pvedgar/document"
	"github.com/penny-vault/pvedgar/edgar"
	"github.com/penny-vault/pvedgar/library"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxDocChars     = 2_000_000
	DefaultMaxSectionChars = 500_000
)

var (
	ErrNoPrimaryDocument = errors.New("no primary document in filing")
	ErrEmptyCatalog      = errors.New("filing index lists no documents")
	ErrMissingCIK        = errors.New("a CIK is required to ingest filings")
)

// DefaultForms are ingested when a request names none
var DefaultForms = []string{"10-K", "10-Q"}

// Source discovers filings and downloads their documents
type Source interface {
	RecentFilings(ctx context.Context, cik string, forms []string, limit int) ([]*edgar.FilingRef, error)
	Catalog(ctx context.Context, ref *edgar.FilingRef) []document.Document
	FetchDocument(ctx context.Context, url string) (string, error)
}

// Store persists ingested filings
type Store interface {
	BeginBatch(ctx context.Context) (library.Batch, error)
	SaveIngestRun(ctx context.Context, run *data.IngestRun) error
}

// Archiver keeps a copy of each raw primary document
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Monitor is told when a run starts and how it ended
type Monitor interface {
	Start(ctx context.Context) error
	Success(ctx context.Context, msg string) error
	Fail(ctx context.Context, msg string) error
}

type Options struct {
	MaxDocChars     int
	MaxSectionChars int

	// Archiver and Monitor are optional
	Archiver Archiver
	Monitor  Monitor
}

// Ingester downloads a company's recent filings and stores their primary
// document text, sections and exhibits
type Ingester struct {
	source Source
	store  Store
	opts   Options
}

func New(source Source, store Store, opts Options) *Ingester {
	if opts.MaxDocChars <= 0 {
		opts.MaxDocChars = DefaultMaxDocChars
	}
	if opts.MaxSectionChars <= 0 {
		opts.MaxSectionChars = DefaultMaxSectionChars
	}

	return &Ingester{
		source: source,
		store:  store,
		opts:   opts,
	}
}

// Request selects the filings to ingest. Identifier is what the caller asked
// for and is only recorded; CIK must already be resolved.
type Request struct {
	Identifier string
	CIK        string
	Ticker     string
	Forms      []string
	Limit      int
}

// FilingResult describes what happened to one filing
type FilingResult struct {
	Accession        string
	Form             string
	FilingDate       string
	FilingID         int64
	Sections         int
	Exhibits         int
	DegradedExhibits int
	Skipped          bool
	Reason           string
}

// Result of an ingest run
type Result struct {
	Run     *data.IngestRun
	Filings []*FilingResult
}

// Ingested is the number of filings that were saved
func (result *Result) Ingested() int {
	return result.Run.FilingsIngested
}

// FetchOutcome is the result of downloading an exhibit. A degraded outcome
// still produces an exhibit row, with empty text.
type FetchOutcome struct {
	Text string
	Err  error
}

func (outcome FetchOutcome) Degraded() bool {
	return outcome.Err != nil
}

// prepared is a filing whose documents have been downloaded and processed
type prepared struct {
	result   *FilingResult
	filing   *data.Filing
	sections []*data.Section
	exhibits []*data.Exhibit
}

// Ingest downloads up to req.Limit of the company's most recent filings of
// the requested forms and saves them in a single transaction. Filings that
// cannot be processed are skipped and reported in the result. An error is
// returned only when the filing manifest cannot be read or the transaction
// cannot be committed.
func (ingester *Ingester) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.CIK == "" {
		return nil, ErrMissingCIK
	}

	forms := req.Forms
	if len(forms) == 0 {
		forms = DefaultForms
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 1
	}

	ticker := strings.ToUpper(req.Ticker)
	identifier := req.Identifier
	if identifier == "" {
		identifier = firstNonEmpty(ticker, req.CIK)
	}

	run := data.NewIngestRun(identifier, edgar.PadCIK(req.CIK), ticker, forms)
	result := &Result{
		Run:     run,
		Filings: make([]*FilingResult, 0, limit),
	}

	subLog := log.With().Str("CIK", run.CIK).Str("Ticker", ticker).Str("RunID", run.ID.String()).Logger()
	ingester.monitorStart(ctx)

	err := ingester.ingest(ctx, run, result, forms, limit, subLog)
	run.Finish(err)

	if saveErr := ingester.store.SaveIngestRun(ctx, run); saveErr != nil {
		subLog.Error().Err(saveErr).Msg("could not record ingest run")
	}

	ingester.monitorFinish(ctx, run)

	subLog.Info().Int("Ingested", run.FilingsIngested).Int("Skipped", run.FilingsSkipped).
		Dur("Elapsed", run.Duration()).Str("Status", string(run.Status)).Msg("ingest finished")

	return result, err
}

func (ingester *Ingester) ingest(ctx context.Context, run *data.IngestRun, result *Result, forms []string, limit int, subLog zerolog.Logger) error {
	refs, err := ingester.source.RecentFilings(ctx, run.CIK, forms, limit)
	if err != nil {
		subLog.Error().Err(err).Msg("could not read filing manifest")
		return err
	}

	if len(refs) == 0 {
		subLog.Warn().Strs("Forms", forms).Msg("no matching filings")
		return nil
	}

	// download everything first so the transaction is not held open while
	// waiting on the network
	filings := make([]*prepared, 0, len(refs))
	for _, ref := range refs {
		item := ingester.prepare(ctx, ref, run.Ticker)
		result.Filings = append(result.Filings, item.result)
		if item.result.Skipped {
			run.FilingsSkipped++
			continue
		}
		filings = append(filings, item)
	}

	if len(filings) == 0 {
		return nil
	}

	batch, err := ingester.store.BeginBatch(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := batch.Rollback(ctx); err != nil {
			subLog.Error().Err(err).Msg("could not roll back ingest batch")
		}
	}()

	saved := 0
	for _, item := range filings {
		if err := batch.SaveFiling(ctx, item.filing, item.sections, item.exhibits); err != nil {
			subLog.Error().Err(err).Str("Accession", item.filing.Accession).Msg("saving filing failed; skipping")
			item.result.Skipped = true
			item.result.Reason = fmt.Sprintf("save failed: %s", err)
			run.FilingsSkipped++
			continue
		}

		item.result.FilingID = item.filing.ID
		saved++
	}

	if err := batch.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit ingest batch")
		return err
	}

	run.FilingsIngested = saved
	return nil
}

// prepare downloads and processes one filing. Failures mark the result as
// skipped.
func (ingester *Ingester) prepare(ctx context.Context, ref *edgar.FilingRef, ticker string) *prepared {
	result := &FilingResult{
		Accession:  ref.Accession,
		Form:       ref.Form,
		FilingDate: ref.FilingDate,
	}
	item := &prepared{result: result}

	subLog := log.With().Str("Ticker", ticker).Str("Accession", ref.Accession).Str("Form", ref.Form).Str("FilingDate", ref.FilingDate).Logger()

	skip := func(err error) *prepared {
		result.Skipped = true
		result.Reason = err.Error()
		subLog.Warn().Err(err).Msg("skipping filing")
		return item
	}

	docs := ingester.source.Catalog(ctx, ref)
	if len(docs) == 0 {
		return skip(ErrEmptyCatalog)
	}

	primary, exhibitDocs, ok := document.Partition(docs)
	if !ok {
		return skip(fmt.Errorf("%w (%d documents)", ErrNoPrimaryDocument, len(docs)))
	}

	primaryURL := edgar.ResolveHref(ref.BaseDir, primary.Href)
	markup, err := ingester.source.FetchDocument(ctx, primaryURL)
	if err != nil {
		return skip(fmt.Errorf("fetch primary document %s: %w", primary.Name, err))
	}

	ingester.archive(ctx, ref, primary.Name, markup)

	text := document.Truncate(document.ExtractText(markup, primaryURL), ingester.opts.MaxDocChars)

	filingDate, err := data.ParseDate(ref.FilingDate)
	if err != nil {
		subLog.Warn().Err(err).Msg("could not parse filing date; storing it as unknown")
	}

	item.filing = &data.Filing{
		CIK:        ref.CIK,
		Ticker:     ticker,
		Form:       ref.Form,
		FilingDate: filingDate,
		Accession:  ref.Accession,
		SourceURL:  primaryURL,
		Filename:   primary.Name,
		RawText:    text,
	}

	for _, section := range document.TruncateSections(document.SplitSections(text), ingester.opts.MaxSectionChars) {
		item.sections = append(item.sections, &data.Section{
			Name: section.Name,
			Text: section.Text,
		})
	}
	result.Sections = len(item.sections)

	for _, doc := range exhibitDocs {
		exhibitURL := edgar.ResolveHref(ref.BaseDir, doc.Href)
		outcome := ingester.fetchExhibit(ctx, exhibitURL)
		if outcome.Degraded() {
			result.DegradedExhibits++
			subLog.Debug().Err(outcome.Err).Str("URL", exhibitURL).Msg("exhibit fetch failed; storing without text")
		}

		item.exhibits = append(item.exhibits, &data.Exhibit{
			FilingAccession: ref.Accession,
			CIK:             ref.CIK,
			Ticker:          ticker,
			Form:            ref.Form,
			FilingDate:      filingDate,
			Filename:        doc.Name,
			URL:             exhibitURL,
			DocType:         doc.Type,
			Description:     doc.Description,
			Size:            doc.Size,
			Text:            outcome.Text,
		})
	}
	result.Exhibits = len(item.exhibits)

	subLog.Info().Str("Primary", primary.Name).Int("Sections", result.Sections).Int("Exhibits", result.Exhibits).
		Int("DegradedExhibits", result.DegradedExhibits).Msg("processed filing")

	return item
}

func (ingester *Ingester) fetchExhibit(ctx context.Context, url string) FetchOutcome {
	markup, err := ingester.source.FetchDocument(ctx, url)
	if err != nil {
		return FetchOutcome{Err: err}
	}

	return FetchOutcome{
		Text: document.Truncate(document.ExtractText(markup, url), ingester.opts.MaxDocChars),
	}
}

func (ingester *Ingester) archive(ctx context.Context, ref *edgar.FilingRef, filename, markup string) {
	if ingester.opts.Archiver == nil {
		return
	}

	key := archive.Key(ref.CIK, ref.Accession, filename)
	if err := ingester.opts.Archiver.Put(ctx, key, []byte(markup)); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("archiving primary document failed")
	}
}

func (ingester *Ingester) monitorStart(ctx context.Context) {
	if ingester.opts.Monitor == nil {
		return
	}
	if err := ingester.opts.Monitor.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("healthcheck start ping failed")
	}
}

func (ingester *Ingester) monitorFinish(ctx context.Context, run *data.IngestRun) {
	if ingester.opts.Monitor == nil {
		return
	}

	msg := fmt.Sprintf("%s: %d ingested, %d skipped", run.Identifier, run.FilingsIngested, run.FilingsSkipped)

	var err error
	if run.Status == data.RunFailed {
		err = ingester.opts.Monitor.Fail(ctx, msg+": "+run.Error)
	} else {
		err = ingester.opts.Monitor.Success(ctx, msg)
	}

	if err != nil {
		log.Warn().Err(err).Msg("healthcheck ping failed")
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
