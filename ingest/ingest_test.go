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
package ingest_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvedgar/data"
	"github.com/penny-vault/pvedgar/document"
	"github.com/penny-vault/pvedgar/edgar"
	"github.com/penny-vault/pvedgar/ingest"
)

const (
	annualBase    = "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/"
	quarterlyBase = "https://www.sec.gov/Archives/edgar/data/320193/000032019323000077/"
)

var annualReport = `<html><head><title>aapl-20230930</title></head><body><div>
<p>Apple Inc. annual report for the fiscal year ended September 30, 2023. The Company designs, manufactures and markets smartphones, personal computers, tablets, wearables and accessories.</p>
<p>Item 1A. Risk Factors. The Company's business, reputation, results of operations, financial condition and stock price can be affected by a number of factors, whether currently known or unknown.</p>
<p>Item 7. Management's Discussion and Analysis of Financial Condition and Results of Operations. Total net sales decreased 3% or $11.0 billion during 2023 compared to 2022.</p>
</div></body></html>`

func annualRef() *edgar.FilingRef {
	return &edgar.FilingRef{
		CIK:        "0000320193",
		Form:       "10-K",
		FilingDate: "2023-11-03",
		Accession:  "0000320193-23-000106",
		BaseDir:    annualBase,
		IndexURL:   annualBase + "0000320193-23-000106-index.html",
	}
}

func quarterlyRef() *edgar.FilingRef {
	return &edgar.FilingRef{
		CIK:        "0000320193",
		Form:       "10-Q",
		FilingDate: "2023-08-04",
		Accession:  "0000320193-23-000077",
		BaseDir:    quarterlyBase,
		IndexURL:   quarterlyBase + "0000320193-23-000077-index.html",
	}
}

var _ = Describe("Ingester", func() {
	var (
		ctx      context.Context
		source   *fakeSource
		store    *fakeStore
		archiver *fakeArchiver
		monitor  *fakeMonitor
		ingester *ingest.Ingester
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &fakeSource{
			refs: []*edgar.FilingRef{annualRef(), quarterlyRef()},
			catalogs: map[string][]document.Document{
				"0000320193-23-000106": {
					{Name: "0000320193-23-000106-index.htm", Href: "0000320193-23-000106-index.htm"},
					{Name: "aapl-20230930.htm", Href: "aapl-20230930.htm", Type: "10-K", Size: 9417632},
					{Name: "a10-kexhibit31109302023.htm", Href: "a10-kexhibit31109302023.htm", Type: "EX-31.1", Size: 11020},
					{Name: "a10-kexhibit32109302023.htm", Href: "a10-kexhibit32109302023.htm", Type: "EX-32.1", Size: 9000},
					{Name: "R1.htm", Href: "R1.htm"},
				},
				"0000320193-23-000077": {
					{Name: "FilingSummary.xml", Href: "FilingSummary.xml"},
				},
			},
			docs: map[string]string{
				annualBase + "aapl-20230930.htm":           annualReport,
				annualBase + "a10-kexhibit31109302023.htm": "<html><body><p>Certification of the Chief Executive Officer pursuant to Section 302.</p></body></html>",
			},
		}
		store = &fakeStore{}
		archiver = &fakeArchiver{}
		monitor = &fakeMonitor{}
		ingester = ingest.New(source, store, ingest.Options{Archiver: archiver, Monitor: monitor})
	})

	It("requires a CIK", func() {
		_, err := ingester.Ingest(ctx, ingest.Request{Ticker: "AAPL"})
		Expect(err).To(MatchError(ingest.ErrMissingCIK))
	})

	It("stores the primary document, its sections and exhibits", func() {
		result, err := ingester.Ingest(ctx, ingest.Request{Identifier: "aapl", CIK: "320193", Ticker: "aapl", Forms: []string{"10-K"}, Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Ingested()).To(Equal(1))
		Expect(store.committed).To(HaveLen(1))

		saved := store.committed[0]
		Expect(saved.filing.Accession).To(Equal("0000320193-23-000106"))
		Expect(saved.filing.CIK).To(Equal("0000320193"))
		Expect(saved.filing.Ticker).To(Equal("AAPL"))
		Expect(saved.filing.Filename).To(Equal("aapl-20230930.htm"))
		Expect(saved.filing.SourceURL).To(Equal(annualBase + "aapl-20230930.htm"))
		Expect(saved.filing.FilingDate.Format(data.DateLayout)).To(Equal("2023-11-03"))
		Expect(saved.filing.RawText).To(ContainSubstring("Total net sales decreased 3%"))

		names := make([]string, 0, len(saved.sections))
		for _, section := range saved.sections {
			names = append(names, section.Name)
		}
		Expect(names).To(Equal([]string{"Risk Factors", "MD&A"}))
		Expect(saved.sections[0].Text).To(HavePrefix("Risk Factors"))

		Expect(saved.exhibits).To(HaveLen(2))
		Expect(saved.exhibits[0].Filename).To(Equal("a10-kexhibit31109302023.htm"))
		Expect(saved.exhibits[0].Text).To(ContainSubstring("Certification of the Chief Executive Officer"))
		Expect(saved.exhibits[0].DocType).To(Equal("EX-31.1"))
		Expect(saved.exhibits[0].Ticker).To(Equal("AAPL"))
		Expect(saved.exhibits[1].Text).To(BeEmpty())

		filingResult := result.Filings[0]
		Expect(filingResult.Skipped).To(BeFalse())
		Expect(filingResult.FilingID).To(Equal(saved.filing.ID))
		Expect(filingResult.Sections).To(Equal(2))
		Expect(filingResult.Exhibits).To(Equal(2))
		Expect(filingResult.DegradedExhibits).To(Equal(1))

		Expect(source.fetched).NotTo(ContainElement(annualBase + "R1.htm"))
	})

	It("stores an unparseable filing date as unknown", func() {
		source.refs[0].FilingDate = "2023-13-45"

		_, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Forms: []string{"10-K"}, Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.committed).To(HaveLen(1))

		saved := store.committed[0]
		Expect(saved.filing.FilingDate).To(BeNil())
		for _, exhibit := range saved.exhibits {
			Expect(exhibit.FilingDate).To(BeNil())
		}
	})

	It("skips filings without a primary document and keeps the rest", func() {
		result, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Forms: []string{"10-K", "10-Q"}, Limit: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.committed).To(HaveLen(1))

		Expect(result.Filings).To(HaveLen(2))
		Expect(result.Filings[1].Skipped).To(BeTrue())
		Expect(result.Filings[1].Reason).To(ContainSubstring(ingest.ErrNoPrimaryDocument.Error()))

		Expect(result.Run.FilingsIngested).To(Equal(1))
		Expect(result.Run.FilingsSkipped).To(Equal(1))
		Expect(result.Run.Status).To(Equal(data.RunPartial))
	})

	It("skips a filing whose primary document cannot be fetched", func() {
		delete(source.docs, annualBase+"aapl-20230930.htm")

		result, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Filings[0].Skipped).To(BeTrue())
		Expect(store.committed).To(BeEmpty())
	})

	It("rolls back only the filing that failed to save", func() {
		source.catalogs["0000320193-23-000077"] = []document.Document{
			{Name: "aapl-20230701.htm", Href: "aapl-20230701.htm", Type: "10-Q", Size: 100},
		}
		source.docs[quarterlyBase+"aapl-20230701.htm"] = "<html><body><p>Quarterly report with no recognized headings at all.</p></body></html>"
		store.failOn = "0000320193-23-000106"

		result, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Limit: 2})
		Expect(err).NotTo(HaveOccurred())

		Expect(store.committed).To(HaveLen(1))
		Expect(store.committed[0].filing.Accession).To(Equal("0000320193-23-000077"))
		Expect(store.committed[0].sections).To(HaveLen(1))
		Expect(store.committed[0].sections[0].Name).To(Equal(document.FallbackSectionName))

		Expect(result.Filings[0].Skipped).To(BeTrue())
		Expect(result.Filings[0].Reason).To(HavePrefix("save failed"))
		Expect(result.Run.FilingsIngested).To(Equal(1))
	})

	It("fails the run when the manifest cannot be read", func() {
		source.refsErr = errors.New("submissions unavailable")

		result, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL"})
		Expect(err).To(HaveOccurred())
		Expect(result.Run.Status).To(Equal(data.RunFailed))
		Expect(store.runs).To(HaveLen(1))
		Expect(monitor.events).To(HaveLen(2))
		Expect(monitor.events[1]).To(HavePrefix("fail: "))
	})

	It("fails the run when the batch cannot be committed", func() {
		store.commitErr = errors.New("connection reset")

		result, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Limit: 1})
		Expect(err).To(MatchError("connection reset"))
		Expect(store.committed).To(BeEmpty())
		Expect(result.Run.FilingsIngested).To(Equal(0))
		Expect(result.Run.Status).To(Equal(data.RunFailed))
	})

	It("truncates long documents", func() {
		ingester = ingest.New(source, store, ingest.Options{MaxDocChars: 40, MaxSectionChars: 10})

		_, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Limit: 1})
		Expect(err).NotTo(HaveOccurred())

		saved := store.committed[0]
		Expect(len([]rune(saved.filing.RawText))).To(BeNumerically("<=", 40))
		for _, section := range saved.sections {
			Expect(len([]rune(section.Text))).To(BeNumerically("<=", 10))
		}
	})

	It("archives primary documents and reports to the monitor", func() {
		_, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL", Limit: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(archiver.keys).To(Equal([]string{"320193/0000320193-23-000106/aapl-20230930.htm"}))
		Expect(monitor.events).To(HaveLen(2))
		Expect(monitor.events[0]).To(Equal("start"))
		Expect(strings.HasPrefix(monitor.events[1], "success: AAPL: 1 ingested")).To(BeTrue())
	})

	It("records every run", func() {
		source.refs = nil

		result, err := ingester.Ingest(ctx, ingest.Request{CIK: "320193", Ticker: "AAPL"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Filings).To(BeEmpty())
		Expect(store.runs).To(HaveLen(1))
		Expect(store.runs[0].Status).To(Equal(data.RunSucceeded))
		Expect(store.runs[0].Forms).To(Equal(ingest.DefaultForms))
	})
})
