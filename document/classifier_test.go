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
package document_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvedgar/document"
)

var _ = Describe("Classifier", func() {
	DescribeTable("IsExhibit",
		func(name, description, docType string, expected bool) {
			Expect(document.IsExhibit(name, description, docType)).To(Equal(expected))
		},
		Entry("exhibit in name", "exhibit99.htm", "", "", true),
		Entry("ex-12.3 style name", "ex-12.3.htm", "", "", true),
		Entry("compact ex31 name", "ex31.htm", "", "", true),
		Entry("xbrl instance", "aapl-20230930_htm.xml", "", "", true),
		Entry("xbrl schema", "aapl-20230930.xsd", "", "", true),
		Entry("calculation linkbase", "aapl-20230930_cal.xml", "", "", true),
		Entry("label linkbase marker", "aapl-20230930_lab.htm", "", "", true),
		Entry("exhibit description", "d123.htm", "Exhibit 99.1 press release", "", true),
		Entry("EX- type", "d123.htm", "", "EX-31.1", true),
		Entry("ex type with digit", "d123.htm", "", "ex101", true),
		Entry("primary 10-Q", "aapl-20230930.htm", "", "10-Q", false),
		Entry("ex type without digit", "d123.htm", "", "extra", false),
		Entry("index page", "0000320193-23-000106-index.htm", "", "", false),
	)

	DescribeTable("MentionsForm",
		func(name, description, docType string, expected bool) {
			Expect(document.MentionsForm(name, description, docType)).To(Equal(expected))
		},
		Entry("declared type", "d1.htm", "", "10-K", true),
		Entry("declared amended type", "d1.htm", "", "10-q/a", true),
		Entry("name substring", "form10-k2023.htm", "", "", true),
		Entry("description substring", "d1.htm", "Annual report on Form 20-F", "", true),
		Entry("compact token on word boundary", "msft-10k_2023.htm", "", "", false),
		Entry("compact token standalone", "10k.htm", "", "", true),
		Entry("compact 8k token", "acme 8k.htm", "", "", true),
		Entry("nothing", "d1.htm", "cover", "GRAPHIC", false),
	)

	It("recognizes html names", func() {
		Expect(document.IsHTMLLike("A.HTM")).To(BeTrue())
		Expect(document.IsHTMLLike("a.html")).To(BeTrue())
		Expect(document.IsHTMLLike("a.txt")).To(BeFalse())
	})

	It("never classifies an exhibit as a main filing", func() {
		names := []string{
			"ex31.htm", "exhibit99.htm", "aapl-20230930.htm", "aapl-20230930x10q.htm",
			"d10k.htm", "R1.htm", "aapl-20230930_pre.xml", "ixviewer.html", "10-q.htm",
		}
		descriptions := []string{"", "EXHIBIT 31", "10-Q", "cover page"}
		types := []string{"", "10-Q", "EX-99.1", "ex21", "GRAPHIC", "XML"}

		for _, name := range names {
			for _, description := range descriptions {
				for _, docType := range types {
					if document.IsExhibit(name, description, docType) {
						Expect(document.IsMainFiling(name, description, docType)).To(BeFalse(),
							"%s / %s / %s", name, description, docType)
					}
				}
			}
		}
	})

	Describe("PickPrimary", func() {
		It("selects the 10-Q and classifies the certification as an exhibit", func() {
			docs := []document.Document{
				{Name: "aapl-20230930.htm", Type: "10-Q", Size: 500000},
				{Name: "ex31.htm", Type: "EX-31.1", Size: 2000},
			}

			primary, exhibits, ok := document.Partition(docs)
			Expect(ok).To(BeTrue())
			Expect(primary.Name).To(Equal("aapl-20230930.htm"))
			Expect(exhibits).To(HaveLen(1))
			Expect(exhibits[0].Name).To(Equal("ex31.htm"))
		})

		It("prefers inline XBRL main filings over larger plain ones", func() {
			docs := []document.Document{
				{Name: "d10q.htm", Type: "10-Q", Size: 900000},
				{Name: "acme-ix10q.htm", Type: "10-Q", Size: 400000},
			}

			idx, ok := document.PickPrimary(docs)
			Expect(ok).To(BeTrue())
			Expect(docs[idx].Name).To(Equal("acme-ix10q.htm"))
		})

		It("falls back to the largest non-exhibit html document", func() {
			docs := []document.Document{
				{Name: "cover.htm", Size: 100},
				{Name: "body.htm", Size: 5000},
				{Name: "ex99.htm", Size: 90000},
				{Name: "report.pdf", Size: 900000},
			}

			idx, ok := document.PickPrimary(docs)
			Expect(ok).To(BeTrue())
			Expect(docs[idx].Name).To(Equal("body.htm"))
		})

		It("returns nothing when no html document qualifies", func() {
			docs := []document.Document{
				{Name: "ex99.htm", Size: 90000},
				{Name: "acme.xsd", Size: 500},
				{Name: "report.txt", Size: 900000},
			}

			_, ok := document.PickPrimary(docs)
			Expect(ok).To(BeFalse())

			_, _, ok = document.Partition(docs)
			Expect(ok).To(BeFalse())
		})

		It("breaks size ties by manifest order", func() {
			docs := []document.Document{
				{Name: "first-10k.htm", Type: "10-K", Size: 1000},
				{Name: "second-10k.htm", Type: "10-K", Size: 1000},
			}

			for ii := 0; ii < 5; ii++ {
				idx, ok := document.PickPrimary(docs)
				Expect(ok).To(BeTrue())
				Expect(idx).To(Equal(0))
			}
		})

		It("drops documents that are neither primary nor exhibit", func() {
			docs := []document.Document{
				{Name: "acme-10k.htm", Type: "10-K", Size: 1000},
				{Name: "logo.jpg", Type: "GRAPHIC", Size: 10},
				{Name: "Financial_Report.xlsx", Size: 10},
				{Name: "acme-20231231_def.xml", Size: 10},
			}

			primary, exhibits, ok := document.Partition(docs)
			Expect(ok).To(BeTrue())
			Expect(primary.Name).To(Equal("acme-10k.htm"))
			Expect(exhibits).To(HaveLen(1))
			Expect(exhibits[0].Name).To(Equal("acme-20231231_def.xml"))
		})
	})
})
