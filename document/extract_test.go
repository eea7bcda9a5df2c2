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
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvedgar/document"
)

var _ = Describe("Extractor", func() {
	It("strips tags and keeps block boundaries", func() {
		markup := `<html><head><style>p { color: red; }</style><script>var x = 1;</script></head>
<body><div>Item&nbsp;1A.</div><p>Risk   Factors &amp; uncertainties</p><table><tr><td>Revenue</td><td>$1,000</td></tr></table></body></html>`

		text := document.StripTags(markup)
		Expect(text).To(ContainSubstring("Item 1A."))
		Expect(text).To(ContainSubstring("Risk Factors & uncertainties"))
		Expect(text).To(ContainSubstring("Revenue $1,000"))
		Expect(text).NotTo(ContainSubstring("color: red"))
		Expect(text).NotTo(ContainSubstring("var x"))
		Expect(text).NotTo(ContainSubstring("<"))
	})

	It("extracts readable text from a filing page", func() {
		markup := `<html><head><title>10-Q</title><script>track();</script></head><body>
<p>Net sales increased 8% compared to the prior year quarter, driven by higher iPhone and Services revenue across all geographic segments.</p>
<p>Operating income was $26.0 billion for the quarter, reflecting continued gross margin expansion and disciplined operating expense growth.</p>
</body></html>`

		text := document.ExtractText(markup, "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm")
		Expect(text).To(ContainSubstring("Net sales increased 8%"))
		Expect(text).To(ContainSubstring("Operating income was $26.0 billion"))
		Expect(text).NotTo(ContainSubstring("track()"))
	})

	It("keeps paragraphs and table cells apart in markup without line breaks", func() {
		var sb strings.Builder
		sb.WriteString(`<html><head><title>10-K</title></head><body><div id="main">`)
		paragraphs := make([]string, 0, 8)
		for idx := 1; idx <= 8; idx++ {
			paragraph := fmt.Sprintf("Paragraph %d discusses net sales, operating expenses and the risks facing our business in many countries in some detail.", idx)
			paragraphs = append(paragraphs, paragraph)
			sb.WriteString("<div>" + paragraph + "</div>")
		}
		sb.WriteString(`<table><tr><th></th><th>2023</th><th>2022</th><th>2021</th></tr>`)
		for _, label := range []string{"Products", "Services", "Total net sales", "Cost of sales", "Gross margin"} {
			sb.WriteString("<tr><td>" + label + "</td><td>$383,285</td><td>394,328</td><td>365,817</td></tr>")
		}
		sb.WriteString(`</table></div></body></html>`)

		text := document.ExtractText(sb.String(), "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm")
		lines := strings.Split(text, "\n")

		Expect(len(lines)).To(BeNumerically(">", 8))
		for _, paragraph := range paragraphs {
			Expect(lines).To(ContainElement(paragraph))
		}
		Expect(text).NotTo(ContainSubstring("detail.Paragraph"))
		Expect(text).To(ContainSubstring("$383,285 394,328 365,817"))
		Expect(text).NotTo(ContainSubstring("383,285394,328"))
	})

	It("falls back to tag stripping for markup without an article", func() {
		text := document.ExtractText("<xbrl><context>FY2023</context></xbrl>", "not a url %%")
		Expect(text).To(Equal("FY2023"))
	})

	It("normalizes whitespace", func() {
		Expect(document.NormalizeWhitespace("  a \t b \r\n\n\n\n c  ")).To(Equal("a b\n\nc"))
	})

	It("truncates by characters", func() {
		Expect(document.Truncate("héllo wörld", 5)).To(Equal("héllo"))
		Expect(document.Truncate("abc", 10)).To(Equal("abc"))
		Expect(document.Truncate("abc", 0)).To(Equal(""))
		Expect(document.Truncate("abc", -1)).To(Equal("abc"))
	})
})
