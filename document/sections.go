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
package document

import (
	"regexp"
	"sort"
	"strings"
)

// FallbackSectionName is the section name used when no anchor phrase is present
const FallbackSectionName = "Document"

// Section is a named contiguous slice of a document's text
type Section struct {
	Name string
	Text string
}

type anchor struct {
	name    string
	pattern *regexp.Regexp
}

func newAnchor(phrase, name string) anchor {
	return anchor{
		name:    name,
		pattern: regexp.MustCompile("(?i)" + regexp.QuoteMeta(phrase)),
	}
}

// anchors are scanned in this order; several phrases may name the same section
var anchors = []anchor{
	newAnchor("RISK FACTORS", "Risk Factors"),
	newAnchor("MANAGEMENT’S DISCUSSION", "MD&A"),
	newAnchor("MANAGEMENT'S DISCUSSION", "MD&A"),
	newAnchor("QUANTITATIVE AND QUALITATIVE", "Market Risk"),
}

type anchorHit struct {
	offset int
	name   string
}

// SplitSections partitions text into named sections using the first
// occurrence of each anchor phrase. Sections are returned in document order
// and run from their anchor to the next anchor (or the end of the text). Text
// without any anchor becomes a single section named "Document".
func SplitSections(text string) []Section {
	firstByName := make(map[string]int, len(anchors))
	for _, a := range anchors {
		loc := a.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}

		if prev, ok := firstByName[a.name]; !ok || loc[0] < prev {
			firstByName[a.name] = loc[0]
		}
	}

	if len(firstByName) == 0 {
		return []Section{{Name: FallbackSectionName, Text: text}}
	}

	hits := make([]anchorHit, 0, len(firstByName))
	for name, offset := range firstByName {
		hits = append(hits, anchorHit{offset: offset, name: name})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].offset == hits[j].offset {
			return hits[i].name < hits[j].name
		}
		return hits[i].offset < hits[j].offset
	})

	sections := make([]Section, 0, len(hits))
	for idx, hit := range hits {
		end := len(text)
		if idx+1 < len(hits) {
			end = hits[idx+1].offset
		}

		sections = append(sections, Section{
			Name: hit.name,
			Text: strings.TrimSpace(text[hit.offset:end]),
		})
	}

	return sections
}

// TruncateSections caps the text of every section at maxChars characters
func TruncateSections(sections []Section, maxChars int) []Section {
	for idx := range sections {
		sections[idx].Text = Truncate(sections[idx].Text, maxChars)
	}
	return sections
}
