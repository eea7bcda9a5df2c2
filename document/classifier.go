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
	"strings"
)

// Document is one entry in a filing's document manifest
type Document struct {
	Name        string `json:"name"`
	Href        string `json:"href"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	Description string `json:"description"`
}

var (
	// MainFormTokens are the declared document types of a primary filing document
	MainFormTokens = map[string]bool{
		"10-Q":   true,
		"10-Q/A": true,
		"10-K":   true,
		"10-K/A": true,
		"8-K":    true,
		"20-F":   true,
		"6-K":    true,
	}

	formSubstrings = []string{"10-q", "10-k", "8-k", "20-f", "6-k"}

	exhibitNameRe = regexp.MustCompile(`(?i)(ex[-_\s]?\d+(\.\d+)?)|exhibit|\.xml$|xsd$|cal\.|def\.|lab\.|pre\.`)
	compactFormRe = regexp.MustCompile(`\b(10q|10k|8k|20f|6k)\b`)
)

// IsExhibit reports whether the document is an exhibit or an XBRL artifact
// rather than the filing itself
func IsExhibit(name, description, docType string) bool {
	name = strings.ToLower(name)
	description = strings.ToLower(description)
	docType = strings.ToLower(docType)

	if strings.Contains(name, "exhibit") || exhibitNameRe.MatchString(name) {
		return true
	}

	if strings.Contains(description, "exhibit") {
		return true
	}

	if strings.HasPrefix(docType, "ex-") || strings.HasPrefix(docType, "exhibit") {
		return true
	}

	return strings.HasPrefix(docType, "ex") && strings.ContainsAny(docType, "0123456789")
}

// IsHTMLLike is true for .htm and .html files
func IsHTMLLike(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".htm") || strings.HasSuffix(name, ".html")
}

// LooksIXBRL is a weak inline-XBRL signal taken from the file name
func LooksIXBRL(name string) bool {
	return strings.Contains(strings.ToLower(name), "ix")
}

// MentionsForm reports whether the metadata names one of the primary form types
func MentionsForm(name, description, docType string) bool {
	if MainFormTokens[strings.ToUpper(docType)] {
		return true
	}

	name = strings.ToLower(name)
	description = strings.ToLower(description)
	for _, form := range formSubstrings {
		if strings.Contains(name, form) || strings.Contains(description, form) {
			return true
		}
	}

	return compactFormRe.MatchString(name)
}

// IsMainFiling reports whether the document looks like the primary filing document.
// An exhibit is never a main filing.
func IsMainFiling(name, description, docType string) bool {
	if IsExhibit(name, description, docType) {
		return false
	}

	if !IsHTMLLike(name) {
		return false
	}

	return MentionsForm(name, description, docType) || LooksIXBRL(name)
}

// IsExhibit classifies the manifest entry; see the package level IsExhibit
func (doc Document) IsExhibit() bool {
	return IsExhibit(doc.Name, doc.Description, doc.Type)
}

// IsMainFiling classifies the manifest entry; see the package level IsMainFiling
func (doc Document) IsMainFiling() bool {
	return IsMainFiling(doc.Name, doc.Description, doc.Type)
}

// PickPrimary selects the primary document from a manifest. Candidates are
// considered in tiers (inline XBRL main filings, then main filings, then any
// non-exhibit HTML document); the first non-empty tier wins and the largest
// declared size within it is chosen. Equal sizes resolve to the earliest entry.
// The returned index refers to docs.
func PickPrimary(docs []Document) (int, bool) {
	tiers := []func(Document) bool{
		func(doc Document) bool { return doc.IsMainFiling() && LooksIXBRL(doc.Name) },
		func(doc Document) bool { return doc.IsMainFiling() },
		func(doc Document) bool { return IsHTMLLike(doc.Name) && !doc.IsExhibit() },
	}

	for _, inTier := range tiers {
		best := -1
		for idx, doc := range docs {
			if !inTier(doc) {
				continue
			}
			if best == -1 || doc.Size > docs[best].Size {
				best = idx
			}
		}

		if best != -1 {
			return best, true
		}
	}

	return -1, false
}

// Partition picks the primary document and collects the remaining documents
// that classify as exhibits. Documents that are neither are dropped.
func Partition(docs []Document) (primary Document, exhibits []Document, ok bool) {
	primaryIdx, ok := PickPrimary(docs)
	if !ok {
		return Document{}, nil, false
	}

	exhibits = make([]Document, 0, len(docs))
	for idx, doc := range docs {
		if idx == primaryIdx {
			continue
		}
		if doc.IsExhibit() {
			exhibits = append(exhibits, doc)
		}
	}

	return docs[primaryIdx], exhibits, true
}
