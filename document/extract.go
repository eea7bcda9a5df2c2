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
	"html"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	blockEndRe     = regexp.MustCompile(`(?i)(<br\s*/?>|</(p|div|tr|li|h[1-6]|table|section|article|center)\s*>)`)
	cellEndRe      = regexp.MustCompile(`(?i)</t[dh]\s*>`)
	horizontalWsRe = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// ExtractText converts document markup to plain text. A readability pass that
// strips page boilerplate is tried first and its cleaned markup is converted
// with StripTags, so block elements stay on separate lines and table cells
// stay apart. When that yields nothing the original markup is stripped instead.
func ExtractText(markup, sourceURL string) string {
	pageURL, err := url.Parse(sourceURL)
	if err != nil || pageURL == nil {
		pageURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(markup), pageURL)
	if err != nil {
		log.Debug().Err(err).Str("URL", sourceURL).Msg("readability could not parse document, falling back to tag stripping")
	} else if text := StripTags(article.Content); text != "" {
		return text
	}

	return StripTags(markup)
}

// StripTags removes all markup, keeping a line break after block level elements
func StripTags(markup string) string {
	markup = blockEndRe.ReplaceAllString(markup, "$1\n")
	markup = cellEndRe.ReplaceAllString(markup, "$0\t")
	text := html.UnescapeString(stripPolicy.Sanitize(markup))
	return NormalizeWhitespace(text)
}

// NormalizeWhitespace collapses runs of horizontal whitespace, trims every
// line and limits consecutive blank lines to one
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for idx, line := range lines {
		lines[idx] = strings.TrimSpace(horizontalWsRe.ReplaceAllString(line, " "))
	}

	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate limits s to at most n characters
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}

	count := 0
	for idx := range s {
		if count == n {
			return s[:idx]
		}
		count++
	}

	return s
}
