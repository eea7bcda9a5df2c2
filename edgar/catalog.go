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
package edgar

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/penny-vault/pvedgar/document"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

var sizeRe = regexp.MustCompile(`([\d,]+)`)

// Catalog lists the documents in a submission. The structured index.json
// listing is preferred; the rendered index page is parsed when the listing is
// empty or cannot be fetched. Entries without a name or href are dropped.
func (client *Client) Catalog(ctx context.Context, ref *FilingRef) []document.Document {
	subLog := log.With().Str("Accession", ref.Accession).Logger()

	var docs []document.Document
	body, err := client.Get(ctx, ref.BaseDir+"index.json")
	if err != nil {
		subLog.Debug().Err(err).Msg("index.json not usable")
	} else {
		docs = ParseIndexJSON(body)
	}

	if len(docs) == 0 {
		body, err := client.Get(ctx, ref.IndexURL)
		if err != nil {
			subLog.Debug().Err(err).Str("URL", ref.IndexURL).Msg("fetching index page failed")
			return []document.Document{}
		}

		docs, err = ParseIndexHTML(body)
		if err != nil {
			subLog.Debug().Err(err).Str("URL", ref.IndexURL).Msg("parsing index page failed")
			return []document.Document{}
		}
	}

	catalog := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Name == "" || doc.Href == "" {
			continue
		}
		catalog = append(catalog, doc)
	}

	return catalog
}

// ParseIndexJSON reads the directory listing served as index.json. Listings
// carry no description and usually no href, in which case the name is used.
func ParseIndexJSON(body []byte) []document.Document {
	items := gjson.GetBytes(body, "directory.item").Array()
	docs := make([]document.Document, 0, len(items))

	for _, item := range items {
		doc := document.Document{
			Name:        strings.TrimSpace(item.Get("name").String()),
			Href:        strings.TrimSpace(item.Get("href").String()),
			Type:        strings.TrimSpace(item.Get("type").String()),
			Size:        item.Get("size").Int(),
			Description: item.Get("description").String(),
		}

		if doc.Href == "" {
			doc.Href = doc.Name
		}

		docs = append(docs, doc)
	}

	return docs
}

// ParseIndexHTML reads the document table(s) of a rendered filing index page.
// Columns are located by their header text so that tables with a leading
// sequence column parse the same as tables that start with the document link.
func ParseIndexHTML(body []byte) ([]document.Document, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	docs := make([]document.Document, 0, 16)
	page.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		header := rows.First()
		if header.Length() == 0 {
			return
		}

		headerText := strings.ToLower(strings.Join(strings.Fields(header.Text()), " "))
		if !strings.Contains(headerText, "document") || !strings.Contains(headerText, "type") {
			return
		}

		cols := locateColumns(header)

		rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cells := row.Children().Filter("td,th")
			if cells.Length() < 2 {
				return
			}

			link := cells.Eq(cols.document).Find("a[href]").First()
			href, ok := link.Attr("href")
			if !ok {
				return
			}

			name := ""
			if fields := strings.Fields(link.Text()); len(fields) > 0 {
				name = fields[0]
			}

			doc := document.Document{
				Name: name,
				Href: normalizeHref(strings.TrimSpace(href)),
			}

			if cols.docType >= 0 && cols.docType < cells.Length() {
				doc.Type = cellText(cells.Eq(cols.docType))
			}
			if cols.description >= 0 && cols.description < cells.Length() {
				doc.Description = cellText(cells.Eq(cols.description))
			}
			if cols.size >= 0 && cols.size < cells.Length() {
				doc.Size = parseSize(cellText(cells.Eq(cols.size)))
			}

			if doc.Name != "" && doc.Href != "" {
				docs = append(docs, doc)
			}
		})
	})

	return docs, nil
}

type indexColumns struct {
	document    int
	docType     int
	description int
	size        int
}

// locateColumns maps header cells to column positions. Missing columns fall
// back to the classic Document, Type, Description, Size layout.
func locateColumns(header *goquery.Selection) indexColumns {
	cols := indexColumns{document: -1, docType: -1, description: -1, size: -1}
	cells := header.Children().Filter("td,th")

	cells.Each(func(idx int, cell *goquery.Selection) {
		text := strings.ToLower(cellText(cell))
		switch {
		case cols.document == -1 && (strings.Contains(text, "document") || text == "name"):
			cols.document = idx
		case cols.docType == -1 && strings.Contains(text, "type"):
			cols.docType = idx
		case cols.description == -1 && strings.Contains(text, "description"):
			cols.description = idx
		case cols.size == -1 && strings.Contains(text, "size"):
			cols.size = idx
		}
	})

	if cols.document == -1 {
		cols.document = 0
	}
	if cols.docType == -1 {
		cols.docType = 1
	}
	if cols.description == -1 {
		cols.description = 2
	}
	if cols.size == -1 && cells.Length() >= 4 {
		cols.size = cells.Length() - 1
	}

	return cols
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}

func parseSize(text string) int64 {
	match := sizeRe.FindString(text)
	if match == "" {
		return 0
	}

	size, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return size
}

// normalizeHref unwraps links into the inline XBRL viewer (/ix?doc=...) so
// that the raw document is fetched instead of the viewer page
func normalizeHref(href string) string {
	if !strings.HasPrefix(href, "/ix?") && !strings.HasPrefix(href, "ix?") {
		return href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	if doc := parsed.Query().Get("doc"); doc != "" {
		return doc
	}
	return href
}

// ResolveHref resolves a catalog href against the submission's directory
func ResolveHref(baseDir, href string) string {
	base, err := url.Parse(baseDir)
	if err != nil {
		return baseDir + href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return baseDir + href
	}

	return base.ResolveReference(ref).String()
}
