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
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// FilingRef identifies one submission in a company's filing history
type FilingRef struct {
	CIK        string
	Form       string
	FilingDate string
	Accession  string

	// BaseDir is the archive directory holding the submission's documents; it
	// always ends with a slash
	BaseDir  string
	IndexURL string
}

// PadCIK zero-pads a numeric CIK to the canonical 10 digits
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// TrimCIK removes leading zeros, as used in archive paths
func TrimCIK(cik string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// IsNumeric is true when s is a non-empty string of ASCII digits
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SubmissionsURL is the JSON manifest of a company's recent filings
func (client *Client) SubmissionsURL(cik string) string {
	return fmt.Sprintf("%s/submissions/CIK%s.json", client.opts.DataURL, PadCIK(cik))
}

// RecentFilings returns up to limit of the company's most recent filings whose
// form is in forms. An empty forms list matches every form and a limit below 1
// returns every match.
func (client *Client) RecentFilings(ctx context.Context, cik string, forms []string, limit int) ([]*FilingRef, error) {
	body, err := client.Get(ctx, client.SubmissionsURL(cik))
	if err != nil {
		return nil, err
	}

	refs := client.parseSubmissions(cik, body, forms, limit)
	log.Debug().Str("CIK", PadCIK(cik)).Strs("Forms", forms).Int("NumFilings", len(refs)).Msg("discovered recent filings")
	return refs, nil
}

func (client *Client) parseSubmissions(cik string, body []byte, forms []string, limit int) []*FilingRef {
	wanted := make(map[string]bool, len(forms))
	for _, form := range forms {
		wanted[strings.TrimSpace(form)] = true
	}

	recent := gjson.GetBytes(body, "filings.recent")
	formList := recent.Get("form").Array()
	dateList := recent.Get("filingDate").Array()
	accessionList := recent.Get("accessionNumber").Array()

	count := min(len(formList), len(dateList), len(accessionList))
	refs := make([]*FilingRef, 0, count)

	for idx := 0; idx < count; idx++ {
		form := formList[idx].String()
		if len(wanted) > 0 && !wanted[form] {
			continue
		}

		accession := accessionList[idx].String()
		noDash := strings.ReplaceAll(accession, "-", "")
		baseDir := fmt.Sprintf("%s/%s/%s/", client.opts.ArchivesURL, TrimCIK(cik), noDash)

		refs = append(refs, &FilingRef{
			CIK:        PadCIK(cik),
			Form:       form,
			FilingDate: dateList[idx].String(),
			Accession:  accession,
			BaseDir:    baseDir,
			IndexURL:   baseDir + accession + "-index.html",
		})

		if limit > 0 && len(refs) >= limit {
			break
		}
	}

	return refs
}
