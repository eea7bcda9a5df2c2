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
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hako/durafmt"
	"github.com/penny-vault/pvedgar/ingest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	ingestForms []string
	ingestLimit int
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <ticker|cik>...",
	Short: "Download and store a company's most recent filings",
	Long: `The ingest sub-command resolves each identifier to a CIK, reads the company's
submission history from EDGAR, and stores the most recent filings of the
requested forms. Each filing's primary document is split into sections and
every exhibit is saved with its extracted text.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		client := newEdgarClient()
		resolver := newResolver(client)
		ingester := newIngester(client, myLibrary)

		failed := false
		for _, identifier := range args {
			company, ok := resolver.Resolve(ctx, identifier)
			if !ok {
				log.Error().Str("Identifier", identifier).Msg("unknown identifier (not in SEC ticker list)")
				failed = true
				continue
			}

			result, err := ingester.Ingest(ctx, ingest.Request{
				Identifier: identifier,
				CIK:        company.CIK,
				Ticker:     company.Ticker,
				Forms:      ingestForms,
				Limit:      ingestLimit,
			})
			if err != nil {
				log.Error().Err(err).Str("Identifier", identifier).Msg("ingest failed")
				failed = true
				continue
			}

			fmt.Println(renderIngestResult(result))
		}

		if failed {
			myLibrary.Close()
			log.Fatal().Msg("one or more identifiers could not be ingested")
		}
	},
}

func renderIngestResult(result *ingest.Result) string {
	var sb strings.Builder
	keyword := func(s string) string {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(s)
	}

	run := result.Run
	fmt.Fprintf(&sb, "%s\n\nIdentifier: %s\nCIK: %s\nTicker: %s\nStatus: %s\nRun Time: %s\n\n",
		lipgloss.NewStyle().Bold(true).Render("INGEST "+run.ID.String()[:8]),
		keyword(run.Identifier),
		keyword(run.CIK),
		keyword(run.Ticker),
		keyword(string(run.Status)),
		keyword(durafmt.Parse(run.Duration()).LimitFirstN(2).String()),
	)

	fmt.Fprint(&sb, lipgloss.NewStyle().Bold(true).Render("Filings"))
	if len(result.Filings) == 0 {
		fmt.Fprint(&sb, "\nnone found")
	}

	for _, filing := range result.Filings {
		if filing.Skipped {
			fmt.Fprintf(&sb, "\n%s %s %s skipped: %s", filing.Form, filing.FilingDate, filing.Accession, filing.Reason)
			continue
		}

		fmt.Fprintf(&sb, "\n%s %s %s\n  sections: %s exhibits: %s",
			filing.Form, filing.FilingDate, filing.Accession,
			keyword(fmt.Sprint(filing.Sections)),
			keyword(fmt.Sprint(filing.Exhibits)))
		if filing.DegradedExhibits > 0 {
			fmt.Fprintf(&sb, " (%d without text)", filing.DegradedExhibits)
		}
	}

	return lipgloss.NewStyle().
		Width(72).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(1, 2).
		Render(sb.String())
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSliceVarP(&ingestForms, "forms", "f", ingest.DefaultForms, "forms to ingest")
	ingestCmd.Flags().IntVarP(&ingestLimit, "limit", "n", 1, "number of recent filings to ingest per company")
}
