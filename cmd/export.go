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
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gosimple/slug"
	"github.com/penny-vault/pvedgar/edgar"
	"github.com/penny-vault/pvedgar/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	exportDir   string
	exportForms []string
	exportLimit int
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored filings or KPIs to CSV",
}

var exportFilingsCmd = &cobra.Command{
	Use:   "filings <ticker|cik>",
	Short: "Export a company's stored filings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		filings, err := myLibrary.Filings(ctx, exportFilter(args[0]))
		if err != nil {
			log.Fatal().Err(err).Msg("could not query filings")
		}

		writeCSV(exportFileName(args[0], "filings"), &filings, len(filings))
	},
}

var exportKPIsCmd = &cobra.Command{
	Use:   "kpis <ticker|cik>",
	Short: "Export the KPI evidence found in a company's stored filings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		kpis, err := myLibrary.CompanyKPIs(ctx, exportFilter(args[0]))
		if err != nil {
			log.Fatal().Err(err).Msg("could not query kpis")
		}

		writeCSV(exportFileName(args[0], "kpis"), &kpis, len(kpis))
	},
}

// exportFilter matches stored rows without a network lookup; numeric
// identifiers are CIKs and anything else is a ticker
func exportFilter(identifier string) library.FilingFilter {
	filter := library.FilingFilter{
		Forms: exportForms,
		Limit: exportLimit,
	}

	if edgar.IsNumeric(identifier) {
		filter.CIK = edgar.PadCIK(identifier)
	} else {
		filter.Ticker = identifier
	}

	return filter
}

func exportFileName(identifier, kind string) string {
	name := slug.Make(fmt.Sprintf("%s %s %s", identifier, kind, time.Now().Format("2006-01-02")))
	return filepath.Join(exportDir, name+".csv")
}

func writeCSV(fn string, rows any, count int) {
	fh, err := os.Create(fn)
	if err != nil {
		log.Fatal().Err(err).Str("FileName", fn).Msg("could not create export file")
	}
	defer fh.Close()

	if err := gocsv.MarshalFile(rows, fh); err != nil {
		log.Fatal().Err(err).Str("FileName", fn).Msg("could not write csv")
	}

	log.Info().Str("FileName", fn).Int("Rows", count).Msg("export written")
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportFilingsCmd)
	exportCmd.AddCommand(exportKPIsCmd)

	exportCmd.PersistentFlags().StringVarP(&exportDir, "out", "o", ".", "directory to write csv files to")
	exportCmd.PersistentFlags().StringSliceVarP(&exportForms, "forms", "f", nil, "only export these forms")
	exportCmd.PersistentFlags().IntVarP(&exportLimit, "limit", "n", 1000, "maximum number of filings")
}
