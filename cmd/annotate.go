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
	"time"

	"github.com/hako/durafmt"
	"github.com/penny-vault/pvedgar/annotate"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var annotateLimit int

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Score sentiment, risk labels, and KPIs for sections that have not been annotated",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		annotator := annotate.New(newInference(), myLibrary, annotate.DefaultOptions())

		start := time.Now()
		summary, err := annotator.Run(ctx, annotateLimit)
		if err != nil {
			myLibrary.Close()
			log.Fatal().Err(err).Msg("annotation failed")
		}

		log.Info().Int("Annotated", summary.Annotated).Int("Pending", summary.Pending).
			Str("RunTime", durafmt.Parse(time.Since(start)).LimitFirstN(2).String()).
			Msg("annotation finished")
	},
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	annotateCmd.Flags().IntVarP(&annotateLimit, "limit", "n", 50, "maximum number of sections to annotate")
}
