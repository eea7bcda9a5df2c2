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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <ticker|cik>...",
	Short: "Look up the CIK and ticker for each identifier",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		resolver := newResolver(newEdgarClient())

		if err := resolver.Refresh(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not download company tickers")
		}

		for _, identifier := range args {
			company, ok := resolver.Resolve(ctx, identifier)
			if !ok {
				fmt.Printf("%s\tnot found\n", identifier)
				continue
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", identifier, company.CIK, company.Ticker, company.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
