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
	"os"
	"os/signal"
	"syscall"

	"github.com/penny-vault/pvedgar/api"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var noAutoIngest bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filings library over HTTP",
	Long: `The serve sub-command starts a read-only JSON API over the filings library.
Queries for a company with no stored filings fetch the most recent filing from
EDGAR unless auto ingest is disabled.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		client := newEdgarClient()
		resolver := newResolver(client)

		var server *api.Server
		if noAutoIngest {
			server = api.New(resolver, myLibrary, nil)
		} else {
			server = api.New(resolver, myLibrary, newIngester(client, myLibrary))
		}

		if err := server.ListenAndServe(ctx, viper.GetString("server.addr")); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (default :8080)")
	if err := viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for addr failed")
	}
	serveCmd.Flags().BoolVar(&noAutoIngest, "no-auto-ingest", false, "never fetch filings from EDGAR while serving")
}
