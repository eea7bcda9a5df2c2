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
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvedgar/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type dbConfig struct {
	URL string `toml:"url"`
}

type edgarConfig struct {
	UserAgent string  `toml:"user_agent"`
	RateLimit float64 `toml:"rate_limit"`
}

type inferenceConfig struct {
	URL   string `toml:"url,omitempty"`
	Token string `toml:"token,omitempty"`
}

type healthchecksConfig struct {
	PingURL string `toml:"ping_url,omitempty"`
}

type fileConfig struct {
	DB           dbConfig           `toml:"db"`
	Edgar        edgarConfig        `toml:"edgar"`
	Inference    inferenceConfig    `toml:"inference"`
	Healthchecks healthchecksConfig `toml:"healthchecks"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather database and EDGAR configuration and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		conf := fileConfig{
			Edgar: edgarConfig{RateLimit: 10},
		}

		form := huh.NewForm(
			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&conf.DB.URL).
					Validate(func(dsn string) error {
						_, err := pgx.ParseConfig(dsn)
						return err
					}),
			),

			// SEC fair access requires a declared user agent
			huh.NewGroup(
				huh.NewInput().
					Title("User-Agent for EDGAR requests (name and email, e.g. Jane Doe jane@example.com)").
					Value(&conf.Edgar.UserAgent).
					Validate(func(agent string) error {
						if !strings.Contains(agent, "@") {
							return errors.New("include a contact email address")
						}
						return nil
					}),
			),

			// Optional services
			huh.NewGroup(
				huh.NewInput().
					Title("Hugging Face API token (leave blank to skip annotation)").
					Password(true).
					Value(&conf.Inference.Token),

				huh.NewInput().
					Title("healthchecks.io ping URL (optional)").
					Value(&conf.Healthchecks.PingURL),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering configuration")
		}

		log.Info().Msg("creating database tables")

		err = db.Migrate(conf.DB.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("database tables created")

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		configFN := filepath.Join(home, ".pvedgar.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving configuration to config file")
		configData, err := toml.Marshal(conf)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0600)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("Your filings library has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
