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
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pvedgar",
	Short: "pvedgar builds a library of SEC EDGAR filings for the Penny Vault family of tools",
	Long: `pvedgar is a command line utility for downloading periodic SEC filings,
separating each filing's primary document from its exhibits, and splitting the
primary document into sections such as Risk Factors and Management's Discussion
and Analysis. Filings are stored in PostgreSQL where they can be annotated with
sentiment, risk labels, and KPI evidence and queried over HTTP.

A filing can be requested by ticker or by CIK:

	pvedgar ingest AAPL --forms 10-K,10-Q --limit 2
	pvedgar ingest 320193

Re-running an ingest is safe; filings are keyed by accession number and
exhibits by accession and filename.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
		if err != nil {
			log.Warn().Str("LogLevel", logLevel).Msg("unknown log level, using info")
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pvedgar.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.PersistentFlags().String("db-url", "", "database connection string")
	if err := viper.BindPFlag("db.url", rootCmd.PersistentFlags().Lookup("db-url")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for db-url failed")
	}

	rootCmd.PersistentFlags().String("user-agent", "", "User-Agent sent to EDGAR, SEC requires a name and email")
	if err := viper.BindPFlag("edgar.user_agent", rootCmd.PersistentFlags().Lookup("user-agent")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for user-agent failed")
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("edgar.rate_limit", 10.0)
	viper.SetDefault("edgar.timeout", 30*time.Second)
	viper.SetDefault("edgar.retries", 4)
	viper.SetDefault("edgar.resolver_ttl", 6*time.Hour)

	viper.SetDefault("ingest.max_doc_chars", 2_000_000)
	viper.SetDefault("ingest.max_section_chars", 500_000)
	viper.SetDefault("ingest.replace_sections", false)

	viper.SetDefault("inference.url", "https://api-inference.huggingface.co/models")
	viper.SetDefault("inference.sentiment_model", "ProsusAI/finbert")
	viper.SetDefault("inference.zeroshot_model", "facebook/bart-large-mnli")
	viper.SetDefault("inference.qa_model", "deepset/roberta-base-squad2")

	viper.SetDefault("server.addr", ":8080")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pvedgar" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".pvedgar")
	}

	// PVEDGAR_DB_URL sets db.url
	viper.SetEnvPrefix("pvedgar")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}
