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

	"github.com/penny-vault/pvedgar/annotate"
	"github.com/penny-vault/pvedgar/archive"
	"github.com/penny-vault/pvedgar/edgar"
	"github.com/penny-vault/pvedgar/healthcheck"
	"github.com/penny-vault/pvedgar/ingest"
	"github.com/penny-vault/pvedgar/library"
	"github.com/penny-vault/pvedgar/pkginfo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func openLibrary(ctx context.Context) *library.Library {
	myLibrary, err := library.New(ctx, viper.GetString("db.url"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to library")
	}
	myLibrary.ReplaceSections = viper.GetBool("ingest.replace_sections")
	return myLibrary
}

func newEdgarClient() *edgar.Client {
	userAgent := viper.GetString("edgar.user_agent")
	if userAgent == "" {
		log.Fatal().Msg("edgar.user_agent must be set; SEC requires a contact name and email (e.g. \"Jane Doe jane@example.com\")")
	}

	return edgar.New(edgar.Options{
		UserAgent:  pkginfo.UserAgent(userAgent),
		RateLimit:  viper.GetFloat64("edgar.rate_limit"),
		Timeout:    viper.GetDuration("edgar.timeout"),
		RetryCount: viper.GetInt("edgar.retries"),
	})
}

func newResolver(client *edgar.Client) *edgar.Resolver {
	return edgar.NewResolver(client, viper.GetDuration("edgar.resolver_ttl"))
}

func newIngester(client *edgar.Client, myLibrary *library.Library) *ingest.Ingester {
	opts := ingest.Options{
		MaxDocChars:     viper.GetInt("ingest.max_doc_chars"),
		MaxSectionChars: viper.GetInt("ingest.max_section_chars"),
	}

	// only set interface values when configured so nil checks in the
	// ingester see a nil interface
	if bucket := viper.GetString("archive.bucket"); bucket != "" {
		b2, err := archive.NewB2(viper.GetString("backblaze.application_id"), viper.GetString("backblaze.application_key"), bucket)
		if err != nil {
			log.Fatal().Err(err).Str("Bucket", bucket).Msg("could not open archive bucket")
		}
		opts.Archiver = b2
	}

	if pingURL := viper.GetString("healthchecks.ping_url"); pingURL != "" {
		opts.Monitor = healthcheck.New(pingURL)
	}

	return ingest.New(client, myLibrary, opts)
}

func newInference() *annotate.HuggingFace {
	return annotate.NewHuggingFace(
		viper.GetString("inference.url"),
		viper.GetString("inference.token"),
		annotate.Models{
			Sentiment: viper.GetString("inference.sentiment_model"),
			ZeroShot:  viper.GetString("inference.zeroshot_model"),
			QA:        viper.GetString("inference.qa_model"),
		},
	)
}
