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
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrStatus = errors.New("status code is invalid")
)

// Pinger reports job progress to a healthchecks.io check. A Pinger with an
// empty ping url does nothing.
type Pinger struct {
	pingURL string
	client  *resty.Client
}

// New creates a pinger for the check's ping url, e.g.
// https://hc-ping.com/<uuid>
func New(pingURL string) *Pinger {
	return &Pinger{
		pingURL: strings.TrimRight(pingURL, "/"),
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

// Start signals that the job began
func (pinger *Pinger) Start(ctx context.Context) error {
	return pinger.ping(ctx, "/start", "")
}

// Success signals that the job finished; msg is shown in the check's log
func (pinger *Pinger) Success(ctx context.Context, msg string) error {
	return pinger.ping(ctx, "", msg)
}

// Fail signals that the job failed
func (pinger *Pinger) Fail(ctx context.Context, msg string) error {
	return pinger.ping(ctx, "/fail", msg)
}

func (pinger *Pinger) ping(ctx context.Context, suffix, body string) error {
	if pinger == nil || pinger.pingURL == "" {
		return nil
	}

	resp, err := pinger.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(body).
		Post(pinger.pingURL + suffix)
	if err != nil {
		log.Warn().Err(err).Str("Suffix", suffix).Msg("healthcheck ping failed")
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}
