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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DataURL           = "https://data.sec.gov"
	ArchivesURL       = "https://www.sec.gov/Archives/edgar/data"
	CompanyTickersURL = "https://www.sec.gov/files/company_tickers.json"
)

var (
	ErrStatus         = errors.New("edgar returned an invalid status code")
	ErrUserAgentUnset = errors.New("edgar requires a user agent that identifies the requester")
)

// Options configure the EDGAR client. The zero value of a URL field means the
// public SEC endpoint.
type Options struct {
	UserAgent string

	// RateLimit is the maximum number of requests per second; SEC fair access
	// allows 10
	RateLimit float64

	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration

	DataURL           string
	ArchivesURL       string
	CompanyTickersURL string
}

// DefaultOptions returns settings that follow the SEC fair access policy
func DefaultOptions() Options {
	return Options{
		RateLimit:         10,
		Timeout:           30 * time.Second,
		RetryCount:        4,
		RetryWait:         1 * time.Second,
		RetryMaxWait:      20 * time.Second,
		DataURL:           DataURL,
		ArchivesURL:       ArchivesURL,
		CompanyTickersURL: CompanyTickersURL,
	}
}

// Client fetches EDGAR resources. Every attempt waits on a shared rate limiter;
// transport errors, 429 and 5xx responses are retried with exponential backoff.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	rest    *resty.Client
}

// New creates a client. Unset options take their defaults.
func New(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaults.RateLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = defaults.RetryCount
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = defaults.RetryWait
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = defaults.RetryMaxWait
	}
	if opts.DataURL == "" {
		opts.DataURL = defaults.DataURL
	}
	if opts.ArchivesURL == "" {
		opts.ArchivesURL = defaults.ArchivesURL
	}
	if opts.CompanyTickersURL == "" {
		opts.CompanyTickersURL = defaults.CompanyTickersURL
	}

	if opts.UserAgent == "" {
		log.Warn().Err(ErrUserAgentUnset).Msg("edgar.user_agent is not configured; the SEC may block requests")
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("User-Agent", opts.UserAgent).
		AddRetryCondition(shouldRetry).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})

	return &Client{
		opts:    opts,
		limiter: limiter,
		rest:    client,
	}
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	if resp == nil {
		return false
	}

	return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
}

// Get requests url and returns the response body. A response with a status
// code of 400 or above, after retries are exhausted, is an error.
func (client *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := client.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Error().Err(err).Str("URL", url).Msg("edgar request failed")
		return nil, err
	}

	if resp.StatusCode() >= 400 {
		log.Warn().Int("StatusCode", resp.StatusCode()).Str("URL", url).Int("Attempts", resp.Request.Attempt).Msg("edgar returned an error status")
		return nil, fmt.Errorf("%w: %d (%s)", ErrStatus, resp.StatusCode(), url)
	}

	return resp.Body(), nil
}

// FetchDocument downloads a raw filing document
func (client *Client) FetchDocument(ctx context.Context, url string) (string, error) {
	body, err := client.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
