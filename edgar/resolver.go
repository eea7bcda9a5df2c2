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
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	// DefaultResolverTTL is how long a registry snapshot is used before it is
	// fetched again
	DefaultResolverTTL = 6 * time.Hour

	// failedRefreshBackoff limits how often a failing registry is retried
	failedRefreshBackoff = time.Minute
)

// Company is a resolved company identifier
type Company struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Name   string `json:"name,omitempty"`
}

// Registry provides a snapshot of every ticker the SEC knows about
type Registry interface {
	CompanyTickers(ctx context.Context) ([]Company, error)
}

// CompanyTickers downloads the SEC ticker registry. Entries are returned in
// registry order with CIKs padded to 10 digits.
func (client *Client) CompanyTickers(ctx context.Context) ([]Company, error) {
	body, err := client.Get(ctx, client.opts.CompanyTickersURL)
	if err != nil {
		return nil, err
	}

	return ParseCompanyTickers(body), nil
}

// ParseCompanyTickers reads company_tickers.json, which is shaped
// {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
func ParseCompanyTickers(body []byte) []Company {
	companies := make([]Company, 0, 12000)
	gjson.ParseBytes(body).ForEach(func(_, row gjson.Result) bool {
		ticker := strings.ToUpper(strings.TrimSpace(row.Get("ticker").String()))
		cik := strings.TrimSpace(row.Get("cik_str").String())
		if ticker == "" || cik == "" {
			return true
		}

		companies = append(companies, Company{
			CIK:    PadCIK(cik),
			Ticker: ticker,
			Name:   row.Get("title").String(),
		})
		return true
	})

	return companies
}

// Resolver maps tickers to CIKs and back. The maps are loaded lazily from the
// registry and reloaded once they are older than the TTL; a reload builds new
// maps and swaps them in under the write lock so readers only ever see a
// complete snapshot. A failed reload keeps serving the previous snapshot.
type Resolver struct {
	registry Registry
	ttl      time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	byTicker    *haxmap.Map[string, Company]
	byCIK       *haxmap.Map[string, Company]
	loadedAt    time.Time
	lastAttempt time.Time

	refreshMu sync.Mutex
}

// NewResolver creates a resolver backed by registry. A ttl of zero uses
// DefaultResolverTTL.
func NewResolver(registry Registry, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolverTTL
	}

	return &Resolver{
		registry: registry,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Resolve accepts a ticker or a (possibly unpadded) CIK. Numeric input is
// treated as a CIK and its ticker looked up; a CIK missing from the registry
// still resolves, with an empty ticker. Other input is upper-cased and looked
// up as a ticker. ok is false for unknown tickers and whenever no registry
// snapshot could be loaded.
func (resolver *Resolver) Resolve(ctx context.Context, identifier string) (Company, bool) {
	identifier = strings.ToUpper(strings.TrimSpace(identifier))
	if identifier == "" {
		return Company{}, false
	}

	resolver.ensureFresh(ctx)

	byTicker, byCIK := resolver.snapshot()
	if byTicker == nil || byTicker.Len() == 0 {
		log.Warn().Str("Identifier", identifier).Msg("ticker registry is unavailable")
		return Company{}, false
	}

	if IsNumeric(identifier) {
		cik := PadCIK(identifier)
		if company, ok := byCIK.Get(cik); ok {
			return company, true
		}
		return Company{CIK: cik}, true
	}

	return byTicker.Get(identifier)
}

// Refresh unconditionally reloads the registry snapshot
func (resolver *Resolver) Refresh(ctx context.Context) error {
	resolver.mu.Lock()
	resolver.lastAttempt = resolver.now()
	resolver.mu.Unlock()

	companies, err := resolver.registry.CompanyTickers(ctx)
	if err != nil {
		return err
	}

	byTicker := haxmap.New[string, Company]()
	byCIK := haxmap.New[string, Company]()
	for _, company := range companies {
		byTicker.Set(company.Ticker, company)

		// registry order is by prominence; the first ticker seen for a CIK is its
		// primary listing
		if _, exists := byCIK.Get(company.CIK); !exists {
			byCIK.Set(company.CIK, company)
		}
	}

	resolver.mu.Lock()
	resolver.byTicker = byTicker
	resolver.byCIK = byCIK
	resolver.loadedAt = resolver.now()
	resolver.mu.Unlock()

	log.Info().Int("NumTickers", len(companies)).Msg("loaded ticker registry")
	return nil
}

// Len is the number of tickers in the current snapshot
func (resolver *Resolver) Len() int {
	byTicker, _ := resolver.snapshot()
	if byTicker == nil {
		return 0
	}
	return int(byTicker.Len())
}

func (resolver *Resolver) snapshot() (*haxmap.Map[string, Company], *haxmap.Map[string, Company]) {
	resolver.mu.RLock()
	defer resolver.mu.RUnlock()
	return resolver.byTicker, resolver.byCIK
}

func (resolver *Resolver) isFresh() bool {
	resolver.mu.RLock()
	defer resolver.mu.RUnlock()

	if resolver.byTicker == nil || resolver.byTicker.Len() == 0 {
		return false
	}
	return resolver.now().Sub(resolver.loadedAt) < resolver.ttl
}

func (resolver *Resolver) recentlyFailed() bool {
	resolver.mu.RLock()
	defer resolver.mu.RUnlock()

	if resolver.lastAttempt.IsZero() || !resolver.lastAttempt.After(resolver.loadedAt) {
		return false
	}
	return resolver.now().Sub(resolver.lastAttempt) < failedRefreshBackoff
}

// ensureFresh reloads a missing or expired snapshot. Only one caller reloads at
// a time; concurrent callers wait and then observe the new snapshot.
func (resolver *Resolver) ensureFresh(ctx context.Context) {
	if resolver.isFresh() {
		return
	}

	resolver.refreshMu.Lock()
	defer resolver.refreshMu.Unlock()

	if resolver.isFresh() || resolver.recentlyFailed() {
		return
	}

	if err := resolver.Refresh(ctx); err != nil {
		log.Error().Err(err).Int("CachedTickers", resolver.Len()).Msg("refreshing ticker registry failed")
	}
}
