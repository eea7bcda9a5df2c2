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
package edgar_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvedgar/edgar"
)

func testOptions(serverURL string) edgar.Options {
	opts := edgar.DefaultOptions()
	opts.UserAgent = "pvedgar-test test@example.com"
	opts.RateLimit = 1000
	opts.RetryWait = time.Millisecond
	opts.RetryMaxWait = 5 * time.Millisecond
	opts.Timeout = 5 * time.Second
	opts.DataURL = serverURL
	opts.ArchivesURL = serverURL + "/Archives/edgar/data"
	opts.CompanyTickersURL = serverURL + "/files/company_tickers.json"
	return opts
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		requests atomic.Int32
		handler  http.HandlerFunc
	)

	BeforeEach(func() {
		requests.Store(0)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the configured user agent", func() {
		var agent atomic.Value
		handler = func(w http.ResponseWriter, r *http.Request) {
			agent.Store(r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("ok"))
		}

		client := edgar.New(testOptions(server.URL))
		body, err := client.Get(context.Background(), server.URL+"/anything")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(Equal("ok"))
		Expect(agent.Load()).To(Equal("pvedgar-test test@example.com"))
	})

	It("retries server errors until a request succeeds", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			if requests.Load() < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("recovered"))
		}

		client := edgar.New(testOptions(server.URL))
		body, err := client.Get(context.Background(), server.URL+"/flaky")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(Equal("recovered"))
		Expect(requests.Load()).To(BeEquivalentTo(3))
	})

	It("retries rate limited responses", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			if requests.Load() == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}

		client := edgar.New(testOptions(server.URL))
		_, err := client.Get(context.Background(), server.URL+"/limited")
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(BeEquivalentTo(2))
	})

	It("gives up after the configured number of retries", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}

		opts := testOptions(server.URL)
		opts.RetryCount = 2
		client := edgar.New(opts)

		_, err := client.Get(context.Background(), server.URL+"/down")
		Expect(errors.Is(err, edgar.ErrStatus)).To(BeTrue())
		Expect(requests.Load()).To(BeEquivalentTo(3))
	})

	It("does not retry client errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}

		client := edgar.New(testOptions(server.URL))
		_, err := client.Get(context.Background(), server.URL+"/missing")
		Expect(errors.Is(err, edgar.ErrStatus)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("404"))
		Expect(requests.Load()).To(BeEquivalentTo(1))
	})
})
