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
package annotate_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvedgar/annotate"
	"github.com/penny-vault/pvedgar/data"
	"github.com/penny-vault/pvedgar/library"
)

type fakeInference struct {
	mu             sync.Mutex
	sentimentErr   error
	zeroShotCalls  int
	zeroShotFailOn string
	answers        map[string]annotate.Answer
	contexts       []string
}

func (inference *fakeInference) Sentiment(ctx context.Context, text string) (annotate.Label, error) {
	inference.mu.Lock()
	defer inference.mu.Unlock()
	if inference.sentimentErr != nil {
		return annotate.Label{}, inference.sentimentErr
	}
	return annotate.Label{Label: "negative", Score: 0.8}, nil
}

func (inference *fakeInference) ZeroShot(ctx context.Context, text string, labels []string) ([]annotate.Label, error) {
	inference.mu.Lock()
	defer inference.mu.Unlock()
	inference.zeroShotCalls++

	if inference.zeroShotFailOn != "" && strings.Contains(text, inference.zeroShotFailOn) {
		return nil, errors.New("model overloaded")
	}

	scored := make([]annotate.Label, 0, len(labels))
	for _, label := range labels {
		score := 0.1
		if strings.Contains(text, label) {
			score = 0.9
		}
		scored = append(scored, annotate.Label{Label: label, Score: score})
	}
	return scored, nil
}

func (inference *fakeInference) Answer(ctx context.Context, question, passage string) (annotate.Answer, error) {
	inference.mu.Lock()
	defer inference.mu.Unlock()
	inference.contexts = append(inference.contexts, passage)

	answer, ok := inference.answers[question]
	if !ok {
		return annotate.Answer{}, errors.New("no answer")
	}
	return answer, nil
}

type fakeStore struct {
	sections []*data.Section
	saved    []*library.Annotations
	saveErr  error
	limit    int
}

func (store *fakeStore) PendingSections(ctx context.Context, limit int) ([]*data.Section, error) {
	store.limit = limit
	return store.sections, nil
}

func (store *fakeStore) SaveAnnotations(ctx context.Context, annotations *library.Annotations) error {
	if store.saveErr != nil {
		return store.saveErr
	}
	store.saved = append(store.saved, annotations)
	return nil
}

const riskText = `Item 1A. Risk Factors
Our supply chain depends on a small number of outsourcing partners in Asia.
Short line.
Changes in legal requirements and regulatory compliance obligations could harm our business.
The Company's total revenue was $383.3 billion for the fiscal year ended September 30, 2023.`

var _ = Describe("Annotator", func() {
	var (
		ctx       context.Context
		inference *fakeInference
		store     *fakeStore
		annotator *annotate.Annotator
	)

	BeforeEach(func() {
		ctx = context.Background()
		start := strings.Index(riskText, "$383.3 billion")
		inference = &fakeInference{
			answers: map[string]annotate.Answer{
				"What is the total revenue?":             {Answer: "$383.3 billion", Score: 0.74, Start: start, End: start + len("$383.3 billion")},
				"What is the operating income?":          {Answer: "unknown", Score: 0.05},
				"What is the cash and cash equivalents?": {Answer: "  ", Score: 0.9},
			},
		}
		store = &fakeStore{
			sections: []*data.Section{{ID: 7, FilingID: 3, Name: "Risk Factors", Text: riskText}},
		}
		annotator = annotate.New(inference, store, annotate.DefaultOptions())
	})

	It("splits text into non-trivial paragraphs", func() {
		paragraphs := annotate.Paragraphs(riskText, 7, 100)
		Expect(paragraphs).To(HaveLen(3))
		Expect(paragraphs[0]).To(HavePrefix("Our supply chain"))

		Expect(annotate.Paragraphs(riskText, 7, 1)).To(HaveLen(1))
		Expect(annotate.Paragraphs("", 7, 100)).To(BeEmpty())
	})

	It("pads and caps evidence snippets", func() {
		text := strings.Repeat("a", 100) + "ANSWER" + strings.Repeat("b", 100)
		snippet := annotate.Snippet(text, 100, 106, 10, 400)
		Expect(snippet).To(Equal(strings.Repeat("a", 10) + "ANSWER" + strings.Repeat("b", 10)))

		Expect(annotate.Snippet("short answer", 0, 5, 60, 400)).To(Equal("short answer"))
		Expect([]rune(annotate.Snippet(strings.Repeat("x", 1000), 300, 400, 60, 50))).To(HaveLen(50))
		Expect(annotate.Snippet("abc", 10, 12, 1, 400)).To(BeEmpty())
	})

	It("annotates pending sections", func() {
		summary, err := annotator.Run(ctx, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.limit).To(Equal(8))
		Expect(summary.Annotated).To(Equal(1))
		Expect(summary.Pending).To(Equal(0))
		Expect(store.saved).To(HaveLen(1))

		saved := store.saved[0]
		Expect(saved.Sentiment.SectionID).To(BeEquivalentTo(7))
		Expect(saved.Sentiment.Label).To(Equal("negative"))

		labels := make([]string, 0, len(saved.Classifications))
		for _, classification := range saved.Classifications {
			labels = append(labels, classification.Label)
			Expect(classification.Score).To(BeNumerically(">=", 0.55))
		}
		Expect(labels).To(ConsistOf("supply chain", "legal", "regulatory compliance"))
		Expect(saved.Classifications[0].ParagraphIdx).To(Equal(0))

		Expect(saved.KPIs).To(HaveLen(1))
		kpi := saved.KPIs[0]
		Expect(kpi.FilingID).To(BeEquivalentTo(3))
		Expect(kpi.Name).To(Equal("total_revenue"))
		Expect(kpi.Value).To(Equal("$383.3 billion"))
		Expect(kpi.EvidenceSnippet).To(ContainSubstring("total revenue was $383.3 billion for the fiscal year"))
		Expect(len([]rune(kpi.EvidenceSnippet))).To(BeNumerically("<=", 400))
	})

	It("leaves a section pending when sentiment fails", func() {
		inference.sentimentErr = errors.New("model loading")

		summary, err := annotator.Run(ctx, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Pending).To(Equal(1))
		Expect(store.saved).To(BeEmpty())
		Expect(inference.zeroShotCalls).To(Equal(0))
		Expect(summary.Sections[0].Failures()).To(Equal(1))
	})

	It("keeps going when a paragraph cannot be classified", func() {
		inference.zeroShotFailOn = "outsourcing"

		summary, err := annotator.Run(ctx, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Annotated).To(Equal(1))
		Expect(summary.Sections[0].Failures()).To(Equal(1))

		for _, classification := range store.saved[0].Classifications {
			Expect(classification.ParagraphIdx).NotTo(Equal(0))
		}
	})

	It("caps the text sent to the models", func() {
		opts := annotate.DefaultOptions()
		opts.MaxContextChars = 30
		annotator = annotate.New(inference, store, opts)

		_, err := annotator.Run(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		for _, passage := range inference.contexts {
			Expect(len([]rune(passage))).To(BeNumerically("<=", 30))
		}
	})

	It("reports save failures and keeps the section pending", func() {
		store.saveErr = errors.New("deadlock detected")

		summary, err := annotator.Run(ctx, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Annotated).To(Equal(0))
		Expect(summary.Pending).To(Equal(1))
		Expect(summary.Sections[0].Saved).To(BeFalse())
	})

	It("skips sections another run has already annotated", func() {
		store.saveErr = fmt.Errorf("%w: section 1", library.ErrAlreadyAnnotated)

		summary, err := annotator.Run(ctx, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Annotated).To(Equal(0))
		Expect(summary.Pending).To(Equal(0))
		Expect(summary.AlreadyAnnotated).To(Equal(1))
		Expect(summary.Sections[0].Saved).To(BeFalse())
		Expect(summary.Sections[0].Outcomes).NotTo(ContainElement(HaveField("Step", "save")))
	})
})
