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
package annotate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const DefaultInferenceURL = "https://api-inference.huggingface.co/models"

var (
	ErrInference      = errors.New("inference request failed")
	ErrEmptyInference = errors.New("inference returned no result")
)

// Label is a scored class
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Answer is an extractive answer; Start and End are character offsets into
// the passage the question was asked against
type Answer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// Inference runs the models used to annotate sections
type Inference interface {
	Sentiment(ctx context.Context, text string) (Label, error)
	ZeroShot(ctx context.Context, text string, labels []string) ([]Label, error)
	Answer(ctx context.Context, question, passage string) (Answer, error)
}

// Models names the hosted model used for each task
type Models struct {
	Sentiment string
	ZeroShot  string
	QA        string
}

func DefaultModels() Models {
	return Models{
		Sentiment: "ProsusAI/finbert",
		ZeroShot:  "facebook/bart-large-mnli",
		QA:        "deepset/roberta-base-squad2",
	}
}

// HuggingFace calls models hosted on the Hugging Face inference API, or any
// server that speaks the same protocol
type HuggingFace struct {
	baseURL string
	models  Models
	rest    *resty.Client
}

// NewHuggingFace creates an inference client. Unset models take their
// defaults; an empty token sends unauthenticated requests.
func NewHuggingFace(baseURL, token string, models Models) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultInferenceURL
	}

	defaults := DefaultModels()
	if models.Sentiment == "" {
		models.Sentiment = defaults.Sentiment
	}
	if models.ZeroShot == "" {
		models.ZeroShot = defaults.ZeroShot
	}
	if models.QA == "" {
		models.QA = defaults.QA
	}

	client := resty.New().
		SetTimeout(60*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(30*time.Second).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Wait-For-Model", "true").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			// 503 is returned while a model is loading
			return resp.StatusCode() == 429 || resp.StatusCode() >= 500
		})

	if token != "" {
		client.SetAuthToken(token)
	}

	return &HuggingFace{
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		rest:    client,
	}
}

func (hf *HuggingFace) post(ctx context.Context, model string, body any) (gjson.Result, error) {
	endpoint := hf.baseURL + "/" + (&url.URL{Path: model}).EscapedPath()

	resp, err := hf.rest.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		log.Error().Err(err).Str("Model", model).Msg("inference request failed")
		return gjson.Result{}, fmt.Errorf("%w: %s: %w", ErrInference, model, err)
	}

	if resp.StatusCode() >= 400 {
		message := gjson.GetBytes(resp.Body(), "error").String()
		if message == "" {
			message = string(resp.Body())
		}
		log.Warn().Str("Model", model).Int("StatusCode", resp.StatusCode()).Str("Error", message).Msg("inference returned an error status")
		return gjson.Result{}, fmt.Errorf("%w: %s returned %d: %s", ErrInference, model, resp.StatusCode(), message)
	}

	return gjson.ParseBytes(resp.Body()), nil
}

// Sentiment returns the highest scoring class for text
func (hf *HuggingFace) Sentiment(ctx context.Context, text string) (Label, error) {
	result, err := hf.post(ctx, hf.models.Sentiment, map[string]any{"inputs": text})
	if err != nil {
		return Label{}, err
	}

	// text classification answers [[{label, score}, ...]] for a single input,
	// some servers drop the outer list
	candidates := result
	if result.Get("0.0.label").Exists() {
		candidates = result.Get("0")
	}

	best := Label{Score: -1}
	for _, candidate := range candidates.Array() {
		if score := candidate.Get("score").Float(); score > best.Score {
			best = Label{Label: candidate.Get("label").String(), Score: score}
		}
	}

	if best.Label == "" {
		return Label{}, fmt.Errorf("%w: %s", ErrEmptyInference, hf.models.Sentiment)
	}
	return best, nil
}

// ZeroShot scores text against each label independently
func (hf *HuggingFace) ZeroShot(ctx context.Context, text string, labels []string) ([]Label, error) {
	result, err := hf.post(ctx, hf.models.ZeroShot, map[string]any{
		"inputs": text,
		"parameters": map[string]any{
			"candidate_labels": labels,
			"multi_label":      true,
		},
	})
	if err != nil {
		return nil, err
	}

	scored := make([]Label, 0, len(labels))
	if result.IsArray() {
		for _, item := range result.Array() {
			scored = append(scored, Label{Label: item.Get("label").String(), Score: item.Get("score").Float()})
		}
		return scored, nil
	}

	names := result.Get("labels").Array()
	scores := result.Get("scores").Array()
	for idx := 0; idx < min(len(names), len(scores)); idx++ {
		scored = append(scored, Label{Label: names[idx].String(), Score: scores[idx].Float()})
	}

	return scored, nil
}

// Answer extracts the answer to question from passage
func (hf *HuggingFace) Answer(ctx context.Context, question, passage string) (Answer, error) {
	result, err := hf.post(ctx, hf.models.QA, map[string]any{
		"inputs": map[string]string{
			"question": question,
			"context":  passage,
		},
	})
	if err != nil {
		return Answer{}, err
	}

	if result.IsArray() {
		result = result.Get("0")
	}

	if !result.Get("answer").Exists() {
		return Answer{}, fmt.Errorf("%w: %s", ErrEmptyInference, hf.models.QA)
	}

	return Answer{
		Answer: result.Get("answer").String(),
		Score:  result.Get("score").Float(),
		Start:  int(result.Get("start").Int()),
		End:    int(result.Get("end").Int()),
	}, nil
}
