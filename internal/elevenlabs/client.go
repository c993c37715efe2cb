/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package elevenlabs is a small HTTP client for the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"serifu/internal/synth"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.elevenlabs.io"

// maxErrorBody caps how much of a failed response body is kept in an APIError.
const maxErrorBody = 4 << 10

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("elevenlabs: %s", e.Status)
	}
	return fmt.Sprintf("elevenlabs: %s: %s", e.Status, e.Body)
}

// RateLimited reports whether the server answered 429.
func (e *APIError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Client talks to the API. It implements synth.Synthesizer.
type Client struct {
	BaseURL string
	APIKey  string
	// Limiter, when set, receives the backoff of 429 responses.
	Limiter *RateLimiter
	client  *http.Client
}

var _ synth.Synthesizer = (*Client)(nil)

// NewClient creates a client. An empty baseURL selects DefaultBaseURL; a
// trailing slash is trimmed. A timeout <= 0 falls back to 60 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	b := strings.TrimRight(baseURL, "/")
	if b == "" {
		b = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: b,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type ttsBody struct {
	Text         string `json:"text"`
	ModelID      string `json:"model_id"`
	LanguageCode string `json:"language_code,omitempty"`
	PreviousText string `json:"previous_text,omitempty"`
	NextText     string `json:"next_text,omitempty"`
}

// Synthesize renders req.Text with the given voice and returns the encoded audio.
func (c *Client) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	body, err := json.Marshal(ttsBody{
		Text:         req.Text,
		ModelID:      req.ModelID,
		LanguageCode: req.LanguageCode,
		PreviousText: req.PreviousText,
		NextText:     req.NextText,
	})
	if err != nil {
		return nil, err
	}
	path := "/v1/text-to-speech/" + url.PathEscape(req.VoiceID)
	q := url.Values{}
	if req.OutputFormat != "" {
		q.Set("output_format", req.OutputFormat)
	}
	resp, err := c.do(ctx, http.MethodPost, path, q, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Voice is one entry of the account's voice library.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ListVoices returns the voices available to the API key.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/voices", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var env struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return env.Voices, nil
}

// do sends the request and returns the response only for 2xx statuses; the
// caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("xi-api-key", c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(msg))}
	if apiErr.RateLimited() && c.Limiter != nil {
		c.Limiter.RecordRateLimit(retryAfter(resp.Header))
	}
	return nil, apiErr
}
