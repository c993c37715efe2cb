/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package synth renders a batch of dialogue lines into audio clips.
// One bad line never aborts the batch: every line ends up as a Result that is
// either a success, a skip or an error.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"serifu/internal/clipname"
	applog "serifu/internal/log"
	"serifu/internal/script"
)

// ModelV3 does not accept previous/next context text.
const ModelV3 = "eleven_v3"

// ErrMissingVoice marks a line whose character has no configured voice.
var ErrMissingVoice = errors.New("voice_id not found")

// Request is one synthesis call.
type Request struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat string
	LanguageCode string
	PreviousText string
	NextText     string
}

// Synthesizer turns text into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Pacer throttles requests; a nil Pacer does not wait.
type Pacer interface {
	Wait(ctx context.Context) error
}

// WriteFunc persists a rendered clip.
type WriteFunc func(path string, data []byte) error

type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Result reports what happened to one line.
type Result struct {
	Index     int
	Character string
	Status    Status
	Reason    string
	Path      string
	Bytes     int
}

// Runner drives a batch.
type Runner struct {
	Synth        Synthesizer
	Voices       func(character string) (string, bool)
	ModelID      string
	OutputFormat string
	LanguageCode string
	OutputDir    string
	UseContext   bool
	Pacer        Pacer
	// Write defaults to os.WriteFile.
	Write WriteFunc
	// Progress, when set, is called after every line.
	Progress func(Result)
}

func (r *Runner) write(path string, data []byte) error {
	if r.Write != nil {
		return r.Write(path, data)
	}
	return os.WriteFile(path, data, 0o644)
}

// Context returns the neighbouring lines of dialogues[i] spoken by the same
// character; other speakers do not count as context.
func Context(dialogues []script.Dialogue, i int) (prev, next string) {
	d := dialogues[i]
	if i > 0 && dialogues[i-1].Character == d.Character {
		prev = dialogues[i-1].Text
	}
	if i < len(dialogues)-1 && dialogues[i+1].Character == d.Character {
		next = dialogues[i+1].Text
	}
	return prev, next
}

// Run renders every dialogue in order. It stops early only when ctx is
// cancelled, returning the results gathered so far together with ctx.Err().
func (r *Runner) Run(ctx context.Context, dialogues []script.Dialogue) ([]Result, error) {
	l := applog.WithOperation(applog.WithComponent("synth"), "run")
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	results := make([]Result, 0, len(dialogues))
	for i, d := range dialogues {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.one(ctx, dialogues, i)
		if res.Status == StatusError && ctx.Err() != nil {
			return results, ctx.Err()
		}
		switch res.Status {
		case StatusSuccess:
			l.InfoContext(ctx, "clip saved", slog.Int("index", d.Index), slog.String("character", d.Character), slog.String("path", res.Path))
		case StatusSkipped:
			l.WarnContext(ctx, "line skipped", slog.Int("index", d.Index), slog.String("character", d.Character), slog.String("reason", res.Reason))
		default:
			l.ErrorContext(ctx, "line failed", slog.Int("index", d.Index), slog.String("character", d.Character), slog.String("reason", res.Reason))
		}
		results = append(results, res)
		if r.Progress != nil {
			r.Progress(res)
		}
	}
	return results, nil
}

func (r *Runner) one(ctx context.Context, dialogues []script.Dialogue, i int) Result {
	d := dialogues[i]
	res := Result{Index: d.Index, Character: d.Character}

	voice, ok := "", false
	if r.Voices != nil {
		voice, ok = r.Voices(d.Character)
	}
	if !ok || voice == "" {
		res.Status = StatusSkipped
		res.Reason = ErrMissingVoice.Error()
		return res
	}

	req := Request{
		Text:         d.Text,
		VoiceID:      voice,
		ModelID:      r.ModelID,
		OutputFormat: r.OutputFormat,
		LanguageCode: r.LanguageCode,
	}
	if r.UseContext && r.ModelID != ModelV3 {
		req.PreviousText, req.NextText = Context(dialogues, i)
	}

	if r.Pacer != nil {
		if err := r.Pacer.Wait(ctx); err != nil {
			return failed(res, err)
		}
	}
	audio, err := r.Synth.Synthesize(ctx, req)
	if err != nil {
		return failed(res, err)
	}

	path := filepath.Join(r.OutputDir, clipname.Encode(d))
	if err := r.write(path, audio); err != nil {
		return failed(res, fmt.Errorf("save clip: %w", err))
	}
	res.Status = StatusSuccess
	res.Path = path
	res.Bytes = len(audio)
	return res
}

func failed(res Result, err error) Result {
	res.Status = StatusError
	res.Reason = err.Error()
	return res
}

// Summary counts results by status.
type Summary struct {
	Success int
	Skipped int
	Errors  int
	Total   int
	Bytes   int
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Success++
			s.Bytes += r.Bytes
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Errors++
		}
	}
	s.Total = len(results)
	return s
}
