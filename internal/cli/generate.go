/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"serifu/internal/config"
	"serifu/internal/elevenlabs"
	applog "serifu/internal/log"
	"serifu/internal/storage"
	"serifu/internal/synth"
)

type generateFlags struct {
	outputDir string
	yes       bool
	noContext bool
	delayMs   int
	model     string
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate [script]",
		Short: "Render every line of a script to an audio clip",
		Long: "generate reads a script file (or pasted text on stdin), renders each line with the\n" +
			"voice configured for its character and writes <index>_<character>_<text>.mp3 clips.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&f.noContext, "no-context", false, "do not send neighbouring lines as context")
	cmd.Flags().IntVar(&f.delayMs, "delay", -1, "milliseconds between requests (default from config)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model id (default from config)")
	return cmd
}

func (a *app) generate(cmd *cobra.Command, args []string, f generateFlags) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "generate")
	cfg := a.cfg
	out := cmd.OutOrStdout()

	apiKey, err := config.APIKey()
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	dialogues, notation, source, err := loadDialogues(cmd, in, args)
	if err != nil {
		return err
	}
	if len(dialogues) == 0 {
		return errNoDialogue
	}

	outDir := cfg.OutputDirectory
	if f.outputDir != "" {
		outDir = f.outputDir
	}
	model := cfg.DefaultModel
	if f.model != "" {
		model = f.model
	}
	delay := cfg.RequestDelay()
	if f.delayMs >= 0 {
		delay = time.Duration(f.delayMs) * time.Millisecond
	}

	fmt.Fprintf(out, "Detected %d lines (%s) in %s\n\n", len(dialogues), notation, source)
	printDialogues(out, dialogues, cfg.VoiceFor)
	fmt.Fprintln(out)
	if !f.yes && !confirm(cmd, in, fmt.Sprintf("Render %d lines into %s?", len(dialogues), outDir)) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	client := elevenlabs.NewClient(cfg.ElevenLabs.BaseURL, apiKey, cfg.ElevenLabs.Timeout())
	client.Limiter = elevenlabs.NewRateLimiter(delay)
	runner := &synth.Runner{
		Synth:        client,
		Voices:       cfg.VoiceFor,
		ModelID:      model,
		OutputFormat: cfg.DefaultOutputFormat,
		LanguageCode: cfg.LanguageCode,
		OutputDir:    outDir,
		UseContext:   cfg.UseContext && !f.noContext,
		Pacer:        client.Limiter,
		Write:        storage.WriteFileAtomic,
	}
	total := len(dialogues)
	done := 0
	runner.Progress = func(r synth.Result) {
		done++
		switch r.Status {
		case synth.StatusSuccess:
			fmt.Fprintf(out, "[%d/%d] ok      %s (%s)\n", done, total, filepath.Base(r.Path), humanize.Bytes(uint64(r.Bytes)))
		case synth.StatusSkipped:
			fmt.Fprintf(out, "[%d/%d] skipped %d %s: %s\n", done, total, r.Index, r.Character, r.Reason)
		default:
			fmt.Fprintf(out, "[%d/%d] error   %d %s: %s\n", done, total, r.Index, r.Character, r.Reason)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	hist, runID := a.beginRun(ctx, outDir, storage.RunInfo{
		Script:    source,
		Notation:  notation.String(),
		Model:     model,
		OutputDir: outDir,
		Total:     total,
	})
	if hist != nil {
		defer hist.Close()
		ctx = applog.ContextWithRun(ctx, runID)
	}

	results, runErr := runner.Run(ctx, dialogues)
	if hist != nil {
		// the batch context may be cancelled already
		if err := hist.RecordResults(context.WithoutCancel(ctx), runID, results); err != nil {
			l.Warn("record run failed", slog.Any("err", err))
		}
	}
	printSummary(out, results, outDir)
	return runErr
}

// beginRun opens the ledger in outDir. The ledger is bookkeeping only, so a
// failure is logged and the batch goes on without it.
func (a *app) beginRun(ctx context.Context, outDir string, info storage.RunInfo) (*storage.History, string) {
	l := applog.WithOperation(applog.WithComponent("cli"), "history")
	hist, err := storage.OpenHistory(outDir)
	if err != nil {
		l.Warn("open run history failed", slog.Any("err", err))
		return nil, ""
	}
	id, err := hist.BeginRun(ctx, info)
	if err != nil {
		l.Warn("begin run failed", slog.Any("err", err))
		_ = hist.Close()
		return nil, ""
	}
	return hist, id
}

func printSummary(w io.Writer, results []synth.Result, outDir string) {
	s := synth.Summarize(results)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintf(w, "  success: %d\n", s.Success)
	fmt.Fprintf(w, "  skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "  errors:  %d\n", s.Errors)
	fmt.Fprintf(w, "  total:   %d\n", s.Total)
	if s.Success > 0 {
		fmt.Fprintf(w, "  written: %s to %s\n", humanize.Bytes(uint64(s.Bytes)), outDir)
	}

	skipped := map[string]bool{}
	var names []string
	for _, r := range results {
		if r.Status == synth.StatusSkipped && !skipped[r.Character] {
			skipped[r.Character] = true
			names = append(names, r.Character)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		fmt.Fprintln(w, "\nCharacters without a voice:")
		for _, n := range names {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	if s.Errors > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, r := range results {
			if r.Status == synth.StatusError {
				fmt.Fprintf(w, "  %d %s: %s\n", r.Index, r.Character, r.Reason)
			}
		}
	}
}
