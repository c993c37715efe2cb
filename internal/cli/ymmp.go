/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"serifu/internal/audio"
	"serifu/internal/clipname"
	applog "serifu/internal/log"
	"serifu/internal/timeline"
	"serifu/internal/ymmp"
)

type ymmpFlags struct {
	audioDir   string
	scriptName string
	template   string
	output     string
	voiceDir   string
	gap        float64
	volume     float64
	fps        int
}

func newYMMPCmd(a *app) *cobra.Command {
	var f ymmpFlags
	cmd := &cobra.Command{
		Use:   "ymmp",
		Short: "Place rendered clips on the timeline of a YMM4 project template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			if !fl.Changed("gap") {
				f.gap = a.cfg.YMM4.GapSeconds
			}
			if !fl.Changed("volume") {
				f.volume = a.cfg.YMM4.DefaultVolume
			}
			if !fl.Changed("fps") {
				f.fps = a.cfg.YMM4.FrameRate
			}
			return a.buildProject(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.audioDir, "audio-dir", "a", "", "folder with the rendered clips (default: output_directory)")
	fl.StringVarP(&f.scriptName, "script-name", "s", "", "script name, appended to the voice folder and used as output name")
	fl.StringVarP(&f.template, "template", "t", "", "template .ymmp (default: ymm4.template_path)")
	fl.StringVarP(&f.output, "output", "o", "", "output .ymmp (default: <script-name>.ymmp or output.ymmp)")
	fl.StringVarP(&f.voiceDir, "voice-base-dir", "v", "", "clip folder as seen by YMM4 on Windows (default: ymm4.voice_base_dir_win)")
	fl.Float64VarP(&f.gap, "gap", "g", timeline.DefaultGapSeconds, "seconds between two lines")
	fl.Float64Var(&f.volume, "volume", ymmp.DefaultVolume, "clip volume")
	fl.IntVar(&f.fps, "fps", timeline.DefaultFrameRate, "timeline frame rate")
	return cmd
}

func (a *app) buildProject(cmd *cobra.Command, f ymmpFlags) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "ymmp")
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	templatePath := firstNonEmpty(f.template, a.cfg.YMM4.TemplatePath)
	if templatePath == "" {
		return errors.New("no template: pass --template or set ymm4.template_path")
	}
	voiceDir := firstNonEmpty(f.voiceDir, a.cfg.YMM4.VoiceBaseDirWin)
	if voiceDir == "" {
		return errors.New("no voice folder: pass --voice-base-dir or set ymm4.voice_base_dir_win")
	}
	if f.scriptName != "" {
		voiceDir = ymmp.WindowsPath(voiceDir, f.scriptName)
	}
	audioDir := firstNonEmpty(f.audioDir, a.cfg.OutputDirectory)
	output := f.output
	if output == "" {
		output = "output" + ymmp.Ext
		if f.scriptName != "" {
			output = f.scriptName + ymmp.Ext
		}
	}

	doc, err := ymmp.LoadTemplate(templatePath)
	if err != nil {
		return err
	}

	clips, skipped, err := clipname.Scan(audioDir)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(errOut, "warning: %v (skipped)\n", s)
	}
	if len(clips) == 0 {
		return fmt.Errorf("no clips found in %s", audioDir)
	}

	entries := make([]timeline.Entry, 0, len(clips))
	for _, c := range clips {
		sec, err := audio.Duration(filepath.Join(audioDir, c.File))
		if err != nil {
			l.Warn("measure clip failed", slog.String("file", c.File), slog.Any("err", err))
			fmt.Fprintf(errOut, "warning: %s: %v (skipped)\n", c.File, err)
			continue
		}
		entries = append(entries, timeline.Entry{
			Index:           c.Index,
			Character:       c.Character,
			Text:            c.Text,
			DurationSeconds: sec,
			Source:          c.File,
		})
	}
	if len(entries) == 0 {
		return fmt.Errorf("no readable clips in %s", audioDir)
	}

	plan := timeline.Layout(entries, timeline.Options{FrameRate: f.fps, GapSeconds: f.gap})
	items, missing := ymmp.BuildItems(plan, doc.CharacterStyles(), ymmp.ItemOptions{VoiceDir: voiceDir, Volume: f.volume})
	if len(missing) > 0 {
		fmt.Fprintln(errOut, "warning: characters not defined in the template (YMM4 defaults apply):")
		for _, m := range missing {
			fmt.Fprintf(errOut, "  - %s\n", m)
		}
	}
	if err := doc.Place(items, plan.TotalLengthFrames); err != nil {
		return err
	}
	backup, err := ymmp.Save(output, doc)
	if err != nil {
		return err
	}
	l.Info("project written", slog.String("path", output), slog.Int("items", len(items)))

	fmt.Fprintf(out, "Written: %s\n", output)
	if backup != "" {
		fmt.Fprintf(out, "  previous version kept as %s\n", backup)
	}
	fmt.Fprintf(out, "  lines:      %d\n", len(items))
	fmt.Fprintf(out, "  characters: %d\n", len(plan.Layers))
	fmt.Fprintln(out, "  layers:")
	for _, la := range plan.Layers {
		fmt.Fprintf(out, "    Layer %d: %s\n", la.Layer, la.Character)
	}
	total := plan.Seconds()
	fmt.Fprintf(out, "  total time: %dm%04.1fs\n", int(total)/60, total-float64(int(total)/60*60))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
