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
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"serifu/internal/storage"
	"serifu/internal/synth"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		dir   string
		list  bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the runs recorded in an output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.OutputDirectory
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(storage.HistoryPath(dir)); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(out, "No runs recorded in %s\n", dir)
				return nil
			}
			hist, err := storage.OpenHistory(dir)
			if err != nil {
				return err
			}
			defer hist.Close()

			if list {
				runs, err := hist.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, r := range runs {
					printRun(out, r)
				}
				return nil
			}
			run, results, err := hist.LatestRun(cmd.Context())
			if errors.Is(err, storage.ErrNoRuns) {
				fmt.Fprintf(out, "No runs recorded in %s\n", dir)
				return nil
			}
			if err != nil {
				return err
			}
			printRun(out, run)
			for _, r := range results {
				switch r.Status {
				case synth.StatusSuccess:
					fmt.Fprintf(out, "  %4d %-7s %s (%s)\n", r.Index, r.Status, r.Path, humanize.Bytes(uint64(r.Bytes)))
				default:
					fmt.Fprintf(out, "  %4d %-7s %s: %s\n", r.Index, r.Status, r.Character, r.Reason)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&list, "list", false, "list runs instead of showing the latest one")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs listed with --list (0 for all)")
	return cmd
}

func printRun(w io.Writer, r storage.Run) {
	state := "unfinished"
	if !r.FinishedAt.IsZero() {
		state = "finished " + humanize.Time(r.FinishedAt)
	}
	fmt.Fprintf(w, "%s  %s  %s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), state)
	fmt.Fprintf(w, "  script %s (%s), model %s\n", r.Script, r.Notation, r.Model)
	fmt.Fprintf(w, "  %d lines: %d ok, %d skipped, %d errors\n", r.Total, r.Success, r.Skipped, r.Errors)
}
