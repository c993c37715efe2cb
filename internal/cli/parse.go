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
	"fmt"

	"github.com/spf13/cobra"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [script]",
		Short: "Show the dialogue lines detected in a script without rendering anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			dialogues, notation, _, err := loadDialogues(cmd, in, args)
			if err != nil {
				return err
			}
			if len(dialogues) == 0 {
				return errNoDialogue
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Notation: %s\n", notation)
			fmt.Fprintf(out, "Lines: %d\n\n", len(dialogues))
			printDialogues(out, dialogues, a.cfg.VoiceFor)
			return nil
		},
	}
}
