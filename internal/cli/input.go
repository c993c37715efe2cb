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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"serifu/internal/script"
)

var errNoDialogue = errors.New("no dialogue found in the script")

// readPasted reads lines until two consecutive empty lines or EOF.
func readPasted(r *bufio.Reader) (string, error) {
	var b strings.Builder
	empty := 0
	for {
		line, err := r.ReadString('\n')
		if line != "" || err == nil {
			trimmed := strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(trimmed) == "" {
				empty++
				if empty >= 2 {
					return b.String(), nil
				}
			} else {
				empty = 0
			}
			b.WriteString(trimmed)
			b.WriteString("\n")
		}
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// loadDialogues parses the script file named in args, or pasted text from stdin.
func loadDialogues(cmd *cobra.Command, in *bufio.Reader, args []string) ([]script.Dialogue, script.Notation, string, error) {
	if len(args) > 0 {
		d, n, err := script.ParseFile(args[0])
		if err != nil {
			return nil, script.NotationNone, args[0], err
		}
		return d, n, args[0], nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Paste the script, then press Enter twice (or send EOF):")
	text, err := readPasted(in)
	if err != nil {
		return nil, script.NotationNone, "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, script.NotationNone, "", errors.New("empty input")
	}
	d, n := script.Detect(text)
	return d, n, "<stdin>", nil
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(cmd *cobra.Command, in *bufio.Reader, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	line, _ := in.ReadString('\n')
	ans := strings.ToLower(strings.TrimSpace(line))
	return ans == "y" || ans == "yes"
}

func printDialogues(w io.Writer, dialogues []script.Dialogue, voiceFor func(string) (string, bool)) {
	for _, d := range dialogues {
		mark := ""
		if voiceFor != nil {
			if _, ok := voiceFor(d.Character); ok {
				mark = "  [voice ok]"
			} else {
				mark = "  [no voice]"
			}
		}
		fmt.Fprintf(w, "%4d. %s: %s (%d chars)%s\n", d.Index, d.Character, d.Text, d.CharCount, mark)
	}
}
