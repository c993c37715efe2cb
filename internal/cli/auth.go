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
	"strings"

	"github.com/spf13/cobra"

	"serifu/internal/config"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the ElevenLabs API key in the OS keyring",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-key",
			Short: "Store the API key read from stdin",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				key := strings.TrimSpace(line)
				if key == "" {
					if err != nil {
						return fmt.Errorf("read key: %w", err)
					}
					return errors.New("empty API key")
				}
				if err := config.SaveAPIKey(key); err != nil {
					return fmt.Errorf("store key: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key stored in the OS keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-key",
			Short: "Remove the stored API key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.SaveAPIKey(""); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key removed.")
				return nil
			},
		},
	)
	return cmd
}
