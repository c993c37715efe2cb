/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"serifu/internal/config"
	"serifu/internal/elevenlabs"
)

func newVoicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices available to the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.APIKey()
			if err != nil {
				return err
			}
			client := elevenlabs.NewClient(a.cfg.ElevenLabs.BaseURL, key, a.cfg.ElevenLabs.Timeout())
			voices, err := client.ListVoices(cmd.Context())
			if err != nil {
				return err
			}
			// voice id -> configured characters
			used := map[string][]string{}
			for ch, id := range a.cfg.CharacterVoices {
				used[id] = append(used[id], ch)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d voices\n", len(voices))
			for _, v := range voices {
				fmt.Fprintf(out, "  %s: %s", v.Name, v.VoiceID)
				if chars := used[v.VoiceID]; len(chars) > 0 {
					sort.Strings(chars)
					fmt.Fprintf(out, "  (used by %v)", chars)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
