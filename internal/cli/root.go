/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli wires the serifu subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"serifu/internal/config"
	applog "serifu/internal/log"
	"serifu/internal/version"
)

const AppName = "serifu"

// app is the state shared by every subcommand once the root has run.
type app struct {
	cfg     config.AppConfig
	cfgPath string

	configFlag string
	logLevel   string
	logFormat  string
	logFile    string
	envFile    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Turn dialogue scripts into voiced clips and YMM4 timelines",
		Long:          "serifu parses loosely formatted dialogue scripts, renders each line with ElevenLabs\nand lays the clips out on a YukkuriMovieMaker4 timeline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = version.String()
	cmd.SetVersionTemplate(AppName + " {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configFlag, "config", "c", "", "config file (default: ./config.yaml or the per-user config)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: console|json")
	pf.StringVar(&a.logFile, "log-file", "", "also write JSON logs to this rotated file")

	cmd.AddCommand(
		newGenerateCmd(a),
		newParseCmd(a),
		newVoicesCmd(a),
		newYMMPCmd(a),
		newHistoryCmd(a),
		newAuthCmd(),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) setup() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	cfg, path, err := config.Load(a.configFlag)
	if err != nil {
		return err
	}
	a.cfg, a.cfgPath = cfg, path

	opts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	}
	if a.logLevel != "" {
		opts.Level = a.logLevel
	}
	if a.logFormat != "" {
		opts.Format = a.logFormat
	}
	if a.logFile != "" {
		opts.File = a.logFile
	}
	applog.Init(opts)
	applog.WithComponent("cli").Debug("config loaded", slog.String("path", path))
	return nil
}

// Execute runs the CLI with os.Args and returns the error to report.
// Ctrl-C cancels the running command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", AppName, version.String())
			return err
		},
	}
}
