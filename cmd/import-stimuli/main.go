// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command import-stimuli loads accepted.jsonl files produced by the text
// generation pipeline into the stimulus table of the configured database.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/affect-exp/cliparse"
	"github.com/danielhkuo/affect-exp/importer"
	"github.com/danielhkuo/affect-exp/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var root, version, envFile, dbURL, dbType string

	cmd := &cobra.Command{
		Use:           "import-stimuli --root <dir>",
		Short:         "Import generated stimuli from accepted.jsonl files",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := []string{"-env", envFile}
			if dbURL != "" {
				args = append(args, "-d", dbURL)
			}
			if dbType != "" {
				args = append(args, "-t", dbType)
			}
			cfg, err := cliparse.ParseFlags(args)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DatabaseType, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			sum, err := importer.New(st, version).Import(cmd.Context(), root)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "directory to search for accepted.jsonl files")
	cmd.Flags().StringVar(&version, "version", "v1", "version stamped on imported stimuli")
	cmd.Flags().StringVar(&envFile, "env", ".env", "path to a .env file (optional)")
	cmd.Flags().StringVarP(&dbURL, "database-url", "d", "", "database URL (overrides DATABASE_URL)")
	cmd.Flags().StringVarP(&dbType, "database-type", "t", "", "database type: sqlite, postgres or memory (overrides DATABASE_TYPE)")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}
