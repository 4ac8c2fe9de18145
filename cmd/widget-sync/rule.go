package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/config"
	"github.com/sweeney/widget-sync/internal/status"
	"github.com/sweeney/widget-sync/internal/storage"
)

func newRuleCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rule",
		Short: "Print the stored automation rule",
		Long: `Decode the automation rule record from the configured storage image
and print it as JSON. A missing or corrupt record is reported as an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Path == "" {
				return errors.New("storage.path is not set; the rule only lives in memory")
			}
			blocks, err := storage.OpenSQLite(cfg.Storage.Path, cfg.Storage.Size)
			if err != nil {
				return err
			}
			defer blocks.Close()
			return printRule(cmd.OutOrStdout(), ruleStore(blocks, cfg))
		},
	}
}

func ruleStore(blocks storage.Blocks, cfg *config.Config) *automation.Store {
	return automation.NewStore(blocks, cfg.Storage.RuleBase, cfg.Storage.Size-cfg.Storage.RuleBase)
}

func printRule(w io.Writer, store *automation.Store) error {
	r, err := store.Load()
	if err != nil {
		return fmt.Errorf("load rule: %w", err)
	}
	data, err := json.MarshalIndent(status.NewRuleJSON(r), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
