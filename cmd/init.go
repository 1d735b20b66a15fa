package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/strata/internal/config"
	"github.com/zjrosen/strata/internal/demo"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default config and an example manifest and scenario",
	Long: `Write .strata/config.yaml, store.yaml and scenario.yaml into dir
(default: the current directory). Existing files are kept unless --force
is given.

Example:
  strata init
  strata run scenario.yaml --manifest store.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	configPath := filepath.Join(dir, localConfigPath)
	if initForce || !exists(configPath) {
		if err := config.WriteDefaultConfig(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	}

	files := []struct {
		name string
		data []byte
	}{
		{name: "store.yaml", data: demo.Manifest()},
		{name: "scenario.yaml", data: demo.Scenario()},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if !initForce && exists(path) {
			fmt.Fprintf(cmd.OutOrStdout(), "kept %s\n", path)
			continue
		}
		if err := os.WriteFile(path, f.data, 0o644); err != nil { //nolint:gosec // G306: example files are meant to be edited
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
