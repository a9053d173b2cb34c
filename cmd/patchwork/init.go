package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/patchwork"
	"github.com/aretw0/patchwork/internal/platform"
)

var initPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create patchwork.yaml and initialize the store",
	Long: `Write a patchwork.yaml in --dir (unless one exists) and initialize the store
it describes. For the fs adapter this creates the directory and runs 'git init'
unless --gitless is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := filepath.Join(dir, platform.ConfigFileName)
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			cfg := platform.Config{Adapter: adapter, Path: initPath, URL: url, Format: format}
			if cmd.Flags().Changed("gitless") {
				versioning := !gitless
				cfg.Versioning = &versioning
			}
			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", cfgPath, err)
			}
			fmt.Println("Wrote", cfgPath)
		}

		ws, err := openWorkspace(cmd, patchwork.WithAutoInit(true))
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer ws.Close()

		fmt.Println("Initialized patchwork store in", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initPath, "path", "", "Document directory, relative to patchwork.yaml")
}
