package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork"
	"github.com/aretw0/patchwork/internal/platform"
)

var (
	verbose bool
	dir     string
	adapter string
	url     string
	gitless bool
	format  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "patchwork",
	Short: "Apply JSON Patches to linked documents",
	Long: `patchwork applies RFC 6902 JSON Patches to stored documents whose fields
may reference other documents. Paths follow references, every touched
document is committed together, and patches can be inverted or rebased.

The store is described by the nearest patchwork.yaml, or by --dir/--adapter.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "Project or store directory")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter (fs, redis, memory)")
	rootCmd.PersistentFlags().StringVar(&url, "url", "", "Redis URL for the redis adapter")
	rootCmd.PersistentFlags().BoolVar(&gitless, "gitless", false, "Disable git versioning of the fs adapter")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "File format of new documents (json, yaml)")
}

// openWorkspace opens the store described by the nearest patchwork.yaml,
// falling back to --dir when there is none. Flags override the file.
func openWorkspace(cmd *cobra.Command, extra ...patchwork.Option) (*patchwork.Workspace, error) {
	opts := []patchwork.Option{patchwork.WithLogger(slog.Default())}

	cfg, err := platform.FindConfig(dir)
	switch {
	case err == nil:
		opts = append(opts, patchwork.WithConfig(cfg))
	case errors.Is(err, os.ErrNotExist), errors.Is(err, platform.ErrRootNotFound):
		slog.Debug("no project configuration found", "dir", dir)
	default:
		return nil, err
	}

	uri := dir
	if cfg != nil {
		uri = cfg.URI()
	}

	flags := cmd.Flags()
	if flags.Changed("adapter") {
		opts = append(opts, patchwork.WithAdapter(adapter))
	}
	if flags.Changed("url") {
		uri = url
	}
	if flags.Changed("gitless") {
		opts = append(opts, patchwork.WithVersioning(!gitless))
	}
	if flags.Changed("format") {
		opts = append(opts, patchwork.WithFormat(format))
	}
	if adapter == "redis" && url == "" && (cfg == nil || cfg.URL == "") {
		return nil, fmt.Errorf("the redis adapter requires --url")
	}

	return patchwork.New(uri, append(opts, extra...)...)
}

// parseKey splits "type/id".
func parseKey(key string) (string, string, error) {
	docType, id, ok := strings.Cut(key, "/")
	if !ok || docType == "" || id == "" {
		return "", "", fmt.Errorf("invalid document key %q, want type/id", key)
	}
	return docType, id, nil
}
