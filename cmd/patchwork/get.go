package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork/pkg/core"
)

var getPopulate []string

var getCmd = &cobra.Command{
	Use:   "get <type/id>",
	Short: "Print a document",
	Long:  `Print a document envelope as JSON. --populate loads the references at the given field pointers and prints their targets too.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, id, err := parseKey(args[0])
		if err != nil {
			return err
		}
		ws, err := openWorkspace(cmd)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer ws.Close()

		ctx := context.Background()
		doc, err := ws.Service.GetDocument(ctx, docType, id)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if len(getPopulate) == 0 {
			return nil
		}

		if err := ws.Store.Populate(ctx, doc, getPopulate...); err != nil {
			return err
		}
		for _, target := range loadedTargets(doc) {
			if err := enc.Encode(target); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringSliceVarP(&getPopulate, "populate", "p", nil, "Reference fields to load (e.g. /books)")
}

// loadedTargets returns the loaded reference targets of doc's fields, in
// field order of first appearance.
func loadedTargets(doc *core.Document) []*core.Document {
	var out []*core.Document
	seen := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case *core.Reference:
			if t != nil && t.Target != nil && !seen[t.Target.Key()] {
				seen[t.Target.Key()] = true
				out = append(out, t.Target)
			}
		case map[string]any:
			for _, k := range slices.Sorted(maps.Keys(t)) {
				walk(t[k])
			}
		case []any:
			for _, el := range t {
				walk(el)
			}
		}
	}
	walk(doc.Fields)
	return out
}
