package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

var (
	applyDryRun     bool
	applyNoPopulate bool
	applyBlacklist  []string
)

var applyCmd = &cobra.Command{
	Use:   "apply <type/id> <patch.json|->",
	Short: "Apply a JSON Patch to a document",
	Long: `Apply an RFC 6902 patch to a document. Paths may traverse references into
other documents; every document the patch touches is saved together.

With --dry-run the patch runs in memory and the resulting changes are
printed as a diff; nothing is saved.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, id, err := parseKey(args[0])
		if err != nil {
			return err
		}
		p, err := readPatch(args[1])
		if err != nil {
			return err
		}

		ws, err := openWorkspace(cmd)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer ws.Close()

		key := core.Key(docType, id)
		res, err := ws.Engine.ApplyByID(context.Background(), docType, id, p,
			patch.Autosave(!applyDryRun),
			patch.Populate(!applyNoPopulate),
			patch.Blacklist(applyBlacklist...),
			patch.Reason(buildReason("feat", "patch", key)),
		)
		if err != nil {
			var opErr *patch.OpError
			if errors.As(err, &opErr) {
				return fmt.Errorf("patch rejected at operation %d (%s %s): %w", opErr.Index, opErr.Op, opErr.Path, opErr.Err)
			}
			return err
		}

		for _, i := range res.Skipped {
			fmt.Fprintf(os.Stderr, "skipped operation %d (%s)\n", i, p[i])
		}

		if applyDryRun {
			printChanges(context.Background(), ws.Store, res)
			fmt.Println("dry run: nothing saved")
			return nil
		}

		fmt.Printf("Applied %d operations to %s (revision %d)\n", len(res.Applied), key, res.Document.Revision)
		for _, doc := range res.Created {
			fmt.Printf("  created %s\n", doc.Key())
		}
		return nil
	},
}

// printChanges diffs every touched document of an unsaved result against
// its stored version.
func printChanges(ctx context.Context, store core.Store, res *patch.Result) {
	for _, doc := range res.Mutated {
		old := ""
		if prev, err := store.Load(ctx, doc.Type, doc.ID); err == nil {
			old = renderFields(prev.Fields)
		}
		writeDiff(os.Stdout, doc.Key(), old, renderFields(doc.Fields))
	}
	for _, doc := range res.Created {
		writeDiff(os.Stdout, doc.Key()+" (new)", "", renderFields(doc.Fields))
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVarP(&applyDryRun, "dry-run", "n", false, "Show the resulting changes without saving")
	applyCmd.Flags().BoolVar(&applyNoPopulate, "no-populate", false, "Do not load references along patch paths")
	applyCmd.Flags().StringSliceVar(&applyBlacklist, "deny", nil, "Additional blacklisted paths for this patch")
	addReasonFlags(applyCmd)
}
