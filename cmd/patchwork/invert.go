package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork/pkg/patch"
)

var invertCmd = &cobra.Command{
	Use:   "invert <type/id> <patch.json|->",
	Short: "Print the patch that undoes a patch",
	Long: `Run a patch against the current document without saving it and print the
inverse patch. Applying the output after the patch restores the document.`,
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

		res, err := ws.Engine.ApplyByID(context.Background(), docType, id, p, patch.Autosave(false))
		if err != nil {
			return err
		}
		inverse, err := patch.Invert(res.Snapshot, res.Applied)
		if err != nil {
			return err
		}
		data, err := patch.Encode(inverse)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(invertCmd)
}
