package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork/pkg/core"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <type/id>",
	Short: "Delete a document",
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
		ctx = context.WithValue(ctx, core.ChangeReasonKey, buildReason("chore", "delete", doc.Key()))
		if err := ws.Service.DeleteDocument(ctx, doc); err != nil {
			return err
		}
		fmt.Printf("Document '%s' deleted.\n", doc.Key())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	addReasonFlags(deleteCmd)
}
