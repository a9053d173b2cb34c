package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork/pkg/core"
)

var putForce bool

var putCmd = &cobra.Command{
	Use:   "put <type/id> <fields.json|->",
	Short: "Create or replace a document",
	Long: `Store a JSON object as the fields of a document. Encoded references
({"$ref": "book", "$id": "hobbit"}) are kept as references.

An existing document is only replaced with --force.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, id, err := parseKey(args[0])
		if err != nil {
			return err
		}
		data, err := readInput(args[1])
		if err != nil {
			return err
		}
		var fields core.Fields
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("fields must be a JSON object: %w", err)
		}

		ws, err := openWorkspace(cmd)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer ws.Close()

		ctx := context.Background()
		doc := core.NewDocument(docType, id, core.RestoreRefs(fields))
		verb := "create"

		existing, err := ws.Service.GetDocument(ctx, docType, id)
		switch {
		case err == nil && !putForce:
			return fmt.Errorf("%s already exists (revision %d); use --force to replace it", doc.Key(), existing.Revision)
		case err == nil:
			doc.Revision = existing.Revision
			verb = "replace"
		case !errors.Is(err, core.ErrNotFound):
			return err
		}

		ctx = context.WithValue(ctx, core.ChangeReasonKey, buildReason("docs", verb, doc.Key()))
		if err := ws.Service.SaveDocument(ctx, doc); err != nil {
			return err
		}
		fmt.Printf("Document '%s' saved (revision %d).\n", doc.Key(), doc.Revision)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().BoolVarP(&putForce, "force", "f", false, "Replace an existing document")
	addReasonFlags(putCmd)
}
