package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// historian is implemented by stores that keep change reasons.
type historian interface {
	History(ctx context.Context, docType, id string, limit int) ([]string, error)
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <type/id>",
	Short: "Show the change history of a document",
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

		h, ok := ws.Store.(historian)
		if !ok {
			return fmt.Errorf("the %T store keeps no history", ws.Store)
		}
		entries, err := h.History(context.Background(), docType, id, historyLimit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries (0 for all)")
}
