package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	lifecycleadapter "github.com/aretw0/patchwork/pkg/adapters/lifecycle"
	"github.com/aretw0/patchwork/pkg/core"
)

var watchEvents []string

var watchCmd = &cobra.Command{
	Use:   "watch [pattern]",
	Short: "Print document changes as they happen",
	Long: `Print events for document keys matching a glob pattern (default "**")
until interrupted. --event restricts the output to CREATE, MODIFY or DELETE.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "**"
		if len(args) == 1 {
			pattern = args[0]
		}
		types := make([]core.EventType, 0, len(watchEvents))
		for _, e := range watchEvents {
			switch t := core.EventType(e); t {
			case core.EventCreate, core.EventModify, core.EventDelete:
				types = append(types, t)
			default:
				return fmt.Errorf("unknown event type %q", e)
			}
		}

		ws, err := openWorkspace(cmd)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer ws.Close()

		watchable, ok := ws.Store.(core.Watchable)
		if !ok {
			return fmt.Errorf("the %T store does not support watching", ws.Store)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		source := lifecycleadapter.NewStoreSource(watchable, pattern, types...)
		if err := source.Start(ctx); err != nil {
			return err
		}
		for e := range source.Events() {
			fmt.Println(e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceVarP(&watchEvents, "event", "e", nil, "Event types to print (CREATE, MODIFY, DELETE)")
}
