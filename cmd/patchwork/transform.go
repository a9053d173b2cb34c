package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

var transformBase int64

var transformCmd = &cobra.Command{
	Use:   "transform <first.json> <second.json>",
	Short: "Rebase a patch over a concurrent one",
	Long: `Both patches were written against the same revision. Print the second
patch rewritten to apply after the first: array indices are shifted and
operations touching what the first patch replaced or removed are dropped.
Dropped operations are listed on stderr and the exit status is 2.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := readPatch(args[0])
		if err != nil {
			return err
		}
		b, err := readPatch(args[1])
		if err != nil {
			return err
		}

		base := core.Revision(transformBase)
		out, err := patch.Transform(base, patch.Change{Base: base, Patch: a}, patch.Change{Base: base, Patch: b})

		var conflict *patch.ConflictError
		if err != nil && !errors.As(err, &conflict) {
			return err
		}

		data, encErr := patch.Encode(out)
		if encErr != nil {
			return encErr
		}
		fmt.Println(string(data))

		if conflict != nil {
			for _, d := range conflict.Dropped {
				fmt.Fprintf(os.Stderr, "dropped #%d %s (against %s)\n", d.Index, d.Operation, d.Against)
			}
			os.Exit(2)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.Flags().Int64Var(&transformBase, "base", 0, "Revision both patches were written against")
}
