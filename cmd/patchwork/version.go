package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of patchwork",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("patchwork version %s\n", patchwork.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
