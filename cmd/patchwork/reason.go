package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/patchwork"
)

var (
	changeReason string
	changeType   string
	changeScope  string
)

func addReasonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&changeReason, "message", "m", "", "Change reason (audit note)")
	cmd.Flags().StringVarP(&changeType, "type", "t", "", "Change type (feat, fix, etc)")
	cmd.Flags().StringVarP(&changeScope, "scope", "s", "", "Change scope")
}

// buildReason turns the reason flags into the change reason recorded by the
// store, falling back to "<ctype>(<scope>): <verb> <key>".
func buildReason(ctype, verb, key string) string {
	if changeType != "" {
		ctype = changeType
	}
	if changeType == "" && changeReason != "" {
		return patchwork.AppendFooter(changeReason)
	}

	subject := changeReason
	if subject == "" {
		subject = fmt.Sprintf("%s %s", verb, key)
	}
	scope := changeScope
	if scope == "" {
		scope = "documents"
	}
	return patchwork.FormatReason(ctype, scope, subject, "")
}
