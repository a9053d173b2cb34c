package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/aretw0/patchwork/pkg/core"
)

var (
	addColor = color.New(color.FgGreen)
	delColor = color.New(color.FgRed)
	hdrColor = color.New(color.Bold)
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// renderFields prints fields as indented JSON with references in their
// stored {"$ref","$id"} form.
func renderFields(fields core.Fields) string {
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Sprintf("<unprintable: %v>", err)
	}
	return string(data) + "\n"
}

// writeDiff prints a unified line diff between before and after.
func writeDiff(w io.Writer, title, before, after string) {
	if before == after {
		return
	}
	hdrColor.Fprintf(w, "--- %s\n+++ %s\n", title, title)

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				addColor.Fprintf(w, "+%s\n", line)
			case diffmatchpatch.DiffDelete:
				delColor.Fprintf(w, "-%s\n", line)
			default:
				fmt.Fprintf(w, " %s\n", line)
			}
		}
	}
}
