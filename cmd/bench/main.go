package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/patchwork"
	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

func main() {
	count := flag.Int("count", 1000, "Number of authors to generate")
	adapter := flag.String("adapter", "fs", "Storage adapter (fs, memory)")
	keep := flag.Bool("keep", false, "Keep the benchmark store after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "patchwork_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	schema := &core.Schema{Type: "author", References: map[string]string{"/books": "book"}}

	// Git stays off: the numbers measure the engine and the adapter, not git.
	open := func() *patchwork.Workspace {
		ws, err := patchwork.New(benchDir,
			patchwork.WithAdapter(*adapter),
			patchwork.WithLogger(logger),
			patchwork.WithAutoInit(true),
			patchwork.WithVersioning(false),
			patchwork.WithSchemas(schema),
		)
		if err != nil {
			panic(err)
		}
		return ws
	}
	ws := open()
	ctx := context.Background()

	fmt.Printf("Generating %d authors with one book each in %s...\n", *count, benchDir)
	start := time.Now()
	for i := 0; i < *count; i++ {
		book := core.NewDocument("book", fmt.Sprintf("book-%d", i), core.Fields{"title": fmt.Sprintf("Book %d", i)})
		author := core.NewDocument("author", fmt.Sprintf("author-%d", i), core.Fields{
			"name":  fmt.Sprintf("Author %d", i),
			"books": []any{core.Link(book)},
		})
		if err := ws.Service.WithTransaction(ctx, func(tx core.Transaction) error {
			if err := tx.Save(ctx, book); err != nil {
				return err
			}
			return tx.Save(ctx, author)
		}); err != nil {
			panic(err)
		}
	}
	generation := time.Since(start)

	// One patch per author: a local field and a field behind a reference.
	fmt.Println("Applying patches...")
	start = time.Now()
	for i := 0; i < *count; i++ {
		p := patch.Patch{
			patch.ReplaceOp("/name", fmt.Sprintf("Author %d (revised)", i)),
			patch.ReplaceOp("/books/0/title", fmt.Sprintf("Book %d (2nd edition)", i)),
		}
		if _, err := ws.Engine.ApplyByID(ctx, "author", fmt.Sprintf("author-%d", i), p); err != nil {
			panic(err)
		}
	}
	applied := time.Since(start)

	// A fresh workspace rereads the revision index from disk.
	loadAll := func(ws *patchwork.Workspace) time.Duration {
		start := time.Now()
		for i := 0; i < *count; i++ {
			if _, err := ws.Service.GetDocument(ctx, "author", fmt.Sprintf("author-%d", i)); err != nil {
				panic(err)
			}
		}
		return time.Since(start)
	}
	cold := loadAll(ws)
	if *adapter == "fs" {
		ws = open()
	}
	warm := loadAll(ws)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d authors, %s):\n", *count, *adapter)
	fmt.Printf("  Generate: %v\n", generation)
	fmt.Printf("  Apply:    %v (%v/patch)\n", applied, applied/time.Duration(*count))
	fmt.Printf("  Load 1:   %v\n", cold)
	fmt.Printf("  Load 2:   %v\n", warm)
	fmt.Printf("--------------------------------------------------\n")
}
