// Command upload-tasks bulk-loads the items file into the task queue
// (SPEC_FULL.md §4.6). Mode is selected interactively: 1=append (skip
// duplicates), 2=overwrite (delete all, then insert).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/loader"
	"github.com/scrapefleet/coordinator/internal/platform/logger"
	"github.com/scrapefleet/coordinator/internal/store"
)

func main() {
	path := flag.String("file", "", "path to the items file (one decimal item_id per line)")
	flag.Parse()

	log, err := logger.New("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload-tasks: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *path == "" {
		log.Error("missing_file_flag")
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Error("open_file_failed", "path", *path, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	ids, warnings := loader.LoadItems(f)
	for _, w := range warnings {
		log.Warn("item_line_skipped", "reason", w)
	}
	log.Info("items_parsed", "count", len(ids), "warnings", len(warnings))

	overwrite := promptMode(os.Stdin)

	cfg := config.Load(log)
	s, err := store.Open(cfg, log)
	if err != nil {
		log.Error("store_open_failed", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()
	before, err := s.CountTasks(ctx)
	if err != nil {
		log.Error("count_tasks_failed", "error", err)
		os.Exit(1)
	}

	if overwrite {
		if err := s.DeleteAllTasks(ctx); err != nil {
			log.Error("delete_all_tasks_failed", "error", err)
			os.Exit(1)
		}
	}

	inserted, err := s.CreateTasks(ctx, ids, cfg.MaxTaskAttempts)
	if err != nil {
		log.Error("create_tasks_failed", "error", err)
		os.Exit(1)
	}

	after, err := s.CountTasks(ctx)
	if err != nil {
		log.Error("count_tasks_failed", "error", err)
		os.Exit(1)
	}

	log.Info("upload_tasks_completed",
		"mode", modeName(overwrite),
		"parsed", len(ids),
		"inserted", inserted,
		"skipped", len(ids)-inserted,
		"rows_before", before,
		"rows_after", after,
	)
}

func modeName(overwrite bool) string {
	if overwrite {
		return "overwrite"
	}
	return "append"
}

// promptMode asks 1=append/2=overwrite, defaulting to append on anything
// else the operator types.
func promptMode(in *os.File) bool {
	fmt.Print("Mode — 1=append, 2=overwrite: ")
	scanner := bufio.NewScanner(in)
	scanner.Scan()
	return scanner.Text() == "2"
}
