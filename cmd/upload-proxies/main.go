// Command upload-proxies bulk-loads the proxies file into the proxy pool
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
	path := flag.String("file", "", "path to the proxies file (host:port:user:pass per line)")
	flag.Parse()

	log, err := logger.New("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload-proxies: build logger: %v\n", err)
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

	parsed, warnings := loader.LoadProxies(f)
	for _, w := range warnings {
		log.Warn("proxy_line_skipped", "reason", w)
	}
	log.Info("proxies_parsed", "count", len(parsed), "warnings", len(warnings))

	raw := make([]string, 0, len(parsed))
	for _, p := range parsed {
		raw = append(raw, p.Raw)
	}

	overwrite := promptMode(os.Stdin)

	cfg := config.Load(log)
	s, err := store.Open(cfg, log)
	if err != nil {
		log.Error("store_open_failed", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()
	before, err := s.CountProxies(ctx)
	if err != nil {
		log.Error("count_proxies_failed", "error", err)
		os.Exit(1)
	}

	if overwrite {
		if err := s.DeleteAllProxies(ctx); err != nil {
			log.Error("delete_all_proxies_failed", "error", err)
			os.Exit(1)
		}
	}

	inserted, err := s.CreateProxies(ctx, raw)
	if err != nil {
		log.Error("create_proxies_failed", "error", err)
		os.Exit(1)
	}

	after, err := s.CountProxies(ctx)
	if err != nil {
		log.Error("count_proxies_failed", "error", err)
		os.Exit(1)
	}

	log.Info("upload_proxies_completed",
		"mode", modeName(overwrite),
		"parsed", len(raw),
		"inserted", inserted,
		"skipped", len(raw)-inserted,
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

func promptMode(in *os.File) bool {
	fmt.Print("Mode — 1=append, 2=overwrite: ")
	scanner := bufio.NewScanner(in)
	scanner.Scan()
	return scanner.Text() == "2"
}
