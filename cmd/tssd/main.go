// Package main is the tssd CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cohortlab/tssd/internal/config"
	"github.com/cohortlab/tssd/internal/dataset"
	"github.com/cohortlab/tssd/internal/fetch"
	"github.com/cohortlab/tssd/internal/history"
	"github.com/cohortlab/tssd/internal/match"
	"github.com/cohortlab/tssd/internal/screen"
	"github.com/cohortlab/tssd/internal/sentiment"
	"github.com/cohortlab/tssd/internal/storage"
	"github.com/cohortlab/tssd/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tssd/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if neither
// exists the built-in defaults are used, so flag-only runs need no file.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "match":
		runMatch()
	case "screen":
		runScreen()
	case "fetch":
		runFetch()
	case "count":
		runCount()
	case "version", "--version", "-v":
		fmt.Printf("tssd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	casesFlag := fs.String("cases", "", "comma-separated case history files (required)")
	controlsFlag := fs.String("controls", "", "comma-separated control history files (required)")
	controlsCnt := fs.Int("matching-controls", 0, "controls to match per case (default from config)")
	workers := fs.Int("workers", 0, "worker pool size for history reading (default from config)")
	out := fs.String("out", "tssd.json", "output dataset path")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	caseFiles := splitList(*casesFlag)
	controlFiles := splitList(*controlsFlag)
	if len(caseFiles) == 0 || len(controlFiles) == 0 {
		fmt.Println("match requires --cases and --controls")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *controlsCnt > 0 {
		cfg.Match.Controls = *controlsCnt
	}
	if *workers > 0 {
		cfg.Match.Workers = *workers
	}

	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.New().String()))

	filter, err := sentiment.NewTermFilter(cfg.Patterns.PositivePath, cfg.Patterns.NegativePath)
	if err != nil {
		logger.Fatal("failed to load term patterns", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := history.NewReader(filter, cfg.Match.Workers,
		history.WithLogger(logger),
		history.WithMaxPosts(cfg.Match.MaxPosts),
	)
	controlDocs, controlIndex, err := reader.ReadGroup(ctx, controlFiles)
	if err != nil {
		logger.Fatal("failed to read control histories", zap.Error(err))
	}
	caseDocs, caseIndex, err := reader.ReadGroup(ctx, caseFiles)
	if err != nil {
		logger.Fatal("failed to read case histories", zap.Error(err))
	}
	logger.Info("histories read",
		zap.Int("cases", len(caseIndex)),
		zap.Int("controls", len(controlIndex)),
	)

	matcher := match.New(match.Params{
		Controls:      cfg.Match.Controls,
		MinSimilarity: cfg.Match.MinSimilarity,
		MinAcceptable: cfg.Match.MinAcceptable,
	}, match.WithLogger(logger))
	matches := matcher.Match(caseDocs, controlDocs, caseIndex.IDs())

	records := dataset.Assemble(caseIndex, matches, controlIndex)

	f, err := os.Create(*out)
	if err != nil {
		logger.Fatal("failed to create output file", zap.Error(err))
	}
	if err := dataset.WriteNDJSON(f, records); err != nil {
		f.Close()
		logger.Fatal("failed to write dataset", zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("failed to close output file", zap.Error(err))
	}
	logger.Info("dataset written",
		zap.String("path", *out),
		zap.Int("records", len(records)),
	)
}

func runScreen() {
	fs := flag.NewFlagSet("screen", flag.ExitOnError)
	input := fs.String("input", "", "comma-separated raw stream files (required)")
	highPrecision := fs.Bool("high-precision", false, "require positive indicator patterns instead of the diagnosis-mention search")
	out := fs.String("out", "candidates.json", "candidates output path")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	files := splitList(*input)
	if len(files) == 0 {
		fmt.Println("screen requires --input")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()

	filter, err := sentiment.NewTermFilter(cfg.Patterns.PositivePath, cfg.Patterns.NegativePath)
	if err != nil {
		logger.Fatal("failed to load term patterns", zap.Error(err))
	}

	screener := screen.New(filter, *highPrecision, screen.WithLogger(logger))
	if err := screener.Run(files); err != nil {
		logger.Fatal("screening failed", zap.Error(err))
	}
	if err := screener.SaveCandidates(*out); err != nil {
		logger.Fatal("failed to save candidates", zap.Error(err))
	}
	logger.Info("candidates written", zap.String("path", *out))
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	usersPath := fs.String("users", "", "candidates file with user ids (required)")
	out := fs.String("out", "history.json", "history output path")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if *usersPath == "" {
		fmt.Println("fetch requires --users")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()

	userIDs, err := fetch.LoadUserIDs(*usersPath)
	if err != nil {
		logger.Fatal("failed to load user ids", zap.Error(err))
	}

	cache, err := storage.NewTimelineCache(cfg.Storage.CachePath)
	if err != nil {
		logger.Fatal("failed to open timeline cache", zap.Error(err))
	}
	defer cache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.New(cfg.Fetch, cache, fetch.WithLogger(logger))
	users, err := fetcher.FetchAll(ctx, userIDs)
	// Save whatever was fetched even when the run was interrupted.
	if len(users) > 0 {
		if saveErr := fetch.SaveHistory(*out, users); saveErr != nil {
			logger.Fatal("failed to save history", zap.Error(saveErr))
		}
	}
	if err != nil {
		logger.Fatal("fetch aborted", zap.Error(err))
	}
	logger.Info("history written",
		zap.String("path", *out),
		zap.Int("users", len(users)),
	)
}

func runCount() {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	path := fs.String("path", "candidates.json", "candidates or history file to count")
	_ = fs.Parse(os.Args[2:])

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", *path, err)
		os.Exit(1)
	}
	var users map[string]json.RawMessage
	if err := json.Unmarshal(data, &users); err != nil {
		fmt.Printf("Failed to parse %s: %v\n", *path, err)
		os.Exit(1)
	}
	fmt.Printf("Count: %d\n", len(users))
}

func newLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printUsage() {
	fmt.Println(`tssd - matched case/control text corpus builder

Usage:
  tssd <command> [flags]

Commands:
  match    Build the labeled dataset from case and control history files
  screen   Scan raw post streams for diagnosis self-report candidates
  fetch    Fetch candidate timelines through the configured API
  count    Print the number of users in a candidates/history file
  version  Print version
  help     Show this help

Examples:
  tssd match --cases cases.json --controls controls.json --matching-controls 7
  tssd screen --input stream1.jsonl,stream2.jsonl --high-precision
  tssd fetch --users candidates.json --out history.json
  tssd count --path candidates.json

Run "tssd <command> -h" for command flags.`)
}
