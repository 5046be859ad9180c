package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/resumeflow/internal/checkpoint"
	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/loader"
	"github.com/Lllllllleong/resumeflow/internal/llm"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
	"github.com/Lllllllleong/resumeflow/internal/present"
	"github.com/Lllllllleong/resumeflow/internal/services"
)

type options struct {
	configPath     string
	parallel       int
	jsonOutput     bool
	verbose        bool
	router         string
	maxExtractions int
	checkpoints    string
	width          int
}

func parseFlags(args []string) (options, []string, error) {
	var opts options
	fs := flag.NewFlagSet("resumectl", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (optional)")
	fs.IntVar(&opts.parallel, "parallel", 0, "Files processed concurrently (default from config)")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Write NDJSON instead of rendered boxes")
	fs.BoolVar(&opts.verbose, "v", false, "Debug logging")
	fs.StringVar(&opts.router, "router", "", "Router: validator or legacy (default from config)")
	fs.IntVar(&opts.maxExtractions, "max-extractions", 0, "Extraction ceiling (default from config)")
	fs.StringVar(&opts.checkpoints, "checkpoints", "", "Checkpoint store: memory or redis (optional)")
	fs.IntVar(&opts.width, "width", 100, "Output box width")
	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}
	if fs.NArg() == 0 {
		return options{}, nil, errors.New("at least one resume file (.pdf or .docx) is required")
	}
	switch opts.checkpoints {
	case "", "memory", "redis":
	default:
		return options{}, nil, fmt.Errorf("unknown checkpoint store %q", opts.checkpoints)
	}
	return opts, fs.Args(), nil
}

func main() {
	opts, paths, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed, err := run(ctx, opts, paths, os.Stdout)
	if err != nil {
		slog.Error("resumectl failed", "error", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// run processes paths and returns the number of files that failed.
func run(ctx context.Context, opts options, paths []string, out io.Writer) (int, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return 0, err
	}

	model, err := services.NewModel(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if c, ok := model.(io.Closer); ok {
		defer c.Close()
	}

	batch, cleanup, err := buildBatch(cfg, opts, model, out)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	results, err := batch.ProcessFiles(ctx, paths)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	return failed, nil
}

func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.parallel > 0 {
		cfg.Parallelism = opts.parallel
	}
	if opts.router != "" {
		cfg.Router = opts.router
	}
	if opts.maxExtractions > 0 {
		cfg.MaxExtractions = opts.maxExtractions
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildBatch(cfg config.Config, opts options, model llm.Model, out io.Writer) (*services.Batch, func(), error) {
	cleanup := func() {}
	var ctrlOpts []pipeline.Option
	switch opts.checkpoints {
	case "memory":
		ctrlOpts = append(ctrlOpts, pipeline.WithCheckpointer(checkpoint.NewRecorder(checkpoint.NewMemoryStore())))
	case "redis":
		if cfg.RedisURL == "" {
			return nil, nil, fmt.Errorf("%w: redis_url is required for redis checkpoints", config.ErrInvalidConfig)
		}
		store, err := checkpoint.NewRedisStore(cfg.RedisURL, cfg.RedisPrefix, cfg.CheckpointTTL)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = store.Close() }
		ctrlOpts = append(ctrlOpts, pipeline.WithCheckpointer(checkpoint.NewRecorder(store)))
	}

	ctrl, err := services.NewController(model, cfg, ctrlOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	batch := &services.Batch{
		Controller:  ctrl,
		Loader:      loader.New(),
		MaxFileSize: cfg.MaxFileSize,
		Parallelism: cfg.Parallelism,
		Out:         out,
	}
	if opts.jsonOutput {
		batch.NewPresenter = func(w io.Writer) present.Presenter { return present.NewNDJSON(w) }
		batch.Summarize = jsonSummary
	} else {
		width := opts.width
		batch.NewPresenter = func(w io.Writer) present.Presenter { return present.NewTerminal(w, width) }
	}
	return batch, cleanup, nil
}

type fileSummary struct {
	Path       string `json:"path"`
	RunID      string `json:"runId"`
	Status     string `json:"status"`
	Approved   bool   `json:"approved"`
	Attempts   int    `json:"attempts"`
	Extraction string `json:"extraction,omitempty"`
	Error      string `json:"error,omitempty"`
}

func jsonSummary(w io.Writer, r services.FileResult) error {
	s := fileSummary{Path: r.Path, RunID: r.RunID, Status: "success"}
	if r.Err != nil {
		s.Status = "error"
		s.Error = r.Err.Error()
	} else {
		s.Approved = r.Outcome.Approved
		s.Attempts = r.Outcome.Attempts
		s.Extraction = r.Outcome.Extraction
	}
	return json.NewEncoder(w).Encode(s)
}
