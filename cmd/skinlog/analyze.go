package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/raine/skinlog-bot/config"
	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/catalog"
	"github.com/raine/skinlog-bot/internal/dashboard"
	"github.com/raine/skinlog-bot/internal/flow"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/llm"
	"github.com/raine/skinlog-bot/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	file        string
	camera      string
	ffmpeg      string
	format      string
	lang        string
	provider    string
	catalogPath string
	cacheDB     string
	json        bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a face photo from a file or a camera",
		Example: `  skinlog analyze --file face.jpg
  skinlog analyze --camera /dev/video0 --lang en
  skinlog analyze --file face.jpg --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.file == "") == (opts.camera == "") {
				return errors.New("exactly one of --file or --camera is required")
			}
			lang := i18n.Language(strings.ToLower(opts.lang))
			if !lang.Valid() {
				return fmt.Errorf("unsupported language %q (use ko or en)", opts.lang)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			analyzer, closeFn, err := buildAnalyzer(ctx, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			products, err := loadCatalog(opts.catalogPath)
			if err != nil {
				return err
			}

			var device capture.Device
			if opts.camera != "" {
				device = &capture.FFmpegDevice{Binary: opts.ffmpeg, Input: opts.camera, Format: opts.format}
			}
			return runAnalyze(ctx, opts, lang, analyzer, products, device, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Image file to analyze")
	cmd.Flags().StringVar(&opts.camera, "camera", "", "Camera input, e.g. /dev/video0 or \"0\" on macOS")
	cmd.Flags().StringVar(&opts.ffmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary used for camera capture")
	cmd.Flags().StringVar(&opts.format, "input-format", "", "ffmpeg input format (default per OS)")
	cmd.Flags().StringVarP(&opts.lang, "lang", "l", string(i18n.Default), "Report language: ko or en")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Analysis provider: gemini or openai (default from SKINLOG_PROVIDER)")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "Product catalog YAML (default SKINLOG_CATALOG_PATH, then built-in)")
	cmd.Flags().StringVar(&opts.cacheDB, "cache-db", "", "SQLite database for caching analyses")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the raw analysis result as JSON")
	return cmd
}

// buildAnalyzer selects the provider and optionally wraps it with the SQLite cache.
func buildAnalyzer(ctx context.Context, opts *analyzeOptions) (llm.Analyzer, func(), error) {
	provider := strings.ToLower(opts.provider)
	if provider == "" {
		provider = strings.ToLower(os.Getenv("SKINLOG_PROVIDER"))
	}

	var analyzer llm.Analyzer
	switch provider {
	case config.ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, nil, errors.New("OPENAI_API_KEY is not set")
		}
		analyzer = llm.NewOpenAIAnalyzer(key)
	case "", config.ProviderGemini:
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return nil, nil, errors.New("GEMINI_API_KEY is not set")
		}
		gemini, err := llm.NewGeminiAnalyzer(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini analyzer: %w", err)
		}
		analyzer = gemini
	default:
		return nil, nil, fmt.Errorf("unknown provider %q (use gemini or openai)", provider)
	}

	if opts.cacheDB == "" {
		return analyzer, func() {}, nil
	}
	store, err := storage.NewSQLiteStore(opts.cacheDB)
	if err != nil {
		return nil, nil, err
	}
	return llm.NewCachedAnalyzer(analyzer, store), func() { store.Close() }, nil
}

// runAnalyze drives one Home → Capture → Analyzing → Result pass.
func runAnalyze(
	ctx context.Context,
	opts *analyzeOptions,
	lang i18n.Language,
	analyzer llm.Analyzer,
	products *catalog.Catalog,
	device capture.Device,
	in io.Reader,
	out io.Writer,
) error {
	s := i18n.For(lang)
	controller := flow.NewController(lang)
	if err := controller.Start(); err != nil {
		return err
	}

	img, err := acquireImage(ctx, opts, s, device, in, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n%s\n", s.AnalyzingTitle, s.AnalyzingSubtitle)
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	analysis, err := controller.Analyze(actx, analyzer, img)
	if err != nil {
		if msg := controller.Snapshot().Error; msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}
	log.Debug().
		Bool("cached", analysis.Cached).
		Int64("totalTokens", analysis.Usage.TotalTokens).
		Float64("costUsd", analysis.Usage.CostUSD).
		Msg("analysis finished")

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis.Result)
	}

	view := dashboard.Build(analysis.Result, lang, products, time.Now())
	fmt.Fprintln(out, dashboard.RenderTerminal(view))
	return nil
}

// acquireImage reads the upload path or grabs a frame after the user presses Enter.
func acquireImage(ctx context.Context, opts *analyzeOptions, s i18n.Strings, device capture.Device, in io.Reader, out io.Writer) (capture.Image, error) {
	if opts.file != "" {
		img, err := capture.FromFile(opts.file)
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrNotImage):
				return capture.Image{}, fmt.Errorf("%s: %w", s.NotAnImage, err)
			case errors.Is(err, capture.ErrTooLarge):
				return capture.Image{}, fmt.Errorf("%s: %w", s.ImageTooLarge, err)
			}
			return capture.Image{}, err
		}
		return img, nil
	}

	camera := capture.NewCamera(device)
	defer camera.Close()

	if err := camera.Start(ctx); err != nil {
		return capture.Image{}, fmt.Errorf("%s: %w", s.CameraDenied, err)
	}

	fmt.Fprintf(out, "%s\n%s\n[Enter] %s\n", s.ReadyTitle, s.ReadySubtitle, s.TakePhoto)
	lines := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		lines <- err
	}()

	select {
	case <-ctx.Done():
		camera.Cancel()
		return capture.Image{}, ctx.Err()
	case err := <-lines:
		if err != nil {
			return capture.Image{}, fmt.Errorf("failed to read input: %w", err)
		}
	}
	return camera.Capture(ctx)
}
