package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pavelanni/qanalyzer/internal/config"
	"github.com/pavelanni/qanalyzer/internal/display"
	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/llm"
	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/pipeline"
	"github.com/pavelanni/qanalyzer/internal/report"
)

var errNoResults = errors.New("no question was analyzed successfully")

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Analyze question files and write the ratings to a spreadsheet",
		Long: "Analyze every question file given as an argument, or every file in the input\n" +
			"folder matching the input pattern when no file is given. Each input file gets\n" +
			"its own report. Interrupting the run stops after the current question and\n" +
			"still writes the report summary.",
		RunE: runAnalyze,
	}
	llmFlags(cmd)
	outputFlags(cmd)
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("input-dir", "i", config.DefaultInputDir, "Folder with question files")
	f.String("input-pattern", config.DefaultInputPattern, "Glob pattern for question files in the input folder")
	f.Bool("no-display", false, "Print plain progress lines instead of a progress bar")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = i18n.Context(ctx, cfg.Lang)

	disp := display.New(ctx, cmd.OutOrStdout(), cfg.NoDisplay)
	disp.Title()

	client, err := llm.New(cfg.LLM())
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	files, err := inputFiles(cfg, args)
	if err != nil {
		disp.Fatal(err)
		return err
	}

	disp.Status(model.StatusConnecting)
	if err := client.Ping(ctx); err != nil {
		err = fmt.Errorf("%w: %w", pipeline.ErrBackendUnavailable, err)
		disp.Fatal(err)
		return err
	}
	slog.Info("LLM endpoint OK", "url", cfg.LLMURL, "model", client.Model(), "files", len(files))

	var succeeded int
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		stats, err := analyzeFile(ctx, client, disp, cfg.Report(cfg.ReportFilename(path, len(files))), path)
		succeeded += stats.Succeeded
		if err != nil {
			slog.Error("analysis failed", "file", path, "error", err)
			disp.Fatal(err)
		}
	}

	if succeeded == 0 {
		return errNoResults
	}
	return nil
}

func analyzeFile(ctx context.Context, client *llm.Client, disp *display.Display, rc report.Config, path string) (model.RunStats, error) {
	newReport := func() (pipeline.Report, error) {
		rep, err := report.New(rc)
		if err != nil {
			return nil, err
		}
		return rep, nil
	}
	return pipeline.New(client, newReport, disp).RunFile(ctx, path)
}

// inputFiles returns the files named in args, or the files in the input
// folder matching the input pattern. A missing input folder is created so the
// user knows where to put question files.
func inputFiles(cfg config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		for _, path := range args {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("input file: %w", err)
			}
		}
		return args, nil
	}

	if _, err := os.Stat(cfg.InputDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create input folder: %w", err)
		}
		return nil, fmt.Errorf("input folder %s was missing and has been created; add question files and run again", cfg.InputDir)
	}

	files, err := filepath.Glob(filepath.Join(cfg.InputDir, cfg.InputPattern))
	if err != nil {
		return nil, fmt.Errorf("match input files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching %s in %s", cfg.InputPattern, cfg.InputDir)
	}
	sort.Strings(files)
	return files, nil
}
