package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/qanalyzer/internal/config"
	"github.com/pavelanni/qanalyzer/internal/llm"
)

const probeTimeout = 10 * time.Second

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, backend reachability and input/output folders",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	llmFlags(cmd)
	outputFlags(cmd)
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("input-dir", "i", config.DefaultInputDir, "Folder with question files")
	f.String("input-pattern", config.DefaultInputPattern, "Glob pattern for question files in the input folder")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := llm.New(cfg.LLM())
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()
	reachable := "no"
	if client.Reachable(ctx) {
		reachable = "yes"
	}

	inputs, _ := filepath.Glob(filepath.Join(cfg.InputDir, cfg.InputPattern))
	reports, _ := filepath.Glob(filepath.Join(cfg.OutputDir, "*.xlsx"))

	rows := [][]string{
		{"Backend URL", cfg.LLMURL},
		{"Model", cfg.LLMModel},
		{"Backend reachable", reachable},
		{"Max retries", strconv.Itoa(cfg.MaxRetries)},
		{"Retry delay", cfg.RetryDelay.String()},
		{"Input folder", cfg.InputDir},
		{"Input files", strconv.Itoa(len(inputs))},
		{"Output folder", cfg.OutputDir},
		{"Existing reports", strconv.Itoa(len(reports))},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows))
	return nil
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the backend",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}
	llmFlags(cmd)
	commonFlags(cmd)
	return cmd
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := llm.New(cfg.LLM())
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()
	models, err := client.Models(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		marker := ""
		if m == cfg.LLMModel {
			marker = "*"
		}
		rows = append(rows, []string{m, marker})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Model", "Configured"}, rows))
	return nil
}
