package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/qanalyzer/internal/config"
	"github.com/pavelanni/qanalyzer/internal/i18n"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qanalyzer",
		Short: "Rate multiple-choice questions with an LLM and collect the results in a spreadsheet",
	}

	analyze := analyzeCmd()
	root.AddCommand(analyze, modelsCmd(), statusCmd(), serveCmd())

	// Make "analyze" the default when no subcommand is given.
	root.RunE = analyze.RunE
	root.Args = analyze.Args
	root.Flags().AddFlagSet(analyze.Flags())

	return root
}

func llmFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", config.DefaultLLMURL, "OpenAI-compatible API base URL")
	f.String("llm-key", config.DefaultLLMKey, "API key for LLM")
	f.StringP("llm-model", "m", config.DefaultLLMModel, "LLM model name")
	f.Duration("llm-timeout", config.DefaultLLMTimeout, "Timeout for a single LLM request")
	f.Int("max-retries", config.DefaultMaxRetries, "Attempts per question before giving up")
	f.Duration("retry-delay", config.DefaultRetryDelay, "Delay between attempts")
	f.String("prompt-file", "", "Custom system prompt template (default: built-in)")
}

func outputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output-dir", "o", config.DefaultOutputDir, "Folder for generated reports")
	f.String("output-file", config.DefaultOutputFile, "Report file name")
	f.String("sheet-name", config.DefaultSheetName, "Worksheet name")
}

func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("lang", "l", config.DefaultLang, "Message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("qanalyzer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/qanalyzer")
	v.AddConfigPath("/etc/qanalyzer")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadConfig sets up logging and localization and returns the validated
// configuration for cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	cfg, err := config.FromViper(v)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := i18n.Init(cfg.Lang); err != nil {
		return config.Config{}, fmt.Errorf("init i18n: %w", err)
	}
	return cfg, nil
}
