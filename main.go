package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chainrank/internal/config"
	"chainrank/internal/envelope"
	"chainrank/internal/pipeline"
	"chainrank/internal/record"
	_ "chainrank/internal/sources/dappbay"
	_ "chainrank/internal/sources/dune"
	_ "chainrank/internal/sources/fourmeme"
	_ "chainrank/internal/sources/llama"
)

var version = "dev"

var (
	configPath   string
	sources      []string
	metric       string
	interval     string
	limit        int
	timezone     string
	outputFormat string
	outputFile   string
	renderImage  bool
	dumpHTML     string
	timeout      time.Duration
	showUI       bool
	proxyURL     string
	verbose      bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "chainrank",
		Short:   "Aggregate blockchain ecosystem rankings into a leaderboard",
		Version: version,
		Long: `chainrank collects ranking data about blockchain-ecosystem entities
(dapps, tokens, protocols) from rendered web pages and analytics APIs,
merges records that describe the same entity, ranks them, and emits a
leaderboard with an optional image rendered from a visual template.`,
		Example: `  # Top DApps by active users (7d), machine-readable result
  chainrank --source dappbay --interval 7d -f json

  # Top protocols by fees paid with the rendered poster
  chainrank --source llama --metric fees --interval 24h --image -o result.json

  # Combine sources and rank by volume
  chainrank --source dappbay --source dune --metric volume -f markdown`,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (YAML), CHAINRANK_* env vars override")
	rootCmd.Flags().StringSliceVar(&sources, "source", nil, "Source to aggregate (repeatable), overrides config")
	rootCmd.Flags().StringVar(&metric, "metric", "", "Primary ranking metric, overrides config")
	rootCmd.Flags().StringVar(&interval, "interval", "", "Time window: 24h, 7d or 30d, overrides config")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "Leaderboard size, overrides config")
	rootCmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for caption timestamps, overrides config")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, text, markdown)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default stdout)")
	rootCmd.Flags().BoolVar(&renderImage, "image", false, "Render the leaderboard image (requires a local Chrome)")
	rootCmd.Flags().StringVar(&dumpHTML, "dump-html", "", "Write the composed document HTML to this path")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 60*time.Second, "Per-source page interaction timeout")
	rootCmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", os.Getenv("CHAINRANK_PROXY"), "Proxy URL, defaults to CHAINRANK_PROXY env var")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := validateFlags(); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	params := pipeline.Params{
		Cfg:         cfg,
		RenderImage: renderImage,
		Timeout:     timeout,
		Headless:    !showUI,
		ProxyURL:    proxyURL,
		Logger:      logger,
	}
	if dumpHTML != "" {
		params.DumpHTML = func(html string) {
			if err := os.WriteFile(dumpHTML, []byte(html), 0644); err != nil {
				logger.Warn("failed to dump composed HTML", zap.Error(err))
			} else {
				logger.Info("composed HTML written", zap.String("path", dumpHTML))
			}
		}
	}

	result := pipeline.Run(context.Background(), params)

	out, err := formatResult(result, cfg)
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", outputFile)
	} else {
		fmt.Println(out)
	}

	if result.Error != "" {
		return fmt.Errorf("run failed: %s", result.Error)
	}
	return nil
}

// formatResult serializes the envelope in the requested output format. An
// error envelope is always emitted as JSON so downstream consumers see a
// machine-readable failure regardless of format.
func formatResult(result *envelope.Result, cfg *config.Config) (string, error) {
	if result.Error != "" || outputFormat == "json" {
		b, err := result.ToJSON()
		if err != nil {
			return "", fmt.Errorf("failed to serialize result: %w", err)
		}
		return string(b), nil
	}

	switch outputFormat {
	case "text":
		return result.Caption, nil
	case "markdown":
		lb := &record.Leaderboard{
			Entries: result.Data,
			Metric:  cfg.Metric,
			Limit:   cfg.Limit,
		}
		return envelope.ReportMarkdown(lb, cfg.Caption.Title, cfg.Caption.MetricPrefix)
	default:
		return "", fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func validateFlags() error {
	validFormats := map[string]bool{
		"json":     true,
		"text":     true,
		"markdown": true,
	}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format: %s", outputFormat)
	}
	if interval != "" && interval != "24h" && interval != "7d" && interval != "30d" {
		return fmt.Errorf("invalid interval: %s", interval)
	}
	return nil
}

// applyOverrides layers non-empty CLI flags over the loaded config.
func applyOverrides(cfg *config.Config) {
	if len(sources) > 0 {
		cfg.Sources = sources
	}
	if metric != "" {
		cfg.Metric = metric
	}
	if interval != "" {
		cfg.Interval = interval
	}
	if limit > 0 {
		cfg.Limit = limit
	}
	if timezone != "" {
		cfg.Timezone = timezone
	}
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
