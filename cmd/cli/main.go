package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"video-parser/internal/app"
	"video-parser/internal/batch"
	"video-parser/internal/config"
	"video-parser/internal/export"
	"video-parser/internal/server"
)

var (
	configPath string
	exportPath string
	format     string
	workers    int
	timeout    time.Duration
	rawJSON    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "video-parser",
	Short: "Turn short-video share links into direct media URLs",
	Long: `Video Parser extracts playable media URLs and metadata from share links of
Douyin, Bilibili, Kuaishou, Weibo, Xiaohongshu, Pipigx, Pipixia and Qishui music.

Features:
- Paste a bare link or the whole share text
- Batch parsing with a bounded worker pool
- Export to csv, xlsx, json or txt
- HTTP API with a streaming media proxy`,
	Version: server.Version,
}

var parseCmd = &cobra.Command{
	Use:   "parse [url|share text]",
	Short: "Parse one share link",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(timeout)
		defer cancel()

		result := a.Batch.ParseOne(ctx, 0, strings.Join(args, " "))
		if rawJSON {
			if result.Response == nil {
				return result.Error
			}
			return printJSON(result.Response)
		}

		rec := export.ToRecord(result)
		if result.Status != batch.ResultCompleted {
			fmt.Printf("❌ Parse failed: %s\n", rec.Error)
			if rec.Msg != "" {
				fmt.Printf("   Code: %d %s\n", rec.Code, rec.Msg)
			}
			return nil
		}

		fmt.Printf("📹 %s\n", rec.Platform)
		printField("Title", rec.Title)
		printField("Author", rec.Author)
		printField("Media", rec.MediaURL)
		printField("Cover", rec.CoverURL)
		fmt.Printf("   Elapsed: %s\n", result.Duration.Round(time.Millisecond))
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [links-file]",
	Short: "Parse every link in a file, one link or share text per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("error opening links file: %w", err)
		}
		inputs, err := batch.ReadInputs(file)
		file.Close()
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			fmt.Println("No links found in file")
			return nil
		}
		fmt.Printf("Found %d links to parse\n", len(inputs))

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		bm := a.Batch
		if workers > 0 {
			bm = batch.NewBatchManager(a.Registry, workers)
			bm.SetLogger(a.Logger)
			bm.SetRecorder(a.Monitor)
			defer bm.Close()
		}

		ctx, cancel := signalContext(0)
		defer cancel()

		job := batch.NewJob(inputs)
		bm.Run(ctx, job)
		status, progress, results := job.Snapshot()

		for _, r := range results {
			switch r.Status {
			case batch.ResultCompleted:
				fmt.Printf("✅ [%s] %s\n", r.Platform, r.URL)
			case batch.ResultSkipped:
				fmt.Printf("⏭️  %s\n", r.Input)
			default:
				fmt.Printf("❌ %s: %v\n", r.Input, r.Error)
			}
		}
		fmt.Printf("\nBatch %s: %d success, %d failed, %d skipped\n",
			status, progress.Completed, progress.Failed, progress.Skipped)

		path := exportPath
		if path == "" {
			path = a.Config.Export.Path
		}
		if path == "" {
			return nil
		}
		exportFormat := export.ExportFormat(format)
		if exportFormat == "" {
			exportFormat = export.FormatFromPath(path)
			if filepath.Ext(path) == "" && a.Config.Export.Format != "" {
				exportFormat = export.ExportFormat(a.Config.Export.Format)
			}
		}

		exporter := export.NewDataExporter(export.ExportConfig{Format: exportFormat, FilePath: path})
		if err := exporter.ExportResults(results); err != nil {
			return fmt.Errorf("error exporting results: %w", err)
		}
		fmt.Printf("📄 Exported %d results to %s\n", len(results), path)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(configPath, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("🚀 Server starting on http://%s:%d\n", a.Config.Server.Host, a.Config.Server.Port)
		fmt.Println("Press Ctrl+C to stop the server")

		srv := server.NewServer(a.Config, a.Registry, a.Monitor)
		srv.SetLogger(a.Logger)
		if err := srv.Run(); err != nil {
			return fmt.Errorf("error running server: %w", err)
		}
		return nil
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List enabled platforms and the links they accept",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info := a.Registry.GetPlatformInfo()
		fmt.Printf("📚 Platforms (%d)\n", len(info))
		for _, p := range info {
			fmt.Printf("\n%s - %s\n", p.Name, p.Description)
			for _, pattern := range p.Patterns {
				fmt.Printf("   %s\n", pattern)
			}
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := configPath
		if dir == "" {
			dir = "./config"
		}
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
			fmt.Printf("Configuration already exists in %s\n", dir)
			return nil
		}

		if _, err := config.NewManager().Load(dir); err != nil {
			return fmt.Errorf("error creating configuration: %w", err)
		}
		fmt.Printf("✅ Configuration written to %s\n", filepath.Join(dir, "config.yaml"))
		return nil
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		fmt.Printf("📋 Current Configuration\n")
		fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("   Timeouts: resolve %ds, fetch %ds, api %ds\n",
			cfg.HTTP.ResolveTimeout, cfg.HTTP.FetchTimeout, cfg.HTTP.APITimeout)
		fmt.Printf("   Browser TLS: %v\n", cfg.HTTP.BrowserTLS)
		fmt.Printf("   JS Fallback: %v\n", cfg.Extract.JSFallback)
		fmt.Printf("   Batch Workers: %d\n", cfg.Batch.MaxWorkers)
		fmt.Printf("   Log Level: %s\n", cfg.Log.Level)
		fmt.Printf("   Proxy: %s\n", orNone(cfg.ProxyURL()))
		fmt.Printf("   Rate Limit: %v (%d rps, burst %d)\n",
			cfg.RateLimit.Enabled, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	parseCmd.Flags().BoolVar(&rawJSON, "json", false, "Print the raw response envelope")
	parseCmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Overall parse timeout")

	batchCmd.Flags().StringVarP(&exportPath, "export", "e", "", "Export results to this file")
	batchCmd.Flags().StringVarP(&format, "format", "f", "", "Export format (csv, xlsx, json, txt)")
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent parses (default from config)")

	// Add commands
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(configCmd)

	// Config subcommands
	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(showConfigCmd)
}

// newApp builds the components with logs on stderr so stdout stays readable
func newApp() (*app.App, error) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	a, err := app.New(configPath, &logger)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)
	return a, nil
}

// signalContext is cancelled on SIGINT/SIGTERM and, when d > 0, after d
func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printField(name, value string) {
	if value != "" {
		fmt.Printf("   %s: %s\n", name, value)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
