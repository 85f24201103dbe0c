package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mirrorverify/internal/config"
	"mirrorverify/internal/metrics"
	"mirrorverify/internal/pipeline"
	"mirrorverify/internal/validate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		source     string
		dest       string
		workers    int
		algorithm  string
		logDir     string
		exclude    []string
		noProgress bool
	)

	root := &cobra.Command{
		Use:   "mirrorverify",
		Short: "Verify and repair a mirrored directory tree by content hash",
		Long: `mirrorverify checks that a destination tree is a byte-exact mirror of a
source tree, re-copies files found missing or corrupted, and re-checks
everything it repaired. Runs are resumable: files verified OK in the
persisted report are never hashed again.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			// Flags override the file for one-off runs.
			if source != "" {
				cfg.SourceRoot = source
			}
			if dest != "" {
				cfg.DestRoot = dest
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if algorithm != "" {
				cfg.Algorithm = algorithm
			}
			if logDir != "" {
				cfg.LogDir = logDir
				cfg.ReportPath = filepath.Join(logDir, "report.tsv")
				cfg.MismatchPath = filepath.Join(logDir, "mismatches.tsv")
			}
			if len(exclude) > 0 {
				cfg.ExcludePaths = exclude
			}
			if noProgress {
				cfg.DisableProgress = true
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if !validate.SupportedAlgorithm(cfg.Algorithm) {
				return fmt.Errorf("unsupported algorithm: %q", cfg.Algorithm)
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			snap, err := pipeline.Run(cmd.Context(), cfg, logger)
			metrics.PrintSnapshot(snap)
			return err
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to yaml config (default mirrorverify.yaml if present)")
	root.Flags().StringVar(&source, "source", "", "source root to verify against")
	root.Flags().StringVar(&dest, "dest", "", "destination root to verify")
	root.Flags().IntVar(&workers, "workers", 0, "validation worker count (default: CPU count)")
	root.Flags().StringVar(&algorithm, "alg", "", "hash algorithm (SHA256, SHA1, SHA512, SHA384, MD5, XXH64, BLAKE3)")
	root.Flags().StringVar(&logDir, "log-dir", "", "directory for report and append-only logs")
	root.Flags().StringSliceVar(&exclude, "exclude", nil, "path fragments to exclude (case-insensitive substrings)")
	root.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	root.AddCommand(newHashCmd())
	return root
}

// loadConfig resolves the effective config: an explicit --config path,
// else the default config file when present, else bare defaults to be
// filled in from flags.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if config.ConfigExists() {
		return config.Load(config.ConfigFileName)
	}
	return config.Default(), nil
}

func newHashCmd() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "hash <file> [file ...]",
		Short: "Print the content hash of one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				hex, err := validate.FileHashHex(path, algorithm, nil)
				if err != nil {
					return fmt.Errorf("hash %s: %w", path, err)
				}
				fmt.Printf("%s  %s\n", hex, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&algorithm, "alg", "SHA256", "hash algorithm")
	return cmd
}
