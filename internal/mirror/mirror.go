// Package mirror invokes the external bulk-copy tool (robocopy, rsync,
// or similar) ahead of validation. The tool owns the copy semantics;
// we only run it and consume the destination tree it produces.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"mirrorverify/internal/config"
)

// Run executes the configured mirror command, retrying transient
// failures up to cfg.Mirror.Retries times. Source root, destination
// root, and exclusion fragments are appended after the configured
// arguments.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if !cfg.Mirror.Enabled {
		return nil
	}

	args := append([]string{}, cfg.Mirror.Args...)
	args = append(args, cfg.SourceRoot, cfg.DestRoot)
	for _, ex := range cfg.ExcludePaths {
		args = append(args, "--exclude", ex)
	}

	var err error
	for attempt := 0; attempt <= cfg.Mirror.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("mirror tool failed, retrying", "attempt", attempt, "error", err)
		}
		cmd := exec.CommandContext(ctx, cfg.Mirror.Command, args...) // #nosec G204
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err = cmd.Run(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("mirror tool %s: %w", cfg.Mirror.Command, err)
}
