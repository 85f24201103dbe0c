// Package pipeline wires the verification stages together: resume →
// enumerate → validate → merge → repair → reverify → persist. Each
// stage finishes completely before the next begins; the only
// concurrent stage is validation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"mirrorverify/internal/config"
	"mirrorverify/internal/events"
	"mirrorverify/internal/metrics"
	"mirrorverify/internal/mirror"
	"mirrorverify/internal/progress"
	"mirrorverify/internal/record"
	"mirrorverify/internal/repair"
	"mirrorverify/internal/report"
	"mirrorverify/internal/reverify"
	"mirrorverify/internal/runlog"
	"mirrorverify/internal/scan"
	"mirrorverify/internal/validate"
)

// Run executes one full verification run and returns the final
// counters. Per-file failures land in records, never here; an error
// return means the run itself could not proceed (bad roots, unwritable
// report).
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) (metrics.Snapshot, error) {
	stats := &metrics.Stats{}
	stats.Start()
	defer stats.Stop()

	if err := mirror.Run(ctx, cfg, logger); err != nil {
		return stats.Snapshot(), err
	}

	rlog, err := runlog.Open(cfg.LogDir, cfg.Algorithm)
	if err != nil {
		return stats.Snapshot(), err
	}
	defer func() {
		_ = rlog.Close()
	}()

	resume := report.Load(cfg.ReportPath, logger)
	if len(resume) > 0 {
		logger.Info("resume report loaded", "records", len(resume))
	}

	cands, err := scan.ListCandidates(cfg.SourceRoot, cfg.ExcludePaths)
	if err != nil {
		return stats.Snapshot(), fmt.Errorf("enumerate source tree: %w", err)
	}
	if len(cands) == 0 {
		logger.Info("no candidate files under source root, nothing to verify")
		return stats.Snapshot(), nil
	}

	queue, queuedBytes := filterSettled(cands, cfg.SourceRoot, resume, stats)
	atomic.StoreInt64(&stats.Total, int64(len(cands)))
	atomic.StoreInt64(&stats.TotalBytes, queuedBytes)

	bus := events.New()
	_ = bus.Subscribe(events.TopicStageStarted, func(stage string) {
		logger.Debug("stage started", "stage", stage)
	})
	_ = bus.Subscribe(events.TopicStageDone, func(stage string) {
		logger.Debug("stage done", "stage", stage)
	})

	fresh := make(map[string]*record.FileRecord)
	if len(queue) > 0 {
		bus.Publish(events.TopicStageStarted, "validate")
		pool := validate.New(validate.Options{
			Workers:    cfg.Workers,
			Algorithm:  cfg.Algorithm,
			SourceRoot: cfg.SourceRoot,
			DestRoot:   cfg.DestRoot,
		}, stats, rlog, bus)

		var bar *progress.Bar
		if !cfg.DisableProgress {
			// queuedBytes*2: every queued file is hashed on both sides.
			bar, err = progress.New(queuedBytes*2, int64(len(queue)), bus, pool.Current)
			if err != nil {
				return stats.Snapshot(), err
			}
		}

		fresh = pool.Run(queue)

		if bar != nil {
			bar.Close()
		}
		bus.Publish(events.TopicStageDone, "validate")
	} else {
		logger.Info("all candidates settled in resume report, skipping validation")
	}

	merged := report.Merge(resume, fresh)
	if err := persist(cfg, merged); err != nil {
		return stats.Snapshot(), err
	}

	bus.Publish(events.TopicStageStarted, "recover")
	engine := repair.NewEngine(cfg.SourceRoot, cfg.DestRoot, cfg.Algorithm, nil, stats, rlog)
	touched := engine.Run(merged)
	bus.Publish(events.TopicStageDone, "recover")

	if len(touched) > 0 {
		logger.Info("recovery pass complete", "touched", len(touched))
		bus.Publish(events.TopicStageStarted, "reverify")
		reverify.Run(touched, reverify.Options{
			DestRoot:  cfg.DestRoot,
			Algorithm: cfg.Algorithm,
		}, rlog)
		bus.Publish(events.TopicStageDone, "reverify")
	}

	if err := persist(cfg, merged); err != nil {
		return stats.Snapshot(), err
	}
	return stats.Snapshot(), nil
}

// filterSettled drops candidates whose resume record is already OK.
// This is the resumability guarantee: a fully verified file is never
// re-hashed unless its record is absent or non-OK.
func filterSettled(cands []scan.Candidate, sourceRoot string, resume map[string]*record.FileRecord, stats *metrics.Stats) ([]scan.Candidate, int64) {
	queue := make([]scan.Candidate, 0, len(cands))
	var bytes int64
	for _, c := range cands {
		rel, err := scan.RelPath(sourceRoot, c.Path)
		if err == nil {
			if prev, ok := resume[rel]; ok && prev.Settled() {
				atomic.AddInt64(&stats.Resumed, 1)
				continue
			}
		}
		queue = append(queue, c)
		bytes += c.Size
	}
	return queue, bytes
}

func persist(cfg config.Config, merged map[string]*record.FileRecord) error {
	if err := report.Save(cfg.ReportPath, merged); err != nil {
		return err
	}
	return report.SaveMismatch(cfg.MismatchPath, merged)
}
