// Package runner wires one glob or list invocation: configuration,
// discovery, safety, sweeping, history and metrics.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"marker-sweep/internal/config"
	"marker-sweep/internal/database"
	"marker-sweep/internal/discover"
	"marker-sweep/internal/fsops"
	"marker-sweep/internal/metrics"
	"marker-sweep/internal/safety"
	"marker-sweep/internal/sweep"
)

// ErrConfig marks failures caused by the configuration rather than the run.
var ErrConfig = errors.New("invalid configuration")

// Deps carries what a run needs besides its configuration.
type Deps struct {
	Logger  zerolog.Logger
	Deleter fsops.Deleter       // nil uses the OS
	History *database.HistoryDB // nil disables history
}

// RunGlob searches the configured root for the marker and removes every match.
// The search root is the only allowed root for the run.
func RunGlob(ctx context.Context, cfg *config.Config, deps Deps) (*sweep.Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfig)
	}
	root, err := cfg.GlobRoot()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	metrics.Init()

	paths, err := discover.NewFinder(deps.Logger).Find(ctx, root, cfg.MarkerName)
	if err != nil {
		return nil, err
	}
	metrics.RecordDiscovered(len(paths))

	v := safety.NewValidator([]string{root}, cfg.Safety.ProtectedPaths)
	return run(ctx, cfg, deps, sweep.ModeGlob, root, paths, v)
}

// RunList removes each configured path that exists, in list order.
func RunList(ctx context.Context, cfg *config.Config, deps Deps) (*sweep.Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfig)
	}
	paths, err := cfg.ListPaths()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	base, err := cfg.ListBaseDir()
	if err != nil {
		return nil, err
	}

	metrics.Init()

	v := safety.NewValidator(cfg.Safety.AllowedRoots, cfg.Safety.ProtectedPaths)
	return run(ctx, cfg, deps, sweep.ModeList, base, paths, v)
}

func run(ctx context.Context, cfg *config.Config, deps Deps, mode sweep.Mode, root string, paths []string, v *safety.Validator) (*sweep.Result, error) {
	start := time.Now()
	logger := deps.Logger.With().Str("mode", string(mode)).Logger()

	s := sweep.NewSweeper(logger, cfg.DryRun, sweep.Policy(cfg.Policy))
	if deps.Deleter != nil {
		s.SetDeleter(deps.Deleter)
	}
	s.SetValidator(v)
	s.SetMetrics(metrics.SweepMetrics{})

	runID := int64(-1)
	if deps.History != nil {
		id, err := deps.History.StartRun(database.RunRecord{
			Mode:      string(mode),
			Root:      root,
			Marker:    cfg.MarkerName,
			DryRun:    cfg.DryRun,
			Policy:    cfg.Policy,
			StartedAt: start,
			Total:     len(paths),
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to record run, continuing without history")
		} else {
			runID = id
			s.SetRecorder(database.RunRecorder{DB: deps.History, RunID: id})
		}
	}

	res, sweepErr := s.Sweep(ctx, mode, paths)

	if res != nil && runID >= 0 {
		if err := deps.History.FinishRun(runID, res); err != nil {
			logger.Error().Err(err).Int64("run_id", runID).Msg("failed to finish run record")
		}
	}

	elapsed := time.Since(start)
	metrics.RecordRun(string(mode), elapsed)

	if cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Error().Err(err).Str("path", cfg.Metrics.TextfilePath).Msg("failed to write metrics textfile")
		}
	}

	logger.Info().Dur("duration", elapsed).Int("paths", len(paths)).Msg("run complete")
	return res, sweepErr
}
