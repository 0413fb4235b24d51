// Package sweep removes marker files path by path and collects one outcome
// per visited path.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog"

	"marker-sweep/internal/fsops"
	"marker-sweep/internal/safety"
)

// Mode selects how a path is approached before deletion.
type Mode string

const (
	// ModeGlob removes discovered paths directly; a vanished path is a failure.
	ModeGlob Mode = "glob"
	// ModeList checks existence first; a missing path is reported, not attempted.
	ModeList Mode = "list"
)

// Policy decides what happens after a path fails.
type Policy string

const (
	// PolicyContinue records the failure and moves on to the next path.
	PolicyContinue Policy = "continue"
	// PolicyFailFast stops the run at the first failed path.
	PolicyFailFast Policy = "fail-fast"
)

// Status is the terminal state of one path, as reported and stored in history.
type Status string

const (
	// StatusRemoved means the path was deleted.
	StatusRemoved Status = "removed"
	// StatusNotFound means a listed path did not exist and was skipped.
	StatusNotFound Status = "not_found"
	// StatusFailed means the delete itself returned an error.
	StatusFailed Status = "failed"
	// StatusBlocked means the safety validator refused the path.
	StatusBlocked Status = "blocked"
	// StatusWouldRemove is the dry-run stand-in for StatusRemoved.
	StatusWouldRemove Status = "would_remove"
)

// IsError reports whether the status counts as a failed path.
func (s Status) IsError() bool {
	return s == StatusFailed || s == StatusBlocked
}

var (
	ErrAborted = errors.New("sweep aborted")
	ErrIsDir   = errors.New("is a directory")
	errBadMode = errors.New("unknown sweep mode")
)

// Outcome is the terminal state of one visited path.
type Outcome struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Result collects outcomes in visit order.
type Result struct {
	Mode        Mode      `json:"mode"`
	DryRun      bool      `json:"dry_run"`
	Total       int       `json:"total"` // Paths handed to the sweep, visited or not
	Outcomes    []Outcome `json:"outcomes"`
	Removed     int       `json:"removed"`
	NotFound    int       `json:"not_found"`
	Failed      int       `json:"failed"`
	Blocked     int       `json:"blocked"`
	WouldRemove int       `json:"would_remove"`
	Aborted     bool      `json:"aborted"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Errors is the number of failed or blocked paths.
func (r *Result) Errors() int {
	return r.Failed + r.Blocked
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusRemoved:
		r.Removed++
	case StatusNotFound:
		r.NotFound++
	case StatusFailed:
		r.Failed++
	case StatusBlocked:
		r.Blocked++
	case StatusWouldRemove:
		r.WouldRemove++
	}
}

// Recorder persists outcomes, typically into sweep history.
type Recorder interface {
	RecordOutcome(o Outcome) error
}

// Metrics receives one observation per outcome.
type Metrics interface {
	ObserveOutcome(mode, status string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOutcome(string, string) {}

// Sweeper visits paths sequentially and never lets one path's failure stop
// the others unless the policy is fail-fast.
type Sweeper struct {
	logger    zerolog.Logger
	deleter   fsops.Deleter
	validator *safety.Validator
	recorder  Recorder
	metrics   Metrics
	dryRun    bool
	policy    Policy
}

// NewSweeper creates a Sweeper backed by the real filesystem.
func NewSweeper(logger zerolog.Logger, dryRun bool, policy Policy) *Sweeper {
	if policy == "" {
		policy = PolicyContinue
	}
	return &Sweeper{
		logger:  logger,
		deleter: fsops.OSDeleter{},
		metrics: noopMetrics{},
		dryRun:  dryRun,
		policy:  policy,
	}
}

func (s *Sweeper) SetDeleter(d fsops.Deleter) { s.deleter = d }

func (s *Sweeper) SetValidator(v *safety.Validator) { s.validator = v }

func (s *Sweeper) SetRecorder(r Recorder) { s.recorder = r }

func (s *Sweeper) SetMetrics(m Metrics) { s.metrics = m }

// Sweep visits paths in order. Under fail-fast the first failed or blocked
// path stops the run and the returned error wraps ErrAborted; paths after it
// get no outcome. Cancellation is checked between paths.
func (s *Sweeper) Sweep(ctx context.Context, mode Mode, paths []string) (*Result, error) {
	if mode != ModeGlob && mode != ModeList {
		return nil, fmt.Errorf("%w: %q", errBadMode, mode)
	}

	res := &Result{
		Mode:      mode,
		DryRun:    s.dryRun,
		Total:     len(paths),
		Outcomes:  make([]Outcome, 0, len(paths)),
		StartedAt: time.Now(),
	}
	defer func() { res.FinishedAt = time.Now() }()

	s.logger.Info().Str("mode", string(mode)).Int("paths", len(paths)).Bool("dry_run", s.dryRun).
		Str("policy", string(s.policy)).Msg("starting sweep")

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		o := s.visit(mode, path)
		res.add(o)
		s.observe(mode, o)

		if o.Status.IsError() && s.policy == PolicyFailFast {
			res.Aborted = true
			s.logger.Error().Str("path", path).Int("remaining", res.Total-len(res.Outcomes)).
				Msg("aborting sweep on first failure")
			return res, fmt.Errorf("%w at %s: %w", ErrAborted, path, o.Err)
		}
	}

	s.logger.Info().
		Int("removed", res.Removed).
		Int("not_found", res.NotFound).
		Int("would_remove", res.WouldRemove).
		Int("errors", res.Errors()).
		Msg("sweep complete")

	return res, nil
}

func (s *Sweeper) visit(mode Mode, path string) Outcome {
	if s.validator != nil {
		if err := s.validator.ValidateDeleteTarget(path); err != nil {
			return Outcome{Path: path, Status: StatusBlocked, Reason: err.Error(), Err: err}
		}
	}

	if mode == ModeList {
		info, err := s.deleter.Lstat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Outcome{Path: path, Status: StatusNotFound}
			}
			return Outcome{Path: path, Status: StatusFailed, Reason: reason(err), Err: err}
		}
		if info.IsDir() {
			return Outcome{Path: path, Status: StatusFailed, Reason: ErrIsDir.Error(), Err: ErrIsDir}
		}
	}

	if s.dryRun {
		return Outcome{Path: path, Status: StatusWouldRemove}
	}

	if err := s.deleter.Remove(path); err != nil {
		return Outcome{Path: path, Status: StatusFailed, Reason: reason(err), Err: err}
	}
	return Outcome{Path: path, Status: StatusRemoved}
}

func (s *Sweeper) observe(mode Mode, o Outcome) {
	s.metrics.ObserveOutcome(string(mode), string(o.Status))

	if s.recorder != nil {
		if err := s.recorder.RecordOutcome(o); err != nil {
			s.logger.Error().Err(err).Str("path", o.Path).Msg("failed to record outcome")
		}
	}

	switch {
	case o.Status.IsError():
		s.logger.Warn().Str("path", o.Path).Str("status", string(o.Status)).Str("reason", o.Reason).Msg("path not removed")
	default:
		s.logger.Debug().Str("path", o.Path).Str("status", string(o.Status)).Msg("path visited")
	}
}

// reason strips the operation and path from an OS error, leaving the cause.
func reason(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}
