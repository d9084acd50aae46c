package scheduler

import (
	"context"
	"time"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
)

// PassFunc is one scheduled batch pass.
type PassFunc func(ctx context.Context) (domain.BatchResult, error)

type Pass struct {
	Name string
	Run  PassFunc
}

// PassReport is the outcome of one pass in one cycle.
type PassReport struct {
	Name     string
	Result   domain.BatchResult
	Err      error
	Duration time.Duration
}

// Runner executes its passes in registration order on every tick.
type Runner struct {
	interval time.Duration
	passes   []Pass
}

func NewRunner(interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{interval: interval}
}

func (r *Runner) Register(name string, run PassFunc) {
	r.passes = append(r.passes, Pass{Name: name, Run: run})
}

// RunOnce runs every pass once. A failing pass does not stop the cycle.
func (r *Runner) RunOnce(ctx context.Context) []PassReport {
	reports := make([]PassReport, 0, len(r.passes))
	for _, p := range r.passes {
		if ctx.Err() != nil {
			break
		}

		started := time.Now()
		res, err := p.Run(ctx)
		report := PassReport{Name: p.Name, Result: res, Err: err, Duration: time.Since(started)}
		reports = append(reports, report)

		if err != nil {
			logger.Error("scheduled pass failed", "pass", p.Name, "updated", res.Updated, "errors", res.Errors, "error", err)
			continue
		}
		logger.Info("scheduled pass finished", "pass", p.Name, "updated", res.Updated, "errors", res.Errors, "duration", report.Duration)
	}
	return reports
}

// Start blocks, running a cycle every interval until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Info("scheduler started", "interval", r.interval, "passes", len(r.passes))
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler shutting down")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
