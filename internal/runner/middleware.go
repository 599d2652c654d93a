// Package runner composes the orchestration stages around a test body:
// retry-with-backoff, screenshot-on-failure, and timing, in that fixed order
// with retry outermost. The healing pipeline fires only on terminal failure.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/kamilpajak/remedy/internal/healing"
)

// TestFunc is a test body. A nil return is a pass.
type TestFunc func(ctx context.Context) error

// Stage is one middleware layer. It receives the next stage explicitly, so
// composition order is visible at the call site rather than implied by
// wrapping depth.
type Stage func(next TestFunc) TestFunc

// Compose wraps fn in stages, first stage outermost.
func Compose(fn TestFunc, stages ...Stage) TestFunc {
	for i := len(stages) - 1; i >= 0; i-- {
		fn = stages[i](fn)
	}
	return fn
}

// Result records the outcome of one orchestrated test run.
type Result struct {
	TestID            string
	Passed            bool
	Attempts          int
	AttemptDurations  []time.Duration
	Err               error
	HealingReportPath string
}

// Options configures a Runner.
type Options struct {
	MaxRetries    int
	RetryDelay    time.Duration
	ScreenshotDir string
	Healing       *healing.Service
	Logger        *zap.Logger
}

// Runner executes test bodies through the middleware pipeline. One Runner is
// shared by all parallel workers; per-run state lives in the Result.
type Runner struct {
	maxRetries    int
	retryDelay    time.Duration
	screenshotDir string
	healing       *healing.Service
	log           *zap.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		maxRetries:    opts.MaxRetries,
		retryDelay:    opts.RetryDelay,
		screenshotDir: opts.ScreenshotDir,
		healing:       opts.Healing,
		log:           opts.Logger,
	}
}

// Run executes body with the full stage stack. The returned Result's Err is
// the original test error; healing failures never replace or mask it, and
// the healing analysis runs only after the outcome is already fixed.
func (r *Runner) Run(ctx context.Context, testID string, page healing.Page, body TestFunc) *Result {
	res := &Result{TestID: testID}

	fn := Compose(body,
		r.retryStage(testID, res),
		r.screenshotStage(testID, page),
		r.timingStage(testID, res),
	)

	err := fn(ctx)
	res.Err = err
	res.Passed = err == nil
	if err == nil {
		return res
	}

	// Terminal failure: the retry budget is exhausted and the outcome is
	// fixed. Everything below is best-effort diagnostics.
	if r.healing != nil && r.healing.Enabled() {
		r.healing.CaptureFailure(testID, err, page)
		path, healErr := r.healing.HealPending(ctx, testID)
		if healErr != nil {
			r.log.Warn("healing pipeline failed",
				zap.String("test", testID), zap.Error(healErr))
		} else if path != "" {
			res.HealingReportPath = path
			r.log.Info("healing report written",
				zap.String("test", testID), zap.String("report", path))
		}
	}

	return res
}

// retryStage re-invokes the body up to MaxRetries additional times with a
// fixed delay between attempts. The last error is returned unchanged.
func (r *Runner) retryStage(testID string, res *Result) Stage {
	return func(next TestFunc) TestFunc {
		return func(ctx context.Context) error {
			var lastErr error
			for attempt := 0; attempt <= r.maxRetries; attempt++ {
				if attempt > 0 {
					r.log.Info("retrying test",
						zap.String("test", testID),
						zap.Int("attempt", attempt+1),
						zap.Int("max_attempts", r.maxRetries+1))
					select {
					case <-time.After(r.retryDelay):
					case <-ctx.Done():
						return lastErr
					}
				}

				lastErr = next(ctx)
				if lastErr == nil {
					return nil
				}
			}
			return lastErr
		}
	}
}

// screenshotStage captures a debugging screenshot on every failed attempt.
// Skipped when the healing pipeline is enabled, since healing captures its
// own screenshot at terminal failure.
func (r *Runner) screenshotStage(testID string, page healing.Page) Stage {
	return func(next TestFunc) TestFunc {
		return func(ctx context.Context) error {
			err := next(ctx)
			if err == nil || page == nil {
				return err
			}
			if r.healing != nil && r.healing.Enabled() {
				return err
			}

			if mkErr := os.MkdirAll(r.screenshotDir, 0o755); mkErr != nil {
				r.log.Warn("screenshot dir unavailable", zap.Error(mkErr))
				return err
			}
			name := fmt.Sprintf("%s_%s.png", safeName(testID), time.Now().Format("2006-01-02_15-04-05"))
			path := filepath.Join(r.screenshotDir, name)
			if shotErr := page.Screenshot(path); shotErr != nil {
				r.log.Warn("failed to capture screenshot",
					zap.String("test", testID), zap.Error(shotErr))
			} else {
				r.log.Info("screenshot saved",
					zap.String("test", testID), zap.String("path", path))
			}
			return err
		}
	}
}

// timingStage records the duration of every attempt, pass or fail.
func (r *Runner) timingStage(testID string, res *Result) Stage {
	return func(next TestFunc) TestFunc {
		return func(ctx context.Context) error {
			start := time.Now()
			err := next(ctx)
			elapsed := time.Since(start)

			res.Attempts++
			res.AttemptDurations = append(res.AttemptDurations, elapsed)
			r.log.Debug("attempt finished",
				zap.String("test", testID),
				zap.Int("attempt", res.Attempts),
				zap.Duration("duration", elapsed),
				zap.Bool("passed", err == nil))
			return err
		}
	}
}

var unsafeFileChars = regexp.MustCompile(`[^\w.-]+`)

func safeName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}
