// Package healing implements the failure-triage pipeline: context capture on
// terminal test failure, prompt construction, model invocation, robust
// response parsing, confidence gating, and report persistence.
package healing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kamilpajak/remedy/pkg/models"
)

// ModelClient is the inference boundary. The production implementation is
// internal/ollama; tests substitute fakes. The client owns its own timeout
// and retry behavior.
type ModelClient interface {
	Generate(ctx context.Context, prompt, system, screenshotPath string) (string, error)
	Model() string
}

// History optionally records each analyzed failure in a durable store.
type History interface {
	RecordAnalysis(ctx context.Context, report *models.HealingReport, reportPath string) error
}

// Service wires the pipeline together. It is constructed once per process
// and passed explicitly into the orchestration layer; nothing here is
// reachable through ambient lookup.
type Service struct {
	enabled  bool
	client   ModelClient
	capturer *Capturer
	store    *Store
	prompts  *PromptBuilder
	parser   *Parser
	gate     *Gate
	writer   *ReportWriter
	history  History
	log      *zap.Logger
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Enabled       bool
	Client        ModelClient
	ScreenshotDir string
	ReportDir     string
	ContextWindow int
	LowThreshold  float64
	History       History
	Logger        *zap.Logger
}

// NewService builds the pipeline from its parts.
func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		enabled:  opts.Enabled,
		client:   opts.Client,
		capturer: NewCapturer(opts.ScreenshotDir, opts.ContextWindow, opts.Logger),
		store:    NewStore(),
		prompts:  NewPromptBuilder(opts.ContextWindow),
		parser:   NewParser(opts.Logger),
		gate:     NewGate(opts.LowThreshold),
		writer:   NewReportWriter(opts.ReportDir),
		history:  opts.History,
		log:      opts.Logger,
	}
}

// Enabled reports whether the pipeline is active. When false every method is
// a no-op and only the underlying test failure propagates.
func (s *Service) Enabled() bool { return s.enabled }

// CaptureFailure snapshots context for a terminal failure and parks it for
// analysis. Safe to call with a nil page; never returns an error.
func (s *Service) CaptureFailure(testID string, testErr error, page Page) {
	if !s.enabled {
		return
	}
	s.store.Put(s.capturer.Capture(testID, testErr, page))
}

// HealPending runs the analysis pipeline for a previously captured failure.
// Returns the report path, or "" when the pipeline is disabled or no context
// is pending.
func (s *Service) HealPending(ctx context.Context, testID string) (string, error) {
	if !s.enabled {
		return "", nil
	}
	fc, ok := s.store.Take(testID)
	if !ok {
		return "", nil
	}
	return s.Heal(ctx, fc)
}

// Heal analyzes one failure context end to end. Model and parser failures
// degrade to an "analysis unavailable" report; only report persistence
// itself can fail, and that error is for the caller to log, never to
// propagate into test outcome.
func (s *Service) Heal(ctx context.Context, fc *models.FailureContext) (string, error) {
	report := &models.HealingReport{
		TestID:    fc.TestID,
		Timestamp: time.Now(),
		Model:     s.client.Model(),
		Context:   *fc,
	}

	prompt := s.prompts.Build(fc)
	raw, err := s.client.Generate(ctx, prompt, systemPrompt, fc.ScreenshotPath)
	if err != nil {
		s.log.Warn("model invocation failed, writing degraded report",
			zap.String("test", fc.TestID), zap.Error(err))
		report.Unavailable = true
		report.Reason = fmt.Sprintf("analysis unavailable: %v", err)
		report.Result = models.AnalysisResult{Confidence: 0, Unparsed: true}
		report.Decision = models.DecisionUnusable
		return s.persist(ctx, report)
	}

	result, err := s.parser.Parse(raw)
	if err != nil {
		if !errors.Is(err, ErrUnparsable) {
			return "", err
		}
		s.log.Warn("model response unparsable", zap.String("test", fc.TestID))
		report.Unavailable = true
		report.Reason = "analysis unavailable: response could not be parsed"
		report.Result = models.AnalysisResult{Confidence: 0, Unparsed: true, RawResponse: raw}
		report.Decision = models.DecisionUnusable
		return s.persist(ctx, report)
	}

	report.Result = *result
	report.Decision = s.gate.Evaluate(result)

	s.log.Info("failure analyzed",
		zap.String("test", fc.TestID),
		zap.Float64("confidence", result.Confidence),
		zap.String("decision", string(report.Decision)))

	return s.persist(ctx, report)
}

func (s *Service) persist(ctx context.Context, report *models.HealingReport) (string, error) {
	path, err := s.writer.Write(report)
	if err != nil {
		return "", err
	}

	if s.history != nil {
		if err := s.history.RecordAnalysis(ctx, report, path); err != nil {
			s.log.Warn("failed to record analysis in history store", zap.Error(err))
		}
	}
	return path, nil
}
