package healing

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kamilpajak/remedy/pkg/models"
)

// Page is the narrow slice of a browser page the capturer needs. The real
// implementation lives in internal/browser; tests substitute fakes.
type Page interface {
	URL() string
	Title() (string, error)
	Screenshot(path string) error
	Content() (string, error)
}

var styleTagPattern = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)

// stripStyleTags removes <style> blocks so the DOM excerpt spends its budget
// on structure, not CSS.
func stripStyleTags(html string) string {
	return styleTagPattern.ReplaceAllString(html, "")
}

// Capturer snapshots failure context. Capture never returns an error: every
// sub-step degrades to an absent field so the pipeline is never aborted by
// its own forensics.
type Capturer struct {
	screenshotDir string
	contextWindow int
	log           *zap.Logger
}

// NewCapturer creates a Capturer writing screenshots under screenshotDir and
// truncating DOM excerpts to contextWindow bytes.
func NewCapturer(screenshotDir string, contextWindow int, log *zap.Logger) *Capturer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Capturer{screenshotDir: screenshotDir, contextWindow: contextWindow, log: log}
}

// Capture builds a FailureContext for a terminal failure. page may be nil
// when the browser is already gone; the context then carries the error only.
func (c *Capturer) Capture(testID string, testErr error, page Page) *models.FailureContext {
	fc := &models.FailureContext{
		TestID:       testID,
		ErrorMessage: testErr.Error(),
		ErrorKind:    classifyError(testErr),
		CapturedAt:   time.Now(),
	}

	if page == nil {
		c.log.Debug("no live page for failure context", zap.String("test", testID))
		return fc
	}

	fc.URL = page.URL()
	if title, err := page.Title(); err == nil {
		fc.PageTitle = title
	}

	if err := os.MkdirAll(c.screenshotDir, 0o755); err == nil {
		name := fmt.Sprintf("%s_%s_failure.png", sanitizeName(testID), fc.CapturedAt.Format("20060102_150405"))
		path := filepath.Join(c.screenshotDir, name)
		if err := page.Screenshot(path); err == nil {
			fc.ScreenshotPath = path
		} else {
			fc.CaptureError = err.Error()
			c.log.Warn("screenshot capture failed", zap.String("test", testID), zap.Error(err))
		}
	} else {
		fc.CaptureError = err.Error()
	}

	if dom, err := page.Content(); err == nil {
		dom = stripStyleTags(dom)
		if len(dom) > c.contextWindow {
			dom = dom[:c.contextWindow] + "..."
		}
		fc.DOMExcerpt = dom
	} else if fc.CaptureError == "" {
		fc.CaptureError = err.Error()
	}

	return fc
}

// classifyError maps an error onto a coarse failure kind for the prompt and
// the report.
func classifyError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no such element") || strings.Contains(msg, "selector"):
		return "selector"
	case strings.Contains(msg, "assert") || strings.Contains(msg, "expected"):
		return "assertion"
	case strings.Contains(msg, "net::") || strings.Contains(msg, "connection") || strings.Contains(msg, "dns"):
		return "network"
	case strings.Contains(msg, "navigation"):
		return "navigation"
	default:
		return "unknown"
	}
}

var unsafeNameChars = regexp.MustCompile(`[^\w.-]+`)

// sanitizeName makes a test identifier safe for use in a filename.
func sanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// Store holds pending failure contexts keyed by test identity. Parallel
// workers write concurrently; each key is written once and taken once.
type Store struct {
	mu      sync.Mutex
	pending map[string]*models.FailureContext
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{pending: make(map[string]*models.FailureContext)}
}

// Put records the context for a terminal failure.
func (s *Store) Put(fc *models.FailureContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[fc.TestID] = fc
}

// Take removes and returns the pending context for testID.
func (s *Store) Take(testID string) (*models.FailureContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.pending[testID]
	if ok {
		delete(s.pending, testID)
	}
	return fc, ok
}

// Len returns the number of pending contexts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
