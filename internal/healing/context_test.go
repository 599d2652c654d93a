package healing

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamilpajak/remedy/pkg/models"
)

type fakePage struct {
	url           string
	title         string
	titleErr      error
	content       string
	contentErr    error
	screenshotErr error
}

func (p *fakePage) URL() string            { return p.url }
func (p *fakePage) Title() (string, error) { return p.title, p.titleErr }

func (p *fakePage) Screenshot(path string) error {
	if p.screenshotErr != nil {
		return p.screenshotErr
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (p *fakePage) Content() (string, error) { return p.content, p.contentErr }

func TestCapturer_FullCapture(t *testing.T) {
	dir := t.TempDir()
	c := NewCapturer(dir, 5000, nil)
	page := &fakePage{
		url:     "https://example.test/login",
		title:   "Login",
		content: "<html><body><form id=\"login\"></form></body></html>",
	}

	fc := c.Capture("TestLogin", errors.New("locator #passwordx not found"), page)

	assert.Equal(t, "TestLogin", fc.TestID)
	assert.Equal(t, "locator #passwordx not found", fc.ErrorMessage)
	assert.Equal(t, "selector", fc.ErrorKind)
	assert.Equal(t, "https://example.test/login", fc.URL)
	assert.Equal(t, "Login", fc.PageTitle)
	assert.Contains(t, fc.DOMExcerpt, "form")
	assert.Empty(t, fc.CaptureError)

	require.NotEmpty(t, fc.ScreenshotPath)
	assert.Equal(t, dir, filepath.Dir(fc.ScreenshotPath))
	_, err := os.Stat(fc.ScreenshotPath)
	assert.NoError(t, err)
}

func TestCapturer_NilPage(t *testing.T) {
	c := NewCapturer(t.TempDir(), 5000, nil)

	fc := c.Capture("TestLogin", errors.New("browser crashed"), nil)

	assert.Equal(t, "TestLogin", fc.TestID)
	assert.Equal(t, "browser crashed", fc.ErrorMessage)
	assert.Empty(t, fc.URL)
	assert.Empty(t, fc.ScreenshotPath)
	assert.Empty(t, fc.DOMExcerpt)
}

func TestCapturer_ScreenshotFailureDegrades(t *testing.T) {
	c := NewCapturer(t.TempDir(), 5000, nil)
	page := &fakePage{
		url:           "https://example.test",
		content:       "<html></html>",
		screenshotErr: errors.New("page already closed"),
	}

	fc := c.Capture("TestLogin", errors.New("assertion failed: expected title"), page)

	assert.Empty(t, fc.ScreenshotPath)
	assert.Equal(t, "page already closed", fc.CaptureError)
	// Remaining fields are still captured.
	assert.Equal(t, "<html></html>", fc.DOMExcerpt)
	assert.Equal(t, "assertion", fc.ErrorKind)
}

func TestCapturer_StripsStyleTagsAndTruncates(t *testing.T) {
	c := NewCapturer(t.TempDir(), 50, nil)
	page := &fakePage{
		url: "https://example.test",
		content: "<html><style>body { color: red; }</style>" +
			strings.Repeat("<div>x</div>", 20) + "</html>",
	}

	fc := c.Capture("TestLogin", errors.New("boom"), page)

	assert.NotContains(t, fc.DOMExcerpt, "color: red")
	assert.True(t, strings.HasSuffix(fc.DOMExcerpt, "..."))
	assert.LessOrEqual(t, len(fc.DOMExcerpt), 53)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"timeout 30000ms exceeded", "timeout"},
		{"locator #x not found", "selector"},
		{"assertion failed: expected 3 got 2", "assertion"},
		{"net::ERR_CONNECTION_REFUSED", "network"},
		{"navigation interrupted", "navigation"},
		{"something odd", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyError(errors.New(tt.msg)), tt.msg)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "TestLogin_invalid_password", sanitizeName("TestLogin/invalid password"))
	assert.Equal(t, "a.b-c_1", sanitizeName("a.b-c:1"))
}

func TestStore_PutTake(t *testing.T) {
	s := NewStore()
	fc := &models.FailureContext{TestID: "TestA"}

	s.Put(fc)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Take("TestA")
	require.True(t, ok)
	assert.Same(t, fc, got)
	assert.Zero(t, s.Len())

	_, ok = s.Take("TestA")
	assert.False(t, ok)
}
