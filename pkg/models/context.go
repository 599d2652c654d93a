package models

import "time"

// FailureContext captures the forensic state of a single terminal test
// failure. It is immutable once built; a retried attempt never produces one.
type FailureContext struct {
	TestID         string    `json:"test_id"`
	ErrorMessage   string    `json:"error_message"`
	ErrorKind      string    `json:"error_kind"`
	URL            string    `json:"url,omitempty"`
	PageTitle      string    `json:"page_title,omitempty"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	DOMExcerpt     string    `json:"dom_excerpt,omitempty"`
	CaptureError   string    `json:"capture_error,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

// HasScreenshot reports whether a screenshot was captured for this failure.
func (c *FailureContext) HasScreenshot() bool {
	return c.ScreenshotPath != ""
}
