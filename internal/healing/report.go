package healing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamilpajak/remedy/pkg/models"
)

// ErrStorage means the report directory could not be created or written.
// Healing is a diagnostic side channel; callers report this error but never
// let it change a test's outcome.
var ErrStorage = errors.New("healing report storage error")

// timestampLayout gives second resolution; same-second collisions are
// disambiguated with a counter suffix.
const timestampLayout = "20060102_150405"

// ReportWriter persists healing reports. Files are append/create-only: an
// existing report is never rewritten.
type ReportWriter struct {
	dir string
}

// NewReportWriter creates a writer rooted at dir. The directory is created
// lazily on first write.
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// Write renders and persists the report, returning the report path. The
// write is all-or-nothing: content lands in a temp file that is renamed into
// place, so a torn-down process never leaves a partial report behind. When
// the result carries updated code, a companion artifact is written next to
// the report.
func (w *ReportWriter) Write(report *models.HealingReport) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	base := fmt.Sprintf("%s_%s_%s",
		sanitizeName(report.TestID),
		report.Timestamp.Format(timestampLayout),
		statusSuffix(report))

	path, err := w.reserve(base, ".md")
	if err != nil {
		return "", err
	}

	if err := w.writeAtomic(path, renderReport(report)); err != nil {
		return "", err
	}

	if report.Result.UpdatedCode != "" {
		healedPath := strings.TrimSuffix(path, ".md") + "_healed.txt"
		if err := w.writeAtomic(healedPath, report.Result.UpdatedCode); err != nil {
			return "", err
		}
	}

	return path, nil
}

// reserve atomically claims a unique filename under the report dir. Two
// failures of the same test in the same second get _2, _3, ... suffixes.
func (w *ReportWriter) reserve(base, ext string) (string, error) {
	for counter := 1; counter <= 1000; counter++ {
		name := base + ext
		if counter > 1 {
			name = fmt.Sprintf("%s_%d%s", base, counter, ext)
		}
		path := filepath.Join(w.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return "", fmt.Errorf("%w: could not find free name for %s", ErrStorage, base)
}

func (w *ReportWriter) writeAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func statusSuffix(report *models.HealingReport) string {
	if report.Unavailable {
		return "unavailable"
	}
	return string(report.Decision)
}

// renderReport produces the human-readable fielded report document.
func renderReport(r *models.HealingReport) string {
	var b strings.Builder

	b.WriteString("# AI Healing Report\n\n")
	b.WriteString("## Test Information\n")
	fmt.Fprintf(&b, "- Test Name: `%s`\n", r.TestID)
	fmt.Fprintf(&b, "- Timestamp: `%s`\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- Model Used: `%s`\n", r.Model)
	fmt.Fprintf(&b, "- Decision: `%s`\n", r.Decision)
	fmt.Fprintf(&b, "- URL: `%s`\n", orNA(r.Context.URL))
	fmt.Fprintf(&b, "- Error Kind: `%s`\n\n", r.Context.ErrorKind)

	if r.Unavailable {
		fmt.Fprintf(&b, "## Analysis Unavailable\n%s\n\n", r.Reason)
	}

	b.WriteString("## Error Details\n```\n")
	b.WriteString(r.Context.ErrorMessage)
	b.WriteString("\n```\n\n")

	fmt.Fprintf(&b, "## Analysis\n%s\n\n", orNone(r.Result.Analysis))
	fmt.Fprintf(&b, "## Root Cause\n%s\n\n", orNone(r.Result.RootCause))
	fmt.Fprintf(&b, "## Suggested Fix\n%s\n\n", orNone(r.Result.SuggestedFix))

	if r.Result.UpdatedCode != "" {
		b.WriteString("## Updated Code\n```\n")
		b.WriteString(r.Result.UpdatedCode)
		b.WriteString("\n```\n\n")
	}

	fmt.Fprintf(&b, "## Confidence Level\n**%.1f%%**\n\n", r.Result.Confidence*100)

	if len(r.Result.Recommendations) > 0 {
		b.WriteString("## Recommendations\n")
		for _, rec := range r.Result.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Raw Model Response\n<details>\n<summary>Click to expand raw response</summary>\n\n```\n")
	b.WriteString(r.Result.RawResponse)
	b.WriteString("\n```\n</details>\n")

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "Not identified"
	}
	return s
}
