// Package visual implements tolerance-based visual regression: baseline
// lifecycle, per-pixel diffing, and diff artifact generation on mismatch.
package visual

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Comparator failure taxonomy. Both are comparison failures in their own
// right: a mismatched or corrupt capture is a test-relevant signal, not an
// infrastructure hiccup.
var (
	// ErrDimensionMismatch means current and baseline dimensions differ. The
	// comparator never silently resizes.
	ErrDimensionMismatch = errors.New("image dimensions do not match baseline")
	// ErrCorruptCapture means the capture could not be decoded or is
	// uniformly black, so scoring it against a baseline would be meaningless.
	ErrCorruptCapture = errors.New("corrupt screenshot capture")
)

// blackThreshold is the per-channel ceiling below which a pixel counts as
// black for corrupt-capture detection.
const blackThreshold = 8

// DiffResult is the outcome of one comparison.
type DiffResult struct {
	BaselineName    string  `json:"baseline_name"`
	SimilarityScore float64 `json:"similarity_score"`
	// Scored is false when no similarity was computed (baseline creation,
	// dimension mismatch, corrupt capture). SimilarityScore is then 0 and
	// must not be read as a measurement.
	Scored          bool   `json:"scored"`
	Passed          bool   `json:"passed"`
	BaselineCreated bool   `json:"baseline_created,omitempty"`
	DiffImagePath   string `json:"diff_image_path,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Comparator compares captures against stored baselines. Diff computation is
// CPU-bound and lock-free; each worker compares against its own named
// baseline independently.
type Comparator struct {
	baselines *BaselineStore
	diffDir   string
	log       *zap.Logger
}

// NewComparator creates a Comparator writing diff artifacts under diffDir.
func NewComparator(baselines *BaselineStore, diffDir string, log *zap.Logger) *Comparator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Comparator{baselines: baselines, diffDir: diffDir, log: log}
}

// Baselines exposes the underlying store for operator commands.
func (c *Comparator) Baselines() *BaselineStore { return c.baselines }

// ComparePNG decodes a PNG capture and compares it against the named
// baseline. See Compare for semantics.
func (c *Comparator) ComparePNG(name string, pngData []byte, tolerance float64) (*DiffResult, error) {
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return &DiffResult{
			BaselineName: name,
			Passed:       false,
			Reason:       fmt.Sprintf("capture is not a decodable PNG: %v", err),
		}, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
	}
	return c.Compare(name, img, tolerance)
}

// CompareFile reads a capture from disk and compares it. See Compare.
func (c *Comparator) CompareFile(name, path string, tolerance float64) (*DiffResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &DiffResult{
			BaselineName: name,
			Passed:       false,
			Reason:       fmt.Sprintf("capture unreadable: %v", err),
		}, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
	}
	return c.ComparePNG(name, data, tolerance)
}

// Compare runs the baseline state machine for name: with no baseline the
// capture becomes the baseline and the comparison passes without computing a
// diff; otherwise a per-pixel similarity in [0,1] is computed and the
// comparison passes when (1 - similarity) <= tolerance. A diff artifact with
// divergent pixels highlighted is written only on failure.
func (c *Comparator) Compare(name string, current image.Image, tolerance float64) (*DiffResult, error) {
	cur := toNRGBA(current)

	if isUniformlyBlack(cur) {
		return &DiffResult{
			BaselineName: name,
			Passed:       false,
			Reason:       "capture is uniformly black; refusing to score it against the baseline",
		}, fmt.Errorf("%w: uniformly black capture", ErrCorruptCapture)
	}

	baseline, ok, err := c.baselines.Load(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := c.baselines.Create(name, cur); err != nil {
			return nil, err
		}
		c.log.Info("baseline created", zap.String("name", name))
		return &DiffResult{
			BaselineName:    name,
			Passed:          true,
			BaselineCreated: true,
			Reason:          "baseline created on first comparison",
		}, nil
	}

	base := toNRGBA(baseline)
	if base.Bounds().Dx() != cur.Bounds().Dx() || base.Bounds().Dy() != cur.Bounds().Dy() {
		reason := fmt.Sprintf("baseline is %dx%d, capture is %dx%d",
			base.Bounds().Dx(), base.Bounds().Dy(), cur.Bounds().Dx(), cur.Bounds().Dy())
		return &DiffResult{
			BaselineName: name,
			Passed:       false,
			Reason:       reason,
		}, fmt.Errorf("%w: %s", ErrDimensionMismatch, reason)
	}

	similarity, diffImg := diffImages(base, cur)
	passed := (1 - similarity) <= tolerance

	result := &DiffResult{
		BaselineName:    name,
		SimilarityScore: similarity,
		Scored:          true,
		Passed:          passed,
	}

	if !passed {
		path, err := c.writeDiff(name, diffImg)
		if err != nil {
			c.log.Warn("failed to write diff artifact", zap.String("name", name), zap.Error(err))
		} else {
			result.DiffImagePath = path
		}
		result.Reason = fmt.Sprintf("difference %.4f exceeds tolerance %.4f", 1-similarity, tolerance)
	}

	return result, nil
}

// diffImages computes pixel similarity and a red-overlay diff image. A pixel
// counts as different when any channel differs.
func diffImages(base, cur *image.NRGBA) (float64, *image.NRGBA) {
	bounds := base.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	total := width * height
	if total == 0 {
		return 1, nil
	}

	diff := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(diff, diff.Bounds(), cur, bounds.Min, draw.Src)

	differing := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bp := base.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			cp := cur.NRGBAAt(cur.Bounds().Min.X+x, cur.Bounds().Min.Y+y)
			if bp.R != cp.R || bp.G != cp.G || bp.B != cp.B {
				differing++
				diff.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			}
		}
	}

	return 1 - float64(differing)/float64(total), diff
}

func (c *Comparator) writeDiff(name string, diffImg *image.NRGBA) (string, error) {
	if err := os.MkdirAll(c.diffDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(c.diffDir, name+"_diff.png")

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := png.Encode(f, diffImg); err != nil {
		return "", err
	}
	return path, nil
}

// isUniformlyBlack reports whether every pixel is at or below the black
// threshold, the signature of a failed render or torn-down page.
func isUniformlyBlack(img *image.NRGBA) bool {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return true
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			if p.R > blackThreshold || p.G > blackThreshold || p.B > blackThreshold {
				return false
			}
		}
	}
	return true
}

// toNRGBA normalizes any decoded image into NRGBA for channel comparison.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
