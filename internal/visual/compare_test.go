package visual

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidImage returns a width x height image filled with c.
func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	blue  = color.NRGBA{B: 200, A: 255}
)

func newTestComparator(t *testing.T) (*Comparator, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewBaselineStore(filepath.Join(dir, "baselines"))
	return NewComparator(store, filepath.Join(dir, "diffs"), nil), dir
}

func TestCompare_FirstComparisonCreatesBaseline(t *testing.T) {
	c, _ := newTestComparator(t)

	res, err := c.Compare("homepage", solidImage(10, 10, white), 0.01)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.BaselineCreated)
	assert.False(t, res.Scored)
	assert.Empty(t, res.DiffImagePath)

	names, err := c.Baselines().List()
	require.NoError(t, err)
	assert.Equal(t, []string{"homepage"}, names)
}

func TestCompare_IdenticalImagePasses(t *testing.T) {
	c, _ := newTestComparator(t)
	img := solidImage(10, 10, white)

	_, err := c.Compare("homepage", img, 0)
	require.NoError(t, err)

	res, err := c.Compare("homepage", img, 0)
	require.NoError(t, err)
	assert.True(t, res.Scored)
	assert.Equal(t, 1.0, res.SimilarityScore)
	assert.True(t, res.Passed)
	assert.Empty(t, res.DiffImagePath)
}

func TestCompare_DifferenceWithinTolerancePasses(t *testing.T) {
	c, _ := newTestComparator(t)
	base := solidImage(10, 10, white)
	_, err := c.Compare("homepage", base, 0)
	require.NoError(t, err)

	// One of a hundred pixels differs: 1% difference.
	current := solidImage(10, 10, white)
	current.SetNRGBA(3, 3, blue)

	res, err := c.Compare("homepage", current, 0.01)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.InDelta(t, 0.99, res.SimilarityScore, 1e-9)
	assert.Empty(t, res.DiffImagePath)
}

func TestCompare_DifferenceBeyondToleranceFailsWithDiffArtifact(t *testing.T) {
	c, _ := newTestComparator(t)
	_, err := c.Compare("homepage", solidImage(10, 10, white), 0)
	require.NoError(t, err)

	current := solidImage(10, 10, white)
	for x := 0; x < 10; x++ {
		current.SetNRGBA(x, 0, blue)
	}

	res, err := c.Compare("homepage", current, 0.01)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.InDelta(t, 0.90, res.SimilarityScore, 1e-9)
	assert.Contains(t, res.Reason, "exceeds tolerance")

	require.NotEmpty(t, res.DiffImagePath)
	f, err := os.Open(res.DiffImagePath)
	require.NoError(t, err)
	defer f.Close()

	diffImg, err := png.Decode(f)
	require.NoError(t, err)
	// Divergent pixels are highlighted red.
	r, g, b, _ := diffImg.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestCompare_DimensionMismatch(t *testing.T) {
	c, _ := newTestComparator(t)
	_, err := c.Compare("homepage", solidImage(800, 600, white), 0)
	require.NoError(t, err)

	res, err := c.Compare("homepage", solidImage(800, 601, white), 0.5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	require.NotNil(t, res)
	assert.False(t, res.Passed)
	assert.False(t, res.Scored)
	assert.Contains(t, res.Reason, "800x600")
	assert.Contains(t, res.Reason, "800x601")
	assert.Empty(t, res.DiffImagePath)
}

func TestCompare_UniformlyBlackCaptureRejected(t *testing.T) {
	c, _ := newTestComparator(t)
	_, err := c.Compare("homepage", solidImage(10, 10, white), 0)
	require.NoError(t, err)

	res, err := c.Compare("homepage", solidImage(10, 10, color.NRGBA{A: 255}), 1.0)
	assert.ErrorIs(t, err, ErrCorruptCapture)
	require.NotNil(t, res)
	assert.False(t, res.Passed)
	assert.False(t, res.Scored)
}

func TestCompare_NearBlackIsNotCorrupt(t *testing.T) {
	c, _ := newTestComparator(t)
	dark := solidImage(10, 10, color.NRGBA{R: 30, G: 30, B: 30, A: 255})

	res, err := c.Compare("dark-mode", dark, 0)
	require.NoError(t, err)
	assert.True(t, res.BaselineCreated)
}

func TestComparePNG_UndecodableCapture(t *testing.T) {
	c, _ := newTestComparator(t)
	res, err := c.ComparePNG("homepage", []byte("not a png"), 0.01)
	assert.ErrorIs(t, err, ErrCorruptCapture)
	require.NotNil(t, res)
	assert.False(t, res.Passed)
}

func TestComparePNG_RoundTrip(t *testing.T) {
	c, _ := newTestComparator(t)
	data := encodePNG(t, solidImage(10, 10, white))

	_, err := c.ComparePNG("homepage", data, 0)
	require.NoError(t, err)
	res, err := c.ComparePNG("homepage", data, 0)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.SimilarityScore)
}

func TestCompareFile_MissingFile(t *testing.T) {
	c, dir := newTestComparator(t)
	_, err := c.CompareFile("homepage", filepath.Join(dir, "missing.png"), 0.01)
	assert.ErrorIs(t, err, ErrCorruptCapture)
}

func TestCompare_BaselineNeverOverwritten(t *testing.T) {
	c, _ := newTestComparator(t)
	_, err := c.Compare("homepage", solidImage(10, 10, white), 0)
	require.NoError(t, err)

	before, err := os.ReadFile(c.Baselines().Path("homepage"))
	require.NoError(t, err)

	// A failing comparison must leave the baseline untouched.
	_, err = c.Compare("homepage", solidImage(10, 10, blue), 0)
	require.NoError(t, err)

	after, err := os.ReadFile(c.Baselines().Path("homepage"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
