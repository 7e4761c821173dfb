package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/schizo-classifier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(size int) *Pipeline {
	meta := model.DefaultMetadata()
	p := FromMetadata(meta)
	p.Size = size
	return p
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func uniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestChannels(t *testing.T) {
	rect := image.Rect(0, 0, 2, 2)

	n, err := Channels(image.NewGray(rect))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Channels(image.NewGray16(rect))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Channels(uniformRGBA(2, 2, color.RGBA{10, 20, 30, 255}))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = Channels(image.NewYCbCr(rect, image.YCbCrSubsampleRatio420))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Channels(image.NewRGBA(rect))
	assert.ErrorIs(t, err, ErrUnsupportedChannels, "transparent RGBA")

	_, err = Channels(image.NewCMYK(rect))
	assert.ErrorIs(t, err, ErrUnsupportedChannels)

	_, err = Channels(image.NewAlpha(rect))
	assert.ErrorIs(t, err, ErrUnsupportedChannels)
}

func TestChannelsPaletted(t *testing.T) {
	rect := image.Rect(0, 0, 2, 2)

	opaque := image.NewPaletted(rect, color.Palette{color.RGBA{0, 0, 0, 255}, color.RGBA{200, 10, 10, 255}})
	opaque.SetColorIndex(1, 1, 1)
	n, err := Channels(opaque)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	transparent := image.NewPaletted(rect, color.Palette{color.RGBA{0, 0, 0, 255}, color.RGBA{0, 0, 0, 0}})
	transparent.SetColorIndex(0, 0, 1)
	_, err = Channels(transparent)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)

	_, err = testPipeline(8).Tensor(transparent)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)
}

func TestTensorShapeAndNormalisation(t *testing.T) {
	p := testPipeline(256)

	x, err := p.Tensor(uniformGray(40, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 256, 256}, x.Shape)

	plane := 256 * 256
	for c := 0; c < 3; c++ {
		want := -p.Mean[c] / p.Std[c]
		assert.InDelta(t, want, x.Data[c*plane], 1e-6)
		assert.InDelta(t, want, x.Data[(c+1)*plane-1], 1e-6)
	}
}

func TestTensorColourChannelsStaySeparate(t *testing.T) {
	p := testPipeline(8)
	x, err := p.Tensor(uniformRGBA(16, 16, color.RGBA{255, 0, 51, 255}))
	require.NoError(t, err)

	assert.InDelta(t, (1-0.485)/0.229, x.Data[0], 1e-5)
	assert.InDelta(t, (0-0.456)/0.224, x.Data[64], 1e-5)
	assert.InDelta(t, (0.2-0.406)/0.225, x.Data[128], 1e-5)
}

func TestGrayReplicationMatchesRGB(t *testing.T) {
	p := testPipeline(64)

	gray, err := p.Tensor(uniformGray(50, 70, 100))
	require.NoError(t, err)
	rgb, err := p.Tensor(uniformRGBA(50, 70, color.RGBA{100, 100, 100, 255}))
	require.NoError(t, err)

	assert.Equal(t, rgb.Shape, gray.Shape)
	assert.InDeltaSlice(t, rgb.Data, gray.Data, 1e-6)
}

func TestTensorRejectsBadPipeline(t *testing.T) {
	p := testPipeline(0)
	_, err := p.Tensor(uniformGray(4, 4, 1))
	assert.Error(t, err)

	p = testPipeline(4)
	p.Mean = []float32{0.5}
	_, err = p.Tensor(uniformGray(4, 4, 1))
	assert.Error(t, err)
}

func TestFileDecodesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, uniformGray(10, 10, 200)))

	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	x, err := testPipeline(16).File(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 16, 16}, x.Shape)
}

func TestFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := testPipeline(16).File(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err = testPipeline(16).File(path)
	assert.ErrorContains(t, err, "failed to decode image")
}
