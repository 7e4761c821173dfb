package preprocess

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/Brownie44l1/schizo-classifier/internal/model"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedChannels = errors.New("unsupported image channel count")

// Pipeline resizes an image, converts it to a float tensor in [0, 1],
// replicates single-channel images to three channels and normalises each
// channel with (x - mean) / std.
type Pipeline struct {
	Size int
	Mean []float32
	Std  []float32
}

// FromMetadata builds the pipeline a model expects.
func FromMetadata(meta model.Metadata) *Pipeline {
	return &Pipeline{Size: meta.ImageSize, Mean: meta.Mean, Std: meta.Std}
}

// Decode reads any registered image format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Channels reports how many channels img carries: 1 for grayscale, 3 for
// opaque colour, including paletted images without transparent entries. Images with an alpha channel or four colour channels
// are rejected.
func Channels(img image.Image) (int, error) {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1, nil
	case *image.CMYK:
		return 0, fmt.Errorf("%w: CMYK has 4 channels", ErrUnsupportedChannels)
	case *image.Alpha, *image.Alpha16:
		return 0, fmt.Errorf("%w: alpha-only image", ErrUnsupportedChannels)
	case *image.YCbCr:
		return 3, nil
	}

	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return 0, fmt.Errorf("%w: image has a non-opaque alpha channel", ErrUnsupportedChannels)
	}
	return 3, nil
}

// Tensor returns the (3, Size, Size) model input for img.
func (p *Pipeline) Tensor(img image.Image) (*model.Tensor, error) {
	channels, err := Channels(img)
	if err != nil {
		return nil, err
	}
	if p.Size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", p.Size)
	}
	if len(p.Mean) != 3 || len(p.Std) != 3 {
		return nil, fmt.Errorf("normalisation needs 3 mean/std values, got %d/%d", len(p.Mean), len(p.Std))
	}

	size := uint(p.Size)
	resized := resize.Resize(size, size, img, resize.Bilinear)

	data := toFloat(resized, channels)
	if channels == 1 {
		data = replicate(data, 3)
	}
	normalize(data, p.Size*p.Size, p.Mean, p.Std)

	return model.NewTensor(data, 3, p.Size, p.Size)
}

// File opens, decodes and preprocesses the image at path.
func (p *Pipeline) File(path string) (*model.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return p.Tensor(img)
}

// toFloat lays img out channel-major with values scaled to [0, 1].
func toFloat(img image.Image, channels int) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*width + x
			if channels == 1 {
				data[i] = float32(r) / 65535.0
				continue
			}
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}
	return data
}

func replicate(plane []float32, n int) []float32 {
	out := make([]float32, 0, len(plane)*n)
	for i := 0; i < n; i++ {
		out = append(out, plane...)
	}
	return out
}

func normalize(data []float32, plane int, mean, std []float32) {
	for c := range mean {
		ch := data[c*plane : (c+1)*plane]
		for i, v := range ch {
			ch[i] = (v - mean[c]) / std[c]
		}
	}
}
