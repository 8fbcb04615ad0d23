package imaging

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ImageNet channel statistics.
var (
	DefaultMean = []float32{0.485, 0.456, 0.406}
	DefaultStd  = []float32{0.229, 0.224, 0.225}
)

// DefaultSize is the edge length images are scaled to before inference.
const DefaultSize = 300

// TensorOptions controls ToTensor.
type TensorOptions struct {
	Width  int
	Height int
	Mean   []float32
	Std    []float32
	Interp resize.InterpolationFunction
}

// DefaultTensorOptions scales to 300x300 without filtering and applies the
// ImageNet normalization.
func DefaultTensorOptions() TensorOptions {
	return TensorOptions{
		Width:  DefaultSize,
		Height: DefaultSize,
		Mean:   DefaultMean,
		Std:    DefaultStd,
		Interp: resize.NearestNeighbor,
	}
}

func (o TensorOptions) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid tensor dimensions: %dx%d", o.Width, o.Height)
	}
	if len(o.Mean) != 3 || len(o.Std) != 3 {
		return fmt.Errorf("mean and std need 3 channels, got %d and %d", len(o.Mean), len(o.Std))
	}
	for _, s := range o.Std {
		if s == 0 {
			return errors.New("std must be non-zero")
		}
	}
	return nil
}

// ToTensor resizes img and lays it out as a float32 CHW RGB tensor with each
// channel normalized as (v/255 - mean) / std.
func ToTensor(img image.Image, opts TensorOptions) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "input validation failed")
	}

	resized := resize.Resize(uint(opts.Width), uint(opts.Height), img, opts.Interp)
	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			data[i] = (float32(r>>8)/255.0 - opts.Mean[0]) / opts.Std[0]
			data[plane+i] = (float32(g>>8)/255.0 - opts.Mean[1]) / opts.Std[1]
			data[2*plane+i] = (float32(b>>8)/255.0 - opts.Mean[2]) / opts.Std[2]
		}
	}
	return data, nil
}
