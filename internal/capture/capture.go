// Package capture acquires the image a user wants classified.
package capture

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/tckmpsi/kq-classifier/internal/imaging"
)

// Source produces a fresh image on each call.
type Source interface {
	Capture() (image.Image, error)
}

// File reads an image from disk, the gallery path of the app.
type File struct {
	Path string
}

// Capture opens and decodes the file.
func (f File) Capture() (image.Image, error) {
	return FromFile(f.Path)
}

// FromFile opens and decodes the image at path.
func FromFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := imaging.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("image loaded", "path", path, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}
