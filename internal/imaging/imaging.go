// Package imaging converts images into the two forms the classifiers take:
// Base64 JPEG text for transport and normalized CHW tensors for inference.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// JPEGQuality is the quality used when compressing images for transport.
const JPEGQuality = 100

// ErrEmptyImage is returned when there is nothing to encode or decode.
var ErrEmptyImage = errors.New("image is empty")

// Decode reads a JPEG, PNG, GIF or WebP image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "image decoding failed")
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, format, nil
}

// EncodeJPEG compresses img as a JPEG at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, errors.Wrap(err, "jpeg encoding failed")
	}
	return buf.Bytes(), nil
}

// EncodeBase64 compresses img as JPEG and returns it as unwrapped standard
// Base64.
func EncodeBase64(img image.Image) (string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeBase64 returns the raw image bytes carried in s. Surrounding
// whitespace and embedded line breaks are tolerated.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, ErrEmptyImage
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decoding failed")
	}
	return data, nil
}

// DecodeBase64Image decodes s all the way to an image.
func DecodeBase64Image(s string) (image.Image, error) {
	data, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(bytes.NewReader(data))
	return img, err
}
