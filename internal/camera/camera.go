// Package camera grabs still frames from a local video device.
package camera

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// maxAttempts bounds how many empty frames are skipped while the device
// warms up.
const maxAttempts = 30

// ErrNoFrame is returned when the device yields nothing usable.
var ErrNoFrame = errors.New("camera returned no frame")

// Camera is an open capture device.
type Camera struct {
	deviceID int
	webcam   *gocv.VideoCapture
}

// Open opens video capture device deviceID.
func Open(deviceID int) (*Camera, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}
	slog.Info("camera opened", "device", deviceID)
	return &Camera{deviceID: deviceID, webcam: webcam}, nil
}

// Capture reads frames until one is non-empty and returns it as an image.
func (c *Camera) Capture() (image.Image, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i < maxAttempts; i++ {
		if ok := c.webcam.Read(&frame); !ok {
			return nil, fmt.Errorf("cannot read device %d", c.deviceID)
		}
		if frame.Empty() {
			continue
		}
		img, err := frame.ToImage()
		if err != nil {
			return nil, fmt.Errorf("failed to convert frame: %w", err)
		}
		return img, nil
	}
	return nil, ErrNoFrame
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.webcam.Close()
}
