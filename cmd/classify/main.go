package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/tckmpsi/kq-classifier/internal/camera"
	"github.com/tckmpsi/kq-classifier/internal/capture"
	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/client"
	"github.com/tckmpsi/kq-classifier/internal/config"
	"github.com/tckmpsi/kq-classifier/internal/model"
	"github.com/tckmpsi/kq-classifier/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	clientCfg := config.LoadClient()

	imagePath := flag.String("image", "", "Path to an image file")
	useCamera := flag.Bool("camera", false, "Capture the image from a camera")
	deviceID := flag.Int("device", 0, "Camera device ID")
	modelName := flag.String("model", model.DefaultNames[0], "Model to classify with ("+strings.Join(model.DefaultNames, ", ")+")")
	server := flag.String("server", clientCfg.BaseURL, "Classification server base URL")
	local := flag.Bool("local", false, "Run the model on this machine instead of the server")
	modelsDir := flag.String("models-dir", "models", "Directory holding <model>.onnx and <model>.json (with -local)")
	ortLibrary := flag.String("ort-library", os.Getenv("ORT_LIBRARY_PATH"), "onnxruntime shared library (with -local)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *imagePath == "" && !*useCamera {
		log.Fatal("Please provide an image with -image or use -camera")
	}

	img, err := acquire(*imagePath, *useCamera, *deviceID)
	if err != nil {
		log.Fatalf("Failed to acquire image: %v", err)
	}

	var (
		backend classifier.Classifier
		models  []string
		mode    = session.Remote
	)
	if *local {
		registry, err := model.NewRegistry(*modelsDir, []string{*modelName}, *ortLibrary)
		if err != nil {
			log.Fatalf("Error loading model: %v", err)
		}
		defer registry.Close()
		backend, models, mode = registry, registry.Names(), session.Local
	} else {
		clientCfg.BaseURL = *server
		backend = client.New(clientCfg.Config, nil)
		models = model.DefaultNames
	}

	s := session.New(backend, models, mode)
	if err := s.SelectModel(*modelName); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid model: %v\n", err)
		return 1
	}
	if err := s.SetImage(img); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode image: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	status, err := s.Run(ctx)
	if status != "" {
		fmt.Println(status)
	}
	if err != nil {
		if status == "" {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}

func acquire(path string, useCamera bool, deviceID int) (image.Image, error) {
	var src capture.Source = capture.File{Path: path}
	if useCamera {
		cam, err := camera.Open(deviceID)
		if err != nil {
			return nil, err
		}
		defer cam.Close()
		src = cam
	}
	return src.Capture()
}
