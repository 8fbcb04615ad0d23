package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tckmpsi/kq-classifier/internal/imaging"
)

// DefaultNames are the model identifiers offered when none are configured.
// The first is the default selection.
var DefaultNames = []string{
	"inception_v3",
	"efficientnet_b0",
	"mobilenet_v2",
	"resnet50",
	"vgg16",
	"densenet121",
}

var (
	// ErrUnknownModel is returned for a model identifier nobody serves.
	ErrUnknownModel = errors.New("unknown model")
	// ErrInvalidImage is returned when the request image cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidInput is returned when a raw tensor has the wrong length.
	ErrInvalidInput = errors.New("invalid input")
)

// Model is one loaded classifier: its session, labels and preprocessing.
type Model struct {
	Name     string
	Metadata Metadata
	Labels   Labels
	Tensor   imaging.TensorOptions
	session  *Session
}

// Classify decodes the request image and runs it through the model.
func (m *Model) Classify(ctx context.Context, req ClassificationRequest) (*ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.DecodeBase64Image(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	input, err := imaging.ToTensor(img, m.Tensor)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}

	logits, err := m.session.Run(input)
	if err != nil {
		return nil, err
	}

	result := Postprocess(logits, m.Labels)
	slog.Debug("classified image", "model", m.Name, "label", result.Disease, "score", result.Score)
	return result, nil
}

// InputSize is the number of float32 values the model consumes.
func (m *Model) InputSize() int {
	size := 1
	for _, dim := range m.Metadata.InputShape {
		size *= int(dim)
	}
	return size
}

// Predict runs an already preprocessed tensor through the model.
func (m *Model) Predict(input []float32) (*ClassificationResult, error) {
	if expected := m.InputSize(); len(input) != expected {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidInput, expected, len(input))
	}
	logits, err := m.session.Run(input)
	if err != nil {
		return nil, err
	}
	return Postprocess(logits, m.Labels), nil
}

// Registry owns the onnxruntime environment and every model loaded from a
// models directory.
type Registry struct {
	models map[string]*Model
	order  []string
}

// NewRegistry initializes onnxruntime and loads <dir>/<name>.onnx with its
// <dir>/<name>.json metadata for every name. libraryPath may be empty to use
// the platform default shared library.
func NewRegistry(dir string, names []string, libraryPath string) (*Registry, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	r := &Registry{models: make(map[string]*Model)}
	for _, name := range names {
		m, err := loadModel(dir, name)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		r.models[name] = m
		r.order = append(r.order, name)
		slog.Info("model loaded", "model", name, "classes", len(m.Labels), "size", m.Tensor.Width)
	}
	return r, nil
}

// Get returns the named model.
func (r *Registry) Get(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Names lists the loaded models in load order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Classify dispatches req to the model it names.
func (r *Registry) Classify(ctx context.Context, req ClassificationRequest) (*ClassificationResult, error) {
	m, err := r.Get(req.Model)
	if err != nil {
		return nil, err
	}
	return m.Classify(ctx, req)
}

// Predict runs a raw tensor through the named model.
func (r *Registry) Predict(name string, input []float32) (*ClassificationResult, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return m.Predict(input)
}

// Close destroys every session and the onnxruntime environment.
func (r *Registry) Close() {
	for _, m := range r.models {
		m.session.Close()
	}
	r.models = map[string]*Model{}
	r.order = nil
	ort.DestroyEnvironment()
}

func loadModel(dir, name string) (*Model, error) {
	meta, err := ReadMetadata(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, err
	}

	labels, err := resolveLabels(dir, name, meta)
	if err != nil {
		return nil, err
	}

	session, err := NewSession(filepath.Join(dir, name+".onnx"), meta)
	if err != nil {
		return nil, err
	}

	return &Model{
		Name:     name,
		Metadata: meta,
		Labels:   labels,
		Tensor:   TensorOptions(meta),
		session:  session,
	}, nil
}

// ReadMetadata parses a model metadata file.
func ReadMetadata(path string) (Metadata, error) {
	var meta Metadata

	raw, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(meta.InputShape) == 0 || len(meta.OutputShape) == 0 {
		return meta, errors.New("metadata needs input_shape and output_shape")
	}
	return meta, nil
}

// TensorOptions derives preprocessing from metadata, falling back to a
// 300x300 ImageNet-normalized input.
func TensorOptions(meta Metadata) imaging.TensorOptions {
	opts := imaging.DefaultTensorOptions()

	size := meta.ImageSize
	if size <= 0 && len(meta.InputShape) == 4 {
		size = int(meta.InputShape[3])
	}
	if size > 0 {
		opts.Width, opts.Height = size, size
	}
	if len(meta.Mean) == 3 {
		opts.Mean = meta.Mean
	}
	if len(meta.Std) == 3 {
		opts.Std = meta.Std
	}
	return opts
}

// resolveLabels prefers inline classes, then labels_file, then <name>.txt.
func resolveLabels(dir, name string, meta Metadata) (Labels, error) {
	if len(meta.Classes) > 0 {
		return Labels(meta.Classes), nil
	}
	path := filepath.Join(dir, name+".txt")
	if meta.LabelsFile != "" {
		path = meta.LabelsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
	}
	return LoadLabels(path)
}
