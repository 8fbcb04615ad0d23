package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/imaging"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

const (
	// maxBodyBytes bounds a JSON request carrying a Base64 image.
	maxBodyBytes = 20 << 20
	// maxUploadBytes bounds a multipart image upload.
	maxUploadBytes = 10 << 20
)

// Catalog lists the models a server offers.
type Catalog interface {
	Names() []string
	Default() string
}

// TensorPredictor runs preprocessed tensors directly.
type TensorPredictor interface {
	Predict(name string, input []float32) (*model.ClassificationResult, error)
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Model string    `json:"model"`
	Input []float32 `json:"input"`
}

type Handler struct {
	classifier classifier.Classifier
	catalog    Catalog
	tensors    TensorPredictor
}

// NewHandler wires the HTTP surface to c. tensors may be nil, in which case
// POST /predict answers 404.
func NewHandler(c classifier.Classifier, catalog Catalog, tensors TensorPredictor) *Handler {
	return &Handler{
		classifier: c,
		catalog:    catalog,
		tensors:    tensors,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  h.catalog.Names(),
		"default": h.catalog.Default(),
	})
}

// Classify serves POST /kq.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.ClassificationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Image == "" {
		http.Error(w, "Missing image", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		req.Model = h.catalog.Default()
	}

	h.classify(r.Context(), w, req)
}

// Predict serves POST /predict with a raw tensor.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.tensors == nil {
		http.Error(w, "Raw tensor prediction unavailable", http.StatusNotFound)
		return
	}

	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		req.Model = h.catalog.Default()
	}

	result, err := h.tensors.Predict(req.Model, req.Input)
	if err != nil {
		h.fail(w, req.Model, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PredictFromImage serves POST /predict/image with a multipart upload in the
// "image" field and an optional "model" field.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	slog.Info("received upload", "file", header.Filename, "size", header.Size)

	img, format, err := imaging.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, GIF, WebP", http.StatusBadRequest)
		return
	}

	slog.Debug("decoded upload", "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	encoded, err := imaging.EncodeBase64(img)
	if err != nil {
		slog.Error("failed to encode upload", "error", err)
		http.Error(w, "Failed to preprocess image", http.StatusInternalServerError)
		return
	}

	modelName := r.FormValue("model")
	if modelName == "" {
		modelName = h.catalog.Default()
	}

	h.classify(r.Context(), w, model.ClassificationRequest{Image: encoded, Model: modelName})
}

func (h *Handler) classify(ctx context.Context, w http.ResponseWriter, req model.ClassificationRequest) {
	result, err := h.classifier.Classify(ctx, req)
	if err != nil {
		h.fail(w, req.Model, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, modelName string, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownModel):
		http.Error(w, "Unknown model: "+modelName, http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidImage), errors.Is(err, model.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("classification failed", "model", modelName, "error", err)
		http.Error(w, "Classification failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
