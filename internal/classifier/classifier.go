// Package classifier routes classification requests to the backend serving
// the requested model.
package classifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tckmpsi/kq-classifier/internal/model"
)

// Classifier classifies one encoded image.
type Classifier interface {
	Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	return f(ctx, req)
}

// Mux maps model identifiers to backends. Requests without a model go to
// the default.
type Mux struct {
	mu       sync.RWMutex
	backends map[string]Classifier
	fallback string
}

// NewMux returns an empty Mux. defaultModel is used for requests that name no
// model.
func NewMux(defaultModel string) *Mux {
	return &Mux{backends: make(map[string]Classifier), fallback: defaultModel}
}

// Handle registers c under name, replacing any earlier registration.
func (m *Mux) Handle(name string, c Classifier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.backends[name] = c
	if m.fallback == "" {
		m.fallback = name
	}
}

// Default returns the model used when a request names none.
func (m *Mux) Default() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fallback
}

// Names lists registered models, default first, the rest sorted.
func (m *Mux) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.backends))
	for name := range m.backends {
		if name != m.fallback {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := m.backends[m.fallback]; ok {
		names = append([]string{m.fallback}, names...)
	}
	return names
}

// Classify sends req to the backend registered for req.Model.
func (m *Mux) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	if req.Model == "" {
		req.Model = m.Default()
	}

	m.mu.RLock()
	c, ok := m.backends[req.Model]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, req.Model)
	}
	return c.Classify(ctx, req)
}
