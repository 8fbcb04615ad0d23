// Package session holds the state of one interactive classification screen:
// the selected model, the current image and the displayed result.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/imaging"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

// Mode selects how results are worded.
type Mode int

const (
	// Remote results come from the classification server.
	Remote Mode = iota
	// Local results come from an on-device model.
	Local
)

// ErrNoImage is returned by Classify before any image has been set.
var ErrNoImage = errors.New("no image selected")

// Update is the completion of one Classify call. It is applied on the
// session owner's goroutine via Apply.
type Update struct {
	generation uint64
	Model      string
	Result     *model.ClassificationResult
	Message    string
}

// Failed reports whether the request failed.
func (u Update) Failed() bool { return u.Result == nil }

// Session is safe for concurrent use, but Apply is meant to be called from
// the one goroutine that renders Status.
type Session struct {
	mu         sync.Mutex
	classifier classifier.Classifier
	models     []string
	mode       Mode

	current    string
	encoded    string
	enabled    bool
	busy       bool
	status     string
	generation uint64

	updates chan Update
}

// New returns a session offering models, defaulting to the first one.
func New(c classifier.Classifier, models []string, mode Mode) *Session {
	s := &Session{
		classifier: c,
		models:     append([]string(nil), models...),
		mode:       mode,
		updates:    make(chan Update, 4),
	}
	if len(s.models) > 0 {
		s.current = s.models[0]
	}
	return s
}

// Models lists the selectable models.
func (s *Session) Models() []string {
	return append([]string(nil), s.models...)
}

// SelectModel makes name current. An empty name selects the first model.
func (s *Session) SelectModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		if len(s.models) > 0 {
			s.current = s.models[0]
		}
		return nil
	}
	for _, m := range s.models {
		if m == name {
			s.current = name
			return nil
		}
	}
	return fmt.Errorf("%w: %q", model.ErrUnknownModel, name)
}

// Model returns the selected model.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetImage replaces the current image, enables Classify and clears the
// displayed result. Any request still in flight is orphaned.
func (s *Session) SetImage(img image.Image) error {
	encoded, err := imaging.EncodeBase64(img)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.encoded = encoded
	s.enabled = true
	s.busy = false
	s.status = ""
	s.generation++
	return nil
}

// CanClassify reports whether an image is ready to be classified.
func (s *Session) CanClassify() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Status returns the text currently displayed.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Updates delivers completions. Pass each one to Apply.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Classify dispatches the current image to the selected model. The outcome
// arrives on Updates. Starting a new request supersedes the previous one.
func (s *Session) Classify(ctx context.Context) error {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return ErrNoImage
	}
	s.generation++
	s.busy = true
	gen := s.generation
	req := model.ClassificationRequest{Image: s.encoded, Model: s.current}
	s.mu.Unlock()

	classifier.Async(ctx, s.classifier, req, &delivery{
		ctx:     ctx,
		updates: s.updates,
		base:    Update{generation: gen, Model: req.Model},
	})
	return nil
}

// Apply renders u if it belongs to the latest request. It reports whether
// the update was applied.
func (s *Session) Apply(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.generation != s.generation {
		slog.Debug("dropping stale result", "model", u.Model)
		return false
	}

	s.busy = false
	if u.Failed() {
		s.status = failureText(s.mode, u.Message)
		return true
	}
	if s.mode == Local {
		s.status = FormatLocal(u.Result)
	} else {
		s.status = FormatResult(u.Model, u.Result)
	}
	return true
}

// Run classifies the current image and waits until its result is applied.
func (s *Session) Run(ctx context.Context) (string, error) {
	if err := s.Classify(ctx); err != nil {
		return "", err
	}
	for {
		select {
		case u := <-s.updates:
			if s.Apply(u) {
				if u.Failed() {
					return s.Status(), errors.New(u.Message)
				}
				return s.Status(), nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// delivery forwards callback outcomes onto the session's update channel.
type delivery struct {
	ctx     context.Context
	updates chan<- Update
	base    Update
}

func (d *delivery) OnSuccess(result *model.ClassificationResult) {
	u := d.base
	u.Result = result
	d.send(u)
}

func (d *delivery) OnFailure(message string) {
	u := d.base
	u.Message = message
	d.send(u)
}

func (d *delivery) send(u Update) {
	select {
	case d.updates <- u:
	case <-d.ctx.Done():
	}
}
