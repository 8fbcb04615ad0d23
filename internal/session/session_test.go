package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

var testModels = []string{"inception_v3", "efficientnet_b0", "resnet50"}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
		}
	}
	return img
}

func static(result *model.ClassificationResult, err error) classifier.Classifier {
	return classifier.Func(func(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
		return result, err
	})
}

func nextUpdate(t *testing.T, s *Session) Update {
	t.Helper()
	select {
	case u := <-s.Updates():
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("no update delivered")
		return Update{}
	}
}

func TestNew_DefaultsToFirstModel(t *testing.T) {
	t.Parallel()

	s := New(static(nil, nil), testModels, Remote)

	assert.Equal(t, "inception_v3", s.Model())
	assert.Equal(t, testModels, s.Models())
	assert.False(t, s.CanClassify())
	assert.Empty(t, s.Status())
}

func TestSelectModel(t *testing.T) {
	t.Parallel()

	s := New(static(nil, nil), testModels, Remote)

	require.NoError(t, s.SelectModel("resnet50"))
	assert.Equal(t, "resnet50", s.Model())

	err := s.SelectModel("alexnet")
	assert.ErrorIs(t, err, model.ErrUnknownModel)
	assert.Equal(t, "resnet50", s.Model())

	require.NoError(t, s.SelectModel(""))
	assert.Equal(t, "inception_v3", s.Model())
}

func TestClassify_WithoutImage(t *testing.T) {
	t.Parallel()

	s := New(static(nil, nil), testModels, Remote)

	assert.ErrorIs(t, s.Classify(context.Background()), ErrNoImage)
	assert.False(t, s.Busy())
}

func TestSetImage_EnablesClassify(t *testing.T) {
	t.Parallel()

	s := New(static(nil, nil), testModels, Remote)

	require.NoError(t, s.SetImage(testImage()))
	assert.True(t, s.CanClassify())

	assert.Error(t, s.SetImage(image.NewRGBA(image.Rect(0, 0, 0, 0))))
}

func TestClassify_SendsImageAndModel(t *testing.T) {
	t.Parallel()

	seen := make(chan model.ClassificationRequest, 1)
	c := classifier.Func(func(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
		seen <- req
		return &model.ClassificationResult{Disease: "vay", Score: 70}, nil
	})

	s := New(c, testModels, Remote)
	require.NoError(t, s.SelectModel("efficientnet_b0"))
	require.NoError(t, s.SetImage(testImage()))

	status, err := s.Run(context.Background())
	require.NoError(t, err)

	req := <-seen
	assert.Equal(t, "efficientnet_b0", req.Model)
	assert.NotEmpty(t, req.Image)
	assert.Equal(t, "Model: efficientnet_b0\nDisease: vay\nScore: 70.00", status)
	assert.False(t, s.Busy())
}

func TestClassify_FailureStatus(t *testing.T) {
	t.Parallel()

	s := New(static(nil, errors.New("Error: 503")), testModels, Remote)
	require.NoError(t, s.SetImage(testImage()))

	status, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Error: 503", status)
}

func TestClassify_LocalFormatting(t *testing.T) {
	t.Parallel()

	s := New(static(&model.ClassificationResult{Disease: "rust", Score: 93.456}, nil), testModels, Local)
	require.NoError(t, s.SetImage(testImage()))

	status, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rust\n93.46%", status)

	s = New(static(nil, errors.New("tensor mismatch")), testModels, Local)
	require.NoError(t, s.SetImage(testImage()))

	status, err = s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Error during classification: tensor mismatch", status)
}

func TestApply_DropsStaleResults(t *testing.T) {
	t.Parallel()

	release := make(chan string, 2)
	c := classifier.Func(func(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
		return &model.ClassificationResult{Disease: <-release, Score: 50}, nil
	})

	s := New(c, testModels, Remote)
	require.NoError(t, s.SetImage(testImage()))

	require.NoError(t, s.Classify(context.Background()))
	release <- "first"
	first := nextUpdate(t, s)

	require.NoError(t, s.Classify(context.Background()))
	assert.True(t, s.Busy())

	// The superseded result must not be displayed.
	assert.False(t, s.Apply(first))
	assert.Empty(t, s.Status())

	release <- "second"
	second := nextUpdate(t, s)
	assert.True(t, s.Apply(second))
	assert.Contains(t, s.Status(), "Disease: second")
	assert.False(t, s.Busy())
}

func TestSetImage_OrphansInFlightRequest(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := classifier.Func(func(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
		<-release
		return &model.ClassificationResult{Disease: "old", Score: 10}, nil
	})

	s := New(c, testModels, Remote)
	require.NoError(t, s.SetImage(testImage()))
	require.NoError(t, s.Classify(context.Background()))

	require.NoError(t, s.SetImage(testImage()))
	assert.False(t, s.Busy())

	close(release)
	u := nextUpdate(t, s)
	assert.False(t, s.Apply(u))
	assert.Empty(t, s.Status())
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	c := classifier.Func(func(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
		<-block
		return nil, ctx.Err()
	})

	s := New(c, testModels, Remote)
	require.NoError(t, s.SetImage(testImage()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
