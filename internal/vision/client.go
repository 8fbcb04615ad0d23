// Package vision classifies images with the Google Cloud Vision label
// detection API.
package vision

import (
	"context"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/imaging"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

// ModelName is the identifier the Vision backend is registered under.
const ModelName = "cloud_vision"

// LabelClassifier asks Cloud Vision for labels and reports the best one.
type LabelClassifier struct {
	client *gvision.ImageAnnotatorClient
}

var _ classifier.Classifier = (*LabelClassifier)(nil)

// NewLabelClassifier creates a client using Application Default Credentials.
func NewLabelClassifier(ctx context.Context) (*LabelClassifier, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &LabelClassifier{client: client}, nil
}

// Close releases the API client.
func (v *LabelClassifier) Close() error {
	return v.client.Close()
}

// Classify sends the decoded image bytes for LABEL_DETECTION.
func (v *LabelClassifier) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	data, err := imaging.DecodeBase64(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidImage, err)
	}

	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 5},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return toResult(nil), nil
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}
	return toResult(resp.Responses[0].LabelAnnotations), nil
}

// toResult picks the highest scoring label. No labels maps to Unknown.
func toResult(labels []*visionpb.EntityAnnotation) *model.ClassificationResult {
	result := &model.ClassificationResult{Disease: model.UnknownLabel}
	found := false
	for _, l := range labels {
		score := l.GetScore() * 100
		if score > 100 {
			score = 100
		}
		if !found || score > result.Score {
			result.Disease = l.GetDescription()
			result.Score = score
			found = true
		}
	}
	return result
}
