package classifier

import (
	"context"

	"github.com/tckmpsi/kq-classifier/internal/model"
)

// Callback receives the outcome of an asynchronous classification. Exactly
// one method is called per request.
type Callback interface {
	OnSuccess(result *model.ClassificationResult)
	OnFailure(message string)
}

// Async runs c.Classify on its own goroutine and reports through cb. Callers
// that own UI state must hop back to their own goroutine before touching it.
func Async(ctx context.Context, c Classifier, req model.ClassificationRequest, cb Callback) {
	go func() {
		result, err := c.Classify(ctx, req)
		if err != nil {
			cb.OnFailure(err.Error())
			return
		}
		cb.OnSuccess(result)
	}()
}
