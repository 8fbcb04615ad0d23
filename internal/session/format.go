package session

import (
	"fmt"
	"strings"

	"github.com/tckmpsi/kq-classifier/internal/model"
)

// FormatResult renders a server result: model, label, score and any positive
// sub-scores.
func FormatResult(modelName string, r *model.ClassificationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %s\nDisease: %s\nScore: %.2f", modelName, r.Disease, r.Score)

	if r.Detail != nil {
		b.WriteString("\n\nDetails:\n")
		for _, e := range r.Detail.Entries() {
			if e.Score > 0 {
				fmt.Fprintf(&b, "%s: %.2f\n", e.Name, e.Score)
			}
		}
	}
	return b.String()
}

// FormatLocal renders an on-device result as label and percentage.
func FormatLocal(r *model.ClassificationResult) string {
	return fmt.Sprintf("%s\n%.2f%%", r.Disease, r.Score)
}

func failureText(mode Mode, message string) string {
	if mode == Local {
		return "Error during classification: " + message
	}
	if strings.HasPrefix(message, "Error") || strings.HasPrefix(message, "Network error") {
		return message
	}
	return "Error: " + message
}
