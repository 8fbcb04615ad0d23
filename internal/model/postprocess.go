package model

import (
	"github.com/chewxy/math32"
)

// Softmax turns raw scores into a probability distribution. The maximum is
// subtracted before exponentiation so large logits do not overflow.
func Softmax(scores []float32) []float32 {
	out := make([]float32, len(scores))
	if len(scores) == 0 {
		return out
	}

	_, top := ArgMax(scores)
	var sum float32
	for i, s := range scores {
		out[i] = math32.Exp(s - top)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ArgMax returns the index and value of the first maximum in v, or -1 for an
// empty vector.
func ArgMax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, math32.Inf(-1)
	}
	maxIdx := 0
	maxVal := v[0]
	for i, val := range v {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}

// Postprocess converts raw model output into a ClassificationResult: softmax,
// arg-max, label lookup. Score is the winning probability as a percentage.
// Labels that name a detail category also populate Detail.
func Postprocess(logits []float32, labels Labels) *ClassificationResult {
	probs := Softmax(logits)
	idx, best := ArgMax(probs)

	result := &ClassificationResult{
		Disease: labels.Name(idx),
		Score:   percent(best),
	}

	detail := &Detail{}
	found := false
	for i, p := range probs {
		if i >= len(labels) {
			break
		}
		if detail.set(labels[i], percent(p)) {
			found = true
		}
	}
	if found {
		result.Detail = detail
	}
	return result
}

func percent(p float32) float32 {
	if math32.IsInf(p, 0) || math32.IsNaN(p) || p < 0 {
		return 0
	}
	c := p * 100
	if c > 100 {
		c = 100
	}
	return c
}
