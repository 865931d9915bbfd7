package classifier

import (
	"fmt"
	"math"
)

const (
	LabelMale   = "male"
	LabelFemale = "female"
)

// Labels maps model output indices to gender labels.
var Labels = [2]string{LabelMale, LabelFemale}

// Prediction is the classifier verdict for one audio segment.
type Prediction struct {
	Gender string  `json:"gender"`
	Male   float64 `json:"male"`
	Female float64 `json:"female"`
}

// Softmax turns raw logits into probabilities that sum to 1.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := logits[0]
	for _, l := range logits[1:] {
		if l > peak {
			peak = l
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// FromLogits builds a Prediction from the two raw model outputs.
func FromLogits(logits []float64) (Prediction, error) {
	if len(logits) != len(Labels) {
		return Prediction{}, fmt.Errorf("expected %d logits, got %d", len(Labels), len(logits))
	}
	for _, l := range logits {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return Prediction{}, fmt.Errorf("logits must be finite, got %v", logits)
		}
	}
	probs := Softmax(logits)
	return FromProbabilities(probs[0], probs[1])
}

// FromProbabilities builds a Prediction, labelling it with the likelier
// class. Ties go to male.
func FromProbabilities(male, female float64) (Prediction, error) {
	for _, p := range []float64{male, female} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Prediction{}, fmt.Errorf("probabilities must be within [0, 1], got male=%v female=%v", male, female)
		}
	}
	gender := LabelMale
	if female > male {
		gender = LabelFemale
	}
	return Prediction{Gender: gender, Male: male, Female: female}, nil
}
