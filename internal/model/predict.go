package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Predict runs x through f and turns every output row into a probability
// distribution and its arg-max class. Rows are re-normalised with
// log-softmax first, which leaves log-probabilities unchanged and makes
// raw logits from an exported graph safe to use.
func Predict(f Forwarder, x *Tensor) ([]PredictionResult, error) {
	if x == nil || len(x.Shape) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrShapeMismatch)
	}
	out, err := f.Forward(x)
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Shape) != 2 || out.Shape[1] <= 0 {
		return nil, fmt.Errorf("%w: model returned an invalid output", ErrShapeMismatch)
	}

	batch, classes := out.Shape[0], out.Shape[1]
	if batch != x.Shape[0] || len(out.Data) != batch*classes {
		return nil, fmt.Errorf("%w: model returned %d values for shape %v and batch %d",
			ErrShapeMismatch, len(out.Data), out.Shape, x.Shape[0])
	}
	results := make([]PredictionResult, batch)
	for b := 0; b < batch; b++ {
		row := make([]float64, classes)
		for i, v := range out.Data[b*classes : (b+1)*classes] {
			row[i] = float64(v)
		}
		logSoftmax(row)
		for i, v := range row {
			row[i] = math.Exp(v)
		}
		results[b] = PredictionResult{
			ClassIndex:    floats.MaxIdx(row),
			Probabilities: row,
		}
	}
	return results, nil
}
