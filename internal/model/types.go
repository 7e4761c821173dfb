package model

import (
	"fmt"
)

// NetworkConfig fixes the topology of the classifier. It is read once
// from the model metadata and never modified.
type NetworkConfig struct {
	InputChannels  int     `yaml:"input_channels" json:"input_channels"`
	InputHeight    int     `yaml:"input_height" json:"input_height"`
	InputWidth     int     `yaml:"input_width" json:"input_width"`
	InitialFilters int     `yaml:"initial_filters" json:"initial_filters"`
	FCHidden       int     `yaml:"num_fc1" json:"num_fc1"`
	NumClasses     int     `yaml:"num_classes" json:"num_classes"`
	DropoutRate    float64 `yaml:"dropout_rate" json:"dropout_rate"`
}

type Metadata struct {
	InputShape  []int64       `yaml:"input_shape"`
	OutputShape []int64       `yaml:"output_shape"`
	InputName   string        `yaml:"input_name"`
	OutputName  string        `yaml:"output_name"`
	Classes     []string      `yaml:"classes"`
	ImageSize   int           `yaml:"image_size"`
	Mean        []float32     `yaml:"mean"`
	Std         []float32     `yaml:"std"`
	Network     NetworkConfig `yaml:"network"`
}

// Tensor is a dense row-major float32 array. An image tensor has shape
// (C, H, W); a batch has shape (N, C, H, W).
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor wraps data, checking that it holds exactly the number of
// elements the shape describes.
func NewTensor(data []float32, shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dimension %d in %v", ErrShapeMismatch, d, shape)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Unsqueeze returns a view of t with a leading batch dimension of 1.
func (t *Tensor) Unsqueeze() *Tensor {
	return &Tensor{Shape: append([]int{1}, t.Shape...), Data: t.Data}
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// PredictionResult is the outcome for a single sample.
type PredictionResult struct {
	ClassIndex    int
	Probabilities []float64
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	RequestID   string             `json:"request_id,omitempty"`
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
}
