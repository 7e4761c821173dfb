package classify

import (
	"fmt"
	"image"
	"sync"

	"github.com/Brownie44l1/schizo-classifier/internal/model"
	"github.com/Brownie44l1/schizo-classifier/internal/preprocess"
)

// Outcome is the labelled prediction for one image.
type Outcome struct {
	Label  string
	Result model.PredictionResult
}

// Service ties a loaded model to its preprocessing and class labels.
// Calls are serialised because an onnxruntime session reuses its
// input and output buffers.
type Service struct {
	mu       sync.Mutex
	model    model.Forwarder
	labels   []string
	pipeline *preprocess.Pipeline
}

func NewService(f model.Forwarder, meta model.Metadata) *Service {
	return &Service{
		model:    f,
		labels:   meta.Classes,
		pipeline: preprocess.FromMetadata(meta),
	}
}

// Labels returns the class names indexed by class id.
func (s *Service) Labels() []string {
	return s.labels
}

// ImageSize is the side length images are resized to.
func (s *Service) ImageSize() int {
	return s.pipeline.Size
}

// InputSize is the number of values a single normalised image holds.
func (s *Service) InputSize() int {
	return 3 * s.pipeline.Size * s.pipeline.Size
}

func (s *Service) ClassifyFile(path string) (*Outcome, error) {
	x, err := s.pipeline.File(path)
	if err != nil {
		return nil, err
	}
	return s.ClassifyTensor(x)
}

func (s *Service) ClassifyImage(img image.Image) (*Outcome, error) {
	x, err := s.pipeline.Tensor(img)
	if err != nil {
		return nil, err
	}
	return s.ClassifyTensor(x)
}

// ClassifyTensor takes an already normalised (3, H, W) image tensor.
func (s *Service) ClassifyTensor(x *model.Tensor) (*Outcome, error) {
	if x == nil || len(x.Shape) != 3 {
		return nil, fmt.Errorf("%w: expected a (C, H, W) image tensor", model.ErrShapeMismatch)
	}
	s.mu.Lock()
	results, err := model.Predict(s.model, x.Unsqueeze())
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r := results[0]
	if r.ClassIndex < 0 || r.ClassIndex >= len(s.labels) {
		return nil, fmt.Errorf("class index %d has no label", r.ClassIndex)
	}
	return &Outcome{Label: s.labels[r.ClassIndex], Result: r}, nil
}

// Response converts an outcome to the JSON shape served over HTTP.
func (s *Service) Response(o *Outcome) *model.PredictionResponse {
	predictions := make(map[string]float32, len(s.labels))
	for i, p := range o.Result.Probabilities {
		if i < len(s.labels) {
			predictions[s.labels[i]] = float32(p)
		}
	}
	return &model.PredictionResponse{
		Class:       o.Label,
		Confidence:  float32(o.Result.Probabilities[o.Result.ClassIndex]),
		Predictions: predictions,
	}
}

// FormatVerdict renders the line printed by the command-line tool.
func FormatVerdict(label string) string {
	return fmt.Sprintf("The patient is Schizophrenia  %s", label)
}

func (s *Service) Close() {
	s.model.Close()
}
