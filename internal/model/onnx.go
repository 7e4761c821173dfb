package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once

// InitOnnxRuntime loads the onnxruntime shared library. An empty libPath
// keeps the library's platform default. It is safe to call repeatedly.
func InitOnnxRuntime(libPath string) error {
	var err error
	ortInit.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if !ort.IsInitialized() {
			err = ort.InitializeEnvironment()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// OnnxSession runs an exported checkpoint through onnxruntime. Input and
// output tensors are allocated once and reused, so a session must not be
// shared between goroutines without external locking.
type OnnxSession struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int
	numClasses   int
}

func NewOnnxSession(modelPath string, meta Metadata) (*OnnxSession, error) {
	if !ort.IsInitialized() {
		if err := InitOnnxRuntime(""); err != nil {
			return nil, err
		}
	}
	if len(meta.InputShape) != 4 || len(meta.OutputShape) != 2 {
		return nil, fmt.Errorf("%w: input shape %v, output shape %v", ErrShapeMismatch, meta.InputShape, meta.OutputShape)
	}

	inputShape := ort.NewShape(meta.InputShape...)
	outputShape := ort.NewShape(meta.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	shape := make([]int, len(meta.InputShape))
	for i, d := range meta.InputShape {
		shape[i] = int(d)
	}

	return &OnnxSession{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   shape,
		numClasses:   int(meta.OutputShape[1]),
	}, nil
}

// Forward feeds the batch through the session one sample at a time when
// the exported graph has a fixed batch size of one.
func (s *OnnxSession) Forward(x *Tensor) (*Tensor, error) {
	if x == nil || len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: expected (N, C, H, W) input", ErrShapeMismatch)
	}
	fixed := s.inputShape[0]
	for i := 1; i < 4; i++ {
		if x.Shape[i] != s.inputShape[i] {
			return nil, fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, x.Shape, s.inputShape)
		}
	}
	if x.Shape[0]%fixed != 0 {
		return nil, fmt.Errorf("%w: batch %d is not a multiple of %d", ErrShapeMismatch, x.Shape[0], fixed)
	}

	chunk := len(s.inputTensor.GetData())
	if x.Len() != x.Shape[0]/fixed*chunk {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, x.Len(), x.Shape)
	}
	out := make([]float32, 0, x.Shape[0]*s.numClasses)
	for off := 0; off < x.Len(); off += chunk {
		copy(s.inputTensor.GetData(), x.Data[off:off+chunk])

		if err := s.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		out = append(out, s.outputTensor.GetData()...)
	}

	return NewTensor(out, x.Shape[0], s.numClasses)
}

// Close releases the session and its tensors. The onnxruntime
// environment itself stays alive for the life of the process.
func (s *OnnxSession) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}

// ShutdownOnnxRuntime tears down the onnxruntime environment.
func ShutdownOnnxRuntime() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}
