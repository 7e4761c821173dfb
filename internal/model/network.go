package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	numConvStages = 4
	poolSize      = 2
	poolStride    = 2
)

// Network is the four-stage convolutional classifier. Each stage is
// conv 3x3 -> ReLU -> max-pool 2x2, doubling the filter count; two fully
// connected layers and a log-softmax produce the class log-probabilities.
//
// A Network is in inference mode unless SetTraining enables dropout.
type Network struct {
	cfg     NetworkConfig
	convs   [numConvStages]*conv2d
	fc1     *linear
	fc2     *linear
	flatten int

	training bool
	rng      *rand.Rand
}

// NewNetwork allocates a zero-initialised network for cfg. It fails if
// any convolution or pooling stage would produce an empty feature map.
func NewNetwork(cfg NetworkConfig) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	n := &Network{cfg: cfg}

	h, w := cfg.InputHeight, cfg.InputWidth
	in, out := cfg.InputChannels, cfg.InitialFilters
	for i := range n.convs {
		n.convs[i] = newConv2d(in, out, Conv3x3)

		h, w = ConvOutShape(h, w, Conv3x3)
		if h <= 0 || w <= 0 {
			return nil, fmt.Errorf("%w: conv%d output %dx%d for input %dx%d",
				ErrNonPositiveShape, i+1, h, w, cfg.InputHeight, cfg.InputWidth)
		}
		h, w = PoolOutShape(h, w, poolSize, poolStride)
		if h <= 0 || w <= 0 {
			return nil, fmt.Errorf("%w: pool%d output %dx%d for input %dx%d",
				ErrNonPositiveShape, i+1, h, w, cfg.InputHeight, cfg.InputWidth)
		}
		in, out = out, out*2
	}

	n.flatten = h * w * in
	n.fc1 = newLinear(n.flatten, cfg.FCHidden)
	n.fc2 = newLinear(cfg.FCHidden, cfg.NumClasses)
	return n, nil
}

func (c NetworkConfig) validate() error {
	switch {
	case c.InputChannels <= 0, c.InputHeight <= 0, c.InputWidth <= 0:
		return fmt.Errorf("%w: input shape %dx%dx%d", ErrInvalidConfig, c.InputChannels, c.InputHeight, c.InputWidth)
	case c.InitialFilters <= 0:
		return fmt.Errorf("%w: initial_filters %d", ErrInvalidConfig, c.InitialFilters)
	case c.FCHidden <= 0:
		return fmt.Errorf("%w: num_fc1 %d", ErrInvalidConfig, c.FCHidden)
	case c.NumClasses <= 0:
		return fmt.Errorf("%w: num_classes %d", ErrInvalidConfig, c.NumClasses)
	case c.DropoutRate < 0 || c.DropoutRate >= 1:
		return fmt.Errorf("%w: dropout_rate %v", ErrInvalidConfig, c.DropoutRate)
	}
	return nil
}

// Config returns the configuration the network was built from.
func (n *Network) Config() NetworkConfig { return n.cfg }

// FlattenSize is the per-sample feature count entering the first fully
// connected layer.
func (n *Network) FlattenSize() int { return n.flatten }

// FC1InputSize reports the input width of the first fully connected layer.
func (n *Network) FC1InputSize() int { return n.fc1.in }

// SetTraining toggles dropout. The seed makes training-mode runs
// repeatable.
func (n *Network) SetTraining(training bool, seed uint64) {
	n.training = training
	if training {
		n.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	} else {
		n.rng = nil
	}
}

// Randomize fills every parameter from U(-1/sqrt(fan_in), 1/sqrt(fan_in)),
// the default PyTorch initialisation bound for conv and linear layers.
func (n *Network) Randomize(seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	fill := func(data []float64, fanIn int) {
		bound := 1 / math.Sqrt(float64(fanIn))
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * bound
		}
	}
	for _, c := range n.convs {
		fanIn := c.in * c.spec.Kernel[0] * c.spec.Kernel[1]
		fill(c.weight.RawMatrix().Data, fanIn)
		fill(c.bias, fanIn)
	}
	for _, l := range []*linear{n.fc1, n.fc2} {
		fill(l.weight.RawMatrix().Data, l.in)
		fill(l.bias, l.in)
	}
}

// Forward runs a (N, C, H, W) batch through the network and returns the
// (N, NumClasses) log-probabilities.
func (n *Network) Forward(x *Tensor) (*Tensor, error) {
	if err := n.checkInput(x); err != nil {
		return nil, err
	}

	batch := x.Shape[0]
	sample := n.cfg.InputChannels * n.cfg.InputHeight * n.cfg.InputWidth
	out := make([]float32, 0, batch*n.cfg.NumClasses)

	for b := 0; b < batch; b++ {
		fm := featureMap{
			c:    n.cfg.InputChannels,
			h:    n.cfg.InputHeight,
			w:    n.cfg.InputWidth,
			data: make([]float64, sample),
		}
		for i, v := range x.Data[b*sample : (b+1)*sample] {
			fm.data[i] = float64(v)
		}

		for _, conv := range n.convs {
			fm = conv.forward(fm)
			relu(fm.data)
			fm = maxPool(fm, poolSize, poolStride)
		}
		if len(fm.data) != n.flatten {
			return nil, fmt.Errorf("%w: flattened %d features, fc1 expects %d", ErrShapeMismatch, len(fm.data), n.flatten)
		}

		h := n.fc1.forward(fm.data)
		relu(h)
		if n.training {
			dropout(h, n.cfg.DropoutRate, n.rng)
		}
		logits := n.fc2.forward(h)
		logSoftmax(logits)

		for _, v := range logits {
			out = append(out, float32(v))
		}
	}

	return NewTensor(out, batch, n.cfg.NumClasses)
}

func (n *Network) checkInput(x *Tensor) error {
	if x == nil || len(x.Shape) != 4 {
		return fmt.Errorf("%w: expected (N, C, H, W) input", ErrShapeMismatch)
	}
	want := []int{x.Shape[0], n.cfg.InputChannels, n.cfg.InputHeight, n.cfg.InputWidth}
	for i := range want {
		if x.Shape[i] != want[i] || want[i] <= 0 {
			return fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, x.Shape, want)
		}
	}
	if x.Len() != want[0]*want[1]*want[2]*want[3] {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, x.Len(), x.Shape)
	}
	return nil
}

// Close satisfies Forwarder; a native network holds no external resources.
func (n *Network) Close() {}
