package model

// ConvSpec holds the spatial hyper-parameters of a 2D convolution, one
// value per axis (height, width).
type ConvSpec struct {
	Kernel   [2]int
	Padding  [2]int
	Stride   [2]int
	Dilation [2]int
}

// Conv3x3 is the 3x3 kernel, no padding, stride 1 convolution used by
// every stage of the network.
var Conv3x3 = ConvSpec{
	Kernel:   [2]int{3, 3},
	Padding:  [2]int{0, 0},
	Stride:   [2]int{1, 1},
	Dilation: [2]int{1, 1},
}

// ConvOutShape returns the output height and width of a convolution
// applied to an h x w input. Results may be zero or negative for inputs
// that are too small; callers must check.
func ConvOutShape(h, w int, spec ConvSpec) (int, int) {
	return convOutDim(h, spec.Kernel[0], spec.Padding[0], spec.Stride[0], spec.Dilation[0]),
		convOutDim(w, spec.Kernel[1], spec.Padding[1], spec.Stride[1], spec.Dilation[1])
}

// PoolOutShape returns the output size of a max-pool without padding.
func PoolOutShape(h, w, size, stride int) (int, int) {
	return floorDiv(h-size, stride) + 1, floorDiv(w-size, stride) + 1
}

func convOutDim(in, kernel, padding, stride, dilation int) int {
	return floorDiv(in+2*padding-dilation*(kernel-1)-1, stride) + 1
}

// floorDiv rounds toward negative infinity, unlike Go's / operator.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
