package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// featureMap is one sample's activations laid out as (C, H*W).
type featureMap struct {
	c, h, w int
	data    []float64
}

type conv2d struct {
	in, out int
	spec    ConvSpec
	// weight is (out, in*kh*kw), the flattened PyTorch (out, in, kh, kw).
	weight *mat.Dense
	bias   []float64
}

func newConv2d(in, out int, spec ConvSpec) *conv2d {
	return &conv2d{
		in:     in,
		out:    out,
		spec:   spec,
		weight: mat.NewDense(out, in*spec.Kernel[0]*spec.Kernel[1], nil),
		bias:   make([]float64, out),
	}
}

func (l *conv2d) forward(x featureMap) featureMap {
	oh, ow := ConvOutShape(x.h, x.w, l.spec)
	cols := im2col(x, l.spec, oh, ow)

	var y mat.Dense
	y.Mul(l.weight, cols)

	out := featureMap{c: l.out, h: oh, w: ow, data: make([]float64, l.out*oh*ow)}
	for o := 0; o < l.out; o++ {
		row := out.data[o*oh*ow : (o+1)*oh*ow]
		mat.Row(row, o, &y)
		floats.AddConst(l.bias[o], row)
	}
	return out
}

// im2col unrolls every receptive field of x into a column so the whole
// convolution becomes a single matrix product.
func im2col(x featureMap, spec ConvSpec, oh, ow int) *mat.Dense {
	kh, kw := spec.Kernel[0], spec.Kernel[1]
	cols := mat.NewDense(x.c*kh*kw, oh*ow, nil)
	raw := cols.RawMatrix()

	for c := 0; c < x.c; c++ {
		plane := x.data[c*x.h*x.w : (c+1)*x.h*x.w]
		for ki := 0; ki < kh; ki++ {
			for kj := 0; kj < kw; kj++ {
				r := (c*kh+ki)*kw + kj
				dst := raw.Data[r*raw.Stride : r*raw.Stride+oh*ow]
				for oy := 0; oy < oh; oy++ {
					iy := oy*spec.Stride[0] - spec.Padding[0] + ki*spec.Dilation[0]
					if iy < 0 || iy >= x.h {
						continue
					}
					for ox := 0; ox < ow; ox++ {
						ix := ox*spec.Stride[1] - spec.Padding[1] + kj*spec.Dilation[1]
						if ix < 0 || ix >= x.w {
							continue
						}
						dst[oy*ow+ox] = plane[iy*x.w+ix]
					}
				}
			}
		}
	}
	return cols
}

type linear struct {
	in, out int
	// weight is (out, in), as stored by PyTorch.
	weight *mat.Dense
	bias   []float64
}

func newLinear(in, out int) *linear {
	return &linear{
		in:     in,
		out:    out,
		weight: mat.NewDense(out, in, nil),
		bias:   make([]float64, out),
	}
}

func (l *linear) forward(x []float64) []float64 {
	var y mat.VecDense
	y.MulVec(l.weight, mat.NewVecDense(len(x), x))
	out := make([]float64, l.out)
	for i := range out {
		out[i] = y.AtVec(i) + l.bias[i]
	}
	return out
}

func relu(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// maxPool applies a size x size window with the given stride, discarding
// any trailing rows or columns that do not fill a window.
func maxPool(x featureMap, size, stride int) featureMap {
	oh, ow := PoolOutShape(x.h, x.w, size, stride)
	out := featureMap{c: x.c, h: oh, w: ow, data: make([]float64, x.c*oh*ow)}
	for c := 0; c < x.c; c++ {
		in := x.data[c*x.h*x.w:]
		dst := out.data[c*oh*ow:]
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				m := math.Inf(-1)
				for i := 0; i < size; i++ {
					row := (oy*stride + i) * x.w
					for j := 0; j < size; j++ {
						if v := in[row+ox*stride+j]; v > m {
							m = v
						}
					}
				}
				dst[oy*ow+ox] = m
			}
		}
	}
	return out
}

// dropout zeroes each activation with probability p and scales the
// survivors by 1/(1-p).
func dropout(x []float64, p float64, rng *rand.Rand) {
	if p <= 0 {
		return
	}
	scale := 1 / (1 - p)
	for i := range x {
		if rng.Float64() < p {
			x[i] = 0
		} else {
			x[i] *= scale
		}
	}
}

// logSoftmax normalises x in place into log-probabilities.
func logSoftmax(x []float64) {
	lse := floats.LogSumExp(x)
	floats.AddConst(-lse, x)
}
