package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockForwarder struct {
	mock.Mock
}

func (m *mockForwarder) Forward(x *Tensor) (*Tensor, error) {
	args := m.Called(x)
	if out := args.Get(0); out != nil {
		return out.(*Tensor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockForwarder) Close() {
	m.Called()
}

func TestPredictNormalisesLogits(t *testing.T) {
	x := constantInput(2, 3, 4, 4, 0)
	f := new(mockForwarder)
	f.On("Forward", x).Return(&Tensor{Shape: []int{2, 2}, Data: []float32{3, 1, -2, 5}}, nil)

	results, err := Predict(f, x)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 0, results[0].ClassIndex)
	assert.Equal(t, 1, results[1].ClassIndex)
	assert.InDelta(t, 1/(1+math.Exp(-2)), results[0].Probabilities[0], 1e-6)
	for _, r := range results {
		assert.InDelta(t, 1.0, r.Probabilities[0]+r.Probabilities[1], 1e-9)
	}
	f.AssertExpectations(t)
}

func TestPredictWithNetwork(t *testing.T) {
	net, err := NewNetwork(smallConfig())
	require.NoError(t, err)
	net.Randomize(21)

	x := constantInput(1, 3, 64, 64, 0)
	first, err := Predict(net, x)
	require.NoError(t, err)
	require.Len(t, first, 1)

	assert.Contains(t, []int{0, 1}, first[0].ClassIndex)
	sum := 0.0
	for _, p := range first[0].Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	for i := 0; i < 3; i++ {
		again, err := Predict(net, x)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredictZeroWeightsPicksFirstClass(t *testing.T) {
	net, err := NewNetwork(smallConfig())
	require.NoError(t, err)

	results, err := Predict(net, patternInput(1, 3, 64, 64))
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].ClassIndex)
	assert.InDelta(t, 0.5, results[0].Probabilities[0], 1e-9)
}

func TestPredictPropagatesErrors(t *testing.T) {
	x := constantInput(1, 3, 4, 4, 0)
	f := new(mockForwarder)
	f.On("Forward", x).Return(nil, errors.New("boom"))

	_, err := Predict(f, x)
	assert.EqualError(t, err, "boom")

	g := new(mockForwarder)
	g.On("Forward", x).Return(&Tensor{Shape: []int{2}, Data: []float32{0, 0}}, nil)
	_, err = Predict(g, x)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPredictRejectsMalformedOutput(t *testing.T) {
	x := constantInput(1, 3, 4, 4, 0)

	short := new(mockForwarder)
	short.On("Forward", x).Return(&Tensor{Shape: []int{1, 2}, Data: []float32{0}}, nil)
	_, err := Predict(short, x)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	wrongBatch := new(mockForwarder)
	wrongBatch.On("Forward", x).Return(&Tensor{Shape: []int{2, 2}, Data: []float32{0, 0, 0, 0}}, nil)
	_, err = Predict(wrongBatch, x)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	empty := new(mockForwarder)
	empty.On("Forward", x).Return(nil, nil)
	_, err = Predict(empty, x)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Predict(new(mockForwarder), nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
