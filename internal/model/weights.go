package model

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
)

// Param is one named parameter tensor of a state dict.
type Param struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// StateDict maps PyTorch parameter names (conv1.weight, fc2.bias, ...) to
// their values.
type StateDict map[string]Param

// Keys returns the parameter names in sorted order.
func (sd StateDict) Keys() []string {
	keys := make([]string, 0, len(sd))
	for k := range sd {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type namedParam struct {
	name  string
	shape []int
	data  []float64
}

func (n *Network) params() []namedParam {
	var ps []namedParam
	for i, c := range n.convs {
		prefix := fmt.Sprintf("conv%d", i+1)
		ps = append(ps,
			namedParam{prefix + ".weight", []int{c.out, c.in, c.spec.Kernel[0], c.spec.Kernel[1]}, c.weight.RawMatrix().Data},
			namedParam{prefix + ".bias", []int{c.out}, c.bias},
		)
	}
	for i, l := range []*linear{n.fc1, n.fc2} {
		prefix := fmt.Sprintf("fc%d", i+1)
		ps = append(ps,
			namedParam{prefix + ".weight", []int{l.out, l.in}, l.weight.RawMatrix().Data},
			namedParam{prefix + ".bias", []int{l.out}, l.bias},
		)
	}
	return ps
}

// StateDict returns a copy of every parameter.
func (n *Network) StateDict() StateDict {
	sd := make(StateDict)
	for _, p := range n.params() {
		sd[p.name] = Param{Shape: slices.Clone(p.shape), Data: slices.Clone(p.data)}
	}
	return sd
}

// LoadStateDict copies sd into the network. Every parameter must be
// present with exactly the shape the network was constructed with.
func (n *Network) LoadStateDict(sd StateDict) error {
	known := make(map[string]bool)
	for _, p := range n.params() {
		known[p.name] = true
	}
	for _, k := range sd.Keys() {
		if !known[k] {
			return fmt.Errorf("unexpected parameter %q", k)
		}
	}

	for _, p := range n.params() {
		src, ok := sd[p.name]
		if !ok {
			return fmt.Errorf("missing parameter %q", p.name)
		}
		if !slices.Equal(src.Shape, p.shape) {
			return fmt.Errorf("%w: parameter %q has shape %v, want %v", ErrShapeMismatch, p.name, src.Shape, p.shape)
		}
		if len(src.Data) != len(p.data) {
			return fmt.Errorf("%w: parameter %q has %d values, want %d", ErrShapeMismatch, p.name, len(src.Data), len(p.data))
		}
	}
	for _, p := range n.params() {
		copy(p.data, sd[p.name].Data)
	}
	return nil
}

// ReadStateDict loads a JSON state dict written by WriteStateDict or by
// the export script.
func ReadStateDict(path string) (StateDict, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	var sd StateDict
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	return sd, nil
}

func WriteStateDict(path string, sd StateDict) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(sd); err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}
	return f.Close()
}
