package model

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultMetadata describes the published checkpoint: a 3x256x256 input,
// ImageNet normalisation and the two diagnosis labels.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 3, 256, 256},
		OutputShape: []int64{1, 2},
		InputName:   "input",
		OutputName:  "output",
		Classes:     []string{"Negative", "Positive"},
		ImageSize:   256,
		Mean:        []float32{0.485, 0.456, 0.406},
		Std:         []float32{0.229, 0.224, 0.225},
		Network: NetworkConfig{
			InputChannels:  3,
			InputHeight:    256,
			InputWidth:     256,
			InitialFilters: 8,
			FCHidden:       100,
			NumClasses:     2,
			DropoutRate:    0.25,
		},
	}
}

// LoadMetadata reads a YAML (or JSON) metadata file. Fields absent from
// the file keep their DefaultMetadata values. A missing file is not an
// error: the defaults are returned.
func LoadMetadata(path string) (Metadata, error) {
	meta := DefaultMetadata()
	if path == "" {
		return meta, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return meta, err
	}
	return meta, nil
}

// Validate cross-checks the fields that the preprocessing and the network
// must agree on.
func (m Metadata) Validate() error {
	if len(m.Classes) == 0 {
		return fmt.Errorf("%w: no class labels", ErrInvalidConfig)
	}
	if len(m.Classes) != m.Network.NumClasses {
		return fmt.Errorf("%w: %d labels for %d classes", ErrInvalidConfig, len(m.Classes), m.Network.NumClasses)
	}
	// Preprocessing always produces three channels.
	if m.Network.InputChannels != 3 {
		return fmt.Errorf("%w: input_channels must be 3, got %d", ErrInvalidConfig, m.Network.InputChannels)
	}
	if len(m.Mean) != 3 || len(m.Std) != 3 {
		return fmt.Errorf("%w: mean/std must have 3 entries, got %d/%d", ErrInvalidConfig, len(m.Mean), len(m.Std))
	}
	for _, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("%w: zero standard deviation", ErrInvalidConfig)
		}
	}
	if m.ImageSize != m.Network.InputHeight || m.ImageSize != m.Network.InputWidth {
		return fmt.Errorf("%w: image size %d does not match network input %dx%d",
			ErrInvalidConfig, m.ImageSize, m.Network.InputHeight, m.Network.InputWidth)
	}
	if len(m.InputShape) > 0 {
		want := []int64{3, int64(m.ImageSize), int64(m.ImageSize)}
		if len(m.InputShape) != 4 || m.InputShape[0] <= 0 || !slices.Equal(m.InputShape[1:], want) {
			return fmt.Errorf("%w: input_shape %v, want [N 3 %d %d]", ErrInvalidConfig, m.InputShape, m.ImageSize, m.ImageSize)
		}
	}
	if len(m.OutputShape) > 0 {
		if len(m.OutputShape) != 2 || m.OutputShape[0] <= 0 || m.OutputShape[1] != int64(m.Network.NumClasses) {
			return fmt.Errorf("%w: output_shape %v, want [N %d]", ErrInvalidConfig, m.OutputShape, m.Network.NumClasses)
		}
	}
	return nil
}
