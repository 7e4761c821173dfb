package main

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/schizo-classifier/internal/config"
	"github.com/Brownie44l1/schizo-classifier/internal/model"
	"github.com/Brownie44l1/schizo-classifier/internal/picker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metadataYAML = `
input_shape: [1, 3, 64, 64]
image_size: 64
network:
  input_channels: 3
  input_height: 64
  input_width: 64
  initial_filters: 2
  num_fc1: 8
  num_classes: 2
  dropout_rate: 0.25
`

type stubResolver struct {
	path string
	err  error
}

func (s stubResolver) Resolve() (string, error) { return s.path, s.err }

func writeFixtures(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()

	metaPath := filepath.Join(dir, "model_metadata.yaml")
	require.NoError(t, os.WriteFile(metaPath, []byte(metadataYAML), 0o644))

	meta, err := model.LoadMetadata(metaPath)
	require.NoError(t, err)
	net, err := model.NewNetwork(meta.Network)
	require.NoError(t, err)
	net.Randomize(99)

	modelPath := filepath.Join(dir, "Schizophrenia_Model.json")
	require.NoError(t, model.WriteStateDict(modelPath, net.StateDict()))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 100, 100))))
	imagePath := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(imagePath, buf.Bytes(), 0o644))

	return &config.Config{ModelPath: modelPath, MetadataPath: metaPath}, imagePath
}

func TestRunPrintsVerdict(t *testing.T) {
	cfg, imagePath := writeFixtures(t)

	var first bytes.Buffer
	require.NoError(t, run(cfg, model.DefaultLoader, picker.ArgResolver{Args: []string{imagePath}}, &first))

	line := first.String()
	assert.Regexp(t, `^The patient is Schizophrenia  (Negative|Positive)\n$`, line)

	for i := 0; i < 3; i++ {
		var again bytes.Buffer
		require.NoError(t, run(cfg, model.DefaultLoader, picker.ArgResolver{Args: []string{imagePath}}, &again))
		assert.Equal(t, line, again.String())
	}
}

func TestRunFailures(t *testing.T) {
	cfg, imagePath := writeFixtures(t)

	t.Run("missing model", func(t *testing.T) {
		bad := *cfg
		bad.ModelPath = filepath.Join(t.TempDir(), "absent.json")
		err := run(&bad, model.DefaultLoader, stubResolver{path: imagePath}, &bytes.Buffer{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("pickled checkpoint", func(t *testing.T) {
		bad := *cfg
		bad.ModelPath = "Schizophrenia_Model.pt"
		err := run(&bad, model.DefaultLoader, stubResolver{path: imagePath}, &bytes.Buffer{})
		assert.ErrorIs(t, err, model.ErrUnsupportedFormat)
	})

	t.Run("no selection", func(t *testing.T) {
		err := run(cfg, model.DefaultLoader, stubResolver{err: picker.ErrNoSelection}, &bytes.Buffer{})
		assert.ErrorIs(t, err, picker.ErrNoSelection)
	})

	t.Run("missing image", func(t *testing.T) {
		var out bytes.Buffer
		err := run(cfg, model.DefaultLoader, stubResolver{path: filepath.Join(t.TempDir(), "none.png")}, &out)
		assert.Error(t, err)
		assert.Empty(t, out.String())
	})

	t.Run("loader error", func(t *testing.T) {
		boom := errors.New("boom")
		loader := model.LoaderFunc(func(string, model.Metadata) (model.Forwarder, error) { return nil, boom })
		err := run(cfg, loader, stubResolver{path: imagePath}, &bytes.Buffer{})
		assert.ErrorIs(t, err, boom)
	})
}
