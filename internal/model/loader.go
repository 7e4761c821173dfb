package model

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// Forwarder is anything that maps a (N, C, H, W) batch to (N, classes)
// scores: the native Network or an onnxruntime session.
type Forwarder interface {
	Forward(x *Tensor) (*Tensor, error)
	Close()
}

// ModelLoader turns a checkpoint on disk into a Forwarder.
type ModelLoader interface {
	Load(path string, meta Metadata) (Forwarder, error)
}

// LoaderFunc adapts a plain function to ModelLoader.
type LoaderFunc func(path string, meta Metadata) (Forwarder, error)

func (f LoaderFunc) Load(path string, meta Metadata) (Forwarder, error) {
	return f(path, meta)
}

// DefaultLoader picks the backend from the file extension:
// .onnx is run by onnxruntime, .json is a state dict for the native
// network. Pickled PyTorch files are rejected.
var DefaultLoader ModelLoader = LoaderFunc(loadByExtension)

func loadByExtension(path string, meta Metadata) (Forwarder, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".onnx":
		return NewOnnxSession(path, meta)
	case ".json":
		return LoadNetwork(path, meta.Network)
	case ".pt", ".pth":
		return nil, fmt.Errorf("%w: %s is a pickled torch checkpoint, export it with torch.onnx.export", ErrUnsupportedFormat, filepath.Base(path))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// LoadNetwork builds a Network for cfg and fills it from a JSON state dict.
func LoadNetwork(path string, cfg NetworkConfig) (*Network, error) {
	net, err := NewNetwork(cfg)
	if err != nil {
		return nil, err
	}
	sd, err := ReadStateDict(path)
	if err != nil {
		return nil, err
	}
	if err := net.LoadStateDict(sd); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}
	log.Printf("Native network loaded: %d parameter tensors, flatten size %d", len(sd), net.FlattenSize())
	return net, nil
}
