package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/schizo-classifier/internal/classify"
	"github.com/Brownie44l1/schizo-classifier/internal/config"
	"github.com/Brownie44l1/schizo-classifier/internal/model"
	"github.com/Brownie44l1/schizo-classifier/internal/picker"
)

func main() {
	cfg := config.Load()
	if err := run(cfg, model.DefaultLoader, picker.New(os.Args[1:]), os.Stdout); err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}
}

func run(cfg *config.Config, loader model.ModelLoader, resolver picker.Resolver, out io.Writer) error {
	meta, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(cfg.ModelPath), ".onnx") {
		if err := model.InitOnnxRuntime(cfg.OnnxLibrary); err != nil {
			return err
		}
		defer model.ShutdownOnnxRuntime()
	}

	log.Printf("Loading model from: %s", cfg.ModelPath)
	f, err := loader.Load(cfg.ModelPath, meta)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	svc := classify.NewService(f, meta)
	defer svc.Close()

	path, err := resolver.Resolve()
	if err != nil {
		return err
	}
	log.Printf("Classifying %s", path)

	outcome, err := svc.ClassifyFile(path)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, classify.FormatVerdict(outcome.Label))
	return err
}
