package main

import (
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/schizo-classifier/internal/classify"
	"github.com/Brownie44l1/schizo-classifier/internal/config"
	"github.com/Brownie44l1/schizo-classifier/internal/handlers"
	"github.com/Brownie44l1/schizo-classifier/internal/model"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	cfg := config.Load()

	meta, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}

	if strings.EqualFold(filepath.Ext(cfg.ModelPath), ".onnx") {
		if err := model.InitOnnxRuntime(cfg.OnnxLibrary); err != nil {
			log.Fatalf("%v", err)
		}
		defer model.ShutdownOnnxRuntime()
	}

	log.Printf("Loading model from: %s", cfg.ModelPath)

	f, err := model.DefaultLoader.Load(cfg.ModelPath, meta)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	service := classify.NewService(f, meta)
	defer service.Close()

	handler := handlers.NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", enableCORS(handler.Health))
	mux.HandleFunc("/predict", enableCORS(handler.Predict))
	mux.HandleFunc("/predict/image", enableCORS(handler.PredictFromImage))

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Classes: %v", meta.Classes)
	log.Println("Endpoints:")
	log.Println("  GET  /health        - Health check")
	log.Println("  POST /predict       - Normalised array prediction")
	log.Println("  POST /predict/image - Predict from image upload")

	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
