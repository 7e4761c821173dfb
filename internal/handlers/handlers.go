package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/Brownie44l1/schizo-classifier/internal/classify"
	"github.com/Brownie44l1/schizo-classifier/internal/model"
	"github.com/Brownie44l1/schizo-classifier/internal/preprocess"
	"github.com/google/uuid"
)

type Handler struct {
	service *classify.Service
}

func NewHandler(service *classify.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":  "healthy",
		"classes": h.service.Labels(),
	}, http.StatusOK)
}

// Predict accepts an already normalised 3xHxW image as a flat array.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := h.service.InputSize()
	if len(req.Image) != expectedSize {
		respondError(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	side := h.service.ImageSize()
	x, err := model.NewTensor(req.Image, 3, side, side)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.classify(w, func() (*classify.Outcome, error) { return h.service.ClassifyTensor(x) })
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, format, err := preprocess.Decode(file)
	if err != nil {
		respondError(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	log.Printf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	h.classify(w, func() (*classify.Outcome, error) { return h.service.ClassifyImage(img) })
}

func (h *Handler) classify(w http.ResponseWriter, fn func() (*classify.Outcome, error)) {
	requestID := uuid.NewString()

	outcome, err := fn()
	if errors.Is(err, preprocess.ErrUnsupportedChannels) {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[%s] Prediction error: %v", requestID, err)
		respondError(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	resp := h.service.Response(outcome)
	resp.RequestID = requestID
	log.Printf("[%s] Predicted %s (%.4f)", requestID, resp.Class, resp.Confidence)

	respondJSON(w, resp, http.StatusOK)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
