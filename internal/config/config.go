package config

import "os"

type Config struct {
	Port         string
	ModelPath    string
	MetadataPath string
	OnnxLibrary  string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		ModelPath:    getEnv("MODEL_PATH", "models/Schizophrenia_Model.onnx"),
		MetadataPath: getEnv("METADATA_PATH", "models/model_metadata.yaml"),
		OnnxLibrary:  getEnv("ONNXRUNTIME_LIB", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
