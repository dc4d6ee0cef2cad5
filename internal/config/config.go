package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Intent / transcription model (Vertex AI via the genai SDK)
	GCPProjectID string
	GCPLocation  string
	ModelName    string
	UseMockLLM   bool // true = deterministic fallback only, no remote calls

	// Order history persistence: "memory", "sqlite" or "firestore"
	StorageBackend string
	SQLitePath     string

	// Device automation
	AppiumServerURL string
	DeviceUDID      string
	AppPackage      string
	AppActivity     string
	SelectorsPath   string
	UIWaitTimeout   time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

// Load reads all env vars and builds the config
func Load() *Config {
	cfg := &Config{
		Port: getEnv("WALLY_PORT", "8080"),

		GCPProjectID: getEnv("WALLY_GCP_PROJECT", ""),
		GCPLocation:  getEnv("WALLY_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("WALLY_MODEL_NAME", "gemini-2.5-flash"),
		UseMockLLM:   getBoolEnv("WALLY_USE_MOCK_LLM", false),

		StorageBackend: getEnv("WALLY_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("WALLY_SQLITE_PATH", "wally.db"),

		AppiumServerURL: getEnv("WALLY_APPIUM_URL", "http://localhost:4723"),
		DeviceUDID:      getEnv("WALLY_DEVICE_UDID", ""),
		AppPackage:      getEnv("WALLY_APP_PACKAGE", "com.walmart.android"),
		AppActivity:     getEnv("WALLY_APP_ACTIVITY", ".activity.MainActivity"),
		SelectorsPath:   getEnv("WALLY_SELECTORS_PATH", "configs/selectors.yaml"),
		UIWaitTimeout:   time.Duration(getIntEnv("WALLY_UI_WAIT_SECONDS", 10)) * time.Second,
	}

	// The remote model needs a project unless we run on the mock.
	if !cfg.UseMockLLM && cfg.GCPProjectID == "" {
		log.Println("WALLY_GCP_PROJECT is not set, forcing mock LLM mode")
		cfg.UseMockLLM = true
	}

	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		log.Fatal("WALLY_GCP_PROJECT must be set for the firestore storage backend")
	}

	return cfg
}
