package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Api    ApiConfig
	Upload UploadConfig
}

type AppConfig struct {
	Environment     string
	LogFilePath     string
	PipelineLogPath string
}

type ApiConfig struct {
	BaseURL        string
	ApiKey         string
	TimeoutSeconds int
}

type UploadConfig struct {
	Concurrency   int
	MaxFiles      int
	ProgressTopic string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:     getEnv("GO_ENV", "development"),
			LogFilePath:     getEnv("LOG_FILE_PATH", "logs/app.log"),
			PipelineLogPath: getEnv("PIPELINE_LOG_PATH", "logs/pipeline.log"),
		},
		Api: ApiConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:8000"),
			ApiKey:         getEnv("API_KEY", ""),
			TimeoutSeconds: getEnvAsInt("API_TIMEOUT_SECONDS", 120),
		},
		Upload: UploadConfig{
			Concurrency:   getEnvAsInt("UPLOAD_CONCURRENCY", 2),
			MaxFiles:      getEnvAsInt("UPLOAD_MAX_FILES", 20),
			ProgressTopic: getEnv("BATCH_PROGRESS_TOPIC_NAME", "BATCH_PROGRESS"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
