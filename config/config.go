package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"     required:"true"`
	GeminiTextModel  string `envconfig:"GEMINI_TEXT_MODEL"  default:"gemini-1.5-pro"`
	GeminiImageModel string `envconfig:"GEMINI_IMAGE_MODEL" default:"gemini-2.5-flash-image"`

	FrameworkFilePath string `envconfig:"FRAMEWORK_FILE_PATH" default:"curriculum/framework.md"`
	DeployDir         string `envconfig:"DEPLOY_DIR"          default:"deployed_lessons"`
	ImagesDir         string `envconfig:"IMAGES_DIR"          default:"generated_images"`
	DBPath            string `envconfig:"DB_PATH"             default:"coursebot.db"`

	DefaultLanguage    string `envconfig:"DEFAULT_LANGUAGE"    default:"zh"`
	IntentsFilePath    string `envconfig:"INTENTS_FILE_PATH"`
	MaxImagesPerLesson int    `envconfig:"MAX_IMAGES_PER_LESSON" default:"3"`

	SessionExpiryDays           int `envconfig:"SESSION_EXPIRY_DAYS"            default:"7"`
	SessionSweepIntervalMinutes int `envconfig:"SESSION_SWEEP_INTERVAL_MINUTES" default:"360"`
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config
	err = envconfig.Process("", &cfg)
	if err != nil {
		log.Fatalf("Failed to process configuration: %v", err)
	}

	return cfg
}
