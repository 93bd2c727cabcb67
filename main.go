package main

import (
	"context"
	"embed"
	"log"
	"time"

	"course-bot/config"
	"course-bot/internal/ai"
	"course-bot/internal/bot"
	"course-bot/internal/deploy"
	"course-bot/internal/lesson"
	"course-bot/internal/localization"
	"course-bot/internal/scheduler"
	"course-bot/internal/storage"
	"course-bot/internal/workflow"
)

//go:embed locales
var localeFiles embed.FS

func main() {
	log.Println("Starting AI Course Designer Bot...")

	ctx := context.Background()
	cfg := config.LoadConfig()

	dbStorage, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStorage.Close()

	localizer := localization.NewLocalizer(localeFiles, cfg.DefaultLanguage)

	generator, err := ai.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiTextModel, cfg.GeminiImageModel)
	if err != nil {
		log.Fatalf("Failed to create Gemini generator: %v", err)
	}
	defer generator.Close()

	deployer, err := deploy.NewDeployer(cfg.DeployDir)
	if err != nil {
		log.Fatalf("Failed to create deployer: %v", err)
	}

	intents := workflow.DefaultIntents()
	if cfg.IntentsFilePath != "" {
		intents, err = workflow.LoadIntentsFromFile(cfg.IntentsFilePath)
		if err != nil {
			log.Fatalf("Failed to load intent tables: %v", err)
		}
		log.Printf("Intent tables loaded from %s", cfg.IntentsFilePath)
	}

	executors := lesson.Executors(generator, deployer, cfg.FrameworkFilePath, cfg.ImagesDir, cfg.MaxImagesPerLesson)
	engine, err := workflow.NewEngine(dbStorage, intents, executors)
	if err != nil {
		log.Fatalf("Failed to create workflow engine: %v", err)
	}

	appScheduler, err := scheduler.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	scheduleSessionExpiry(appScheduler, dbStorage, cfg)
	appScheduler.Start()
	defer appScheduler.Shutdown()

	telegramBot, err := bot.NewBot(ctx, &cfg, localizer, engine)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	log.Println("Bot is running...")
	telegramBot.Start()
}

func scheduleSessionExpiry(s *scheduler.Scheduler, dbStorage *storage.Storage, cfg config.Config) {
	interval := time.Duration(cfg.SessionSweepIntervalMinutes) * time.Minute
	maxAge := time.Duration(cfg.SessionExpiryDays) * 24 * time.Hour
	log.Printf("Scheduling session expiry sweep. Interval: %s, Max idle age: %s", interval, maxAge)
	s.AddJob(interval, func() {
		cutoff := time.Now().UTC().Add(-maxAge)
		count, err := dbStorage.ExpireBefore(cutoff)
		if err != nil {
			log.Printf("Session expiry sweep failed: %v", err)
			return
		}
		if count > 0 {
			log.Printf("Session expiry sweep archived %d idle sessions", count)
		}
	})
}
