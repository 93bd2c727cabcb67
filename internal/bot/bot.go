package bot

import (
	"context"
	"log"

	"course-bot/config"
	"course-bot/internal/localization"
	"course-bot/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramBot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	localizer *localization.Localizer
	engine    *workflow.Engine
	ctx       context.Context
}

func NewBot(
	ctx context.Context,
	cfg *config.Config,
	localizer *localization.Localizer,
	engine *workflow.Engine,
) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	return &TelegramBot{
		api:       api,
		cfg:       cfg,
		localizer: localizer,
		engine:    engine,
		ctx:       ctx,
	}, nil
}

func (b *TelegramBot) Start() {
	b.api.Debug = false
	log.Printf("Authorized on account %s", b.api.Self.UserName)
	b.listenForUpdates()
}

func (b *TelegramBot) listenForUpdates() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		// Generation steps can take minutes; the engine serializes
		// work per chat, so each update gets its own goroutine.
		message := update.Message
		go func() {
			if message.IsCommand() {
				b.handleCommand(message)
				return
			}
			b.handleFeedback(message)
		}()
	}
}
