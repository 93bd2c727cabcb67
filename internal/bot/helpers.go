package bot

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects messages longer than 4096 characters; leave room
// for the surrounding template text.
const maxDraftLength = 3500

func truncateForTelegram(text string) string {
	if len(text) <= maxDraftLength {
		return text
	}
	cut := maxDraftLength
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut] + "\n..."
}

func (b *TelegramBot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *TelegramBot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send markdown message to chat %d: %v. Retrying as plain text.", chatID, err)
		plain := tgbotapi.NewMessage(chatID, text)
		if _, err := b.api.Send(plain); err != nil {
			log.Printf("Failed to send message as plain text either: %v", err)
		}
	}
}
