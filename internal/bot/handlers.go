package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"course-bot/internal/ai"
	"course-bot/internal/storage"
	"course-bot/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *TelegramBot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		b.handleStartCommand(message)
	case "status":
		b.handleStatusCommand(chatID)
	case "cancel":
		b.handleCancelCommand(chatID)
	case "help":
		b.sendText(chatID, b.localizer.Get("help_message"))
	default:
		b.sendText(chatID, b.localizer.Get("help_message"))
	}
}

func (b *TelegramBot) handleStartCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	theme := strings.TrimSpace(message.CommandArguments())
	if theme == "" {
		// Bare /start greets and explains how to name a theme.
		b.sendText(chatID, b.localizer.Get("welcome_message"))
		return
	}
	log.Printf("New course request from chat %d, theme %q", chatID, theme)
	b.sendText(chatID, fmt.Sprintf(b.localizer.Get("processing_theme"), theme))

	state, err := b.engine.Start(b.ctx, chatID, theme)
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	b.sendMarkdown(chatID, fmt.Sprintf(b.localizer.Get("draft_ready"), truncateForTelegram(state.Artifact(workflow.ArtifactDraft))))
}

func (b *TelegramBot) handleStatusCommand(chatID int64) {
	state, err := b.engine.Status(chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, b.localizer.Get("no_active_session"))
			return
		}
		b.reportError(chatID, err)
		return
	}
	checkpoint := string(state.PendingCheckpoint)
	if checkpoint == "" {
		checkpoint = "-"
	}
	b.sendText(chatID, fmt.Sprintf(b.localizer.Get("status_report"), state.Theme, state.Stage, checkpoint))
}

func (b *TelegramBot) handleCancelCommand(chatID int64) {
	if err := b.engine.Cancel(chatID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, b.localizer.Get("no_active_session"))
			return
		}
		b.reportError(chatID, err)
		return
	}
	b.sendText(chatID, b.localizer.Get("cancel_done"))
}

// handleFeedback routes a plain text message as feedback for the
// chat's pending checkpoint.
func (b *TelegramBot) handleFeedback(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	log.Printf("Feedback from chat %d: %q", chatID, message.Text)
	b.sendText(chatID, b.localizer.Get("processing_feedback"))

	state, decision, err := b.engine.Resume(b.ctx, chatID, message.Text)
	if err != nil {
		b.reportError(chatID, err)
		return
	}

	if decision.Kind == workflow.DecisionUnclassified {
		b.sendText(chatID, b.repromptFor(state.PendingCheckpoint))
		return
	}

	if state.IsComplete() {
		b.sendText(chatID, fmt.Sprintf(b.localizer.Get("flow_complete"), state.Artifact(workflow.ArtifactDeploymentURL)))
		return
	}

	switch state.PendingCheckpoint {
	case workflow.CheckpointDraft:
		b.sendMarkdown(chatID, fmt.Sprintf(b.localizer.Get("draft_revised"), truncateForTelegram(state.Artifact(workflow.ArtifactDraft))))
	case workflow.CheckpointDeployment:
		title := ai.PageTitle(state.Artifact(workflow.ArtifactWebpage))
		if title == "" {
			title = state.Theme
		}
		b.sendText(chatID, fmt.Sprintf(b.localizer.Get("webpage_deployed"), title, state.Artifact(workflow.ArtifactDeploymentURL)))
	default:
		b.sendText(chatID, b.localizer.Get("processing_feedback"))
	}
}

func (b *TelegramBot) repromptFor(cp workflow.Checkpoint) string {
	switch cp {
	case workflow.CheckpointDeployment:
		return b.localizer.Get("reprompt_deployment")
	default:
		return b.localizer.Get("reprompt_draft")
	}
}

func (b *TelegramBot) reportError(chatID int64, err error) {
	var execErr *workflow.ExecutorError
	switch {
	case errors.Is(err, workflow.ErrStaleFeedback):
		b.sendText(chatID, b.localizer.Get("stale_feedback"))
	case errors.Is(err, storage.ErrNotFound):
		b.sendText(chatID, b.localizer.Get("no_active_session"))
	case errors.As(err, &execErr):
		log.Printf("Executor failure for chat %d: %v", chatID, err)
		b.sendText(chatID, fmt.Sprintf(b.localizer.Get("executor_failed"), execErr.Executor))
	default:
		// Persistence and other internal failures: the user must know
		// the action did not complete.
		log.Printf("Internal error for chat %d: %v", chatID, err)
		b.sendText(chatID, b.localizer.Get("action_not_completed"))
	}
}
