// Package notify sends an operator summary to Telegram after each run.
// Notification is optional and best-effort: a missing token disables it and
// send failures are the caller's to log, never to act on.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prosperidad-bot/report"
)

// Notifier posts run summaries to a Telegram chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New creates a Notifier. Returns nil without error when token or chat id is
// absent, meaning notification is disabled.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// RunSummary sends the end-of-run summary message.
func (n *Notifier) RunSummary(run *report.Run) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatRunSummary(run))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	return nil
}

// FormatRunSummary renders the run report as a compact operator message.
func FormatRunSummary(run *report.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🙏 Run %s\n\n", run.ID)
	fmt.Fprintf(&sb, "Respuestas enviadas: %d/%d\n", run.Counts.RepliesSent, run.MaxReplies)
	fmt.Fprintf(&sb, "Procesados: %d\n", run.Counts.Processed)
	fmt.Fprintf(&sb, "IA: %d | Fallbacks: %d\n", run.Counts.ModelReplies, run.Counts.Fallbacks)
	if run.Counts.CrisisIgnored > 0 {
		fmt.Fprintf(&sb, "⚠️ Crisis ignoradas: %d\n", run.Counts.CrisisIgnored)
	}
	if errs := run.Counts.GeminiErrors + run.Counts.YouTubeErrors; errs > 0 {
		fmt.Fprintf(&sb, "Errores: %d\n", errs)
	}
	fmt.Fprintf(&sb, "Duración: %.1fs", run.ElapsedSeconds)
	return sb.String()
}
