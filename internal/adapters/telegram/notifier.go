package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/config"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Notifier sends alert lifecycle notifications to the club staff chat
type Notifier struct {
	api             *tgbotapi.BotAPI
	cfg             *config.TelegramConfig
	templateManager *TemplateManager
}

// NewNotifier creates new Telegram notifier
func NewNotifier(cfg *config.TelegramConfig, templateManager *TemplateManager) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
		zap.Int64("chat_id", cfg.ChatID),
	)

	return &Notifier{
		api:             bot,
		cfg:             cfg,
		templateManager: templateManager,
	}, nil
}

// AlertOpened notifies the staff chat about a newly opened alert
func (n *Notifier) AlertOpened(ctx context.Context, alert *models.Alert) error {
	if !n.cfg.AlertOnOpen {
		return nil
	}

	data := map[string]interface{}{
		"Emoji":     severityEmoji(alert.Severity),
		"PolicyID":  alert.PolicyID,
		"SubjectID": alert.SubjectID,
		"Severity":  string(alert.Severity),
		"Metric":    alert.TriggeringMetric,
		"Value":     fmt.Sprintf("%.2f", alert.TriggeringValue),
		"OpenedAt":  alert.OpenedAt.Format("2006-01-02"),
	}

	msg, err := n.templateManager.ExecuteTemplate("alert_opened.tmpl", data)
	if err != nil {
		return err
	}

	return n.sendMessageMarkdown(n.cfg.ChatID, msg)
}

// AlertResolved notifies the staff chat that an alert closed
func (n *Notifier) AlertResolved(ctx context.Context, alert *models.Alert) error {
	if !n.cfg.AlertOnResolve {
		return nil
	}

	closedAt := alert.UpdatedAt
	if alert.ClosedAt != nil {
		closedAt = *alert.ClosedAt
	}
	daysActive := int(closedAt.Sub(alert.OpenedAt).Hours() / 24)

	data := map[string]interface{}{
		"PolicyID":   alert.PolicyID,
		"SubjectID":  alert.SubjectID,
		"Metric":     alert.TriggeringMetric,
		"OpenedAt":   alert.OpenedAt.Format("2006-01-02"),
		"ClosedAt":   closedAt.Format("2006-01-02"),
		"DaysActive": daysActive,
	}

	msg, err := n.templateManager.ExecuteTemplate("alert_resolved.tmpl", data)
	if err != nil {
		return err
	}

	return n.sendMessageMarkdown(n.cfg.ChatID, msg)
}

func (n *Notifier) sendMessageMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	_, err := n.api.Send(msg)
	if err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func severityEmoji(severity models.Severity) string {
	switch severity {
	case models.SeverityError:
		return "🚨"
	case models.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
