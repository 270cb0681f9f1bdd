// Package telegram is the optional human-in-the-loop surface: each proposed
// comment is sent to the operator with inline approve/skip buttons, and the
// session report is delivered when the run finishes.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

type UI struct {
	Bot      *tgbotapi.BotAPI
	ChatID   int64
	channels map[string]chan ports.UserAction
	mu       sync.Mutex
}

func NewUI(token string, chatIDStr string) (*UI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}

	ui := &UI{
		Bot:      bot,
		ChatID:   chatID,
		channels: make(map[string]chan ports.UserAction),
	}

	go ui.listen()
	return ui, nil
}

var _ ports.Interaction = (*UI)(nil)

func (ui *UI) listen() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := ui.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery == nil {
			continue
		}

		callback := update.CallbackQuery
		action := ports.UserAction(callback.Data)

		ui.mu.Lock()
		for msgID, ch := range ui.channels {
			ch <- action
			delete(ui.channels, msgID)

			ui.Bot.Request(tgbotapi.NewCallback(callback.ID, "recorded: "+string(action)))

			edit := tgbotapi.NewEditMessageReplyMarkup(ui.ChatID, callback.Message.MessageID,
				tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
			ui.Bot.Send(edit)
			break
		}
		ui.mu.Unlock()
	}
}

// Confirm blocks until the operator presses a button or ctx expires. A
// timeout counts as a skip.
func (ui *UI) Confirm(ctx context.Context, title, body string) (ports.UserAction, error) {
	msgText := fmt.Sprintf("*[%s]*\n\n%s", escapeMarkdown(title), escapeMarkdown(body))
	msg := tgbotapi.NewMessage(ui.ChatID, msgText)
	msg.ParseMode = "Markdown"

	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", string(ports.ActionApprove)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Skip", string(ports.ActionSkip)),
		),
	)

	sentMsg, err := ui.Bot.Send(msg)
	if err != nil {
		return ports.ActionSkip, err
	}

	// Buffered so a late button press after a timeout never blocks the
	// update listener.
	respCh := make(chan ports.UserAction, 1)
	msgKey := strconv.Itoa(sentMsg.MessageID)

	ui.mu.Lock()
	ui.channels[msgKey] = respCh
	ui.mu.Unlock()

	select {
	case action := <-respCh:
		return action, nil
	case <-ctx.Done():
		return ports.ActionSkip, ctx.Err()
	}
}

func (ui *UI) Report(_ context.Context, report domain.SessionReport) error {
	text := fmt.Sprintf(
		"Session finished in %s\nPosts seen: %d\nCommented: %d\nFailed: %d\nSkipped: %d",
		report.FinishedAt.Sub(report.StartedAt).Round(time.Second),
		report.TotalPosts, report.Succeeded, report.Failed, report.Skipped,
	)
	if report.SafetyStops > 0 {
		text += fmt.Sprintf("\nStopped early for safety (%d)", report.SafetyStops)
	}
	_, err := ui.Bot.Send(tgbotapi.NewMessage(ui.ChatID, text))
	return err
}

// escapeMarkdown keeps post content from breaking Telegram markdown parsing.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
