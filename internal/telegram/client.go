// Package telegram delivers notifications and serves bot commands over the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/placardwatch/internal/commands"
	"github.com/rewired-gh/placardwatch/internal/logger"
)

// MaxMessageRunes keeps every chunk safely under Telegram's 4096-character limit.
const MaxMessageRunes = 4000

// botAPI is the part of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client handles Telegram messaging.
type Client struct {
	bot            botAPI
	adminIDs       []int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client. Error and recovery notices go to adminIDs.
func NewClient(botToken string, adminIDs []int64, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		adminIDs:       adminIDs,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendText sends text to chatID, split into chunks of at most MaxMessageRunes. Each chunk gets
// a single attempt; trade notifications are not retried.
func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text, MaxMessageRunes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
		}
	}
	return nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and routes commands,
// button presses, and inline queries. It returns immediately; the goroutine stops when ctx is
// cancelled.
func (c *Client) ListenForCommands(ctx context.Context, router *commands.Router) {
	if _, err := c.bot.Request(botCommands(router)); err != nil {
		logger.Warn("Failed to register bot commands: %v", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				// queries can be slow; keep the update loop responsive
				go c.handleUpdate(ctx, router, update)
			}
		}
	}()
}

func (c *Client) handleUpdate(ctx context.Context, router *commands.Router, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		var userID int64
		if msg.From != nil {
			userID = msg.From.ID
		}
		req := commands.Request{
			UserID:  userID,
			ChatID:  msg.Chat.ID,
			Command: msg.Command(),
			Args:    strings.Fields(msg.CommandArguments()),
		}
		logger.Debug("Command /%s from user %d", req.Command, req.UserID)
		c.reply(ctx, req.ChatID, router.Handle(ctx, req))

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if _, err := c.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			logger.Warn("Failed to answer callback: %v", err)
		}
		if cq.Message == nil {
			return
		}
		c.reply(ctx, cq.Message.Chat.ID, router.HandleCallback(ctx, cq.From.ID, cq.Data))

	case update.InlineQuery != nil:
		results := router.HandleInline(update.InlineQuery.Query)
		if len(results) == 0 {
			return
		}
		if _, err := c.bot.Request(inlineAnswer(update.InlineQuery.ID, results)); err != nil {
			logger.Warn("Failed to answer inline query: %v", err)
		}
	}
}

// reply sends resp; buttons are attached to the last chunk.
func (c *Client) reply(ctx context.Context, chatID int64, resp commands.Response) {
	parts := SplitMessage(resp.Text, MaxMessageRunes)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && len(resp.Actions) > 0 {
			msg.ReplyMarkup = keyboard(resp.Actions)
		}
		if err := c.send(ctx, msg); err != nil {
			logger.Error("Failed to reply to chat %d: %v", chatID, err)
			return
		}
	}
}

// send delivers msg with linear-backoff retry. Used for command replies and admin notices.
// Rejections by the recipient are not retried.
func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if permanent(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// permanent reports Telegram errors that a retry cannot fix, such as a user who blocked the bot.
func permanent(err error) bool {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return false
	}
	return tgErr.Code == http.StatusBadRequest || tgErr.Code == http.StatusForbidden
}

// sendMarkdownV2 sends a MarkdownV2 message to every admin.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	var errs []error
	for _, id := range c.adminIDs {
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		if err := c.send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// SendError sends a polling error notification to the admins.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Polling error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	text := fmt.Sprintf("✅ *Polling recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(ctx, text)
}

func keyboard(actions []commands.Action) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func inlineAnswer(queryID string, results []commands.InlineResult) tgbotapi.InlineConfig {
	articles := make([]interface{}, 0, len(results))
	for _, r := range results {
		articles = append(articles, tgbotapi.NewInlineQueryResultArticle(r.ID, r.Title, r.Text))
	}
	return tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       articles,
		IsPersonal:    true,
	}
}

func botCommands(router *commands.Router) tgbotapi.SetMyCommandsConfig {
	var cmds []tgbotapi.BotCommand
	for _, c := range router.Commands() {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	return tgbotapi.NewSetMyCommands(cmds...)
}

// SplitMessage cuts text into chunks of at most limit runes, preferring to end each chunk
// after a newline. Joining the chunks restores text exactly.
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MaxMessageRunes
	}
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(parts, string(runes))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
