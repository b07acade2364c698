package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"lootwatch/internal/textutil"
)

const telegramCaptionLimit = 1024

// TelegramOption customizes a Telegram channel.
type TelegramOption func(*tele.Settings)

// WithTelegramAPI points the bot at an alternate Bot API endpoint.
func WithTelegramAPI(url string) TelegramOption {
	return func(s *tele.Settings) { s.URL = strings.TrimRight(url, "/") }
}

// Telegram sends photos to one chat through the Bot API.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegram builds an offline bot; no request is made until the first Send.
func NewTelegram(token string, chatID int64, opts ...TelegramOption) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is zero")
	}
	settings := tele.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&settings)
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return fmt.Sprintf("telegram:%d", t.chatID) }

func (t *Telegram) Send(ctx context.Context, delivery Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(delivery.Artifact)),
		Caption: textutil.Truncate(delivery.Caption, telegramCaptionLimit),
	}
	if _, err := t.bot.Send(tele.ChatID(t.chatID), photo); err != nil {
		return fmt.Errorf("%s: send photo: %w", t.Name(), err)
	}
	return nil
}
